// Package mapper builds local ledger payloads from external provider
// transactions.
package mapper

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerlink/banksync/internal/domain/categorizer"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
	"github.com/ledgerlink/banksync/internal/providers"
)

// Mapper converts provider transactions into local transaction payloads,
// delegating category resolution to the categorizer.
type Mapper struct {
	categorizer *categorizer.Categorizer
}

// NewMapper creates a mapper.
func NewMapper(cat *categorizer.Categorizer) *Mapper {
	return &Mapper{categorizer: cat}
}

// MapToLocal builds a local transaction from an external one. Bank-sourced
// transactions are always CLEARED and flagged as bank provenance; the sign
// of the amount decides income versus expense.
func (m *Mapper) MapToLocal(ext providers.Transaction, localAccountID, userID string) (*storage.LocalTransaction, error) {
	result, err := m.categorizer.Categorize(ext)
	if err != nil {
		return nil, fmt.Errorf("categorization failed: %w", err)
	}

	txType := storage.TransactionTypeExpense
	if ext.Amount >= 0 {
		txType = storage.TransactionTypeIncome
	}

	return &storage.LocalTransaction{
		ID:           uuid.NewString(),
		AccountID:    localAccountID,
		UserID:       userID,
		Date:         ext.Date,
		Amount:       ext.Amount,
		Description:  CollapseWhitespace(ext.Description),
		MerchantName: CollapseWhitespace(ext.MerchantName),
		Notes:        buildNotes(ext),
		Type:         txType,
		Status:       storage.TransactionStatusCleared,
		CategoryID:   result.CategoryID,
		FromBank:     true,
	}, nil
}

// buildNotes aggregates present-only provider metadata, one line each.
func buildNotes(ext providers.Transaction) string {
	var lines []string
	if len(ext.Category) > 0 {
		lines = append(lines, "Provider category: "+strings.Join(ext.Category, " > "))
	}
	if ext.BalanceAfter != nil {
		lines = append(lines, fmt.Sprintf("Balance after transaction: %.2f", *ext.BalanceAfter))
	}
	if ext.Pending {
		lines = append(lines, "Reported as pending at import time")
	}
	return strings.Join(lines, "\n")
}

// CollapseWhitespace trims a string and collapses internal whitespace runs
// to single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
