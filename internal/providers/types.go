package providers

import (
	"context"
	"time"
)

// ConnectionStatus is the result of a provider connectivity check.
type ConnectionStatus struct {
	IsValid     bool
	Error       string
	LastChecked time.Time
}

// Balance holds a provider-reported account balance.
type Balance struct {
	Current   float64
	Available *float64
}

// Account is an account as reported by the provider.
type Account struct {
	ExternalAccountID string
	Name              string
	Type              string
	Institution       string
	Mask              string
	Balance           *Balance
	Status            string
	Metadata          map[string]string
}

// Transaction is one transaction as reported by the provider, prior to any
// local matching decision. Amount is signed: positive = money in.
type Transaction struct {
	ExternalID   string
	Date         time.Time
	Amount       float64
	Description  string
	MerchantName string
	// Category is the provider's taxonomy path, broadest first
	// (e.g. ["Food and Drink", "Restaurants"]).
	Category     []string
	BalanceAfter *float64
	Pending      bool
}

// FetchOptions configures a transaction fetch.
type FetchOptions struct {
	StartDate time.Time
	EndDate   time.Time
	Cursor    string
}

// TransactionPage is one page of a cursor-driven fetch.
type TransactionPage struct {
	Transactions []Transaction
	Cursor       string
	HasMore      bool
}

// BankDataProvider is the interface all bank data sources implement.
// Implementations are selected by the registry keyed on the connection's
// stored provider type.
type BankDataProvider interface {
	// Provider identification
	Name() string        // "plaid", "sandbox", ...
	DisplayName() string // "Plaid", "Sandbox", ...

	// TestConnection verifies the connection's credentials are usable
	TestConnection(ctx context.Context, connectionID string) (*ConnectionStatus, error)

	// FetchAccounts returns the provider's account list for a connection
	FetchAccounts(ctx context.Context, connectionID string) ([]Account, error)

	// FetchTransactions returns one page of transactions
	FetchTransactions(ctx context.Context, connectionID, externalAccountID string, opts FetchOptions) (*TransactionPage, error)

	// RateLimitDelay is the pause callers should insert between accounts
	RateLimitDelay() time.Duration
}
