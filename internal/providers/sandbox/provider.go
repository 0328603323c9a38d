// Package sandbox implements an in-memory BankDataProvider with
// deterministic fixture data. It backs local development, the CLI demo
// mode, and the orchestrator tests.
package sandbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ledgerlink/banksync/internal/providers"
)

// Provider is a fixture-backed bank data source.
type Provider struct {
	mu       sync.Mutex
	accounts map[string][]providers.Account       // keyed by connection id
	txs      map[string][]providers.Transaction   // keyed by connection id + "/" + account id
	balances map[string]float64                   // keyed like txs
	pageSize int
	delay    time.Duration

	// Error injection knobs for tests
	TestConnectionErr    error
	InvalidConnection    bool
	FetchAccountsErr     error
	FetchTransactionsErr map[string]error // keyed by external account id
}

// Compile-time check
var _ providers.BankDataProvider = (*Provider)(nil)

// NewProvider creates an empty sandbox provider. Fixtures are added with
// AddAccount and AddTransactions.
func NewProvider() *Provider {
	return &Provider{
		accounts: make(map[string][]providers.Account),
		txs:      make(map[string][]providers.Transaction),
		balances: make(map[string]float64),
		pageSize: 100,
	}
}

// NewSeededProvider creates a sandbox provider with a small demo dataset for
// the given connection.
func NewSeededProvider(connectionID string) *Provider {
	p := NewProvider()

	checking := providers.Account{
		ExternalAccountID: "sandbox-checking",
		Name:              "Sandbox Checking",
		Type:              "depository",
		Institution:       "Sandbox Bank",
		Mask:              "0000",
		Status:            "active",
	}
	p.AddAccount(connectionID, checking, 1240.55)

	now := time.Now()
	day := func(offset int) time.Time { return now.AddDate(0, 0, -offset) }
	p.AddTransactions(connectionID, checking.ExternalAccountID, []providers.Transaction{
		{ExternalID: "sandbox-tx-1", Date: day(1), Amount: -42.80, Description: "COUNTDOWN AUCKLAND", Category: []string{"Food and Drink", "Groceries"}},
		{ExternalID: "sandbox-tx-2", Date: day(2), Amount: -18.50, Description: "BP CONNECT GREENLANE", Category: []string{"Transportation", "Gas"}},
		{ExternalID: "sandbox-tx-3", Date: day(3), Amount: 2150.00, Description: "SALARY ACME LTD", Category: []string{"Transfer", "Payroll"}},
		{ExternalID: "sandbox-tx-4", Date: day(5), Amount: -12.00, Description: "NETFLIX.COM", Category: []string{"Service", "Subscription"}},
	})

	return p
}

// SetPageSize overrides the fixture page size (tests use small pages to
// exercise pagination).
func (p *Provider) SetPageSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageSize = n
}

// AddAccount registers a fixture account with a reported balance.
func (p *Provider) AddAccount(connectionID string, account providers.Account, balance float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	account.Balance = &providers.Balance{Current: balance}
	p.accounts[connectionID] = append(p.accounts[connectionID], account)
	p.balances[connectionID+"/"+account.ExternalAccountID] = balance
}

// AddTransactions appends fixture transactions for an account.
func (p *Provider) AddTransactions(connectionID, externalAccountID string, txs []providers.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := connectionID + "/" + externalAccountID
	p.txs[key] = append(p.txs[key], txs...)
	sort.Slice(p.txs[key], func(i, j int) bool {
		return p.txs[key][i].Date.Before(p.txs[key][j].Date)
	})
}

// Name returns the registry key for this provider
func (p *Provider) Name() string { return "sandbox" }

// DisplayName returns the human-readable provider name
func (p *Provider) DisplayName() string { return "Sandbox" }

// RateLimitDelay is zero: there is nothing to be polite to
func (p *Provider) RateLimitDelay() time.Duration { return p.delay }

// TestConnection reports fixture connectivity
func (p *Provider) TestConnection(_ context.Context, _ string) (*providers.ConnectionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TestConnectionErr != nil {
		return nil, p.TestConnectionErr
	}
	status := &providers.ConnectionStatus{LastChecked: time.Now()}
	if p.InvalidConnection {
		status.Error = "connection credentials revoked"
		return status, nil
	}
	status.IsValid = true
	return status, nil
}

// FetchAccounts returns the fixture account list
func (p *Provider) FetchAccounts(_ context.Context, connectionID string) ([]providers.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FetchAccountsErr != nil {
		return nil, p.FetchAccountsErr
	}
	accounts := make([]providers.Account, len(p.accounts[connectionID]))
	copy(accounts, p.accounts[connectionID])
	return accounts, nil
}

// FetchTransactions returns one page of fixture transactions inside the
// requested window. The cursor is the index of the next transaction.
func (p *Provider) FetchTransactions(_ context.Context, connectionID, externalAccountID string, opts providers.FetchOptions) (*providers.TransactionPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.FetchTransactionsErr[externalAccountID]; ok && err != nil {
		return nil, err
	}

	var inWindow []providers.Transaction
	for _, tx := range p.txs[connectionID+"/"+externalAccountID] {
		if !opts.StartDate.IsZero() && tx.Date.Before(opts.StartDate) {
			continue
		}
		if !opts.EndDate.IsZero() && tx.Date.After(opts.EndDate) {
			continue
		}
		inWindow = append(inWindow, tx)
	}

	offset := 0
	if opts.Cursor != "" {
		if _, err := fmt.Sscanf(opts.Cursor, "%d", &offset); err != nil {
			return nil, fmt.Errorf("invalid cursor %q", opts.Cursor)
		}
	}
	if offset > len(inWindow) {
		offset = len(inWindow)
	}

	end := offset + p.pageSize
	if end > len(inWindow) {
		end = len(inWindow)
	}

	page := &providers.TransactionPage{
		Transactions: inWindow[offset:end],
	}
	if end < len(inWindow) {
		page.HasMore = true
		page.Cursor = fmt.Sprintf("%d", end)
	}

	return page, nil
}
