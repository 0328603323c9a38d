// Package plaid implements the BankDataProvider interface on top of the
// Plaid API.
package plaid

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"

	"github.com/ledgerlink/banksync/internal/providers"
)

const (
	// pageSize is the number of transactions requested per page
	pageSize = 100

	// plaidDateLayout is the wire format for Plaid date fields
	plaidDateLayout = "2006-01-02"
)

// TokenSource resolves the Plaid access token for a connection.
// Credential storage lives outside this package.
type TokenSource interface {
	AccessToken(ctx context.Context, connectionID string) (string, error)
}

// Provider implements providers.BankDataProvider using plaid-go.
type Provider struct {
	client *plaid.APIClient
	tokens TokenSource
	delay  time.Duration
}

// Compile-time check
var _ providers.BankDataProvider = (*Provider)(nil)

// NewClient builds a plaid API client for the given environment.
func NewClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid plaid environment: %s", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

// NewProvider creates a Plaid-backed provider.
func NewProvider(client *plaid.APIClient, tokens TokenSource) *Provider {
	return &Provider{
		client: client,
		tokens: tokens,
		delay:  2 * time.Second,
	}
}

// Name returns the registry key for this provider
func (p *Provider) Name() string { return "plaid" }

// DisplayName returns the human-readable provider name
func (p *Provider) DisplayName() string { return "Plaid" }

// RateLimitDelay is the pause between account syncs
func (p *Provider) RateLimitDelay() time.Duration { return p.delay }

// TestConnection verifies the connection's access token with an item fetch
func (p *Provider) TestConnection(ctx context.Context, connectionID string) (*providers.ConnectionStatus, error) {
	status := &providers.ConnectionStatus{LastChecked: time.Now()}

	token, err := p.tokens.AccessToken(ctx, connectionID)
	if err != nil {
		status.Error = fmt.Sprintf("no access token: %v", err)
		return status, nil
	}

	request := plaid.NewItemGetRequest(token)
	_, _, err = p.client.PlaidApi.ItemGet(ctx).ItemGetRequest(*request).Execute()
	if err != nil {
		status.Error = err.Error()
		return status, nil
	}

	status.IsValid = true
	return status, nil
}

// FetchAccounts returns the provider's account list for a connection
func (p *Provider) FetchAccounts(ctx context.Context, connectionID string) ([]providers.Account, error) {
	token, err := p.tokens.AccessToken(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve access token: %w", err)
	}

	request := plaid.NewAccountsGetRequest(token)
	resp, _, err := p.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
	if err != nil {
		return nil, fmt.Errorf("plaid accounts fetch failed: %w", err)
	}

	return mapAccounts(resp), nil
}

// mapAccounts converts an accounts/get response to provider accounts. The
// institution comes from the response's item, not the accounts themselves.
func mapAccounts(resp plaid.AccountsGetResponse) []providers.Account {
	item := resp.GetItem()
	institution := item.GetInstitutionId()

	accounts := make([]providers.Account, 0, len(resp.GetAccounts()))
	for _, acct := range resp.GetAccounts() {
		mapped := providers.Account{
			ExternalAccountID: acct.GetAccountId(),
			Name:              acct.GetName(),
			Type:              string(acct.GetType()),
			Institution:       institution,
			Mask:              acct.GetMask(),
			Status:            "active",
		}

		balances := acct.GetBalances()
		balance := &providers.Balance{Current: balances.GetCurrent()}
		if available, ok := balances.GetAvailableOk(); ok && available != nil {
			v := *available
			balance.Available = &v
		}
		mapped.Balance = balance

		accounts = append(accounts, mapped)
	}

	return accounts
}

// FetchTransactions returns one page of transactions. Plaid's
// transactions/get endpoint pages by offset; the offset is carried in the
// opaque cursor string.
func (p *Provider) FetchTransactions(ctx context.Context, connectionID, externalAccountID string, opts providers.FetchOptions) (*providers.TransactionPage, error) {
	token, err := p.tokens.AccessToken(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve access token: %w", err)
	}

	offset := 0
	if opts.Cursor != "" {
		offset, err = strconv.Atoi(opts.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", opts.Cursor, err)
		}
	}

	start := opts.StartDate
	if start.IsZero() {
		start = time.Now().AddDate(0, 0, -30)
	}
	end := opts.EndDate
	if end.IsZero() {
		end = time.Now()
	}

	request := plaid.NewTransactionsGetRequest(
		token,
		start.Format(plaidDateLayout),
		end.Format(plaidDateLayout),
	)
	options := plaid.TransactionsGetRequestOptions{}
	options.SetAccountIds([]string{externalAccountID})
	options.SetCount(int32(pageSize))
	options.SetOffset(int32(offset))
	request.SetOptions(options)

	resp, _, err := p.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
	if err != nil {
		return nil, fmt.Errorf("plaid transactions fetch failed: %w", err)
	}

	return mapTransactionPage(resp, offset)
}

// mapTransactionPage converts one transactions/get response to a provider
// page. Pagination is by offset; the next cursor is the running total of
// rows consumed so far.
func mapTransactionPage(resp plaid.TransactionsGetResponse, offset int) (*providers.TransactionPage, error) {
	page := &providers.TransactionPage{
		Transactions: make([]providers.Transaction, 0, len(resp.GetTransactions())),
	}

	for _, tx := range resp.GetTransactions() {
		date, err := time.Parse(plaidDateLayout, tx.GetDate())
		if err != nil {
			return nil, fmt.Errorf("invalid transaction date %q: %w", tx.GetDate(), err)
		}

		mapped := providers.Transaction{
			ExternalID: tx.GetTransactionId(),
			Date:       date,
			// Plaid reports outflows as positive; the ledger is
			// signed the other way around.
			Amount:      -tx.GetAmount(),
			Description: tx.GetName(),
			Category:    tx.GetCategory(),
			Pending:     tx.GetPending(),
		}
		if merchant, ok := tx.GetMerchantNameOk(); ok && merchant != nil {
			mapped.MerchantName = *merchant
		}

		page.Transactions = append(page.Transactions, mapped)
	}

	fetched := offset + len(resp.GetTransactions())
	if int32(fetched) < resp.GetTotalTransactions() && len(resp.GetTransactions()) > 0 {
		page.HasMore = true
		page.Cursor = strconv.Itoa(fetched)
	}

	return page, nil
}
