package plaid

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvTokenSource resolves access tokens from environment variables. It
// looks for PLAID_ACCESS_TOKEN_<CONNECTION_ID> first (with hyphens mapped
// to underscores) and falls back to PLAID_ACCESS_TOKEN.
type EnvTokenSource struct{}

// AccessToken returns the token for the connection or an error when no
// variable is set.
func (EnvTokenSource) AccessToken(_ context.Context, connectionID string) (string, error) {
	key := "PLAID_ACCESS_TOKEN_" + strings.ToUpper(strings.ReplaceAll(connectionID, "-", "_"))
	if token := os.Getenv(key); token != "" {
		return token, nil
	}
	if token := os.Getenv("PLAID_ACCESS_TOKEN"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no access token configured for connection %s", connectionID)
}

// StaticTokenSource returns the same token for every connection. Useful in
// tests and single-connection deployments.
type StaticTokenSource string

// AccessToken returns the static token.
func (s StaticTokenSource) AccessToken(context.Context, string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("access token is empty")
	}
	return string(s), nil
}
