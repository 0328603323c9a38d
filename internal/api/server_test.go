package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/banksync/internal/api"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
)

func TestServerRoutes(t *testing.T) {
	repo := storage.NewMockRepository()
	server := api.NewServer(api.DefaultConfig(), repo, nil, nil)
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	t.Run("health endpoint", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("runs list", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/runs")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("run lookup misses return 404", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/runs/no-such-run")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("connection accounts", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/connections/conn-1/accounts")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("review queue", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/transactions/review")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("stats", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/stats")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("sync trigger route absent without sync service", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/connections/conn-1/sync", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
