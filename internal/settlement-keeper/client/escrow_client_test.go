package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/escrows/0xabc/settle", r.URL.Path)
		assert.Equal(t, "keeper", r.Header.Get("X-User-Id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"escrow": map[string]any{"id": "0xabc", "status": "CLOSED"},
			"winner": "alice", "payout": 200, "move_percent": "5.2",
		})
	}))
	defer srv.Close()

	out, err := New(srv.URL+"/", "keeper").Settle(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, "alice", out.Winner)
	require.Equal(t, int64(200), out.Payout)
	require.Equal(t, "CLOSED", out.Escrow.Status)
}

func TestSettleReturnsEngineCodeWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "No escrow winner yet", "code": "NoDecisiveMove"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "keeper").Settle(context.Background(), "e1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "NoDecisiveMove", apiErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.Equal(t, int32(1), calls.Load())
}

func TestSettleRetriesBareServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"winner": "bob"})
	}))
	defer srv.Close()

	c := New(srv.URL, "keeper")
	out, err := c.Settle(context.Background(), "e1")
	require.NoError(t, err)
	require.Equal(t, "bob", out.Winner)
	require.Equal(t, int32(3), calls.Load())
}
