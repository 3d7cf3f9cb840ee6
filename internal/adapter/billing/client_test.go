package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(resilience.NewClient("billing", srv.URL, "tok", resilience.Policy{Timeout: time.Second}))
}

func TestReserve(t *testing.T) {
	t.Parallel()
	expires := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reserve", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "u1", body["user_id"])
		require.Equal(t, "res-1", body["reservation_id"])
		require.InDelta(t, 0.25, body["estimated_cost"], 1e-9)
		writeJSON(w, http.StatusCreated, map[string]any{
			"reservation_id":  "res-1",
			"amount_reserved": 0.25,
			"expires_at":      expires,
		})
	})

	out, err := c.Reserve(context.Background(), "u1", "res-1", 0.25)
	require.NoError(t, err)
	assert.True(t, out.Reserved)
	assert.InDelta(t, 0.25, out.AmountReserved, 1e-9)
	assert.True(t, out.ExpiresAt.Equal(expires))
}

func TestReserve_InsufficientFundsIsNotAnError(t *testing.T) {
	t.Parallel()
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{"available_balance": 0.02})
	})

	out, err := c.Reserve(context.Background(), "u1", "res-1", 0.25)
	require.NoError(t, err)
	assert.False(t, out.Reserved)
	assert.InDelta(t, 0.02, out.AvailableBalance, 1e-9)
}

func TestReserve_OutageErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	c := New(resilience.NewClient("billing", addr, "tok", resilience.Policy{Timeout: 200 * time.Millisecond}))

	_, err := c.Reserve(context.Background(), "u1", "res-1", 0.25)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestCapture(t *testing.T) {
	t.Parallel()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/capture", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "res-1", body["reservation_id"])
		require.InDelta(t, 0.19, body["actual_cost"], 1e-9)
		w.WriteHeader(http.StatusOK)
	})

	out, err := c.Capture(context.Background(), "res-1", 0.19)
	require.NoError(t, err)
	assert.False(t, out.AlreadyCaptured)
	assert.InDelta(t, 0.19, out.AmountCharged, 1e-9)
}

func TestCapture_ConflictMeansAlreadyCaptured(t *testing.T) {
	t.Parallel()
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"amount_charged": 0.19})
	})

	out, err := c.Capture(context.Background(), "res-1", 0.19)
	require.NoError(t, err)
	assert.True(t, out.AlreadyCaptured)
	assert.InDelta(t, 0.19, out.AmountCharged, 1e-9)
}

func TestCapture_UnknownReservation(t *testing.T) {
	t.Parallel()
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Capture(context.Background(), "res-x", 0.19)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRelease_OKAndNotFoundBothSucceed(t *testing.T) {
	t.Parallel()
	for _, status := range []int{http.StatusOK, http.StatusNotFound} {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/release", r.URL.Path)
			w.WriteHeader(status)
		})
		assert.NoError(t, c.Release(context.Background(), "res-1"))
	}
}

func TestCreateAccount_ConflictIsIdempotentSuccess(t *testing.T) {
	t.Parallel()
	for _, status := range []int{http.StatusCreated, http.StatusConflict} {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/account", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "u1", body["user_id"])
			require.Equal(t, "pro", body["tier"])
			w.WriteHeader(status)
		})
		assert.NoError(t, c.CreateAccount(context.Background(), "u1", "pro"))
	}
}

func TestBalance(t *testing.T) {
	t.Parallel()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/balance/u1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"balance": 4.75})
	})

	got, err := c.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.InDelta(t, 4.75, got, 1e-9)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
