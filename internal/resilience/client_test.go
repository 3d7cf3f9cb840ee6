package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxos/assistant-core/internal/domain"
)

func newTestClient(name, baseURL, token string, p Policy) *Client {
	c := NewClient(name, baseURL, token, p)
	c.retryWait = time.Millisecond
	return c
}

func TestClient_InjectsInternalToken(t *testing.T) {
	t.Parallel()
	var gotToken, gotContentType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.Header.Get("X-INTERNAL-TOKEN"))
		gotContentType.Store(r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient("billing", srv.URL, "s3cret", Policy{Timeout: time.Second})
	resp, err := c.Post(context.Background(), "/reserve", map[string]string{"user_id": "u1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, resp.Success())
	assert.Equal(t, "s3cret", gotToken.Load())
	assert.Equal(t, "application/json", gotContentType.Load())
}

func TestClient_DevModeOmitsToken(t *testing.T) {
	t.Parallel()
	var sawHeader atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Internal-Token"]; ok {
			sawHeader.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient("billing", srv.URL, "", Policy{Timeout: time.Second})
	_, err := c.Get(context.Background(), "/balance/u1", nil)
	require.NoError(t, err)
	assert.False(t, sawHeader.Load(), "dev mode must not send the internal token")
}

func TestClient_ExtraHeadersPassThrough(t *testing.T) {
	t.Parallel()
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient("llm", srv.URL, "", Policy{Timeout: time.Second})
	_, err := c.Post(context.Background(), "/v1/chat/completions", map[string]string{}, map[string]string{
		"Authorization": "Bearer llm-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer llm-key", gotAuth.Load())
}

func TestClient_4xxReturnedAsIsWithoutRetry(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"available_balance":0.01}`))
	}))
	defer srv.Close()

	c := newTestClient("billing", srv.URL, "tok", Policy{Timeout: time.Second, MaxRetries: 3})
	resp, err := c.Post(context.Background(), "/reserve", map[string]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.False(t, resp.Success())
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")

	var body struct {
		AvailableBalance float64 `json:"available_balance"`
	}
	require.NoError(t, resp.JSON(&body))
	assert.InDelta(t, 0.01, body.AvailableBalance, 1e-9)
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient("vector", srv.URL, "tok", Policy{Timeout: time.Second, MaxRetries: 2})
	resp, err := c.Post(context.Background(), "/add", map[string]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load(), "want 1 initial + 2 retries")
}

func TestClient_ExhaustedRetriesYieldTransportError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient("files", srv.URL, "tok", Policy{Timeout: time.Second, MaxRetries: 2, FailureThreshold: 10})
	_, err := c.Post(context.Background(), "/save_file", map[string]string{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport), "want ErrTransport, got %v", err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ConnectionRefusedIsTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	c := newTestClient("snapshot", srv.URL, "tok", Policy{Timeout: 200 * time.Millisecond, MaxRetries: 1})
	_, err := c.Post(context.Background(), "/snapshot/p1", map[string]string{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
}

func TestClient_CircuitOpensAndShortCircuits(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient("auth", srv.URL, "tok", Policy{
		Timeout:          time.Second,
		MaxRetries:       0,
		FailureThreshold: 2,
		RecoveryDelay:    time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, err := c.Post(context.Background(), "/verify_token", map[string]string{}, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, domain.ErrTransport))
	}
	before := calls.Load()

	_, err := c.Post(context.Background(), "/verify_token", map[string]string{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCircuitOpen), "want ErrCircuitOpen, got %v", err)
	assert.Equal(t, before, calls.Load(), "open circuit must not hit the network")

	st := c.Status()
	assert.Equal(t, "OPEN", st.Phase)
	assert.Equal(t, "auth", st.Dependency)
}

func TestClient_HalfOpenProbeRecovers(t *testing.T) {
	t.Parallel()
	var failing atomic.Bool
	failing.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient("graph", srv.URL, "tok", Policy{
		Timeout:          time.Second,
		MaxRetries:       0,
		FailureThreshold: 1,
		RecoveryDelay:    20 * time.Millisecond,
	})

	_, err := c.Post(context.Background(), "/relationships", map[string]string{}, nil)
	require.Error(t, err)
	require.Equal(t, "OPEN", c.Status().Phase)

	failing.Store(false)
	time.Sleep(30 * time.Millisecond)

	resp, err := c.Post(context.Background(), "/relationships", map[string]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CLOSED", c.Status().Phase)
}

func TestRegistry_SnapshotSortedByName(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register(newTestClient("vector", "http://localhost:1", "", Policy{}))
	reg.Register(newTestClient("auth", "http://localhost:1", "", Policy{}))
	reg.Register(newTestClient("billing", "http://localhost:1", "", Policy{}))

	snap := reg.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "auth", snap[0].Dependency)
	assert.Equal(t, "billing", snap[1].Dependency)
	assert.Equal(t, "vector", snap[2].Dependency)
	for _, st := range snap {
		assert.Equal(t, "CLOSED", st.Phase)
	}
}
