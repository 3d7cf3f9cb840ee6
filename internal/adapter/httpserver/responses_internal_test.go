package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praxos/assistant-core/internal/domain"
)

func TestWriteError_MapsSentinelsToStatusCodes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{domain.ErrCircuitOpen, http.StatusServiceUnavailable, "CIRCUIT_OPEN"},
		{domain.ErrUpstreamTimeout, http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"},
		{domain.ErrTransport, http.StatusServiceUnavailable, "TRANSPORT_FAILURE"},
		{fmt.Errorf("op=usecase.Chat: unexpected"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/chat", nil)
			writeError(w, r, fmt.Errorf("op=handler: %w", tc.err), nil)

			require.Equal(t, tc.status, w.Code)
			var env errorEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			require.Equal(t, tc.code, env.Error.Code)
			require.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestWriteError_CarriesDetails(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/feedback", nil)
	writeError(w, r, domain.ErrInvalidArgument, map[string]string{"rating": "max"})

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)
	require.NotNil(t, env.Error.Details)
}

func TestAcceptsJSON_RejectsNonJSONAccept(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodPost, "/chat", nil)
	r.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	require.False(t, acceptsJSON(w, r))
	require.Equal(t, http.StatusNotAcceptable, w.Code)

	for _, accept := range []string{"", "*/*", "application/json", "text/html, application/json;q=0.9"} {
		r := httptest.NewRequest(http.MethodPost, "/chat", nil)
		if accept != "" {
			r.Header.Set("Accept", accept)
		}
		w := httptest.NewRecorder()
		require.True(t, acceptsJSON(w, r), "accept %q", accept)
	}
}
