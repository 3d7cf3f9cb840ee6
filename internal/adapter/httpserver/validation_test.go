package httpserver_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	httpserver "github.com/praxos/assistant-core/internal/adapter/httpserver"
)

func TestValidateResourceID(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		id    string
		valid bool
		code  string
	}{
		{"plain", "p-1", true, ""},
		{"ulid", "01J9W9Z8R2T0F4N3V5X7B9D1E2", true, ""},
		{"underscores", "msg_42", true, ""},
		{"empty", "", false, "REQUIRED"},
		{"too long", strings.Repeat("a", 101), false, "TOO_LONG"},
		{"path traversal", "../etc/passwd", false, "INVALID_FORMAT"},
		{"whitespace", "p 1", false, "INVALID_FORMAT"},
		{"unicode", "проект", false, "INVALID_FORMAT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := httpserver.ValidateResourceID("project_id", tc.id)
			require.Equal(t, tc.valid, res.Valid)
			if !tc.valid {
				require.NotEmpty(t, res.Errors)
				require.Equal(t, tc.code, res.Errors[0].Code)
				require.Equal(t, "project_id", res.Errors[0].Field)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	t.Parallel()
	n, res := httpserver.ParseLimit("", 50, 200)
	require.True(t, res.Valid)
	require.Equal(t, 50, n)

	n, res = httpserver.ParseLimit("25", 50, 200)
	require.True(t, res.Valid)
	require.Equal(t, 25, n)

	_, res = httpserver.ParseLimit("0", 50, 200)
	require.False(t, res.Valid)

	_, res = httpserver.ParseLimit("5000", 50, 200)
	require.False(t, res.Valid)

	_, res = httpserver.ParseLimit("abc", 50, 200)
	require.False(t, res.Valid)
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()
	require.Equal(t, "hello", httpserver.SanitizeText("  hello  "))
	require.Equal(t, "ab", httpserver.SanitizeText("a\x00b"))
	require.Equal(t, "cafe", httpserver.SanitizeText("caf\xffe"))
	require.Empty(t, httpserver.SanitizeText("\x00\x00"))
}
