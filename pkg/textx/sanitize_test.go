package textx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praxos/assistant-core/pkg/textx"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  hello  ", "hello"},
		{"strips nul", "a\x00b", "ab"},
		{"strips bell and escape", "a\x07b\x1bc", "abc"},
		{"strips del", "a\x7fb", "ab"},
		{"keeps newline and tab", "line1\n\tline2", "line1\n\tline2"},
		{"drops invalid utf8 bytes", "caf\xffe", "cafe"},
		{"keeps multibyte runes", "héllo wörld ☺", "héllo wörld ☺"},
		{"empty after stripping", "\x00\x00", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, textx.SanitizeText(tc.in))
		})
	}
}
