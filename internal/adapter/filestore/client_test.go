package filestore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxos/assistant-core/internal/resilience"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(resilience.NewClient("filestore", srv.URL, "tok", resilience.Policy{Timeout: time.Second}))
}

func TestSaveFile(t *testing.T) {
	t.Parallel()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/save_file", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "p1", body["project_id"])
		require.Equal(t, "notes/turn.md", body["file_path"])
		require.Contains(t, body["content_type"], "text/")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"file_id": "f1", "path": "notes/turn.md"})
	})

	saved, err := c.SaveFile(context.Background(), "p1", "notes/turn.md", "# Turn\n\nhello")
	require.NoError(t, err)
	assert.Equal(t, "f1", saved.FileID)
	assert.Equal(t, "notes/turn.md", saved.Path)
}

func TestDeleteFile_NotFoundIsSuccess(t *testing.T) {
	t.Parallel()
	for _, status := range []int{http.StatusOK, http.StatusNotFound} {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			require.Equal(t, "/file/p1/turn.md", r.URL.Path)
			w.WriteHeader(status)
		})
		assert.NoError(t, c.DeleteFile(context.Background(), "p1", "turn.md"))
	}
}

func TestSaveFile_ServerError(t *testing.T) {
	t.Parallel()
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := c.SaveFile(context.Background(), "p1", "a.md", "x")
	require.Error(t, err)
}
