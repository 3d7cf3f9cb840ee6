//go:build e2e

// Package e2e_test drives a fully deployed assistant-core stack over HTTP.
// The gateway, worker and collaborator services must already be running;
// E2E_BASE_URL points at the gateway (default http://localhost:8080).
package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// getenv returns the value of the environment variable k or def if empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func baseURL() string { return getenv("E2E_BASE_URL", "http://localhost:8080") }

// projectID is a project the seeded e2e user can access. The auth collaborator
// in the compose stack grants every user access to this fixture project.
func projectID() string { return getenv("E2E_PROJECT_ID", "proj-e2e") }

// waitForAppReady polls /healthz until the gateway answers or the deadline
// passes.
func waitForAppReady(t *testing.T, client *http.Client, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL() + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(2 * time.Second)
	}
	t.Fatalf("app not ready at %s within %s", baseURL(), timeout)
}

// doJSON performs an authenticated JSON request and decodes the response body
// into a generic map. A 204 yields an empty map.
func doJSON(t *testing.T, client *http.Client, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, baseURL()+path, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: non-JSON response (%d): %s", method, path, resp.StatusCode, raw)
		}
	}
	return resp.StatusCode, out
}

// registerAndLogin creates a throwaway user and returns its bearer token.
// Usernames carry a nanosecond suffix so repeated runs never collide.
func registerAndLogin(t *testing.T, client *http.Client) (token, userID string) {
	t.Helper()
	username := fmt.Sprintf("e2e-user-%d", time.Now().UnixNano())
	password := "e2e-password-1"

	status, body := doJSON(t, client, http.MethodPost, "/auth/register", "", map[string]any{
		"username": username,
		"password": password,
		"tier":     "free",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: status=%d body=%#v", status, body)
	}

	status, body = doJSON(t, client, http.MethodPost, "/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login: status=%d body=%#v", status, body)
	}
	token, _ = body["token"].(string)
	userID, _ = body["user_id"].(string)
	if token == "" || userID == "" {
		t.Fatalf("login response missing token or user_id: %#v", body)
	}
	return token, userID
}

// pollJob fetches /jobs/{id} until it reaches a terminal status or the
// deadline passes, and returns the final body.
func pollJob(t *testing.T, client *http.Client, token, jobID string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, body := doJSON(t, client, http.MethodGet, "/jobs/"+jobID, token, nil)
		if status != http.StatusOK {
			t.Fatalf("get job %s: status=%d body=%#v", jobID, status, body)
		}
		switch body["status"] {
		case "COMPLETED", "FAILED":
			return body
		}
		time.Sleep(2 * time.Second)
	}
	t.Fatalf("job %s did not finish within %s", jobID, timeout)
	return nil
}
