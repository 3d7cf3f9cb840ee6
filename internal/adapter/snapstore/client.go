// Package snapstore is the typed client for the versioned snapshot collaborator.
package snapstore

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Client creates and deletes project snapshots through the resilient facade.
type Client struct {
	http *resilience.Client
}

func New(rc *resilience.Client) *Client { return &Client{http: rc} }

// CreateSnapshot versions the project's current files and returns the new
// snapshot id.
func (c *Client) CreateSnapshot(ctx domain.Context, projectID, userID, message string) (string, error) {
	resp, err := c.http.Post(ctx, "/snapshot/"+url.PathEscape(projectID), map[string]string{
		"user_id": userID,
		"message": message,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("op=snapstore.CreateSnapshot: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("op=snapstore.CreateSnapshot: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	var out struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := resp.JSON(&out); err != nil {
		return "", fmt.Errorf("op=snapstore.CreateSnapshot: %w", err)
	}
	return out.SnapshotID, nil
}

// DeleteSnapshot removes a snapshot. 404 is success so compensation retries
// stay idempotent.
func (c *Client) DeleteSnapshot(ctx domain.Context, projectID, snapshotID string) error {
	path := "/snapshot/" + url.PathEscape(projectID) + "/" + url.PathEscape(snapshotID)
	resp, err := c.http.Delete(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("op=snapstore.DeleteSnapshot: %w", err)
	}
	if resp.Success() || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("op=snapstore.DeleteSnapshot: status %d: %w", resp.StatusCode, domain.ErrInternal)
}
