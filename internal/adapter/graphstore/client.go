// Package graphstore is the typed client for the relationship graph collaborator.
package graphstore

import (
	"fmt"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Client writes extracted relationships through the resilient facade.
type Client struct {
	http *resilience.Client
}

func New(rc *resilience.Client) *Client { return &Client{http: rc} }

type writeRequest struct {
	ProjectID     string                `json:"project_id"`
	Relationships []domain.Relationship `json:"relationships"`
}

// WriteRelationships upserts edges for a project. The collaborator dedupes on
// (source, relation, target), so replays are harmless.
func (c *Client) WriteRelationships(ctx domain.Context, projectID string, rels []domain.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	resp, err := c.http.Post(ctx, "/relationships", writeRequest{ProjectID: projectID, Relationships: rels}, nil)
	if err != nil {
		return fmt.Errorf("op=graphstore.WriteRelationships: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("op=graphstore.WriteRelationships: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	return nil
}
