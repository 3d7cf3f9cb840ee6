// Package extractor is the typed client for the entity extraction collaborator.
// The core treats it as opaque: documents in, files plus relationships out.
package extractor

import (
	"fmt"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Client runs extraction through the resilient facade. Extraction over a
// whole project is slow; the dependency policy should carry a generous
// timeout.
type Client struct {
	http *resilience.Client
}

func New(rc *resilience.Client) *Client { return &Client{http: rc} }

type extractRequest struct {
	ProjectID string   `json:"project_id"`
	Documents []string `json:"documents"`
}

type extractResponse struct {
	Files         []domain.ExtractedFile `json:"files"`
	Relationships []domain.Relationship  `json:"relationships"`
}

func (c *Client) Extract(ctx domain.Context, projectID string, documents []string) (domain.Extraction, error) {
	resp, err := c.http.Post(ctx, "/extract", extractRequest{ProjectID: projectID, Documents: documents}, nil)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("op=extractor.Extract: %w", err)
	}
	if !resp.Success() {
		return domain.Extraction{}, fmt.Errorf("op=extractor.Extract: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	var out extractResponse
	if err := resp.JSON(&out); err != nil {
		return domain.Extraction{}, fmt.Errorf("op=extractor.Extract: %w", err)
	}
	return domain.Extraction{Files: out.Files, Relationships: out.Relationships}, nil
}
