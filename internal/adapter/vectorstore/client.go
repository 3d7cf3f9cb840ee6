// Package vectorstore is the typed client for the vector index collaborator.
// Collections are per project (`project_{id}`); the caller owns that naming.
package vectorstore

import (
	"fmt"
	"net/http"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Client adds and queries documents through the resilient facade.
type Client struct {
	http *resilience.Client
}

func New(rc *resilience.Client) *Client { return &Client{http: rc} }

type addRequest struct {
	Collection string           `json:"collection"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

// AddDocuments indexes documents into a collection, creating it on first use.
func (c *Client) AddDocuments(ctx domain.Context, collection string, documents []string, metadatas []map[string]any) error {
	if len(documents) == 0 {
		return nil
	}
	resp, err := c.http.Post(ctx, "/add", addRequest{
		Collection: collection,
		Documents:  documents,
		Metadatas:  metadatas,
	}, nil)
	if err != nil {
		return fmt.Errorf("op=vectorstore.AddDocuments: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("op=vectorstore.AddDocuments: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	return nil
}

type queryRequest struct {
	Collection string   `json:"collection"`
	QueryTexts []string `json:"query_texts"`
	NResults   int      `json:"n_results"`
}

// queryResponse carries one inner list per query text; we always send one.
type queryResponse struct {
	Documents [][]string `json:"documents"`
}

// Query returns up to n document texts relevant to queryText. An unknown
// collection reads as empty: the first turn in a project has no context yet.
func (c *Client) Query(ctx domain.Context, collection, queryText string, n int) ([]string, error) {
	resp, err := c.http.Post(ctx, "/query", queryRequest{
		Collection: collection,
		QueryTexts: []string{queryText},
		NResults:   n,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("op=vectorstore.Query: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !resp.Success() {
		return nil, fmt.Errorf("op=vectorstore.Query: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	var out queryResponse
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("op=vectorstore.Query: %w", err)
	}
	if len(out.Documents) == 0 {
		return nil, nil
	}
	return out.Documents[0], nil
}
