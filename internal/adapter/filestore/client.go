// Package filestore is the typed client for the file store collaborator.
package filestore

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gabriel-vasile/mimetype"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Client saves and deletes project documents through the resilient facade.
type Client struct {
	http *resilience.Client
}

func New(rc *resilience.Client) *Client { return &Client{http: rc} }

type saveRequest struct {
	ProjectID   string `json:"project_id"`
	FilePath    string `json:"file_path"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// SaveFile writes one document. The content type is sniffed from the payload
// so the store can serve the file back with a usable MIME type.
func (c *Client) SaveFile(ctx domain.Context, projectID, filePath, content string) (domain.SavedFile, error) {
	resp, err := c.http.Post(ctx, "/save_file", saveRequest{
		ProjectID:   projectID,
		FilePath:    filePath,
		Content:     content,
		ContentType: mimetype.Detect([]byte(content)).String(),
	}, nil)
	if err != nil {
		return domain.SavedFile{}, fmt.Errorf("op=filestore.SaveFile: %w", err)
	}
	if !resp.Success() {
		return domain.SavedFile{}, fmt.Errorf("op=filestore.SaveFile: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	var out struct {
		FileID string `json:"file_id"`
		Path   string `json:"path"`
	}
	if err := resp.JSON(&out); err != nil {
		return domain.SavedFile{}, fmt.Errorf("op=filestore.SaveFile: %w", err)
	}
	return domain.SavedFile{FileID: out.FileID, Path: out.Path}, nil
}

// DeleteFile removes one document. 404 is success so saga compensation can be
// retried after a partial rollback.
func (c *Client) DeleteFile(ctx domain.Context, projectID, filename string) error {
	path := "/file/" + url.PathEscape(projectID) + "/" + url.PathEscape(filename)
	resp, err := c.http.Delete(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("op=filestore.DeleteFile: %w", err)
	}
	if resp.Success() || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("op=filestore.DeleteFile: status %d: %w", resp.StatusCode, domain.ErrInternal)
}
