package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxos/assistant-core/internal/domain"
)

// SessionService owns durable chat turns. Every read is scoped by both
// message id and user id so a missing row and another tenant's row are
// indistinguishable to the caller.
type SessionService struct {
	Turns domain.TurnRepository
}

func NewSessionService(turns domain.TurnRepository) *SessionService {
	return &SessionService{Turns: turns}
}

// AppendTurn stores one user⇄assistant exchange and returns its message id.
func (s *SessionService) AppendTurn(ctx domain.Context, projectID, userID, query, response string) (string, error) {
	if projectID == "" || userID == "" {
		return "", fmt.Errorf("op=usecase.AppendTurn: ids required: %w", domain.ErrInvalidArgument)
	}
	t := domain.Turn{
		MessageID:         uuid.NewString(),
		ProjectID:         projectID,
		UserID:            userID,
		UserQuery:         query,
		AssistantResponse: response,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.Turns.Insert(ctx, t); err != nil {
		return "", fmt.Errorf("op=usecase.AppendTurn: %w", err)
	}
	return t.MessageID, nil
}

// GetTurn returns the turn when both ids match; ErrNotFound otherwise.
func (s *SessionService) GetTurn(ctx domain.Context, messageID, userID string) (domain.Turn, error) {
	if messageID == "" || userID == "" {
		return domain.Turn{}, fmt.Errorf("op=usecase.GetTurn: ids required: %w", domain.ErrInvalidArgument)
	}
	t, err := s.Turns.GetByID(ctx, messageID, userID)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("op=usecase.GetTurn: %w", err)
	}
	return t, nil
}

// ToggleBookmark sets the bookmark flag, ownership-checked. The returned bool
// is the new flag value.
func (s *SessionService) ToggleBookmark(ctx domain.Context, messageID, userID string, flag bool) (bool, error) {
	if messageID == "" || userID == "" {
		return false, fmt.Errorf("op=usecase.ToggleBookmark: ids required: %w", domain.ErrInvalidArgument)
	}
	v, err := s.Turns.SetBookmark(ctx, messageID, userID, flag)
	if err != nil {
		return false, fmt.Errorf("op=usecase.ToggleBookmark: %w", err)
	}
	return v, nil
}

// ListBookmarks returns the user's bookmarked turns in a project, newest first.
func (s *SessionService) ListBookmarks(ctx domain.Context, projectID, userID string, limit int) ([]domain.Turn, error) {
	ts, err := s.Turns.ListBookmarks(ctx, projectID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.ListBookmarks: %w", err)
	}
	return ts, nil
}

// RecentHistory returns the last turns in chronological order, ready for
// prompt assembly.
func (s *SessionService) RecentHistory(ctx domain.Context, projectID, userID string, limit int) ([]domain.Turn, error) {
	ts, err := s.Turns.ListRecent(ctx, projectID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.RecentHistory: %w", err)
	}
	// repo returns newest first; the prompt wants oldest first
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
	return ts, nil
}
