package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxos/assistant-core/internal/domain"
)

// FeedbackService appends ratings keyed by message id. Rows are never
// updated or deleted.
type FeedbackService struct {
	Repo     domain.FeedbackRepository
	Sessions *SessionService
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(repo domain.FeedbackRepository, sessions *SessionService) *FeedbackService {
	return &FeedbackService{Repo: repo, Sessions: sessions}
}

// Submit validates and appends one rating. The turn lookup carries the
// ownership rule: rating a message the caller does not own reads as the
// message not existing.
func (s *FeedbackService) Submit(ctx domain.Context, messageID, userID string, rating int, category, comment *string) (string, error) {
	if rating < 1 || rating > 5 {
		return "", fmt.Errorf("op=usecase.SubmitFeedback: rating %d out of range: %w", rating, domain.ErrInvalidArgument)
	}
	if _, err := s.Sessions.GetTurn(ctx, messageID, userID); err != nil {
		return "", fmt.Errorf("op=usecase.SubmitFeedback: %w", err)
	}

	f := domain.Feedback{
		FeedbackID: uuid.NewString(),
		MessageID:  messageID,
		UserID:     userID,
		Rating:     rating,
		Category:   category,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Repo.Insert(ctx, f); err != nil {
		return "", fmt.Errorf("op=usecase.SubmitFeedback: %w", err)
	}
	return f.FeedbackID, nil
}

// ListByMessage returns feedback rows for one message, newest first.
func (s *FeedbackService) ListByMessage(ctx domain.Context, messageID string, limit int) ([]domain.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Repo.ListByMessage(ctx, messageID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.FeedbackByMessage: %w", err)
	}
	return rows, nil
}

// ListByUser returns one user's feedback rows, newest first.
func (s *FeedbackService) ListByUser(ctx domain.Context, userID string, limit int) ([]domain.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.FeedbackByUser: %w", err)
	}
	return rows, nil
}

// Summary aggregates the whole table: count, mean rating, category
// histogram, and the last-24h rate.
func (s *FeedbackService) Summary(ctx domain.Context) (domain.FeedbackSummary, error) {
	sum, err := s.Repo.Summary(ctx)
	if err != nil {
		return domain.FeedbackSummary{}, fmt.Errorf("op=usecase.FeedbackSummary: %w", err)
	}
	return sum, nil
}
