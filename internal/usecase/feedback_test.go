package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/domain/mocks"
	"github.com/praxos/assistant-core/internal/usecase"
)

func newFeedbackService(t *testing.T) (*usecase.FeedbackService, *mocks.MockFeedbackRepository, *mocks.MockTurnRepository) {
	repo := mocks.NewMockFeedbackRepository(t)
	turns := mocks.NewMockTurnRepository(t)
	svc := usecase.NewFeedbackService(repo, usecase.NewSessionService(turns))
	return svc, repo, turns
}

func TestSubmitFeedback_Success(t *testing.T) {
	t.Parallel()
	svc, repo, turns := newFeedbackService(t)
	turns.On("GetByID", mock.Anything, "m-1", "u-1").Return(storedTurn(), nil)

	category := "helpfulness"
	repo.On("Insert", mock.Anything, mock.MatchedBy(func(f domain.Feedback) bool {
		return f.FeedbackID != "" &&
			f.MessageID == "m-1" &&
			f.UserID == "u-1" &&
			f.Rating == 4 &&
			f.Category != nil && *f.Category == "helpfulness" &&
			!f.CreatedAt.IsZero()
	})).Return(nil)

	id, err := svc.Submit(context.Background(), "m-1", "u-1", 4, &category, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestSubmitFeedback_RatingOutOfRange(t *testing.T) {
	t.Parallel()
	svc, _, _ := newFeedbackService(t)

	_, err := svc.Submit(context.Background(), "m-1", "u-1", 0, nil, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Submit(context.Background(), "m-1", "u-1", 6, nil, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubmitFeedback_UnknownMessageReads404(t *testing.T) {
	t.Parallel()
	svc, repo, turns := newFeedbackService(t)
	turns.On("GetByID", mock.Anything, "m-404", "u-1").
		Return(domain.Turn{}, domain.ErrNotFound)

	_, err := svc.Submit(context.Background(), "m-404", "u-1", 4, nil, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestFeedbackSummary_PassesAggregate(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newFeedbackService(t)
	repo.On("Summary", mock.Anything).Return(domain.FeedbackSummary{
		Count:      12,
		MeanRating: 4.25,
		Categories: map[string]int64{"helpfulness": 7, "accuracy": 5},
		Last24h:    3,
	}, nil)

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), sum.Count)
	assert.Equal(t, 4.25, sum.MeanRating)
	assert.Equal(t, int64(3), sum.Last24h)
}
