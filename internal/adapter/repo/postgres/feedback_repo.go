package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/praxos/assistant-core/internal/domain"
)

// FeedbackRepo is the append-only store of per-message ratings.
type FeedbackRepo struct{ Pool PgxPool }

// NewFeedbackRepo constructs a FeedbackRepo with the given pool.
func NewFeedbackRepo(p PgxPool) *FeedbackRepo { return &FeedbackRepo{Pool: p} }

const feedbackColumns = `feedback_id, message_id, user_id, rating, category, comment, created_at`

func scanFeedback(row pgx.Row) (domain.Feedback, error) {
	var f domain.Feedback
	err := row.Scan(&f.FeedbackID, &f.MessageID, &f.UserID, &f.Rating, &f.Category, &f.Comment, &f.CreatedAt)
	return f, err
}

// Insert stores one feedback entry. Entries are never updated or deleted.
func (r *FeedbackRepo) Insert(ctx domain.Context, f domain.Feedback) error {
	tracer := otel.Tracer("repo.feedback")
	ctx, span := tracer.Start(ctx, "feedback.Insert")
	defer span.End()
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	q := `INSERT INTO feedback (` + feedbackColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.Pool.Exec(ctx, q, f.FeedbackID, f.MessageID, f.UserID, f.Rating, f.Category, f.Comment, created)
	if err != nil {
		return fmt.Errorf("op=feedback.insert: %w", err)
	}
	return nil
}

// ListByMessage returns feedback for one message, newest first.
func (r *FeedbackRepo) ListByMessage(ctx domain.Context, messageID string, limit int) ([]domain.Feedback, error) {
	q := `SELECT ` + feedbackColumns + ` FROM feedback WHERE message_id=$1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, "feedback.ListByMessage", q, messageID, limit)
}

// ListByUser returns feedback submitted by one user, newest first.
func (r *FeedbackRepo) ListByUser(ctx domain.Context, userID string, limit int) ([]domain.Feedback, error) {
	q := `SELECT ` + feedbackColumns + ` FROM feedback WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, "feedback.ListByUser", q, userID, limit)
}

func (r *FeedbackRepo) list(ctx domain.Context, op, q string, args ...any) ([]domain.Feedback, error) {
	tracer := otel.Tracer("repo.feedback")
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=feedback.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("op=feedback.list: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=feedback.list: %w", err)
	}
	return out, nil
}

// Summary aggregates the whole feedback table for the operator view.
func (r *FeedbackRepo) Summary(ctx domain.Context) (domain.FeedbackSummary, error) {
	tracer := otel.Tracer("repo.feedback")
	ctx, span := tracer.Start(ctx, "feedback.Summary")
	defer span.End()

	var s domain.FeedbackSummary
	q := `SELECT COUNT(*), COALESCE(AVG(rating), 0),
		COUNT(*) FILTER (WHERE created_at > now() - INTERVAL '24 hours')
		FROM feedback`
	if err := r.Pool.QueryRow(ctx, q).Scan(&s.Count, &s.MeanRating, &s.Last24h); err != nil {
		return domain.FeedbackSummary{}, fmt.Errorf("op=feedback.summary: %w", err)
	}

	rows, err := r.Pool.Query(ctx, `SELECT category, COUNT(*) FROM feedback WHERE category IS NOT NULL GROUP BY category`)
	if err != nil {
		return domain.FeedbackSummary{}, fmt.Errorf("op=feedback.summary: %w", err)
	}
	defer rows.Close()
	s.Categories = make(map[string]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return domain.FeedbackSummary{}, fmt.Errorf("op=feedback.summary: %w", err)
		}
		s.Categories[cat] = n
	}
	if err := rows.Err(); err != nil {
		return domain.FeedbackSummary{}, fmt.Errorf("op=feedback.summary: %w", err)
	}
	return s, nil
}
