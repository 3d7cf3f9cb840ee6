package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/praxos/assistant-core/internal/domain"
)

// TurnRepo persists conversation turns using a minimal pgx pool.
type TurnRepo struct{ Pool PgxPool }

// NewTurnRepo constructs a TurnRepo with the given pool.
func NewTurnRepo(p PgxPool) *TurnRepo { return &TurnRepo{Pool: p} }

const turnColumns = `message_id, project_id, user_id, user_query, assistant_response, is_bookmarked, created_at`

func scanTurn(row pgx.Row) (domain.Turn, error) {
	var t domain.Turn
	err := row.Scan(&t.MessageID, &t.ProjectID, &t.UserID, &t.UserQuery, &t.AssistantResponse, &t.IsBookmarked, &t.CreatedAt)
	return t, err
}

// Insert stores a new turn. The message id is caller-generated and must be
// unique.
func (r *TurnRepo) Insert(ctx domain.Context, t domain.Turn) error {
	tracer := otel.Tracer("repo.turns")
	ctx, span := tracer.Start(ctx, "turns.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "conversation_turns"),
	)
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	q := `INSERT INTO conversation_turns (` + turnColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.Pool.Exec(ctx, q, t.MessageID, t.ProjectID, t.UserID, t.UserQuery, t.AssistantResponse, t.IsBookmarked, created)
	if err != nil {
		return fmt.Errorf("op=turn.insert: %w", err)
	}
	return nil
}

// GetByID loads a turn by message id scoped to its owner. A missing row and
// a row owned by someone else both come back as ErrNotFound.
func (r *TurnRepo) GetByID(ctx domain.Context, messageID, userID string) (domain.Turn, error) {
	tracer := otel.Tracer("repo.turns")
	ctx, span := tracer.Start(ctx, "turns.GetByID")
	defer span.End()
	q := `SELECT ` + turnColumns + ` FROM conversation_turns WHERE message_id=$1 AND user_id=$2`
	t, err := scanTurn(r.Pool.QueryRow(ctx, q, messageID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Turn{}, fmt.Errorf("op=turn.get: %w", domain.ErrNotFound)
		}
		return domain.Turn{}, fmt.Errorf("op=turn.get: %w", err)
	}
	return t, nil
}

// SetBookmark flips the bookmark flag; idempotent. Returns false when no
// owned row matched.
func (r *TurnRepo) SetBookmark(ctx domain.Context, messageID, userID string, flag bool) (bool, error) {
	tracer := otel.Tracer("repo.turns")
	ctx, span := tracer.Start(ctx, "turns.SetBookmark")
	defer span.End()
	q := `UPDATE conversation_turns SET is_bookmarked=$3 WHERE message_id=$1 AND user_id=$2`
	tag, err := r.Pool.Exec(ctx, q, messageID, userID, flag)
	if err != nil {
		return false, fmt.Errorf("op=turn.set_bookmark: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListBookmarks returns the caller's bookmarked turns in a project, newest
// first.
func (r *TurnRepo) ListBookmarks(ctx domain.Context, projectID, userID string, limit int) ([]domain.Turn, error) {
	q := `SELECT ` + turnColumns + ` FROM conversation_turns
		WHERE project_id=$1 AND user_id=$2 AND is_bookmarked
		ORDER BY created_at DESC LIMIT $3`
	return r.list(ctx, "turns.ListBookmarks", q, projectID, userID, limit)
}

// ListRecent returns the caller's most recent turns in a project, newest
// first.
func (r *TurnRepo) ListRecent(ctx domain.Context, projectID, userID string, limit int) ([]domain.Turn, error) {
	q := `SELECT ` + turnColumns + ` FROM conversation_turns
		WHERE project_id=$1 AND user_id=$2
		ORDER BY created_at DESC LIMIT $3`
	return r.list(ctx, "turns.ListRecent", q, projectID, userID, limit)
}

func (r *TurnRepo) list(ctx domain.Context, op, q string, args ...any) ([]domain.Turn, error) {
	tracer := otel.Tracer("repo.turns")
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=turn.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("op=turn.list: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=turn.list: %w", err)
	}
	return out, nil
}
