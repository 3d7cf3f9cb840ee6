package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/praxos/assistant-core/internal/domain"
)

// IngestionRepo is the durable work queue between the chat hot path and the
// fanout worker.
type IngestionRepo struct{ Pool PgxPool }

// NewIngestionRepo constructs an IngestionRepo with the given pool.
func NewIngestionRepo(p PgxPool) *IngestionRepo { return &IngestionRepo{Pool: p} }

const ingestionColumns = `id, message_id, project_id, user_id, status, created_at, processed_at, error_message`

func scanIngestionItem(row pgx.Row) (domain.IngestionItem, error) {
	var it domain.IngestionItem
	err := row.Scan(&it.ID, &it.MessageID, &it.ProjectID, &it.UserID, &it.Status, &it.CreatedAt, &it.ProcessedAt, &it.ErrorMessage)
	return it, err
}

// Enqueue inserts a pending item. Duplicate message ids are swallowed by the
// unique index; the return value reports whether a new row was created.
func (r *IngestionRepo) Enqueue(ctx domain.Context, messageID, projectID, userID string) (bool, error) {
	tracer := otel.Tracer("repo.ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.Enqueue")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "ingestion_queue"),
	)
	q := `INSERT INTO ingestion_queue (message_id, project_id, user_id, status)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (message_id) DO NOTHING`
	tag, err := r.Pool.Exec(ctx, q, messageID, projectID, userID, domain.IngestionPending)
	if err != nil {
		return false, fmt.Errorf("op=ingestion.enqueue: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimPending atomically moves up to limit pending items to in-progress and
// returns them. Concurrent workers skip each other's rows, so an item is
// claimed at most once.
func (r *IngestionRepo) ClaimPending(ctx domain.Context, limit int) ([]domain.IngestionItem, error) {
	tracer := otel.Tracer("repo.ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.ClaimPending")
	defer span.End()

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("op=ingestion.claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT id FROM ingestion_queue
		WHERE status=$1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, domain.IngestionPending, limit)
	if err != nil {
		return nil, fmt.Errorf("op=ingestion.claim: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("op=ingestion.claim: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=ingestion.claim: %w", err)
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	claimed, err := tx.Query(ctx, `UPDATE ingestion_queue
		SET status=$1, claimed_at=now()
		WHERE id = ANY($2)
		RETURNING `+ingestionColumns, domain.IngestionInProgress, ids)
	if err != nil {
		return nil, fmt.Errorf("op=ingestion.claim: %w", err)
	}
	var items []domain.IngestionItem
	for claimed.Next() {
		it, err := scanIngestionItem(claimed)
		if err != nil {
			claimed.Close()
			return nil, fmt.Errorf("op=ingestion.claim: %w", err)
		}
		items = append(items, it)
	}
	claimed.Close()
	if err := claimed.Err(); err != nil {
		return nil, fmt.Errorf("op=ingestion.claim: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("op=ingestion.claim: %w", err)
	}
	return items, nil
}

// MarkComplete finishes an item.
func (r *IngestionRepo) MarkComplete(ctx domain.Context, id int64) error {
	tracer := otel.Tracer("repo.ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.MarkComplete")
	defer span.End()
	q := `UPDATE ingestion_queue SET status=$2, processed_at=now(), error_message=NULL WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, domain.IngestionComplete); err != nil {
		return fmt.Errorf("op=ingestion.mark_complete: %w", err)
	}
	return nil
}

// MarkFailed finishes an item with an error annotation.
func (r *IngestionRepo) MarkFailed(ctx domain.Context, id int64, errMsg string) error {
	tracer := otel.Tracer("repo.ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.MarkFailed")
	defer span.End()
	q := `UPDATE ingestion_queue SET status=$2, processed_at=now(), error_message=$3 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, domain.IngestionFailed, errMsg); err != nil {
		return fmt.Errorf("op=ingestion.mark_failed: %w", err)
	}
	return nil
}

// RequeueStale returns items claimed before cutoff to pending so a crashed
// worker's claims are picked up again.
func (r *IngestionRepo) RequeueStale(ctx domain.Context, cutoff time.Time) (int64, error) {
	tracer := otel.Tracer("repo.ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.RequeueStale")
	defer span.End()
	q := `UPDATE ingestion_queue SET status=$1, claimed_at=NULL
		WHERE status=$2 AND claimed_at < $3`
	tag, err := r.Pool.Exec(ctx, q, domain.IngestionPending, domain.IngestionInProgress, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=ingestion.requeue_stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus returns queue depth per status for the gauges.
func (r *IngestionRepo) CountByStatus(ctx domain.Context) (map[domain.IngestionStatus]int64, error) {
	tracer := otel.Tracer("repo.ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.CountByStatus")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT status, COUNT(*) FROM ingestion_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("op=ingestion.count: %w", err)
	}
	defer rows.Close()
	out := make(map[domain.IngestionStatus]int64)
	for rows.Next() {
		var st domain.IngestionStatus
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("op=ingestion.count: %w", err)
		}
		out[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=ingestion.count: %w", err)
	}
	return out, nil
}
