package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/praxos/assistant-core/internal/domain"
)

// BillingRetryRepo stores registered users whose billing account creation is
// still outstanding.
type BillingRetryRepo struct{ Pool PgxPool }

// NewBillingRetryRepo constructs a BillingRetryRepo with the given pool.
func NewBillingRetryRepo(p PgxPool) *BillingRetryRepo { return &BillingRetryRepo{Pool: p} }

const pendingAccountColumns = `user_id, tier, status, retry_count, max_retries, next_retry_at, last_attempt_at, last_error, created_at, completed_at`

func scanPendingAccount(row pgx.Row) (domain.PendingBillingAccount, error) {
	var p domain.PendingBillingAccount
	err := row.Scan(&p.UserID, &p.Tier, &p.Status, &p.RetryCount, &p.MaxRetries, &p.NextRetryAt, &p.LastAttemptAt, &p.LastError, &p.CreatedAt, &p.CompletedAt)
	return p, err
}

// Upsert enqueues a user for account-create retry. A re-registration of an
// already queued user only refreshes the tier; retry progress is preserved.
func (r *BillingRetryRepo) Upsert(ctx domain.Context, item domain.PendingBillingAccount) error {
	tracer := otel.Tracer("repo.billing_retry")
	ctx, span := tracer.Start(ctx, "billing_retry.Upsert")
	defer span.End()
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	maxRetries := item.MaxRetries
	if maxRetries <= 0 {
		maxRetries = domain.DefaultBillingMaxRetries
	}
	q := `INSERT INTO pending_billing_accounts (user_id, tier, status, retry_count, max_retries, next_retry_at, last_error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier`
	_, err := r.Pool.Exec(ctx, q, item.UserID, item.Tier, domain.BillingAccountPending, item.RetryCount, maxRetries, item.NextRetryAt, item.LastError, created)
	if err != nil {
		return fmt.Errorf("op=billing_retry.upsert: %w", err)
	}
	return nil
}

// ListDue returns queued items whose next attempt is due, oldest first.
func (r *BillingRetryRepo) ListDue(ctx domain.Context, now time.Time, limit int) ([]domain.PendingBillingAccount, error) {
	tracer := otel.Tracer("repo.billing_retry")
	ctx, span := tracer.Start(ctx, "billing_retry.ListDue")
	defer span.End()
	q := `SELECT ` + pendingAccountColumns + ` FROM pending_billing_accounts
		WHERE status IN ($1,$2) AND next_retry_at <= $3
		ORDER BY next_retry_at LIMIT $4`
	rows, err := r.Pool.Query(ctx, q, domain.BillingAccountPending, domain.BillingAccountRetrying, now, limit)
	if err != nil {
		return nil, fmt.Errorf("op=billing_retry.list_due: %w", err)
	}
	defer rows.Close()
	var out []domain.PendingBillingAccount
	for rows.Next() {
		p, err := scanPendingAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("op=billing_retry.list_due: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=billing_retry.list_due: %w", err)
	}
	return out, nil
}

// MarkCompleted finishes an item after a successful account creation.
func (r *BillingRetryRepo) MarkCompleted(ctx domain.Context, userID string, at time.Time) error {
	tracer := otel.Tracer("repo.billing_retry")
	ctx, span := tracer.Start(ctx, "billing_retry.MarkCompleted")
	defer span.End()
	q := `UPDATE pending_billing_accounts
		SET status=$2, completed_at=$3, last_attempt_at=$3, last_error=NULL
		WHERE user_id=$1`
	if _, err := r.Pool.Exec(ctx, q, userID, domain.BillingAccountCompleted, at); err != nil {
		return fmt.Errorf("op=billing_retry.mark_completed: %w", err)
	}
	return nil
}

// RecordFailure bumps the retry counter and either reschedules the item or
// parks it permanently.
func (r *BillingRetryRepo) RecordFailure(ctx domain.Context, userID string, attemptAt time.Time, errMsg string, nextRetryAt time.Time, permanent bool) error {
	tracer := otel.Tracer("repo.billing_retry")
	ctx, span := tracer.Start(ctx, "billing_retry.RecordFailure")
	defer span.End()
	status := domain.BillingAccountPending
	if permanent {
		status = domain.BillingAccountFailedPermanent
	}
	q := `UPDATE pending_billing_accounts
		SET retry_count = retry_count + 1, status=$2, last_attempt_at=$3, last_error=$4, next_retry_at=$5
		WHERE user_id=$1`
	if _, err := r.Pool.Exec(ctx, q, userID, status, attemptAt, errMsg, nextRetryAt); err != nil {
		return fmt.Errorf("op=billing_retry.record_failure: %w", err)
	}
	return nil
}
