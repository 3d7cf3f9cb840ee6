package postgres

import (
	"context"
	"fmt"
)

// schemaStatements is executed in order on startup. Every statement is
// idempotent; additive column changes use ADD COLUMN IF NOT EXISTS so a
// rolling deploy never interrupts reads from older replicas.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS conversation_turns (
		message_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_query TEXT NOT NULL,
		assistant_response TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE conversation_turns ADD COLUMN IF NOT EXISTS is_bookmarked BOOLEAN NOT NULL DEFAULT FALSE`,
	`CREATE INDEX IF NOT EXISTS idx_turns_project_user_created ON conversation_turns (project_id, user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_turns_bookmarked ON conversation_turns (project_id, user_id) WHERE is_bookmarked`,

	`CREATE TABLE IF NOT EXISTS ingestion_queue (
		id BIGSERIAL PRIMARY KEY,
		message_id TEXT NOT NULL UNIQUE,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		claimed_at TIMESTAMPTZ,
		processed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ingestion_status_created ON ingestion_queue (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS cost_reservations (
		reservation_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		estimated_cost DOUBLE PRECISION NOT NULL,
		actual_cost DOUBLE PRECISION,
		state TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_state_created ON cost_reservations (state, created_at)`,

	`CREATE TABLE IF NOT EXISTS pending_billing_accounts (
		user_id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INT NOT NULL DEFAULT 0,
		max_retries INT NOT NULL DEFAULT 5,
		next_retry_at TIMESTAMPTZ NOT NULL,
		last_attempt_at TIMESTAMPTZ,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_billing_due ON pending_billing_accounts (status, next_retry_at)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		job_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		task_ref TEXT NOT NULL DEFAULT '',
		args JSONB,
		result JSONB,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_project_user_created ON jobs (project_id, user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,

	`CREATE TABLE IF NOT EXISTS feedback (
		feedback_id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		rating INT NOT NULL,
		category TEXT,
		comment TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_message ON feedback (message_id)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback (user_id)`,
}

// EnsureSchema brings the database up to the current schema. Both binaries
// call it on boot; statements are safe to run concurrently with serving
// traffic.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("op=schema.ensure: %w", err)
		}
	}
	return nil
}
