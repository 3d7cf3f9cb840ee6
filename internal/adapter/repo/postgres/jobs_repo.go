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

// JobRepo persists and loads async jobs using a minimal pgx pool.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

const jobColumns = `job_id, project_id, user_id, job_type, status, task_ref, args, result, error_message, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	err := row.Scan(&j.JobID, &j.ProjectID, &j.UserID, &j.JobType, &j.Status, &j.TaskRef, &j.Args, &j.Result, &j.Error, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	return j, err
}

// Create inserts a new PENDING job row.
func (r *JobRepo) Create(ctx domain.Context, j domain.Job) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "jobs"),
	)
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	status := j.Status
	if status == "" {
		status = domain.JobPending
	}
	q := `INSERT INTO jobs (job_id, project_id, user_id, job_type, status, task_ref, args, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.Pool.Exec(ctx, q, j.JobID, j.ProjectID, j.UserID, j.JobType, status, j.TaskRef, j.Args, created)
	if err != nil {
		return fmt.Errorf("op=job.create: %w", err)
	}
	return nil
}

// SetQueued hands a PENDING job to the executor. Terminal rows are sinks, so
// a row no longer PENDING is reported as ErrConflict.
func (r *JobRepo) SetQueued(ctx domain.Context, jobID, taskRef string, args []byte) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetQueued")
	defer span.End()
	q := `UPDATE jobs SET status=$2, task_ref=$3, args=$4 WHERE job_id=$1 AND status=$5`
	tag, err := r.Pool.Exec(ctx, q, jobID, domain.JobQueued, taskRef, args, domain.JobPending)
	if err != nil {
		return fmt.Errorf("op=job.set_queued: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.set_queued: not pending: %w", domain.ErrConflict)
	}
	return nil
}

// ClaimQueued atomically moves up to limit QUEUED jobs to PROCESSING and
// returns them. Concurrent executors skip each other's rows.
func (r *JobRepo) ClaimQueued(ctx domain.Context, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ClaimQueued")
	defer span.End()
	q := `UPDATE jobs SET status=$1, started_at=now()
		WHERE job_id IN (
			SELECT job_id FROM jobs WHERE status=$2
			ORDER BY created_at LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	rows, err := r.Pool.Query(ctx, q, domain.JobProcessing, domain.JobQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.claim: %w", err)
	}
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job.claim: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.claim: %w", err)
	}
	return out, nil
}

// Complete finishes a PROCESSING job with a result document.
func (r *JobRepo) Complete(ctx domain.Context, jobID string, result []byte) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Complete")
	defer span.End()
	q := `UPDATE jobs SET status=$2, result=$3, completed_at=now() WHERE job_id=$1 AND status=$4`
	tag, err := r.Pool.Exec(ctx, q, jobID, domain.JobCompleted, result, domain.JobProcessing)
	if err != nil {
		return fmt.Errorf("op=job.complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.complete: not processing: %w", domain.ErrConflict)
	}
	return nil
}

// Fail finishes a PROCESSING job with an error message.
func (r *JobRepo) Fail(ctx domain.Context, jobID string, errMsg string) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Fail")
	defer span.End()
	q := `UPDATE jobs SET status=$2, error_message=$3, completed_at=now() WHERE job_id=$1 AND status=$4`
	tag, err := r.Pool.Exec(ctx, q, jobID, domain.JobFailed, errMsg, domain.JobProcessing)
	if err != nil {
		return fmt.Errorf("op=job.fail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.fail: not processing: %w", domain.ErrConflict)
	}
	return nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, jobID string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id=$1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// ListByProject returns the caller's jobs in a project, newest first.
func (r *JobRepo) ListByProject(ctx domain.Context, projectID, userID string, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ListByProject")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM jobs
		WHERE project_id=$1 AND user_id=$2
		ORDER BY created_at DESC LIMIT $3`
	rows, err := r.Pool.Query(ctx, q, projectID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job.list: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.list: %w", err)
	}
	return out, nil
}

// RecoverProcessing demotes PROCESSING rows back to QUEUED. Ran once on
// executor startup; any claim held by a previous process is gone with it.
func (r *JobRepo) RecoverProcessing(ctx domain.Context) (int64, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.RecoverProcessing")
	defer span.End()
	q := `UPDATE jobs SET status=$1, started_at=NULL WHERE status=$2`
	tag, err := r.Pool.Exec(ctx, q, domain.JobQueued, domain.JobProcessing)
	if err != nil {
		return 0, fmt.Errorf("op=job.recover: %w", err)
	}
	return tag.RowsAffected(), nil
}
