package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/domain"
)

// TaskFunc executes one claimed job and returns the JSON result payload.
// Args travel on the job row; implementations unmarshal what they need.
type TaskFunc func(ctx domain.Context, job domain.Job) ([]byte, error)

// JobService owns the async job lifecycle: PENDING on create, QUEUED once the
// task ref and args are persisted, then claim-and-execute in the worker.
// Tasks register by ref at boot; an unknown ref fails the job instead of
// wedging the queue.
type JobService struct {
	Repo domain.JobRepository

	mu    sync.RWMutex
	tasks map[string]TaskFunc
}

// NewJobService constructs a JobService with an empty task registry.
func NewJobService(repo domain.JobRepository) *JobService {
	return &JobService{Repo: repo, tasks: make(map[string]TaskFunc)}
}

// RegisterTask binds a task ref to its implementation. Refs are wired once at
// boot; last write wins.
func (s *JobService) RegisterTask(ref string, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[ref] = fn
}

func (s *JobService) task(ref string) (TaskFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.tasks[ref]
	return fn, ok
}

// Create inserts a PENDING job row and returns its id.
func (s *JobService) Create(ctx domain.Context, projectID, userID, jobType string) (string, error) {
	if projectID == "" || userID == "" {
		return "", fmt.Errorf("op=usecase.JobCreate: project and user required: %w", domain.ErrInvalidArgument)
	}
	job := domain.Job{
		JobID:     uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		JobType:   jobType,
		Status:    domain.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return "", fmt.Errorf("op=usecase.JobCreate: %w", err)
	}
	return job.JobID, nil
}

// EnqueueTask persists the task ref plus marshaled args and moves the job to
// QUEUED, making it visible to the executor.
func (s *JobService) EnqueueTask(ctx domain.Context, jobID, taskRef string, args any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("op=usecase.EnqueueTask: marshal args: %w", err)
	}
	if err := s.Repo.SetQueued(ctx, jobID, taskRef, raw); err != nil {
		return fmt.Errorf("op=usecase.EnqueueTask: %w", err)
	}
	observability.EnqueueJob(taskRef)
	slog.Info("job queued", slog.String("job_id", jobID), slog.String("task_ref", taskRef))
	return nil
}

// CreateAndEnqueue is the handler-facing shortcut: create the row and queue
// the task in one call.
func (s *JobService) CreateAndEnqueue(ctx domain.Context, projectID, userID, jobType, taskRef string, args any) (string, error) {
	jobID, err := s.Create(ctx, projectID, userID, jobType)
	if err != nil {
		return "", err
	}
	if err := s.EnqueueTask(ctx, jobID, taskRef, args); err != nil {
		return "", err
	}
	return jobID, nil
}

// Get returns the job scoped to its owner. A job belonging to someone else is
// reported as missing, same as turn lookups: never confirm existence across
// owners.
func (s *JobService) Get(ctx domain.Context, jobID, userID string) (domain.Job, error) {
	job, err := s.Repo.Get(ctx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=usecase.JobGet: %w", err)
	}
	if job.UserID != userID {
		return domain.Job{}, fmt.Errorf("op=usecase.JobGet: job %s: %w", jobID, domain.ErrNotFound)
	}
	return job, nil
}

// ListByProject returns the caller's jobs for one project, newest first.
func (s *JobService) ListByProject(ctx domain.Context, projectID, userID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	jobs, err := s.Repo.ListByProject(ctx, projectID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.JobList: %w", err)
	}
	return jobs, nil
}

// ProcessBatch claims up to batch QUEUED jobs and executes each registered
// task, returning how many were claimed. Claim and execution are separate so
// a slow task never holds row locks.
func (s *JobService) ProcessBatch(ctx domain.Context, batch int) (int, error) {
	jobs, err := s.Repo.ClaimQueued(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("op=usecase.ProcessBatch: %w", err)
	}
	for _, job := range jobs {
		s.execute(ctx, job)
	}
	return len(jobs), nil
}

// Recover demotes PROCESSING rows back to QUEUED; run once before the
// executor starts so jobs orphaned by a crash get picked up again.
func (s *JobService) Recover(ctx domain.Context) (int64, error) {
	n, err := s.Repo.RecoverProcessing(ctx)
	if err != nil {
		return 0, fmt.Errorf("op=usecase.JobRecover: %w", err)
	}
	if n > 0 {
		slog.Warn("requeued orphaned jobs", slog.Int64("count", n))
	}
	return n, nil
}

func (s *JobService) execute(ctx domain.Context, job domain.Job) {
	start := time.Now()
	observability.StartProcessingJob(job.JobType)
	// A panicking task must fail its own job, not take the executor down;
	// otherwise restart recovery would requeue it into a crash loop.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		observability.FailJob(job.JobType)
		slog.Error("job panicked",
			slog.String("job_id", job.JobID),
			slog.String("task_ref", job.TaskRef),
			slog.Any("panic", r))
		if err := s.Repo.Fail(ctx, job.JobID, fmt.Sprintf("panic: %v", r)); err != nil {
			slog.Error("failed to mark panicked job", slog.String("job_id", job.JobID), slog.Any("error", err))
		}
	}()

	fn, ok := s.task(job.TaskRef)
	if !ok {
		observability.FailJob(job.JobType)
		slog.Error("job references unknown task",
			slog.String("job_id", job.JobID), slog.String("task_ref", job.TaskRef))
		if err := s.Repo.Fail(ctx, job.JobID, "unknown task ref: "+job.TaskRef); err != nil {
			slog.Error("failed to mark job failed", slog.String("job_id", job.JobID), slog.Any("error", err))
		}
		return
	}

	result, err := fn(ctx, job)
	if err != nil {
		observability.FailJob(job.JobType)
		slog.Error("job failed",
			slog.String("job_id", job.JobID),
			slog.String("task_ref", job.TaskRef),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		if mErr := s.Repo.Fail(ctx, job.JobID, err.Error()); mErr != nil {
			slog.Error("failed to mark job failed", slog.String("job_id", job.JobID), slog.Any("error", mErr))
		}
		return
	}
	if err := s.Repo.Complete(ctx, job.JobID, result); err != nil {
		observability.FailJob(job.JobType)
		slog.Error("failed to mark job completed", slog.String("job_id", job.JobID), slog.Any("error", err))
		return
	}
	observability.CompleteJob(job.JobType)
	slog.Info("job completed",
		slog.String("job_id", job.JobID),
		slog.String("task_ref", job.TaskRef),
		slog.Duration("elapsed", time.Since(start)))
}
