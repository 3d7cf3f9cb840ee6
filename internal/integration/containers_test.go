//go:build integration

// Package integration spins up a real PostgreSQL instance and runs the
// repository layer against it. These tests verify the schema, the SKIP LOCKED
// claim queries and the state-machine guards that unit tests can only stub.
//
// Run with: go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/praxos/assistant-core/internal/adapter/repo/postgres"
	"github.com/praxos/assistant-core/internal/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "assistant",
			"POSTGRES_PASSWORD": "assistant",
			"POSTGRES_DB":       "assistant_it",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://assistant:assistant@%s:%s/assistant_it?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(90 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://assistant:assistant@%s:%s/assistant_it?sslmode=disable", host, port.Port())
}

func TestRepositories_AgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
	ctx := context.Background()
	dsn := startPostgres(t)

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.EnsureSchema(ctx, pool))
	// Schema application is idempotent across restarts.
	require.NoError(t, postgres.EnsureSchema(ctx, pool))

	t.Run("reservation state machine", func(t *testing.T) {
		repo := postgres.NewReservationRepo(pool)
		res := domain.Reservation{
			ReservationID: "res-it-1",
			UserID:        "u-1",
			EstimatedCost: 0.25,
			State:         domain.ReservationActive,
			ExpiresAt:     time.Now().UTC().Add(30 * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, res))

		got, err := repo.Get(ctx, "res-it-1")
		require.NoError(t, err)
		require.Equal(t, domain.ReservationActive, got.State)
		require.InDelta(t, 0.25, got.EstimatedCost, 1e-9)

		require.NoError(t, repo.MarkCaptured(ctx, "res-it-1", 0.11))
		got, err = repo.Get(ctx, "res-it-1")
		require.NoError(t, err)
		require.Equal(t, domain.ReservationCaptured, got.State)
		require.NotNil(t, got.ActualCost)
		require.InDelta(t, 0.11, *got.ActualCost, 1e-9)

		// Terminal states are sinks.
		err = repo.MarkReleased(ctx, "res-it-1")
		require.ErrorIs(t, err, domain.ErrConflict)

		_, err = repo.Get(ctx, "res-missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("stale reservation sweep", func(t *testing.T) {
		repo := postgres.NewReservationRepo(pool)
		old := domain.Reservation{
			ReservationID: "res-it-stale",
			UserID:        "u-1",
			EstimatedCost: 0.05,
			State:         domain.ReservationActive,
			CreatedAt:     time.Now().UTC().Add(-2 * time.Hour),
			ExpiresAt:     time.Now().UTC().Add(-90 * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, old))

		stale, err := repo.ListStaleActive(ctx, time.Now().UTC().Add(-time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		require.Equal(t, "res-it-stale", stale[0].ReservationID)

		require.NoError(t, repo.MarkExpired(ctx, "res-it-stale"))
		stale, err = repo.ListStaleActive(ctx, time.Now().UTC().Add(-time.Hour), 10)
		require.NoError(t, err)
		require.Empty(t, stale)
	})

	t.Run("job lifecycle and recovery", func(t *testing.T) {
		repo := postgres.NewJobRepo(pool)
		job := domain.Job{
			JobID:     "job-it-1",
			ProjectID: "p-1",
			UserID:    "u-1",
			JobType:   "generate_wiki",
			Status:    domain.JobPending,
		}
		require.NoError(t, repo.Create(ctx, job))
		require.NoError(t, repo.SetQueued(ctx, "job-it-1", "wiki.generate", []byte(`{"project_id":"p-1"}`)))

		claimed, err := repo.ClaimQueued(ctx, 5)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		require.Equal(t, domain.JobProcessing, claimed[0].Status)

		// A second claim sees nothing while the row is PROCESSING.
		again, err := repo.ClaimQueued(ctx, 5)
		require.NoError(t, err)
		require.Empty(t, again)

		// Simulated crash: recovery demotes the orphaned row back to QUEUED.
		n, err := repo.RecoverProcessing(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		claimed, err = repo.ClaimQueued(ctx, 5)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		require.NoError(t, repo.Complete(ctx, "job-it-1", []byte(`{"page_count":3}`)))
		got, err := repo.Get(ctx, "job-it-1")
		require.NoError(t, err)
		require.Equal(t, domain.JobCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)

		list, err := repo.ListByProject(ctx, "p-1", "u-1", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("ingestion queue claim and requeue", func(t *testing.T) {
		repo := postgres.NewIngestionRepo(pool)

		inserted, err := repo.Enqueue(ctx, "msg-it-1", "p-1", "u-1")
		require.NoError(t, err)
		require.True(t, inserted)

		// Enqueue is idempotent on message id.
		inserted, err = repo.Enqueue(ctx, "msg-it-1", "p-1", "u-1")
		require.NoError(t, err)
		require.False(t, inserted)

		items, err := repo.ClaimPending(ctx, 5)
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, domain.IngestionInProgress, items[0].Status)

		// The claim is exclusive until the item finishes or goes stale.
		empty, err := repo.ClaimPending(ctx, 5)
		require.NoError(t, err)
		require.Empty(t, empty)

		requeued, err := repo.RequeueStale(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		require.EqualValues(t, 1, requeued)

		items, err = repo.ClaimPending(ctx, 5)
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.NoError(t, repo.MarkComplete(ctx, items[0].ID))

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, counts[domain.IngestionComplete])
	})

	t.Run("turn ownership and bookmarks", func(t *testing.T) {
		repo := postgres.NewTurnRepo(pool)
		turn := domain.Turn{
			MessageID:         "msg-it-2",
			ProjectID:         "p-1",
			UserID:            "u-1",
			UserQuery:         "where is the auth middleware?",
			AssistantResponse: "internal/adapter/httpserver/auth.go",
		}
		require.NoError(t, repo.Insert(ctx, turn))

		ok, err := repo.SetBookmark(ctx, "msg-it-2", "u-1", true)
		require.NoError(t, err)
		require.True(t, ok)

		// A different user cannot see or flip someone else's turn.
		ok, err = repo.SetBookmark(ctx, "msg-it-2", "u-2", true)
		require.NoError(t, err)
		require.False(t, ok)
		_, err = repo.GetByID(ctx, "msg-it-2", "u-2")
		require.ErrorIs(t, err, domain.ErrNotFound)

		marks, err := repo.ListBookmarks(ctx, "p-1", "u-1", 10)
		require.NoError(t, err)
		require.Len(t, marks, 1)
		require.True(t, marks[0].IsBookmarked)
	})

	t.Run("feedback aggregation", func(t *testing.T) {
		repo := postgres.NewFeedbackRepo(pool)
		require.NoError(t, repo.Insert(ctx, domain.Feedback{
			FeedbackID: "fb-it-1", MessageID: "msg-it-2", UserID: "u-1", Rating: 5,
		}))
		require.NoError(t, repo.Insert(ctx, domain.Feedback{
			FeedbackID: "fb-it-2", MessageID: "msg-it-2", UserID: "u-1", Rating: 3,
		}))

		sum, err := repo.Summary(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, sum.Count)
		require.InDelta(t, 4.0, sum.MeanRating, 1e-9)
		require.EqualValues(t, 2, sum.Last24h)
	})

	t.Run("billing retry queue", func(t *testing.T) {
		repo := postgres.NewBillingRetryRepo(pool)
		now := time.Now().UTC()
		require.NoError(t, repo.Upsert(ctx, domain.PendingBillingAccount{
			UserID:      "u-retry",
			Tier:        "free",
			Status:      domain.BillingAccountPending,
			MaxRetries:  5,
			NextRetryAt: now.Add(-time.Minute),
		}))

		due, err := repo.ListDue(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		require.Equal(t, "u-retry", due[0].UserID)

		require.NoError(t, repo.MarkCompleted(ctx, "u-retry", now))
		due, err = repo.ListDue(ctx, now, 10)
		require.NoError(t, err)
		require.Empty(t, due)
	})
}
