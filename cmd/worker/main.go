// Command worker runs the background loops of assistant-core: the ingestion
// fanout, the job executor, the billing reconciliation sweep, and the
// registration billing retry queue.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praxos/assistant-core/internal/adapter/events"
	"github.com/praxos/assistant-core/internal/adapter/events/redpanda"
	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/adapter/repo/postgres"
	"github.com/praxos/assistant-core/internal/app"
	"github.com/praxos/assistant-core/internal/config"
	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
	"github.com/praxos/assistant-core/internal/usecase"
)

const sweepBatch = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// The worker exposes its own /metrics so the queue and sweep gauges are
	// scrapeable independently of the gateway.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	resRepo := postgres.NewReservationRepo(pool)
	turnRepo := postgres.NewTurnRepo(pool)
	queueRepo := postgres.NewIngestionRepo(pool)
	jobRepo := postgres.NewJobRepo(pool)
	retryRepo := postgres.NewBillingRetryRepo(pool)

	registry := resilience.NewRegistry()
	clients := app.BuildClients(cfg, registry)

	var pub domain.EventPublisher = events.LogPublisher{}
	if cfg.EventsEnabled() {
		rp, err := redpanda.NewPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			slog.Error("event publisher connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := rp.Close(); err != nil {
				slog.Error("failed to close event publisher", slog.Any("error", err))
			}
		}()
		pub = rp
	}

	billingSvc := usecase.NewBillingService(clients.Billing, resRepo, pub)
	billingSvc.TTL = cfg.ReservationTTL
	billingSvc.Grace = cfg.ReconcileGrace
	ingestionSvc := usecase.NewIngestionService(queueRepo, turnRepo, clients.Files, clients.Vectors, clients.Snapshots)
	regSvc := usecase.NewRegistrationService(clients.Auth, clients.Billing, retryRepo, pub)
	wikiSvc := usecase.NewWikiService(clients.Vectors, clients.Extractor, clients.Graph,
		clients.Files, clients.Snapshots, pub, cfg.WikiFetchLimit)

	jobSvc := usecase.NewJobService(jobRepo)
	jobSvc.RegisterTask(usecase.WikiTaskRef, wikiSvc.Generate)

	// Jobs orphaned by a previous process must be requeued before the
	// executor starts claiming.
	if n, err := jobSvc.Recover(ctx); err != nil {
		slog.Error("job recovery failed", slog.Any("error", err))
	} else if n > 0 {
		slog.Info("recovered orphaned jobs", slog.Int64("count", n))
	}

	runEvery := func(name string, interval time.Duration, fn func(context.Context)) {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					slog.Info("loop stopping", slog.String("loop", name))
					return
				case <-ticker.C:
					fn(ctx)
				}
			}
		}()
	}

	runEvery("ingestion", cfg.IngestPollInterval, func(ctx context.Context) {
		if _, err := ingestionSvc.ProcessBatch(ctx, cfg.IngestBatchSize); err != nil {
			slog.Error("ingestion batch failed", slog.Any("error", err))
		}
		if err := ingestionSvc.PublishQueueDepth(ctx); err != nil {
			slog.Warn("queue depth refresh failed", slog.Any("error", err))
		}
	})

	runEvery("ingestion_stale", time.Minute, func(ctx context.Context) {
		if _, err := ingestionSvc.RequeueStale(ctx, cfg.IngestClaimTimeout); err != nil {
			slog.Error("stale requeue failed", slog.Any("error", err))
		}
	})

	runEvery("jobs", cfg.JobPollInterval, func(ctx context.Context) {
		if _, err := jobSvc.ProcessBatch(ctx, cfg.JobBatchSize); err != nil {
			slog.Error("job batch failed", slog.Any("error", err))
		}
	})

	runEvery("billing_reconcile", cfg.ReconcileInterval, func(ctx context.Context) {
		res, err := billingSvc.ReconcileExpired(ctx, sweepBatch)
		if err != nil {
			slog.Error("reconcile sweep failed", slog.Any("error", err))
			return
		}
		if res.Scanned > 0 {
			slog.Info("reconcile sweep",
				slog.Int("scanned", res.Scanned),
				slog.Int("released", res.Released),
				slog.Int("abandoned", res.Abandoned))
		}
	})

	runEvery("registration_retry", cfg.BillingRetryInterval, func(ctx context.Context) {
		res, err := regSvc.RunRetryPass(ctx, sweepBatch)
		if err != nil {
			slog.Error("registration retry pass failed", slog.Any("error", err))
			return
		}
		if res.Attempted > 0 {
			slog.Info("registration retry pass",
				slog.Int("attempted", res.Attempted),
				slog.Int("completed", res.Completed),
				slog.Int("permanent", res.Permanent))
		}
	})

	slog.Info("worker started, waiting for shutdown signal")
	<-ctx.Done()
	slog.Info("worker stopped")
}
