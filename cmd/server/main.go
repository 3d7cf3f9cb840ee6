// Command server starts the assistant-core HTTP gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/praxos/assistant-core/internal/adapter/events"
	"github.com/praxos/assistant-core/internal/adapter/events/redpanda"
	httpserver "github.com/praxos/assistant-core/internal/adapter/httpserver"
	"github.com/praxos/assistant-core/internal/adapter/llm"
	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/adapter/repo/postgres"
	"github.com/praxos/assistant-core/internal/app"
	"github.com/praxos/assistant-core/internal/config"
	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
	"github.com/praxos/assistant-core/internal/service/llmlimiter"
	"github.com/praxos/assistant-core/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, dependency, and pipeline instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
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
	fbRepo := postgres.NewFeedbackRepo(pool)
	retryRepo := postgres.NewBillingRetryRepo(pool)

	registry := resilience.NewRegistry()
	clients := app.BuildClients(cfg, registry)

	var rdb *redis.Client
	var throttle llm.Throttle
	if cfg.ThrottleEnabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		throttle = llmlimiter.New(rdb, "llm", cfg.LLMRatePerSec, cfg.LLMBurst)
	}

	// The provider client carries its own bearer credential, so its breaker
	// is built without the internal token.
	llmRC := registry.Register(resilience.NewClient("llm", cfg.LLMBaseURL, "", resilience.Policy{
		Timeout:          cfg.LLMTimeout,
		MaxRetries:       cfg.LLMMaxRetries,
		FailureThreshold: cfg.LLMFailureThreshold,
		RecoveryDelay:    cfg.LLMRecoveryDelay,
	}))
	llmClient := llm.New(llmRC, llm.Options{
		APIKey:              cfg.LLMAPIKey,
		Model:               cfg.LLMModel,
		MaxTokens:           cfg.LLMMaxTokens,
		PromptCostPer1K:     cfg.LLMPromptCostPer1K,
		CompletionCostPer1K: cfg.LLMCompletionCostPer1K,
	}, throttle)

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

	tiers := config.GetTierTable(cfg.TiersConfigPath)
	protocol := config.GetProtocolText(cfg.ProtocolConfigPath)

	billingSvc := usecase.NewBillingService(clients.Billing, resRepo, pub)
	billingSvc.TTL = cfg.ReservationTTL
	billingSvc.Grace = cfg.ReconcileGrace
	sessionSvc := usecase.NewSessionService(turnRepo)
	ingestionSvc := usecase.NewIngestionService(queueRepo, turnRepo, clients.Files, clients.Vectors, clients.Snapshots)
	chatSvc := usecase.NewChatService(clients.Auth, billingSvc, clients.Vectors, llmClient,
		sessionSvc, ingestionSvc, pub, tiers, protocol, cfg.ChatHistoryLimit, cfg.RetrievalTopK)
	noteSvc := usecase.NewNoteService(sessionSvc, clients.Files, clients.Vectors, clients.Snapshots, pub)
	feedbackSvc := usecase.NewFeedbackService(fbRepo, sessionSvc)
	jobSvc := usecase.NewJobService(jobRepo)
	regSvc := usecase.NewRegistrationService(clients.Auth, clients.Billing, retryRepo, pub)

	dbCheck, redisCheck := app.BuildReadinessChecks(pool, rdb)

	srv := httpserver.NewServer(cfg, clients.Auth, chatSvc, sessionSvc, noteSvc,
		feedbackSvc, jobSvc, regSvc, registry, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
