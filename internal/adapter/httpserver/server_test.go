package httpserver_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	httpserver "github.com/praxos/assistant-core/internal/adapter/httpserver"
	"github.com/praxos/assistant-core/internal/config"
	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/domain/mocks"
	"github.com/praxos/assistant-core/internal/resilience"
	"github.com/praxos/assistant-core/internal/usecase"
)

// serverFixture wires real usecases over mocked ports; handler tests exercise
// the same composition the router serves.
type serverFixture struct {
	auth     *mocks.MockAuthService
	ledger   *mocks.MockBillingLedger
	resRepo  *mocks.MockReservationRepository
	turns    *mocks.MockTurnRepository
	queue    *mocks.MockIngestionQueueRepository
	files    *mocks.MockFileStore
	vectors  *mocks.MockVectorStore
	snaps    *mocks.MockSnapshotStore
	llm      *mocks.MockLLMProvider
	jobsRepo *mocks.MockJobRepository
	fbRepo   *mocks.MockFeedbackRepository
	retry    *mocks.MockBillingRetryRepository
	pub      *mocks.MockEventPublisher

	srv *httpserver.Server
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		auth:     mocks.NewMockAuthService(t),
		ledger:   mocks.NewMockBillingLedger(t),
		resRepo:  mocks.NewMockReservationRepository(t),
		turns:    mocks.NewMockTurnRepository(t),
		queue:    mocks.NewMockIngestionQueueRepository(t),
		files:    mocks.NewMockFileStore(t),
		vectors:  mocks.NewMockVectorStore(t),
		snaps:    mocks.NewMockSnapshotStore(t),
		llm:      mocks.NewMockLLMProvider(t),
		jobsRepo: mocks.NewMockJobRepository(t),
		fbRepo:   mocks.NewMockFeedbackRepository(t),
		retry:    mocks.NewMockBillingRetryRepository(t),
		pub:      mocks.NewMockEventPublisher(t),
	}

	billing := usecase.NewBillingService(f.ledger, f.resRepo, f.pub)
	sessions := usecase.NewSessionService(f.turns)
	ingestion := usecase.NewIngestionService(f.queue, f.turns, f.files, f.vectors, f.snaps)
	chat := usecase.NewChatService(f.auth, billing, f.vectors, f.llm, sessions, ingestion, f.pub,
		config.DefaultTierTable(), "Answer from the provided context.", 10, 5)
	notes := usecase.NewNoteService(sessions, f.files, f.vectors, f.snaps, f.pub)
	feedback := usecase.NewFeedbackService(f.fbRepo, sessions)
	jobs := usecase.NewJobService(f.jobsRepo)
	registration := usecase.NewRegistrationService(f.auth, f.ledger, f.retry, f.pub)

	cfg := config.Config{
		AppEnv:            "test",
		SessionCookieName: "assistant_session",
		BillingMaxRetries: 5,
	}
	f.srv = httpserver.NewServer(cfg, f.auth, chat, sessions, notes, feedback, jobs, registration,
		resilience.NewRegistry(),
		func(context.Context) error { return nil },
		nil,
	)
	return f
}

// authed wraps a handler in the token middleware, the way the router mounts it.
func (f *serverFixture) authed(h http.Handler) http.Handler {
	return f.srv.Auth.RequireUser(h)
}

// grantToken makes "tok-1" verify to the given identity.
func (f *serverFixture) grantToken(ident domain.Identity) {
	f.auth.On("VerifyToken", mock.Anything, "tok-1").Return(ident, nil)
}

// grantAccess makes the project access check say yes.
func (f *serverFixture) grantAccess(projectID, userID string) {
	f.auth.On("CheckProjectAccess", mock.Anything, projectID, userID).
		Return(domain.ProjectAccess{HasAccess: true, AccessType: domain.AccessOwner}, nil)
}

func bearer(r *http.Request) *http.Request {
	r.Header.Set("Authorization", "Bearer tok-1")
	return r
}

// withChiParam attaches a chi route parameter the way the router would.
func withChiParam(r *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func regularUser() domain.Identity {
	return domain.Identity{UserID: "u-1", Role: "user", Tier: "pro"}
}
