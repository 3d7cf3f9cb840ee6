package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/praxos/assistant-core/internal/config"
	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/domain/mocks"
	"github.com/praxos/assistant-core/internal/usecase"
)

// chatFixture wires a ChatService over mocks, with the real billing engine in
// between so capture/release semantics are exercised end to end.
type chatFixture struct {
	auth    *mocks.MockAuthService
	ledger  *mocks.MockBillingLedger
	resRepo *mocks.MockReservationRepository
	vectors *mocks.MockVectorStore
	llm     *mocks.MockLLMProvider
	turns   *mocks.MockTurnRepository
	queue   *mocks.MockIngestionQueueRepository
	pub     *mocks.MockEventPublisher
	svc     *usecase.ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	f := &chatFixture{
		auth:    mocks.NewMockAuthService(t),
		ledger:  mocks.NewMockBillingLedger(t),
		resRepo: mocks.NewMockReservationRepository(t),
		vectors: mocks.NewMockVectorStore(t),
		llm:     mocks.NewMockLLMProvider(t),
		turns:   mocks.NewMockTurnRepository(t),
		queue:   mocks.NewMockIngestionQueueRepository(t),
		pub:     mocks.NewMockEventPublisher(t),
	}
	billing := usecase.NewBillingService(f.ledger, f.resRepo, f.pub)
	sessions := usecase.NewSessionService(f.turns)
	ingestion := usecase.NewIngestionService(f.queue, f.turns, nil, nil, nil)
	f.svc = usecase.NewChatService(
		f.auth, billing, f.vectors, f.llm, sessions, ingestion, f.pub,
		config.DefaultTierTable(), "protocol text", 10, 5)
	return f
}

func proUser() domain.Identity {
	return domain.Identity{UserID: "u-1", Role: "user", Tier: "pro"}
}

func (f *chatFixture) grantAccess() {
	f.auth.On("CheckProjectAccess", mock.Anything, "p-1", "u-1").
		Return(domain.ProjectAccess{HasAccess: true, AccessType: "owner"}, nil)
}

// expectReserve wires a successful 0.25 hold (the default pro-tier estimate)
// and the Get the billing engine issues before capture or release.
func (f *chatFixture) expectReserve() {
	f.ledger.On("Reserve", mock.Anything, "u-1", mock.AnythingOfType("string"), 0.25).
		Return(domain.ReserveOutcome{Reserved: true, AmountReserved: 0.25}, nil)
	f.resRepo.On("Create", mock.Anything, mock.AnythingOfType("domain.Reservation")).Return(nil)
	f.resRepo.On("Get", mock.Anything, mock.AnythingOfType("string")).
		Return(func(_ context.Context, id string) domain.Reservation {
			return activeReservation(id, 0.25)
		}, nil)
}

func TestChat_HappyPath(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).
		Return([]domain.Turn{{MessageID: "m-prev", UserQuery: "earlier", AssistantResponse: "earlier answer"}}, nil)
	f.vectors.On("Query", mock.Anything, "project_p-1", "what is the deploy flow?", 5).
		Return([]string{"doc about deploys"}, nil)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req domain.ChatRequest) bool {
		return req.System == "protocol text" &&
			req.Query == "what is the deploy flow?" &&
			len(req.Context) == 1 &&
			len(req.History) == 1
	})).Return(domain.ChatResult{Text: "you deploy like this", Cost: 0.01, Model: "m"}, nil)
	f.ledger.On("Capture", mock.Anything, mock.AnythingOfType("string"), 0.01).
		Return(domain.CaptureOutcome{AmountCharged: 0.01}, nil)
	f.resRepo.On("MarkCaptured", mock.Anything, mock.AnythingOfType("string"), 0.01).Return(nil)
	f.turns.On("Insert", mock.Anything, mock.MatchedBy(func(tr domain.Turn) bool {
		return tr.ProjectID == "p-1" && tr.UserID == "u-1" && tr.AssistantResponse == "you deploy like this"
	})).Return(nil)
	f.queue.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), "p-1", "u-1").Return(true, nil)
	f.ledger.On("Balance", mock.Anything, "u-1").Return(4.75, nil)

	answer, err := f.svc.Chat(context.Background(), proUser(), "p-1", "what is the deploy flow?")
	require.NoError(t, err)
	assert.Equal(t, "you deploy like this", answer.Response)
	assert.NotEmpty(t, answer.MessageID)
	assert.Equal(t, 0.01, answer.Cost)
	require.NotNil(t, answer.Balance)
	assert.Equal(t, 4.75, *answer.Balance)
}

func TestChat_InsufficientFundsShortCircuits(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.ledger.On("Reserve", mock.Anything, "u-1", mock.AnythingOfType("string"), 0.25).
		Return(domain.ReserveOutcome{Reserved: false, AvailableBalance: 0.02}, nil)

	_, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	f.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChat_AccessDeniedBeforeAnySpend(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	// Admin role is never sufficient: the access service said no.
	f.auth.On("CheckProjectAccess", mock.Anything, "p-1", "admin-1").
		Return(domain.ProjectAccess{HasAccess: false, AccessType: "none"}, nil)

	admin := domain.Identity{UserID: "admin-1", Role: "admin", Tier: "enterprise"}
	_, err := f.svc.Chat(context.Background(), admin, "p-1", "q")
	require.ErrorIs(t, err, domain.ErrForbidden)
	f.ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_AccessOutageFailsClosed(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.auth.On("CheckProjectAccess", mock.Anything, "p-1", "u-1").
		Return(domain.ProjectAccess{}, domain.ErrCircuitOpen)

	_, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestChat_RetrievalOutageDegradesToEmptyContext(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).Return(nil, nil)
	f.vectors.On("Query", mock.Anything, "project_p-1", "q", 5).
		Return(nil, domain.ErrCircuitOpen)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req domain.ChatRequest) bool {
		return len(req.Context) == 0
	})).Return(domain.ChatResult{Text: "degraded answer", Cost: 0.01}, nil)
	f.ledger.On("Capture", mock.Anything, mock.AnythingOfType("string"), 0.01).
		Return(domain.CaptureOutcome{AmountCharged: 0.01}, nil)
	f.resRepo.On("MarkCaptured", mock.Anything, mock.AnythingOfType("string"), 0.01).Return(nil)
	f.turns.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), "p-1", "u-1").Return(true, nil)
	f.ledger.On("Balance", mock.Anything, "u-1").Return(1.0, nil)

	answer, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.NoError(t, err)
	assert.Equal(t, "degraded answer", answer.Response)
}

func TestChat_LLMFailureReleasesHold(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).Return(nil, nil)
	f.vectors.On("Query", mock.Anything, "project_p-1", "q", 5).Return([]string{"d"}, nil)
	f.llm.On("Complete", mock.Anything, mock.Anything).
		Return(domain.ChatResult{}, domain.ErrUpstreamTimeout)
	f.ledger.On("Release", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	f.resRepo.On("MarkReleased", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	_, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	f.ledger.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything)
	f.turns.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestChat_CaptureFailureStillServes(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).Return(nil, nil)
	f.vectors.On("Query", mock.Anything, "project_p-1", "q", 5).Return(nil, nil)
	f.llm.On("Complete", mock.Anything, mock.Anything).
		Return(domain.ChatResult{Text: "served", Cost: 0.02}, nil)
	f.ledger.On("Capture", mock.Anything, mock.AnythingOfType("string"), 0.02).
		Return(domain.CaptureOutcome{}, domain.ErrTransport)
	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Kind == domain.EventCaptureFailed && e.Severity == domain.SeverityCritical
	})).Return(nil)
	f.turns.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), "p-1", "u-1").Return(true, nil)
	f.ledger.On("Balance", mock.Anything, "u-1").Return(1.0, nil)

	answer, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.NoError(t, err)
	assert.Equal(t, "served", answer.Response)
	assert.Equal(t, 0.02, answer.Cost)
}

func TestChat_CostCappedAtHold(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).Return(nil, nil)
	f.vectors.On("Query", mock.Anything, "project_p-1", "q", 5).Return(nil, nil)
	// Provider reports more than the hold; we can only capture what was held.
	f.llm.On("Complete", mock.Anything, mock.Anything).
		Return(domain.ChatResult{Text: "long answer", Cost: 0.40}, nil)
	f.ledger.On("Capture", mock.Anything, mock.AnythingOfType("string"), 0.25).
		Return(domain.CaptureOutcome{AmountCharged: 0.25}, nil)
	f.resRepo.On("MarkCaptured", mock.Anything, mock.AnythingOfType("string"), 0.25).Return(nil)
	f.turns.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), "p-1", "u-1").Return(true, nil)
	f.ledger.On("Balance", mock.Anything, "u-1").Return(1.0, nil)

	answer, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.NoError(t, err)
	assert.Equal(t, 0.25, answer.Cost)
}

func TestChat_PersistFailureEmitsEventAndErrors(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).Return(nil, nil)
	f.vectors.On("Query", mock.Anything, "project_p-1", "q", 5).Return(nil, nil)
	f.llm.On("Complete", mock.Anything, mock.Anything).
		Return(domain.ChatResult{Text: "served", Cost: 0.02}, nil)
	f.ledger.On("Capture", mock.Anything, mock.AnythingOfType("string"), 0.02).
		Return(domain.CaptureOutcome{AmountCharged: 0.02}, nil)
	f.resRepo.On("MarkCaptured", mock.Anything, mock.AnythingOfType("string"), 0.02).Return(nil)
	f.turns.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down"))
	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Kind == domain.EventTurnPersistFailed && e.Severity == domain.SeverityCritical
	})).Return(nil)

	_, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.Error(t, err)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_EnqueueFailureErrors(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).Return(nil, nil)
	f.vectors.On("Query", mock.Anything, "project_p-1", "q", 5).Return(nil, nil)
	f.llm.On("Complete", mock.Anything, mock.Anything).
		Return(domain.ChatResult{Text: "served", Cost: 0.02}, nil)
	f.ledger.On("Capture", mock.Anything, mock.AnythingOfType("string"), 0.02).
		Return(domain.CaptureOutcome{AmountCharged: 0.02}, nil)
	f.resRepo.On("MarkCaptured", mock.Anything, mock.AnythingOfType("string"), 0.02).Return(nil)
	f.turns.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), "p-1", "u-1").
		Return(false, errors.New("db down"))

	_, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.Error(t, err)
}

func TestChat_BalanceReadIsBestEffort(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).Return(nil, nil)
	f.vectors.On("Query", mock.Anything, "project_p-1", "q", 5).Return(nil, nil)
	f.llm.On("Complete", mock.Anything, mock.Anything).
		Return(domain.ChatResult{Text: "served", Cost: 0.02}, nil)
	f.ledger.On("Capture", mock.Anything, mock.AnythingOfType("string"), 0.02).
		Return(domain.CaptureOutcome{AmountCharged: 0.02}, nil)
	f.resRepo.On("MarkCaptured", mock.Anything, mock.AnythingOfType("string"), 0.02).Return(nil)
	f.turns.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), "p-1", "u-1").Return(true, nil)
	f.ledger.On("Balance", mock.Anything, "u-1").Return(0.0, domain.ErrTransport)

	answer, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.NoError(t, err)
	assert.Nil(t, answer.Balance)
}

func TestChat_HistoryOutageDegradesToNone(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.grantAccess()
	f.expectReserve()

	f.turns.On("ListRecent", mock.Anything, "p-1", "u-1", 10).Return(nil, errors.New("db hiccup"))
	f.vectors.On("Query", mock.Anything, "project_p-1", "q", 5).Return(nil, nil)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req domain.ChatRequest) bool {
		return len(req.History) == 0
	})).Return(domain.ChatResult{Text: "served", Cost: 0.02}, nil)
	f.ledger.On("Capture", mock.Anything, mock.AnythingOfType("string"), 0.02).
		Return(domain.CaptureOutcome{AmountCharged: 0.02}, nil)
	f.resRepo.On("MarkCaptured", mock.Anything, mock.AnythingOfType("string"), 0.02).Return(nil)
	f.turns.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), "p-1", "u-1").Return(true, nil)
	f.ledger.On("Balance", mock.Anything, "u-1").Return(1.0, nil)

	_, err := f.svc.Chat(context.Background(), proUser(), "p-1", "q")
	require.NoError(t, err)
}
