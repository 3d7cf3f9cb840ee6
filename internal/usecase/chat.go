package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/praxos/assistant-core/internal/adapter/events"
	"github.com/praxos/assistant-core/internal/config"
	"github.com/praxos/assistant-core/internal/domain"
)

// ChatAnswer is the completed-turn envelope returned to the surface. Balance
// is best-effort: nil when the ledger read failed.
type ChatAnswer struct {
	Response  string
	MessageID string
	Cost      float64
	Balance   *float64
}

// ChatService runs the top-level request pipeline: access gate, billing hold,
// retrieval, completion, capture, persistence, ingestion enqueue. The money
// invariant lives here: a served response corresponds to exactly one charge,
// with capture failure after a served completion the single tolerated
// deviation (reconciled out of band).
type ChatService struct {
	Auth      domain.AuthService
	Billing   *BillingService
	Vectors   domain.VectorStore
	LLM       domain.LLMProvider
	Sessions  *SessionService
	Ingestion *IngestionService
	Events    domain.EventPublisher

	Tiers        config.TierTable
	Protocol     string
	HistoryLimit int
	TopK         int
}

// NewChatService wires the pipeline. protocol is the operational-protocol
// text prepended to every prompt; historyLimit and topK bound the prompt
// assembly inputs.
func NewChatService(
	auth domain.AuthService,
	billing *BillingService,
	vectors domain.VectorStore,
	llm domain.LLMProvider,
	sessions *SessionService,
	ingestion *IngestionService,
	pub domain.EventPublisher,
	tiers config.TierTable,
	protocol string,
	historyLimit, topK int,
) *ChatService {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if topK <= 0 {
		topK = 5
	}
	return &ChatService{
		Auth:         auth,
		Billing:      billing,
		Vectors:      vectors,
		LLM:          llm,
		Sessions:     sessions,
		Ingestion:    ingestion,
		Events:       pub,
		Tiers:        tiers,
		Protocol:     protocol,
		HistoryLimit: historyLimit,
		TopK:         topK,
	}
}

// Chat executes one turn for an authenticated identity. Error mapping at the
// surface: ErrForbidden 403, ErrInsufficientFunds 402, transport/circuit 503.
func (s *ChatService) Chat(ctx domain.Context, ident domain.Identity, projectID, query string) (ChatAnswer, error) {
	if projectID == "" || query == "" {
		return ChatAnswer{}, fmt.Errorf("op=usecase.Chat: project and query required: %w", domain.ErrInvalidArgument)
	}

	access, err := s.Auth.CheckProjectAccess(ctx, projectID, ident.UserID)
	if err != nil {
		// Fail closed: an unreachable access service denies everyone.
		slog.Warn("access check unavailable, denying",
			slog.String("project_id", projectID),
			slog.String("user_id", ident.UserID),
			slog.Any("error", err))
		return ChatAnswer{}, fmt.Errorf("op=usecase.Chat: access check: %w", domain.ErrForbidden)
	}
	if !access.HasAccess {
		slog.Info("access denied",
			slog.String("project_id", projectID),
			slog.String("user_id", ident.UserID),
			slog.String("role", ident.Role))
		return ChatAnswer{}, fmt.Errorf("op=usecase.Chat: project %s: %w", projectID, domain.ErrForbidden)
	}

	estimated := s.Tiers.Estimate(ident.Tier)
	res, err := s.Billing.Reserve(ctx, ident.UserID, estimated)
	if err != nil {
		return ChatAnswer{}, fmt.Errorf("op=usecase.Chat: %w", err)
	}
	if res == nil {
		return ChatAnswer{}, fmt.Errorf("op=usecase.Chat: estimated %.4f: %w", estimated, domain.ErrInsufficientFunds)
	}

	history := s.history(ctx, projectID, ident.UserID)

	docs, err := s.Vectors.Query(ctx, projectCollection(projectID), query, s.TopK)
	if err != nil {
		// Fail open: degraded answers beat blocked ones.
		slog.Warn("retrieval degraded to empty context",
			slog.String("project_id", projectID), slog.Any("error", err))
		docs = nil
	}

	// From here the caller hanging up must not matter: the completion spends
	// money regardless, so it and everything that keeps the ledger and the
	// session store consistent run detached from request cancellation.
	detached := context.WithoutCancel(ctx)

	result, err := s.LLM.Complete(detached, domain.ChatRequest{
		System:  s.Protocol,
		Context: docs,
		History: history,
		Query:   query,
	})
	if err != nil {
		if relErr := s.Billing.Release(detached, res.ReservationID); relErr != nil {
			slog.Error("release after failed completion",
				slog.String("reservation_id", res.ReservationID), slog.Any("error", relErr))
		}
		return ChatAnswer{}, fmt.Errorf("op=usecase.Chat: completion: %w", err)
	}

	actual := result.Cost
	if actual > res.EstimatedCost {
		slog.Warn("completion cost exceeded hold, capping at estimate",
			slog.String("reservation_id", res.ReservationID),
			slog.Float64("actual", actual),
			slog.Float64("estimated", res.EstimatedCost))
		actual = res.EstimatedCost
	}
	if err := s.Billing.Capture(detached, res.ReservationID, actual); err != nil {
		// The user has been served; the capture-failed event is already out
		// and reconciliation owns the debt. Never fail the request here.
		slog.Error("capture failed after served completion",
			slog.String("reservation_id", res.ReservationID),
			slog.String("user_id", ident.UserID),
			slog.Float64("actual", actual),
			slog.Any("error", err))
	}

	messageID, err := s.Sessions.AppendTurn(detached, projectID, ident.UserID, query, result.Text)
	if err != nil {
		events.Emit(detached, s.Events, domain.Event{
			Kind:          domain.EventTurnPersistFailed,
			Severity:      domain.SeverityCritical,
			UserID:        ident.UserID,
			ReservationID: res.ReservationID,
			Detail:        fmt.Sprintf("charged %.6f but the turn was not stored: %v", actual, err),
		})
		return ChatAnswer{}, fmt.Errorf("op=usecase.Chat: persist turn: %w", err)
	}

	if _, err := s.Ingestion.Enqueue(detached, messageID, projectID, ident.UserID); err != nil {
		return ChatAnswer{}, fmt.Errorf("op=usecase.Chat: enqueue ingestion: %w", err)
	}

	answer := ChatAnswer{Response: result.Text, MessageID: messageID, Cost: actual}
	if balance, err := s.Billing.Balance(detached, ident.UserID); err == nil {
		answer.Balance = &balance
	} else {
		slog.Warn("balance read skipped", slog.String("user_id", ident.UserID), slog.Any("error", err))
	}

	slog.Info("chat turn completed",
		slog.String("project_id", projectID),
		slog.String("user_id", ident.UserID),
		slog.String("message_id", messageID),
		slog.Float64("cost", actual),
		slog.String("model", result.Model))
	return answer, nil
}

func (s *ChatService) history(ctx domain.Context, projectID, userID string) []domain.Turn {
	turns, err := s.Sessions.RecentHistory(ctx, projectID, userID, s.HistoryLimit)
	if err != nil {
		slog.Warn("history unavailable, prompting without it",
			slog.String("project_id", projectID), slog.Any("error", err))
		return nil
	}
	return turns
}
