package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/praxos/assistant-core/internal/adapter/events"
	"github.com/praxos/assistant-core/internal/domain"
)

// RegistrationService creates identities synchronously and billing accounts
// asynchronously. Identity failure fails the registration; billing failure
// enqueues the user for retry so nobody is left able to log in but unable to
// be charged ("zombie" accounts are repaired, never served).
type RegistrationService struct {
	Auth       domain.AuthService
	Ledger     domain.BillingLedger
	Retry      domain.BillingRetryRepository
	Events     domain.EventPublisher
	MaxRetries int
}

func NewRegistrationService(auth domain.AuthService, ledger domain.BillingLedger, retry domain.BillingRetryRepository, pub domain.EventPublisher) *RegistrationService {
	return &RegistrationService{
		Auth:       auth,
		Ledger:     ledger,
		Retry:      retry,
		Events:     pub,
		MaxRetries: domain.DefaultBillingMaxRetries,
	}
}

// Register creates the identity, then the billing account. The second return
// reports whether billing was deferred to the retry queue; the registration
// succeeds either way.
func (s *RegistrationService) Register(ctx domain.Context, username, password, tier string) (string, bool, error) {
	if username == "" || password == "" {
		return "", false, fmt.Errorf("op=usecase.Register: credentials required: %w", domain.ErrInvalidArgument)
	}
	tier = strings.ToLower(strings.TrimSpace(tier))
	if tier == "" {
		tier = "free"
	}

	userID, err := s.Auth.RegisterIdentity(ctx, username, password, tier)
	if err != nil {
		return "", false, fmt.Errorf("op=usecase.Register: %w", err)
	}

	err = s.Ledger.CreateAccount(ctx, userID, tier)
	if err == nil {
		return userID, false, nil
	}
	slog.Warn("billing account deferred to retry queue",
		slog.String("user_id", userID), slog.Any("error", err))

	now := time.Now().UTC()
	item := domain.PendingBillingAccount{
		UserID:      userID,
		Tier:        tier,
		Status:      domain.BillingAccountPending,
		MaxRetries:  s.MaxRetries,
		NextRetryAt: now,
		CreatedAt:   now,
	}
	if err := s.Retry.Upsert(ctx, item); err != nil {
		// Identity exists but nothing will repair billing; surface the error
		// so the operator sees it immediately.
		return "", false, fmt.Errorf("op=usecase.Register: enqueue billing retry: %w", err)
	}
	return userID, true, nil
}

// RetryPassResult summarizes one pass over the due queue.
type RetryPassResult struct {
	Attempted int
	Completed int
	Retried   int
	Permanent int
}

// RunRetryPass attempts account creation for every due item. Successes leave
// the working set; failures back off 30s·2^n until the budget is spent, then
// go failed_permanent with an operator alert.
func (s *RegistrationService) RunRetryPass(ctx domain.Context, limit int) (RetryPassResult, error) {
	now := time.Now().UTC()
	due, err := s.Retry.ListDue(ctx, now, limit)
	if err != nil {
		return RetryPassResult{}, fmt.Errorf("op=usecase.RunRetryPass: %w", err)
	}

	res := RetryPassResult{Attempted: len(due)}
	for _, item := range due {
		err := s.Ledger.CreateAccount(ctx, item.UserID, item.Tier)
		attemptAt := time.Now().UTC()
		if err == nil {
			if err := s.Retry.MarkCompleted(ctx, item.UserID, attemptAt); err != nil {
				slog.Error("billing retry: completion not recorded",
					slog.String("user_id", item.UserID), slog.Any("error", err))
				continue
			}
			res.Completed++
			slog.Info("billing account repaired", slog.String("user_id", item.UserID),
				slog.Int("retry_count", item.RetryCount))
			continue
		}

		newCount := item.RetryCount + 1
		permanent := newCount >= item.MaxRetries
		nextRetry := attemptAt.Add(domain.NextRetryDelay(item.RetryCount))
		if recErr := s.Retry.RecordFailure(ctx, item.UserID, attemptAt, err.Error(), nextRetry, permanent); recErr != nil {
			slog.Error("billing retry: failure not recorded",
				slog.String("user_id", item.UserID), slog.Any("error", recErr))
			continue
		}
		if permanent {
			res.Permanent++
			events.Emit(ctx, s.Events, domain.Event{
				Kind:     domain.EventBillingAccountPermanent,
				Severity: domain.SeverityCritical,
				UserID:   item.UserID,
				Detail:   fmt.Sprintf("account create failed %d times: %v", newCount, err),
			})
			continue
		}
		res.Retried++
	}
	return res, nil
}
