package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/praxos/assistant-core/internal/adapter/events"
	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/domain"
)

// BillingService is the hold/capture/release engine over the remote ledger
// and the local reservation index. The ledger owns the money; the local rows
// exist so the reconciliation sweep can find holds the serving path lost
// track of. Every response the user receives must correspond to exactly one
// capture, with the single tolerated deviation being a capture that failed
// after the LLM already answered.
type BillingService struct {
	Ledger domain.BillingLedger
	Repo   domain.ReservationRepository
	Events domain.EventPublisher

	// TTL is the reservation lifetime; Grace is how much longer the sweep
	// keeps retrying release before abandoning the row to the ledger's own
	// expiry.
	TTL   time.Duration
	Grace time.Duration
}

// NewBillingService wires the engine with the default 30m TTL and grace.
func NewBillingService(ledger domain.BillingLedger, repo domain.ReservationRepository, pub domain.EventPublisher) *BillingService {
	return &BillingService{
		Ledger: ledger,
		Repo:   repo,
		Events: pub,
		TTL:    domain.DefaultReservationTTL,
		Grace:  domain.DefaultReservationTTL,
	}
}

// Reserve places a hold for the estimated cost under a fresh reservation id.
// (nil, nil) is the normal insufficient-funds outcome; errors are
// transport-class and map to 503 at the surface.
func (s *BillingService) Reserve(ctx domain.Context, userID string, estimated float64) (*domain.Reservation, error) {
	if userID == "" {
		return nil, fmt.Errorf("op=usecase.Reserve: user id required: %w", domain.ErrInvalidArgument)
	}
	if estimated <= 0 {
		return nil, fmt.Errorf("op=usecase.Reserve: estimate must be positive: %w", domain.ErrInvalidArgument)
	}

	reservationID := uuid.NewString()
	outcome, err := s.Ledger.Reserve(ctx, userID, reservationID, estimated)
	if err != nil {
		observability.RecordReservationOutcome("error")
		return nil, fmt.Errorf("op=usecase.Reserve: %w", err)
	}
	if !outcome.Reserved {
		observability.RecordReservationOutcome("insufficient_funds")
		slog.Info("reservation declined",
			slog.String("user_id", userID),
			slog.Float64("estimated", estimated),
			slog.Float64("available", outcome.AvailableBalance))
		return nil, nil
	}

	now := time.Now().UTC()
	expires := outcome.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(s.TTL)
	}
	r := domain.Reservation{
		ReservationID: reservationID,
		UserID:        userID,
		EstimatedCost: estimated,
		State:         domain.ReservationActive,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     expires,
	}
	if err := s.Repo.Create(ctx, r); err != nil {
		// The ledger holds funds we cannot track; give them back rather than
		// waiting on ledger-side expiry.
		if relErr := s.Ledger.Release(context.WithoutCancel(ctx), reservationID); relErr != nil {
			slog.Error("orphaned hold: local create and release both failed",
				slog.String("reservation_id", reservationID),
				slog.Any("error", relErr))
		}
		observability.RecordReservationOutcome("error")
		return nil, fmt.Errorf("op=usecase.Reserve: %w", err)
	}
	observability.RecordReservationOutcome("reserved")
	return &r, nil
}

// Capture converts an ACTIVE hold into a charge. Replays are idempotent: a
// hold already CAPTURED returns nil, and the ledger's 409 is folded into
// success with the amount the ledger recorded. A transport failure emits the
// capture-failed event because the caller has usually served the user already;
// the caller decides the surface policy.
func (s *BillingService) Capture(ctx domain.Context, reservationID string, actual float64) error {
	if actual < 0 {
		return fmt.Errorf("op=usecase.Capture: negative cost: %w", domain.ErrInvalidArgument)
	}
	r, err := s.Repo.Get(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("op=usecase.Capture: %w", err)
	}
	if r.State == domain.ReservationCaptured {
		return nil
	}
	if r.State.IsTerminal() {
		return fmt.Errorf("op=usecase.Capture: reservation %s is %s: %w", reservationID, r.State, domain.ErrConflict)
	}
	if actual > r.EstimatedCost {
		slog.Error("capture exceeds hold",
			slog.String("reservation_id", reservationID),
			slog.Float64("actual", actual),
			slog.Float64("estimated", r.EstimatedCost))
		return fmt.Errorf("op=usecase.Capture: actual %.6f exceeds estimate %.6f: %w",
			actual, r.EstimatedCost, domain.ErrInvalidArgument)
	}

	outcome, err := s.Ledger.Capture(ctx, reservationID, actual)
	if err != nil {
		events.Emit(ctx, s.Events, domain.Event{
			Kind:          domain.EventCaptureFailed,
			Severity:      domain.SeverityCritical,
			UserID:        r.UserID,
			ReservationID: reservationID,
			Detail:        fmt.Sprintf("actual_cost=%.6f: %v", actual, err),
		})
		observability.RecordReservationOutcome("capture_failed")
		return fmt.Errorf("op=usecase.Capture: %w", err)
	}

	charged := actual
	if outcome.AlreadyCaptured {
		charged = outcome.AmountCharged
	}
	if err := s.Repo.MarkCaptured(ctx, reservationID, charged); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race with a concurrent capture of the same hold.
			return nil
		}
		return fmt.Errorf("op=usecase.Capture: %w", err)
	}
	observability.RecordReservationOutcome("captured")
	return nil
}

// Release returns an ACTIVE hold. Replays are idempotent; on ledger failure
// the row stays ACTIVE for the sweep and the ledger's own expiry.
func (s *BillingService) Release(ctx domain.Context, reservationID string) error {
	r, err := s.Repo.Get(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("op=usecase.Release: %w", err)
	}
	if r.State == domain.ReservationReleased {
		return nil
	}
	if r.State.IsTerminal() {
		return fmt.Errorf("op=usecase.Release: reservation %s is %s: %w", reservationID, r.State, domain.ErrConflict)
	}

	if err := s.Ledger.Release(ctx, reservationID); err != nil {
		return fmt.Errorf("op=usecase.Release: %w", err)
	}
	if err := s.Repo.MarkReleased(ctx, reservationID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return fmt.Errorf("op=usecase.Release: %w", err)
	}
	observability.RecordReservationOutcome("released")
	return nil
}

// Balance passes through the ledger's balance read; the chat response treats
// it as best-effort.
func (s *BillingService) Balance(ctx domain.Context, userID string) (float64, error) {
	b, err := s.Ledger.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("op=usecase.Balance: %w", err)
	}
	return b, nil
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Scanned   int
	Released  int
	Abandoned int
}

// ReconcileExpired sweeps ACTIVE holds older than the TTL: release what the
// ledger still knows, and past the grace period give up and mark the row
// EXPIRED with an alert, trusting ledger-side expiry for the funds.
func (s *BillingService) ReconcileExpired(ctx domain.Context, limit int) (ReconcileResult, error) {
	now := time.Now().UTC()
	stale, err := s.Repo.ListStaleActive(ctx, now.Add(-s.TTL), limit)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("op=usecase.ReconcileExpired: %w", err)
	}

	res := ReconcileResult{Scanned: len(stale)}
	for _, r := range stale {
		if err := s.Ledger.Release(ctx, r.ReservationID); err == nil {
			if err := s.Repo.MarkExpired(ctx, r.ReservationID); err != nil && !errors.Is(err, domain.ErrConflict) {
				slog.Error("sweep: release succeeded but expire failed",
					slog.String("reservation_id", r.ReservationID), slog.Any("error", err))
				continue
			}
			observability.RecordReservationOutcome("expired")
			res.Released++
			continue
		}

		if now.Sub(r.CreatedAt) < s.TTL+s.Grace {
			// Still inside the grace window; retry on the next pass.
			continue
		}
		if err := s.Repo.MarkExpired(ctx, r.ReservationID); err != nil && !errors.Is(err, domain.ErrConflict) {
			slog.Error("sweep: abandoning hold failed",
				slog.String("reservation_id", r.ReservationID), slog.Any("error", err))
			continue
		}
		events.Emit(ctx, s.Events, domain.Event{
			Kind:          domain.EventReservationExpired,
			Severity:      domain.SeverityWarning,
			UserID:        r.UserID,
			ReservationID: r.ReservationID,
			Detail:        fmt.Sprintf("held since %s, release kept failing", r.CreatedAt.Format(time.RFC3339)),
		})
		observability.RecordReservationOutcome("expired_unreleased")
		res.Abandoned++
	}
	return res, nil
}
