// Package domain defines billing entities for the cost pre-authorization engine.
package domain

import (
	"time"
)

// ReservationState represents the lifecycle of a cost hold.
type ReservationState string

const (
	// ReservationActive permits capture or release.
	ReservationActive ReservationState = "ACTIVE"
	// ReservationCaptured is terminal: the hold became a real charge.
	ReservationCaptured ReservationState = "CAPTURED"
	// ReservationReleased is terminal: the hold was returned.
	ReservationReleased ReservationState = "RELEASED"
	// ReservationExpired is terminal: the reconciliation sweep reclaimed the hold.
	ReservationExpired ReservationState = "EXPIRED"
)

// IsTerminal reports whether the state is a sink.
func (s ReservationState) IsTerminal() bool {
	return s == ReservationCaptured || s == ReservationReleased || s == ReservationExpired
}

// Reservation is the local index row for one pre-authorized hold. The ledger
// owns the funds; this row exists for reconciliation.
// Invariants: terminal states are sinks; only ACTIVE permits capture or
// release; ActualCost is populated only on capture and never exceeds
// EstimatedCost.
type Reservation struct {
	ReservationID string
	UserID        string
	EstimatedCost float64
	ActualCost    *float64
	State         ReservationState
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     time.Time
}

// DefaultReservationTTL is how long a hold stays reclaimable before the
// reconciliation sweep expires it.
const DefaultReservationTTL = 30 * time.Minute

// BillingAccountStatus represents the retry state of a pending billing account.
type BillingAccountStatus string

const (
	// BillingAccountPending awaits its first or next attempt.
	BillingAccountPending BillingAccountStatus = "pending"
	// BillingAccountRetrying is mid-attempt.
	BillingAccountRetrying BillingAccountStatus = "retrying"
	// BillingAccountCompleted leaves the working set.
	BillingAccountCompleted BillingAccountStatus = "completed"
	// BillingAccountFailedPermanent is terminal and needs operator action.
	BillingAccountFailedPermanent BillingAccountStatus = "failed_permanent"
)

// PendingBillingAccount is one registered user whose billing account could not
// be created synchronously.
type PendingBillingAccount struct {
	UserID        string
	Tier          string
	Status        BillingAccountStatus
	RetryCount    int
	MaxRetries    int
	NextRetryAt   time.Time
	LastAttemptAt *time.Time
	LastError     *string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// DefaultBillingMaxRetries bounds the account-create retry schedule.
const DefaultBillingMaxRetries = 5

// billingRetryBase is the first retry delay; subsequent delays double.
const billingRetryBase = 30 * time.Second

// NextRetryDelay returns the delay after retryCount failed attempts
// (30s, 1m, 2m, 4m, 8m, ...).
func NextRetryDelay(retryCount int) time.Duration {
	d := billingRetryBase
	for i := 0; i < retryCount; i++ {
		d *= 2
	}
	return d
}

// Exhausted reports whether the item has used up its retry budget.
func (p *PendingBillingAccount) Exhausted() bool {
	return p.RetryCount >= p.MaxRetries
}

// ReserveOutcome is the ledger's answer to a hold request. Reserved=false with
// a nil error is the normal insufficient-funds outcome.
type ReserveOutcome struct {
	Reserved         bool
	AmountReserved   float64
	ExpiresAt        time.Time
	AvailableBalance float64
}

// CaptureOutcome is the ledger's answer to a capture. AlreadyCaptured=true
// maps the ledger's 409 to an idempotent success.
type CaptureOutcome struct {
	AlreadyCaptured bool
	AmountCharged   float64
}

// BillingLedger is the outbound billing collaborator.
type BillingLedger interface {
	Reserve(ctx Context, userID, reservationID string, estimated float64) (ReserveOutcome, error)
	Capture(ctx Context, reservationID string, actual float64) (CaptureOutcome, error)
	// Release returns nil on both 200 and 404 (already released).
	Release(ctx Context, reservationID string) error
	CreateAccount(ctx Context, userID, tier string) error
	Balance(ctx Context, userID string) (float64, error)
}

// ReservationRepository stores the local reservation index. State-changing
// methods succeed only from ACTIVE; callers layer idempotency on top.
type ReservationRepository interface {
	Create(ctx Context, r Reservation) error
	Get(ctx Context, reservationID string) (Reservation, error)
	MarkCaptured(ctx Context, reservationID string, actual float64) error
	MarkReleased(ctx Context, reservationID string) error
	MarkExpired(ctx Context, reservationID string) error
	// ListStaleActive returns ACTIVE rows created before cutoff.
	ListStaleActive(ctx Context, cutoff time.Time, limit int) ([]Reservation, error)
}

// BillingRetryRepository stores the pending-billing-account queue.
type BillingRetryRepository interface {
	Upsert(ctx Context, item PendingBillingAccount) error
	// ListDue returns items with status in {pending, retrying} and
	// next_retry_at <= now.
	ListDue(ctx Context, now time.Time, limit int) ([]PendingBillingAccount, error)
	MarkCompleted(ctx Context, userID string, at time.Time) error
	RecordFailure(ctx Context, userID string, attemptAt time.Time, errMsg string, nextRetryAt time.Time, permanent bool) error
}
