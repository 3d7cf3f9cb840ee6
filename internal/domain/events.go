package domain

import "time"

// EventSeverity classifies operational events.
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event kinds emitted at the reconciliation boundary.
const (
	// EventCaptureFailed: the user received a response but the ledger capture
	// failed; the reservation stays ACTIVE for the sweep.
	EventCaptureFailed = "billing.capture.failed"
	// EventReservationExpired: the sweep gave up releasing a stale hold.
	EventReservationExpired = "billing.reservation.expired_unreleased"
	// EventCompensationFailed: a saga rollback left a forward effect in place.
	EventCompensationFailed = "saga.compensation.failed"
	// EventBillingAccountPermanent: account-create retries exhausted.
	EventBillingAccountPermanent = "billing.account.failed_permanent"
	// EventTurnPersistFailed: capture succeeded but the turn insert did not;
	// the user was charged without a stored response.
	EventTurnPersistFailed = "chat.turn.persist_failed"
)

// Event is one structured operational event. Consumers are external; the core
// only publishes.
type Event struct {
	Kind          string        `json:"kind"`
	Severity      EventSeverity `json:"severity"`
	UserID        string        `json:"user_id,omitempty"`
	ReservationID string        `json:"reservation_id,omitempty"`
	MessageID     string        `json:"message_id,omitempty"`
	JobID         string        `json:"job_id,omitempty"`
	Detail        string        `json:"detail,omitempty"`
	At            time.Time     `json:"at"`
}

// EventPublisher emits events to the operational stream. Publishing must never
// fail the serving path; implementations degrade to logging.
type EventPublisher interface {
	Publish(ctx Context, ev Event) error
}
