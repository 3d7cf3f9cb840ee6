package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/praxos/assistant-core/internal/domain"
)

// ReservationRepo is the local index of ledger holds. The ledger owns the
// funds; these rows exist so the reconciliation sweep can find forgotten
// holds.
type ReservationRepo struct{ Pool PgxPool }

// NewReservationRepo constructs a ReservationRepo with the given pool.
func NewReservationRepo(p PgxPool) *ReservationRepo { return &ReservationRepo{Pool: p} }

const reservationColumns = `reservation_id, user_id, estimated_cost, actual_cost, state, created_at, updated_at, expires_at`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(&res.ReservationID, &res.UserID, &res.EstimatedCost, &res.ActualCost, &res.State, &res.CreatedAt, &res.UpdatedAt, &res.ExpiresAt)
	return res, err
}

// Create stores a new ACTIVE reservation row.
func (r *ReservationRepo) Create(ctx domain.Context, res domain.Reservation) error {
	tracer := otel.Tracer("repo.reservations")
	ctx, span := tracer.Start(ctx, "reservations.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "cost_reservations"),
	)
	now := time.Now().UTC()
	created := res.CreatedAt
	if created.IsZero() {
		created = now
	}
	q := `INSERT INTO cost_reservations (reservation_id, user_id, estimated_cost, state, created_at, updated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.Pool.Exec(ctx, q, res.ReservationID, res.UserID, res.EstimatedCost, res.State, created, now, res.ExpiresAt)
	if err != nil {
		return fmt.Errorf("op=reservation.create: %w", err)
	}
	return nil
}

// Get loads a reservation by id.
func (r *ReservationRepo) Get(ctx domain.Context, reservationID string) (domain.Reservation, error) {
	tracer := otel.Tracer("repo.reservations")
	ctx, span := tracer.Start(ctx, "reservations.Get")
	defer span.End()
	q := `SELECT ` + reservationColumns + ` FROM cost_reservations WHERE reservation_id=$1`
	res, err := scanReservation(r.Pool.QueryRow(ctx, q, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, fmt.Errorf("op=reservation.get: %w", domain.ErrNotFound)
		}
		return domain.Reservation{}, fmt.Errorf("op=reservation.get: %w", err)
	}
	return res, nil
}

// transition moves an ACTIVE row to a terminal state. Terminal states are
// sinks: a row already out of ACTIVE is reported as ErrConflict and the
// caller decides whether that is idempotent success.
func (r *ReservationRepo) transition(ctx domain.Context, op, set string, args ...any) error {
	tracer := otel.Tracer("repo.reservations")
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	q := `UPDATE cost_reservations SET ` + set + `, updated_at=now() WHERE reservation_id=$1 AND state='ACTIVE'`
	tag, err := r.Pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("op=%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=%s: not active: %w", op, domain.ErrConflict)
	}
	return nil
}

// MarkCaptured finalizes a hold as a charge.
func (r *ReservationRepo) MarkCaptured(ctx domain.Context, reservationID string, actual float64) error {
	return r.transition(ctx, "reservation.mark_captured", `state='CAPTURED', actual_cost=$2`, reservationID, actual)
}

// MarkReleased returns a hold.
func (r *ReservationRepo) MarkReleased(ctx domain.Context, reservationID string) error {
	return r.transition(ctx, "reservation.mark_released", `state='RELEASED'`, reservationID)
}

// MarkExpired records that the sweep reclaimed (or gave up on) a hold.
func (r *ReservationRepo) MarkExpired(ctx domain.Context, reservationID string) error {
	return r.transition(ctx, "reservation.mark_expired", `state='EXPIRED'`, reservationID)
}

// ListStaleActive returns ACTIVE rows created before cutoff, oldest first.
func (r *ReservationRepo) ListStaleActive(ctx domain.Context, cutoff time.Time, limit int) ([]domain.Reservation, error) {
	tracer := otel.Tracer("repo.reservations")
	ctx, span := tracer.Start(ctx, "reservations.ListStaleActive")
	defer span.End()
	q := `SELECT ` + reservationColumns + ` FROM cost_reservations
		WHERE state='ACTIVE' AND created_at < $1
		ORDER BY created_at LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("op=reservation.list_stale: %w", err)
	}
	defer rows.Close()
	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("op=reservation.list_stale: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=reservation.list_stale: %w", err)
	}
	return out, nil
}
