// Package billing is the typed client for the billing ledger collaborator.
// The ledger owns the funds; every operation here is keyed by an idempotency
// id (the reservation id, or the user id for account creation) so at-least-once
// retries never double-charge.
package billing

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Client talks to the billing ledger through the resilient facade.
type Client struct {
	http *resilience.Client
}

// New constructs the ledger client over one resilient dependency client.
func New(rc *resilience.Client) *Client { return &Client{http: rc} }

type reserveRequest struct {
	UserID        string  `json:"user_id"`
	ReservationID string  `json:"reservation_id"`
	EstimatedCost float64 `json:"estimated_cost"`
}

type reserveResponse struct {
	ReservationID    string    `json:"reservation_id"`
	AmountReserved   float64   `json:"amount_reserved"`
	ExpiresAt        time.Time `json:"expires_at"`
	AvailableBalance float64   `json:"available_balance"`
}

// Reserve places a hold for estimated funds under a caller-generated
// reservation id. Insufficient funds (402) is a normal outcome, reported as
// Reserved=false with a nil error; only transport-class failures error.
func (c *Client) Reserve(ctx domain.Context, userID, reservationID string, estimated float64) (domain.ReserveOutcome, error) {
	resp, err := c.http.Post(ctx, "/reserve", reserveRequest{
		UserID:        userID,
		ReservationID: reservationID,
		EstimatedCost: estimated,
	}, nil)
	if err != nil {
		return domain.ReserveOutcome{}, fmt.Errorf("op=billing.Reserve: %w", err)
	}
	if resp.StatusCode == http.StatusPaymentRequired {
		var out reserveResponse
		if err := resp.JSON(&out); err != nil {
			return domain.ReserveOutcome{}, fmt.Errorf("op=billing.Reserve: %w", err)
		}
		return domain.ReserveOutcome{Reserved: false, AvailableBalance: out.AvailableBalance}, nil
	}
	if !resp.Success() {
		return domain.ReserveOutcome{}, fmt.Errorf("op=billing.Reserve: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
	var out reserveResponse
	if err := resp.JSON(&out); err != nil {
		return domain.ReserveOutcome{}, fmt.Errorf("op=billing.Reserve: %w", err)
	}
	return domain.ReserveOutcome{
		Reserved:       true,
		AmountReserved: out.AmountReserved,
		ExpiresAt:      out.ExpiresAt,
	}, nil
}

type captureRequest struct {
	ReservationID string  `json:"reservation_id"`
	ActualCost    float64 `json:"actual_cost"`
}

// Capture converts a hold into a charge for the actual amount. A 409 means a
// previous attempt already landed; the ledger's recorded amount is returned
// so the caller can treat the retry as a success.
func (c *Client) Capture(ctx domain.Context, reservationID string, actual float64) (domain.CaptureOutcome, error) {
	resp, err := c.http.Post(ctx, "/capture", captureRequest{ReservationID: reservationID, ActualCost: actual}, nil)
	if err != nil {
		return domain.CaptureOutcome{}, fmt.Errorf("op=billing.Capture: %w", err)
	}
	if resp.StatusCode == http.StatusConflict {
		var out struct {
			AmountCharged float64 `json:"amount_charged"`
		}
		if err := resp.JSON(&out); err != nil {
			return domain.CaptureOutcome{}, fmt.Errorf("op=billing.Capture: %w", err)
		}
		return domain.CaptureOutcome{AlreadyCaptured: true, AmountCharged: out.AmountCharged}, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.CaptureOutcome{}, fmt.Errorf("op=billing.Capture: %w", domain.ErrNotFound)
	}
	if !resp.Success() {
		return domain.CaptureOutcome{}, fmt.Errorf("op=billing.Capture: status %d: %w", resp.StatusCode, domain.ErrInvalidArgument)
	}
	return domain.CaptureOutcome{AmountCharged: actual}, nil
}

// Release returns held funds. 200 and 404 ("already released") are both
// success; anything else errors and the ledger's own expiry reclaims the hold.
func (c *Client) Release(ctx domain.Context, reservationID string) error {
	resp, err := c.http.Post(ctx, "/release", map[string]string{"reservation_id": reservationID}, nil)
	if err != nil {
		return fmt.Errorf("op=billing.Release: %w", err)
	}
	if resp.Success() || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("op=billing.Release: status %d: %w", resp.StatusCode, domain.ErrInternal)
}

// CreateAccount provisions the ledger account for a registered user. A 409
// means a previous attempt landed; that is a success for the retry queue.
func (c *Client) CreateAccount(ctx domain.Context, userID, tier string) error {
	resp, err := c.http.Post(ctx, "/account", map[string]string{"user_id": userID, "tier": tier}, nil)
	if err != nil {
		return fmt.Errorf("op=billing.CreateAccount: %w", err)
	}
	if resp.Success() || resp.StatusCode == http.StatusConflict {
		return nil
	}
	return fmt.Errorf("op=billing.CreateAccount: status %d: %w", resp.StatusCode, domain.ErrInternal)
}

// Balance reads the user's current balance. Best-effort callers swallow the
// error; the chat response merely omits the field.
func (c *Client) Balance(ctx domain.Context, userID string) (float64, error) {
	resp, err := c.http.Get(ctx, "/balance/"+url.PathEscape(userID), nil)
	if err != nil {
		return 0, fmt.Errorf("op=billing.Balance: %w", err)
	}
	if !resp.Success() {
		return 0, fmt.Errorf("op=billing.Balance: status %d: %w", resp.StatusCode, domain.ErrNotFound)
	}
	var out struct {
		Balance float64 `json:"balance"`
	}
	if err := resp.JSON(&out); err != nil {
		return 0, fmt.Errorf("op=billing.Balance: %w", err)
	}
	return out.Balance, nil
}
