// Package events funnels operational events to the configured stream.
// Publishing never fails the serving path: Emit degrades to structured
// logging when the stream is down or absent.
package events

import (
	"log/slog"
	"time"

	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/domain"
)

// LogPublisher writes events to the structured log. It is the publisher of
// record when no brokers are configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ domain.Context, ev domain.Event) error {
	attrs := []any{
		slog.String("kind", ev.Kind),
		slog.String("severity", string(ev.Severity)),
	}
	if ev.UserID != "" {
		attrs = append(attrs, slog.String("user_id", ev.UserID))
	}
	if ev.ReservationID != "" {
		attrs = append(attrs, slog.String("reservation_id", ev.ReservationID))
	}
	if ev.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", ev.MessageID))
	}
	if ev.JobID != "" {
		attrs = append(attrs, slog.String("job_id", ev.JobID))
	}
	if ev.Detail != "" {
		attrs = append(attrs, slog.String("detail", ev.Detail))
	}

	switch ev.Severity {
	case domain.SeverityCritical:
		slog.Error("operational event", attrs...)
	case domain.SeverityWarning:
		slog.Warn("operational event", attrs...)
	default:
		slog.Info("operational event", attrs...)
	}
	return nil
}

// Emit stamps and publishes ev, counting criticals and falling back to the
// log when pub is nil or fails. Callers never see an error.
func Emit(ctx domain.Context, pub domain.EventPublisher, ev domain.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if ev.Severity == "" {
		ev.Severity = domain.SeverityInfo
	}
	if ev.Severity == domain.SeverityCritical {
		observability.RecordCriticalEvent(ev.Kind)
	}
	if pub == nil {
		_ = LogPublisher{}.Publish(ctx, ev)
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		slog.Error("event publish failed, logging instead",
			slog.String("kind", ev.Kind), slog.Any("error", err))
		_ = LogPublisher{}.Publish(ctx, ev)
	}
}
