// Package redpanda streams operational events to a Redpanda/Kafka topic.
// Delivery is fire-and-forget: the serving path never waits on the broker.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/praxos/assistant-core/internal/domain"
)

// Publisher implements domain.EventPublisher over a kgo client.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher connects to the brokers and ensures the topic exists. Topic
// creation failure is non-fatal; brokers usually auto-create.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: no seed brokers")
	}

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))),
	)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ensureTopic(ctx, client, topic, 1, 1); err != nil {
		slog.Warn("event topic ensure failed, relying on auto-create",
			slog.String("topic", topic), slog.Any("error", err))
	}

	return &Publisher{client: client, topic: topic}, nil
}

// Publish produces the event asynchronously. Delivery errors are logged by
// the produce callback; the caller is never blocked on the broker.
func (p *Publisher) Publish(ctx domain.Context, ev domain.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("op=redpanda.Publish: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(recordKey(ev)),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(ev.Kind)},
			{Key: "severity", Value: []byte(ev.Severity)},
		},
	}
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			slog.Error("event delivery failed",
				slog.String("topic", r.Topic),
				slog.String("kind", ev.Kind),
				slog.Any("error", err))
		}
	})
	return nil
}

// recordKey orders events per subject so consumers replay a reservation's or
// job's history in emission order.
func recordKey(ev domain.Event) string {
	switch {
	case ev.ReservationID != "":
		return ev.ReservationID
	case ev.JobID != "":
		return ev.JobID
	case ev.MessageID != "":
		return ev.MessageID
	case ev.UserID != "":
		return ev.UserID
	default:
		return ev.Kind
	}
}

// Close flushes buffered records then releases the client.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		slog.Warn("event flush on close failed", slog.Any("error", err))
	}
	p.client.Close()
	return nil
}

// ensureTopic creates the topic when absent. Error code 36 is
// TOPIC_ALREADY_EXISTS and reads as success.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30_000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replication
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("op=redpanda.ensureTopic: %w", err)
	}
	created, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("op=redpanda.ensureTopic: unexpected response %T", resp)
	}
	for _, tr := range created.Topics {
		if tr.ErrorCode != 0 && tr.ErrorCode != 36 {
			msg := ""
			if tr.ErrorMessage != nil {
				msg = *tr.ErrorMessage
			}
			return fmt.Errorf("op=redpanda.ensureTopic: %s (code %d)", msg, tr.ErrorCode)
		}
	}
	return nil
}
