// Package consumer materializes relayed audit events into the queryable
// audit_events table. The outbox relay makes Kafka the source of truth; this
// consumer is the read-side projection. AppendWithID is idempotent, so the
// at-least-once delivery from the relay is safe to replay.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	id "registra/pkg/domain"
	"registra/pkg/platform/audit"
)

// EventWriter persists one materialized event under its stable ID.
type EventWriter interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Materializer consumes the audit topic and writes events through an
// EventWriter.
type Materializer struct {
	client *kgo.Client
	writer EventWriter
	logger *slog.Logger
}

func NewMaterializer(seeds []string, topic, group string, writer EventWriter, logger *slog.Logger) (*Materializer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Materializer{client: client, writer: writer, logger: logger}, nil
}

// Run polls until the context is cancelled. Undecodable records are logged
// and skipped rather than blocking the partition.
func (m *Materializer) Run(ctx context.Context) error {
	for {
		fetches := m.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			m.logger.ErrorContext(ctx, "audit fetch error",
				"topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			eventID, event, err := decode(record.Value)
			if err != nil {
				m.logger.ErrorContext(ctx, "skipping undecodable audit record", "error", err)
				return
			}
			if err := m.writer.AppendWithID(ctx, eventID, event); err != nil {
				m.logger.ErrorContext(ctx, "materialize audit event failed",
					"event_id", eventID.String(), "error", err)
			}
		})
	}
}

// Close releases the Kafka client.
func (m *Materializer) Close() {
	m.client.Close()
}

// wirePayload mirrors the outbox JSON written by the Postgres audit store.
type wirePayload struct {
	ID        string
	Timestamp string
	UserID    string
	Subject   string
	Action    string
	Outcome   string
	Reason    string
	Email     string
	RequestID string
	ActorID   string
}

func decode(raw []byte) (uuid.UUID, audit.Event, error) {
	var payload wirePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("decode audit payload: %w", err)
	}

	eventID, err := uuid.Parse(payload.ID)
	if err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("parse event id %q: %w", payload.ID, err)
	}
	timestamp, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
	if err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("parse timestamp %q: %w", payload.Timestamp, err)
	}

	event := audit.Event{
		Timestamp: timestamp,
		Subject:   payload.Subject,
		Action:    payload.Action,
		Outcome:   payload.Outcome,
		Reason:    payload.Reason,
		Email:     payload.Email,
		RequestID: payload.RequestID,
		ActorID:   payload.ActorID,
	}
	if payload.UserID != "" {
		userID, err := uuid.Parse(payload.UserID)
		if err != nil {
			return uuid.Nil, audit.Event{}, fmt.Errorf("parse user id %q: %w", payload.UserID, err)
		}
		event.UserID = id.UserID(userID)
	}
	return eventID, event, nil
}
