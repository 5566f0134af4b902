package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "registra/pkg/domain"
	"registra/pkg/platform/audit"
	txcontext "registra/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// relay. When the caller's context carries a SQL transaction (see
// pkg/platform/tx), the outbox insert joins it, so an audit row commits if
// and only if the data mutation commits.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for proper deserialization by consumers.
type outboxPayload struct {
	ID        string `json:"ID"`
	Timestamp string `json:"Timestamp"`
	UserID    string `json:"UserID,omitempty"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Outcome   string `json:"Outcome,omitempty"`
	Reason    string `json:"Reason,omitempty"`
	Email     string `json:"Email,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
	ActorID   string `json:"ActorID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Outcome:   event.Outcome,
		Reason:    event.Reason,
		Email:     event.Email,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
	}
	if !event.UserID.IsNil() {
		payload.UserID = event.UserID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.UserID.IsNil() {
		aggregateType = "user"
		aggregateID = event.UserID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByUser returns events for a specific user from the materialized
// audit_events table.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT timestamp, user_id, subject, action, outcome, reason,
			   email, request_id, actor_id
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// AppendWithID inserts an audit event into the audit_events table with a
// specific ID. Used by the outbox relay to materialize events for querying.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, timestamp, user_id, subject, action, outcome,
			reason, email, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	var userID *uuid.UUID
	if !event.UserID.IsNil() {
		uid := uuid.UUID(event.UserID)
		userID = &uid
	}

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		event.Timestamp,
		userID,
		event.Subject,
		event.Action,
		event.Outcome,
		event.Reason,
		event.Email,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event          audit.Event
			userIDNullable *uuid.UUID
		)

		err := rows.Scan(
			&event.Timestamp,
			&userIDNullable,
			&event.Subject,
			&event.Action,
			&event.Outcome,
			&event.Reason,
			&event.Email,
			&event.RequestID,
			&event.ActorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		if userIDNullable != nil {
			event.UserID = id.UserID(*userIDNullable)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
