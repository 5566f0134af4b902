package audit

import (
	"context"
	"time"

	id "registra/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Outcome   string
	Reason    string
	Email     string
	RequestID string
	// ActorID tracks who performed the action when different from UserID.
	// For credential resets this is "admin" or the acting user's id.
	ActorID string
}

type AuditEvent string

const (
	EventUserCreated     AuditEvent = "user_created"
	EventUserUpdated     AuditEvent = "user_updated"
	EventUserDeleted     AuditEvent = "user_deleted"
	EventPasswordReset   AuditEvent = "password_reset"
	EventPasswordPartial AuditEvent = "password_reset_partial"
	EventHistoryRepaired AuditEvent = "password_history_repaired"
)

// Store is the append-only persistence contract for audit events. The core
// writes to it and never reads it for decision-making; ListByUser exists for
// the operator surface only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
