// Package service exposes record lifecycle operations over the duplicate-safe
// user store: create, read, list, patch, delete. Uniqueness is enforced by
// the store; this layer translates storage conflicts into coded errors,
// keeps the password history in step with the record lifecycle, and emits
// audit events.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"registra/internal/credential/hasher"
	"registra/internal/credential/policy"
	"registra/internal/identity/models"
	"registra/internal/identity/store/user"
	"registra/internal/platform/metrics"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/audit"
	"registra/pkg/requestcontext"
)

// UserStore is the full record store contract.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, userID id.UserID, patch models.Patch) (*models.User, error)
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, userID id.UserID) error
}

// PasswordHistory is the slice of the credential bookkeeping this service
// touches: seeding an initial credential and dropping the window on delete.
type PasswordHistory interface {
	Append(ctx context.Context, userID id.UserID, passwordHash, actor string, setAt time.Time) error
	Clear(ctx context.Context, userID id.UserID) error
}

// Auditor records lifecycle events, best-effort.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// CreateInput carries the caller-supplied fields for a new record. Login is
// derived from the name when empty. Password is optional; when present it
// must pass complexity and becomes the record's initial credential.
type CreateInput struct {
	Email      string
	NationalID string
	FirstName  string
	LastName   string
	Role       string
	Login      string
	Password   string
}

// Service implements the record operations.
type Service struct {
	users   UserStore
	history PasswordHistory
	hasher  hasher.Hasher
	auditor Auditor
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditor(auditor Auditor) Option {
	return func(s *Service) { s.auditor = auditor }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(users UserStore, history PasswordHistory, h hasher.Hasher, opts ...Option) *Service {
	s := &Service{
		users:   users,
		history: history,
		hasher:  h,
		logger:  slog.Default(),
		tracer:  otel.Tracer("identity/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input, persists the record, and seeds the password
// history when an initial credential was supplied. The store performs the
// uniqueness check and the write atomically.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Create")
	defer span.End()

	record, err := models.NewUser(input.Email, input.NationalID, input.FirstName, input.LastName, input.Role, input.Login)
	if err != nil {
		return nil, err
	}

	if input.Password != "" {
		if result := policy.CheckComplexity(input.Password); !result.Valid {
			return nil, dErrors.New(dErrors.CodeValidation, "initial password does not meet complexity requirements")
		}
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash initial password")
		}
		record.PasswordHash = hash
	}

	if err := s.users.Create(ctx, record); err != nil {
		return nil, s.translateWriteError(err)
	}
	span.SetAttributes(attribute.String("user.id", record.ID.String()))

	if record.PasswordHash != "" {
		if err := s.history.Append(ctx, record.ID, record.PasswordHash, actorOrSystem(ctx), requestcontext.Now(ctx)); err != nil {
			s.logger.WarnContext(ctx, "record created but history seed failed",
				slog.String("user_id", record.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	if s.metrics != nil {
		s.metrics.UsersCreated.Inc()
	}
	s.audit(ctx, record, audit.EventUserCreated, "success")
	return record, nil
}

// Get returns the record or a not-found error.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	record, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load user")
	}
	return record, nil
}

// List returns all records in creation order.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	records, err := s.users.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list users")
	}
	return records, nil
}

// Update merges the patch into the record. Uniqueness re-checks exclude the
// record itself, so patching a record with its own email is a no-op rather
// than a conflict.
func (s *Service) Update(ctx context.Context, userID id.UserID, patch models.Patch) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Update",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.PasswordHash != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credentials change only through the reset workflow")
	}

	updated, err := s.users.Update(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return nil, s.translateWriteError(err)
	}

	if s.metrics != nil {
		s.metrics.UsersUpdated.Inc()
	}
	s.audit(ctx, updated, audit.EventUserUpdated, "success")
	return updated, nil
}

// Delete removes the record and eagerly drops its password history, freeing
// both unique keys for reuse.
func (s *Service) Delete(ctx context.Context, userID id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "identity.Delete",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	record, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "load user")
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "delete user")
	}

	if err := s.history.Clear(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "record deleted but history clear failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}

	if s.metrics != nil {
		s.metrics.UsersDeleted.Inc()
	}
	s.audit(ctx, record, audit.EventUserDeleted, "success")
	return nil
}

// SeedAdmin idempotently creates the bootstrap admin record. A uniqueness
// conflict means a previous boot already seeded it.
func (s *Service) SeedAdmin(ctx context.Context, email, nationalID, password string) error {
	_, err := s.Create(ctx, CreateInput{
		Email:      email,
		NationalID: nationalID,
		FirstName:  "System",
		LastName:   "Admin",
		Role:       "admin",
		Login:      "admin",
		Password:   password,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil
		}
		return err
	}
	return nil
}

// translateWriteError maps duplicate-key failures onto coded conflicts and
// counts them per field; everything else is an availability problem.
func (s *Service) translateWriteError(err error) error {
	var dup *user.DuplicateFieldError
	if errors.As(err, &dup) {
		if s.metrics != nil {
			s.metrics.DuplicateFields.WithLabelValues(dup.Field).Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeConflict, dup.Field+" already in use")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "persist user")
}

func (s *Service) audit(ctx context.Context, record *models.User, action audit.AuditEvent, outcome string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		UserID:    record.ID,
		Subject:   record.Login,
		Action:    string(action),
		Outcome:   outcome,
		Email:     record.Email,
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   actorOrSystem(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emission failed",
			slog.String("log_type", "audit"),
			slog.String("action", string(action)),
			slog.String("user_id", record.ID.String()),
			slog.String("error", err.Error()))
	}
}

func actorOrSystem(ctx context.Context) string {
	if actor := requestcontext.Actor(ctx); actor != "" {
		return actor
	}
	return "system"
}
