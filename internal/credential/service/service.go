// Package service implements the credential reset workflow. The step order
// is fixed: lookup, reuse check, complexity check, hash and write (audited in
// the same transaction), then history append. Nothing is written before every
// pre-write check passes, and a failure after the credential write surfaces
// as a partial outcome rather than an error.
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

//go:generate mockgen -source=service.go -destination=mocks/service_mock.go -package=mocks

// Rejection reasons used for metrics labels and audit entries.
const (
	reasonNotFound    = "user_not_found"
	reasonRecentReuse = "recent_reuse"
	reasonComplexity  = "complexity"
)

// UserStore is the slice of the record store the workflow needs.
type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	Update(ctx context.Context, userID id.UserID, patch models.Patch) (*models.User, error)
}

// PasswordHistory is the reuse window over previously set hashes.
type PasswordHistory interface {
	WasRecentlyUsed(ctx context.Context, userID id.UserID, candidate string) (bool, error)
	Append(ctx context.Context, userID id.UserID, passwordHash, actor string, setAt time.Time) error
	Clear(ctx context.Context, userID id.UserID) error
}

// Auditor records reset attempts. Emission is best-effort after the
// credential write; a sink failure never rolls the reset back.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner runs fn inside one storage transaction when the backend supports
// it (see pkg/platform/tx). The default runs fn directly, which keeps the
// in-memory wiring transaction-free.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func runDirect(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Outcome describes a reset that reached the credential write. Partial marks
// resets where the new credential committed but history bookkeeping failed;
// the new password is live and PartialReason says what is left to repair.
type Outcome struct {
	UserID        id.UserID
	Actor         string
	CompletedAt   time.Time
	Partial       bool
	PartialReason string
}

// Service orchestrates credential resets against the record store, the
// password history, and the audit sink.
type Service struct {
	users   UserStore
	history PasswordHistory
	hasher  hasher.Hasher
	auditor Auditor
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	runTx   TxRunner
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

// WithTxRunner makes the credential write and the audit emission commit
// atomically on backends that support joining a transaction via context.
func WithTxRunner(run TxRunner) Option {
	return func(s *Service) { s.runTx = run }
}

func New(users UserStore, history PasswordHistory, h hasher.Hasher, opts ...Option) *Service {
	s := &Service{
		users:   users,
		history: history,
		hasher:  h,
		logger:  slog.Default(),
		tracer:  otel.Tracer("credential/service"),
		runTx:   runDirect,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset replaces the user's credential with candidate. Pre-write failures
// return an error and leave the record untouched. Once the credential write
// commits the reset cannot fail anymore: bookkeeping problems downgrade the
// result to a partial outcome.
func (s *Service) Reset(ctx context.Context, userID id.UserID, candidate string) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Reset",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.countRejection(reasonNotFound)
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load user")
	}

	used, err := s.history.WasRecentlyUsed(ctx, userID, candidate)
	if err != nil {
		// Never fail open: an unreadable history blocks the reset.
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "password history unavailable")
	}
	if used {
		s.countRejection(reasonRecentReuse)
		s.audit(ctx, target, audit.EventPasswordReset, "rejected", reasonRecentReuse)
		return nil, ErrPasswordRecentlyUsed
	}

	if result := policy.CheckComplexity(candidate); !result.Valid {
		s.countRejection(reasonComplexity)
		s.audit(ctx, target, audit.EventPasswordReset, "rejected", reasonComplexity)
		return nil, &ComplexityError{Failed: result.FailedRules()}
	}

	newHash, err := s.hasher.Hash(candidate)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	now := requestcontext.Now(ctx)
	actor := actorOrSystem(ctx)

	runErr := s.runTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.Update(ctx, userID, models.Patch{PasswordHash: &newHash}); err != nil {
			return err
		}
		s.audit(ctx, target, audit.EventPasswordReset, "success", "")
		return nil
	})
	if runErr != nil {
		return nil, dErrors.Wrap(runErr, dErrors.CodeUnavailable, "persist credential")
	}

	// Commit point. The credential is live; bookkeeping problems from here on
	// downgrade the result instead of failing it. The history append stays
	// outside the transaction: it cannot join a SQL tx, and an entry written
	// before a failed commit would block a retry of the same candidate.
	outcome := &Outcome{UserID: userID, Actor: actor, CompletedAt: now}

	if err := s.history.Append(ctx, userID, newHash, actor, now); err != nil {
		outcome.Partial = true
		outcome.PartialReason = "history append failed"
		s.logger.WarnContext(ctx, "credential committed but history append failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.ResetsPartial.Inc()
		}
		s.audit(ctx, target, audit.EventPasswordPartial, "partial", outcome.PartialReason)
		return outcome, nil
	}

	if s.metrics != nil {
		s.metrics.ResetsSucceeded.Inc()
	}
	return outcome, nil
}

// RepairHistory re-appends the user's current credential hash to the history
// window. Operators run it after a partial reset so the live password counts
// as recently used again.
func (s *Service) RepairHistory(ctx context.Context, userID id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "credential.RepairHistory",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "load user")
	}
	if target.PasswordHash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "user has no credential to record")
	}

	actor := actorOrSystem(ctx)
	now := requestcontext.Now(ctx)
	if err := s.history.Append(ctx, userID, target.PasswordHash, actor, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "append history")
	}

	s.audit(ctx, target, audit.EventHistoryRepaired, "success", "")
	return nil
}

// ClearHistory drops the user's reuse window. The record service calls it
// when a user is deleted.
func (s *Service) ClearHistory(ctx context.Context, userID id.UserID) error {
	return s.history.Clear(ctx, userID)
}

func (s *Service) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.ResetsRejected.WithLabelValues(reason).Inc()
	}
}

func (s *Service) audit(ctx context.Context, target *models.User, action audit.AuditEvent, outcome, reason string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		UserID:    target.ID,
		Subject:   target.Login,
		Action:    string(action),
		Outcome:   outcome,
		Reason:    reason,
		Email:     target.Email,
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   actorOrSystem(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emission failed",
			slog.String("log_type", "audit"),
			slog.String("action", string(action)),
			slog.String("user_id", target.ID.String()),
			slog.String("error", err.Error()))
	}
}

func actorOrSystem(ctx context.Context) string {
	if actor := requestcontext.Actor(ctx); actor != "" {
		return actor
	}
	return "system"
}
