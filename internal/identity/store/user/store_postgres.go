package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registra/internal/identity/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
	txcontext "registra/pkg/platform/tx"
	"registra/pkg/requestcontext"
)

// Unique index names; the constraint reported on a 23505 tells us which
// field collided.
const (
	emailConstraint      = "users_email_normalized_key"
	nationalIDConstraint = "users_national_id_normalized_key"
)

// Postgres enforces uniqueness with unique indexes on the normalized
// columns, which removes the check-then-write race entirely: under
// concurrent creates the database picks exactly one winner and the loser
// surfaces as a DuplicateFieldError.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const userColumns = `
	id, email, national_id, login, password_hash,
	first_name, last_name, role, active, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	userID := id.NewUserID()
	now := requestcontext.Now(ctx)

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (
			id, email, email_normalized, national_id, national_id_normalized,
			login, password_hash, first_name, last_name, role, active,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(userID),
		user.Email,
		models.NormalizeEmail(user.Email),
		user.NationalID,
		models.NormalizeNationalID(user.NationalID),
		user.Login,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.Active,
		now,
		now,
	)
	if err != nil {
		if dup := s.asDuplicate(ctx, err, user); dup != nil {
			return dup
		}
		return fmt.Errorf("insert user: %w", wrapUnavailable(err))
	}

	user.ID = userID
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// Update locks the target row, merges the patch, and writes it back in one
// transaction. A concurrent key collision is caught by the unique indexes on
// commit. When the caller's context carries a transaction (the reset
// workflow), the update joins it instead of opening its own.
func (s *Postgres) Update(ctx context.Context, userID id.UserID, patch models.Patch) (*models.User, error) {
	if _, joined := txcontext.From(ctx); joined {
		return s.updateIn(ctx, s.conn(ctx), userID, patch)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update tx: %w", wrapUnavailable(err))
	}
	defer func() { _ = tx.Rollback() }()

	updated, err := s.updateIn(ctx, tx, userID, patch)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update tx: %w", wrapUnavailable(err))
	}
	return updated, nil
}

func (s *Postgres) updateIn(ctx context.Context, conn dbConn, userID id.UserID, patch models.Patch) (*models.User, error) {
	row := conn.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1
		FOR UPDATE
	`, uuid.UUID(userID))

	existing, err := scanUser(row)
	if err != nil {
		return nil, err
	}

	patch.Apply(existing, requestcontext.Now(ctx))

	_, err = conn.ExecContext(ctx, `
		UPDATE users SET
			email = $2, email_normalized = $3,
			national_id = $4, national_id_normalized = $5,
			login = $6, password_hash = $7,
			first_name = $8, last_name = $9, role = $10, active = $11,
			updated_at = $12
		WHERE id = $1
	`,
		uuid.UUID(userID),
		existing.Email,
		models.NormalizeEmail(existing.Email),
		existing.NationalID,
		models.NormalizeNationalID(existing.NationalID),
		existing.Login,
		existing.PasswordHash,
		existing.FirstName,
		existing.LastName,
		existing.Role,
		existing.Active,
		existing.UpdatedAt,
	)
	if err != nil {
		if dup := s.asDuplicate(ctx, err, existing); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("update user: %w", wrapUnavailable(err))
	}
	return existing, nil
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1
	`, uuid.UUID(userID))
	return scanUser(row)
}

func (s *Postgres) List(ctx context.Context) ([]*models.User, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", wrapUnavailable(err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", wrapUnavailable(err))
	}
	return users, nil
}

func (s *Postgres) Delete(ctx context.Context, userID id.UserID) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete user: %w", wrapUnavailable(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// asDuplicate translates a unique-violation into a DuplicateFieldError,
// looking up the conflicting record ID best-effort (the violation itself is
// authoritative; the lookup only enriches the report).
func (s *Postgres) asDuplicate(ctx context.Context, err error, candidate *models.User) *DuplicateFieldError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Name() != "unique_violation" {
		return nil
	}

	dup := &DuplicateFieldError{}
	var column, value string
	switch pqErr.Constraint {
	case emailConstraint:
		dup.Field = FieldEmail
		column = "email_normalized"
		value = models.NormalizeEmail(candidate.Email)
	case nationalIDConstraint:
		dup.Field = FieldNationalID
		column = "national_id_normalized"
		value = models.NormalizeNationalID(candidate.NationalID)
	default:
		dup.Field = pqErr.Constraint
		return dup
	}

	var conflicting uuid.UUID
	row := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE `+column+` = $1`, value)
	if scanErr := row.Scan(&conflicting); scanErr == nil {
		dup.ConflictingID = id.UserID(conflicting)
	}
	return dup
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u   models.User
		uid uuid.UUID
	)
	err := row.Scan(
		&uid,
		&u.Email,
		&u.NationalID,
		&u.Login,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", wrapUnavailable(err))
	}
	u.ID = id.UserID(uid)
	return &u, nil
}

// wrapUnavailable marks driver/connection failures as infrastructure facts
// so services translate them to an unavailable code, never a validation one.
func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}
