// Package migrations applies the database schema. Statements are idempotent
// so the server can run them at startup and integration tests can reuse a
// shared container.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL,
		email_normalized TEXT NOT NULL,
		national_id TEXT NOT NULL,
		national_id_normalized TEXT NOT NULL,
		login TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_normalized_key
		ON users (email_normalized)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_national_id_normalized_key
		ON users (national_id_normalized)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		published_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_unpublished_idx
		ON outbox (created_at) WHERE published_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		user_id UUID,
		subject TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		actor_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_user_idx
		ON audit_events (user_id, timestamp DESC)`,
}

// Up applies all schema statements in order.
func Up(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
