// Package history retains the most recent password hashes per user for
// reuse rejection. The cap is the reuse window: a candidate matching any
// retained entry counts as recently used.
package history

import (
	"context"
	"fmt"
	"time"

	"registra/internal/credential/hasher"
	id "registra/pkg/domain"
)

// Cap is the reuse window N. The store never retains more than Cap entries
// per user; the oldest is evicted on overflow.
const Cap = 2

// Entry is one retained password hash.
type Entry struct {
	PasswordHash string    `json:"password_hash"`
	SetAt        time.Time `json:"set_at"`
	SetBy        string    `json:"set_by"`
}

// Store is the persistence contract. Recent returns entries newest-first
// with length at most Cap. I/O failures wrap sentinel.ErrUnavailable so the
// workflow can refuse to fail open.
type Store interface {
	Recent(ctx context.Context, userID id.UserID) ([]Entry, error)
	Append(ctx context.Context, userID id.UserID, entry Entry) error
	Clear(ctx context.Context, userID id.UserID) error
}

// History combines a store with the credential hasher. Hashes are salted, so
// reuse detection verifies the candidate against each retained entry rather
// than comparing hash strings.
type History struct {
	store  Store
	hasher hasher.Hasher
}

func New(store Store, h hasher.Hasher) *History {
	return &History{store: store, hasher: h}
}

// WasRecentlyUsed reports whether candidate matches any retained hash for
// the user. Storage errors propagate: the caller must treat them as a hard
// failure, never as "not reused".
func (h *History) WasRecentlyUsed(ctx context.Context, userID id.UserID, candidate string) (bool, error) {
	entries, err := h.store.Recent(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load password history: %w", err)
	}
	for _, entry := range entries {
		match, err := h.hasher.Verify(candidate, entry.PasswordHash)
		if err != nil {
			return false, fmt.Errorf("verify against history entry: %w", err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// Append records a newly set hash at the front of the user's history.
func (h *History) Append(ctx context.Context, userID id.UserID, passwordHash, actor string, setAt time.Time) error {
	return h.store.Append(ctx, userID, Entry{
		PasswordHash: passwordHash,
		SetAt:        setAt,
		SetBy:        actor,
	})
}

// Clear removes all history for a user. Used on account deletion.
func (h *History) Clear(ctx context.Context, userID id.UserID) error {
	return h.store.Clear(ctx, userID)
}
