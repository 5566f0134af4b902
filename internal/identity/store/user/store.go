// Package user implements the duplicate-safe user record store. Uniqueness
// of the normalized email and national-ID keys is enforced inside the store,
// under the mutex for the in-memory implementation and by unique indexes for
// Postgres, so the check and the write can never be interleaved by another
// writer.
package user

import (
	"fmt"

	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
)

// Uniqueness field names reported on conflicts.
const (
	FieldEmail      = "email"
	FieldNationalID = "national_id"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = sentinel.ErrNotFound

// DuplicateFieldError reports which unique key a write collided on and the
// record that holds it. It unwraps to sentinel.ErrConflict so callers can
// branch without knowing the concrete type.
type DuplicateFieldError struct {
	Field         string
	ConflictingID id.UserID
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s already in use by record %s", e.Field, e.ConflictingID)
}

func (e *DuplicateFieldError) Unwrap() error {
	return sentinel.ErrConflict
}
