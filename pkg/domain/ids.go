// Package domain holds typed identifiers shared across features. Wrapping
// uuid.UUID in distinct types prevents cross-type assignment at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "registra/pkg/domain-errors"
)

// UserID identifies a user record. Assigned by the store at creation and
// never reused.
type UserID uuid.UUID

// NewUserID returns a fresh random UserID.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID parses and validates a user ID at a trust boundary.
// Rejects empty, malformed, and nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user ID must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user ID must not be the nil UUID")
	}
	return UserID(parsed), nil
}

func (id UserID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero UUID.
func (id UserID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}
