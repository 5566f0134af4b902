// Package hasher provides the one-way credential hash. bcrypt salts each
// hash internally, so equal passwords produce distinct hashes and comparison
// must go through Verify rather than string equality.
package hasher

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "registra/pkg/domain-errors"
)

// Hasher is the opaque Hash/Verify contract the workflow and history store
// depend on. Implementations must be one-way and salted per entry.
type Hasher interface {
	Hash(candidate string) (string, error)
	Verify(candidate, hash string) (bool, error)
}

// Bcrypt implements Hasher with golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(candidate string) (string, error) {
	if candidate == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(candidate), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether candidate matches hash. A mismatch is a result, not
// an error; errors mean the hash itself is malformed.
func (b *Bcrypt) Verify(candidate, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("could not verify password: %w", err)
	}
	return true, nil
}
