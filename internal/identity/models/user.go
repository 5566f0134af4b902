package models

import (
	"time"

	"github.com/asaskevich/govalidator"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// User is the primary record tracked by the store. Email and NationalID are
// unique keys after normalization; the remaining profile fields are opaque to
// the core and owned by the caller.
type User struct {
	ID           id.UserID
	Email        string
	NationalID   string
	Login        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser validates invariants and builds a record ready for store creation.
// The store assigns the ID. When login is empty it is derived from the
// display name.
func NewUser(email, nationalID, firstName, lastName, role, login string) (*User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateNationalID(nationalID); err != nil {
		return nil, err
	}
	if login == "" {
		login = DeriveLogin(firstName + " " + lastName)
	}
	return &User{
		Email:      email,
		NationalID: nationalID,
		Login:      login,
		FirstName:  firstName,
		LastName:   lastName,
		Role:       role,
		Active:     true,
	}, nil
}

// Clone returns a copy so store internals never leak mutable state.
func (u *User) Clone() *User {
	cp := *u
	return &cp
}

// Patch is a partial update merged into an existing record. Nil fields are
// left untouched. PasswordHash is settable only through the credential
// workflow, which uses the same patch path for the reset write.
type Patch struct {
	Email        *string
	NationalID   *string
	Login        *string
	PasswordHash *string
	FirstName    *string
	LastName     *string
	Role         *string
	Active       *bool
}

// Validate checks the fields present on the patch.
func (p Patch) Validate() error {
	if p.Email != nil {
		if err := validateEmail(*p.Email); err != nil {
			return err
		}
	}
	if p.NationalID != nil {
		if err := validateNationalID(*p.NationalID); err != nil {
			return err
		}
	}
	return nil
}

// Apply merges the patch into the user and refreshes UpdatedAt.
func (p Patch) Apply(u *User, now time.Time) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.NationalID != nil {
		u.NationalID = *p.NationalID
	}
	if p.Login != nil {
		u.Login = *p.Login
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
	u.UpdatedAt = now
}

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeValidation, "email format is invalid")
	}
	return nil
}

func validateNationalID(nationalID string) error {
	if NormalizeNationalID(nationalID) == "" {
		return dErrors.New(dErrors.CodeValidation, "national ID must contain digits")
	}
	return nil
}
