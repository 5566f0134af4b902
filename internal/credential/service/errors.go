package service

import (
	"strings"

	dErrors "registra/pkg/domain-errors"
)

// ErrPasswordRecentlyUsed rejects a reset whose candidate matches a retained
// history entry. The check runs before complexity, so a reused password is
// reported as reuse even when it also fails complexity.
var ErrPasswordRecentlyUsed = dErrors.New(dErrors.CodeConflict, "password was recently used")

var errComplexity = dErrors.New(dErrors.CodeValidation, "password does not meet complexity requirements")

// ComplexityError reports which complexity rules the candidate failed.
type ComplexityError struct {
	Failed []string
}

func (e *ComplexityError) Error() string {
	return "password does not meet complexity requirements: " + strings.Join(e.Failed, ", ")
}

func (e *ComplexityError) Unwrap() error {
	return errComplexity
}
