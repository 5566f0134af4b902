// Package policy evaluates password complexity rules. Pure functions, no
// state, no error conditions: every candidate gets a full result, including
// the empty string (all predicates false).
package policy

import (
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the minimum accepted candidate length, in characters.
const MinPasswordLength = 8

// symbols is the accepted special character set.
const symbols = `!@#$%^&*(),.?":{}|<>`

// Rule names reported to callers when a predicate fails.
const (
	RuleMinLength = "min_length"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleDigit     = "digit"
	RuleSymbol    = "symbol"
)

// ComplexityResult exposes each predicate plus the aggregate Valid.
type ComplexityResult struct {
	MinLength    bool
	HasUppercase bool
	HasLowercase bool
	HasDigit     bool
	HasSymbol    bool
	Valid        bool
}

// CheckComplexity evaluates the five independent predicates over candidate.
func CheckComplexity(candidate string) ComplexityResult {
	result := ComplexityResult{
		MinLength: utf8.RuneCountInString(candidate) >= MinPasswordLength,
	}

	for _, r := range candidate {
		switch {
		case r >= 'A' && r <= 'Z':
			result.HasUppercase = true
		case r >= 'a' && r <= 'z':
			result.HasLowercase = true
		case r >= '0' && r <= '9':
			result.HasDigit = true
		case strings.ContainsRune(symbols, r):
			result.HasSymbol = true
		}
	}

	result.Valid = result.MinLength &&
		result.HasUppercase &&
		result.HasLowercase &&
		result.HasDigit &&
		result.HasSymbol
	return result
}

// FailedRules lists the names of predicates that did not hold, in stable
// order, for structured error reporting.
func (r ComplexityResult) FailedRules() []string {
	var failed []string
	if !r.MinLength {
		failed = append(failed, RuleMinLength)
	}
	if !r.HasUppercase {
		failed = append(failed, RuleUppercase)
	}
	if !r.HasLowercase {
		failed = append(failed, RuleLowercase)
	}
	if !r.HasDigit {
		failed = append(failed, RuleDigit)
	}
	if !r.HasSymbol {
		failed = append(failed, RuleSymbol)
	}
	return failed
}
