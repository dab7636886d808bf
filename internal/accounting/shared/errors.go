package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prajwal-br31/bks-backend/internal/platform/httpx"
)

var (
	// ErrNotFound indicates a missing account, journal or subledger document.
	ErrNotFound = fmt.Errorf("accounting: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates a unique code or document number is taken.
	ErrDuplicate = fmt.Errorf("accounting: %w", httpx.ErrDuplicate)
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = fmt.Errorf("accounting: %w", httpx.ErrValidation)
	// ErrAccountResolution is matched by every *AccountResolutionError.
	ErrAccountResolution = fmt.Errorf("accounting: account resolution failed: %w", httpx.ErrUnprocessable)
	// ErrImbalancedEntry indicates debit and credit totals differ. Callers in this
	// module always build balanced lines, so seeing it is a programming error.
	ErrImbalancedEntry = errors.New("accounting: journal lines must balance")
	// ErrSourceAlreadyLinked indicates a journal already exists for the source document.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
)

// NotFound wraps ErrNotFound with the entity name and identifier.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// Invalid builds a *ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ResolutionReason classifies an account resolution failure.
type ResolutionReason string

const (
	// ResolutionMissing means no active account satisfies the role.
	ResolutionMissing ResolutionReason = "missing"
	// ResolutionAmbiguous means more than one account satisfies the role.
	ResolutionAmbiguous ResolutionReason = "ambiguous"
	// ResolutionStale means the configured mapping points at an unusable account.
	ResolutionStale ResolutionReason = "stale"
)

// AccountResolutionError reports that a logical role could not be bound to one account.
type AccountResolutionError struct {
	Role       string
	Reason     ResolutionReason
	Candidates []string
	Detail     string
}

func (e *AccountResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "account resolution: role %s: %s", e.Role, e.Reason)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Candidates) > 0 {
		fmt.Fprintf(&b, " (candidates: %s)", strings.Join(e.Candidates, ", "))
	}
	return b.String()
}

func (e *AccountResolutionError) Unwrap() error {
	return ErrAccountResolution
}
