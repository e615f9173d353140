/*
errors.go - Error types for the invoicing engine

PURPOSE:
  All error kinds in one place. Callers branch with errors.Is / errors.As;
  the HTTP layer maps them onto status codes.

ERROR CATEGORIES:
  1. Validation  - missing fields, empty selections, malformed amounts (400)
  2. Not found   - referenced employee/invoice absent (404)
  3. Conflict    - invoice number already taken at commit time (409)
  4. Persistence - store write failures, always rolled back (500)

  Invoice number exhaustion is NOT an error: the generator falls back to a
  time-of-day suffix.
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category for rejected input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the category for missing employees or invoices.
	ErrNotFound = errors.New("not found")

	// ErrPersistence is the category for store failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrDuplicateInvoiceNumber is returned by stores when the unique
	// constraint on invoice number rejects an insert.
	ErrDuplicateInvoiceNumber = errors.New("duplicate invoice number")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected field. The message is user-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the kind and identifier of a missing record.
type NotFoundError struct {
	Kind string // "employee", "invoice"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if a uniqueness constraint rejected the write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateInvoiceNumber)
}
