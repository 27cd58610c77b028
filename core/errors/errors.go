// Package errors carries the ledger's error taxonomy. Callers branch on the
// category, not on error strings.
package errors

import (
	"errors"
	"fmt"
)

type Category string

const (
	// CategoryValidation marks malformed or out-of-range input to a create
	// operation. The log is unchanged when one of these is returned.
	CategoryValidation Category = "validation"
	// CategoryNotFound marks a lookup of an absent record id.
	CategoryNotFound Category = "not_found"
	// CategoryIntegrity marks a verified hash mismatch. Reported, never repaired.
	CategoryIntegrity Category = "integrity_violation"
	// CategoryDurability marks an append whose durable write did not complete.
	// The record must not be treated as committed.
	CategoryDurability Category = "durability_failure"
	// CategoryCorruptTail marks a truncated trailing line found on read. It is
	// a warning condition, never fatal for startup.
	CategoryCorruptTail Category = "corrupt_trailing_record"
)

type classifiedError struct {
	category Category
	field    string
	cause    error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return string(e.category)
	}
	if e.field != "" {
		return fmt.Sprintf("%s: %v", e.field, e.cause)
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

// Validation rejects input before any append, naming the offending field.
func Validation(field, format string, args ...any) error {
	return &classifiedError{
		category: CategoryValidation,
		field:    field,
		cause:    fmt.Errorf(format, args...),
	}
}

// NotFound reports an absent record id.
func NotFound(kind, id string) error {
	return &classifiedError{
		category: CategoryNotFound,
		cause:    fmt.Errorf("%s %s not found", kind, id),
	}
}

// Integrity wraps a detected chain-integrity violation.
func Integrity(cause error) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{category: CategoryIntegrity, cause: cause}
}

// Durability wraps a failed durable append. The in-flight record is aborted.
func Durability(cause error) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{category: CategoryDurability, cause: cause}
}

// CorruptTail reports a truncated trailing record excluded from the readable set.
func CorruptTail(path string, sequence uint64) error {
	return &classifiedError{
		category: CategoryCorruptTail,
		cause:    fmt.Errorf("truncated trailing record at sequence %d in %s", sequence, path),
	}
}

// CategoryOf returns the classification of err, or "" for unclassified errors.
func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

// FieldOf returns the offending field of a validation error, or "".
func FieldOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.field
	}
	return ""
}

func IsValidation(err error) bool { return CategoryOf(err) == CategoryValidation }
func IsNotFound(err error) bool   { return CategoryOf(err) == CategoryNotFound }
func IsDurability(err error) bool { return CategoryOf(err) == CategoryDurability }
