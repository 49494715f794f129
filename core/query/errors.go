package query

import (
	"errors"
	"fmt"
)

// Error types for compilation and execution.
var (
	// ErrEmptyResultSet signals that a query provably returns nothing, so no
	// request needs to reach the store. It is not a failure.
	ErrEmptyResultSet = errors.New("empty result set")

	// ErrNotSupported is returned when a requested feature has no AQL mapping.
	ErrNotSupported = errors.New("not supported")

	// ErrTransactionState is returned for a locking read outside a transaction.
	ErrTransactionState = errors.New("select for update cannot be used outside of a transaction")

	// ErrUnsupportedOption is returned for locking modifiers the store lacks.
	ErrUnsupportedOption = errors.New("unsupported option")

	// ErrUnknownField is returned when a descriptor names a field the schema lacks.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidQuery is returned when a descriptor is malformed.
	ErrInvalidQuery = errors.New("invalid query")
)

// NotSupportedError names the feature that could not be compiled.
type NotSupportedError struct {
	Feature string
}

// Error implements the error interface.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported on this database backend", e.Feature)
}

// Is reports whether the target is ErrNotSupported.
func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}

// NewNotSupported creates a NotSupportedError for the given feature.
func NewNotSupported(feature string) error {
	return &NotSupportedError{Feature: feature}
}

// QueryError wraps a store failure with the statement that caused it.
// The cause is never rewritten, so errors.Is and errors.As see the driver error.
type QueryError struct {
	Operation  string
	Collection string
	QueryID    string
	Query      string
	Cause      error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("%s on %s: %v", e.Operation, e.Collection, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a new QueryError.
func NewQueryError(op, collection string, cause error) *QueryError {
	return &QueryError{
		Operation:  op,
		Collection: collection,
		Cause:      cause,
	}
}

// IsEmptyResultSet checks if an error is the empty-result signal.
func IsEmptyResultSet(err error) bool {
	return errors.Is(err, ErrEmptyResultSet)
}

// IsNotSupported checks if an error reports a feature without AQL mapping.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// IsStoreError checks if an error originated in the store rather than in compilation.
func IsStoreError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
