package models

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	ErrNotFound = errors.New("resource not found")
)

// FieldError reports a single validation failure, keyed by field name.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationErrors collects every field failure of a request so callers see
// all of them at once instead of the first one only.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field failure and returns the extended collection.
func (e ValidationErrors) Add(field, reason string) ValidationErrors {
	return append(e, FieldError{Field: field, Reason: reason})
}

// OrNil returns the collection as an error, or nil when empty.
func (e ValidationErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// InvalidTransitionError reports an operation invoked from a state outside
// its allowed source set. The campaign is left untouched.
type InvalidTransitionError struct {
	Operation    Operation
	CurrentState CampaignState
	Archived     bool
}

func (e *InvalidTransitionError) Error() string {
	if e.Archived {
		return fmt.Sprintf("cannot %s an archived campaign", e.Operation)
	}
	return fmt.Sprintf("cannot %s a campaign in state %q", e.Operation, e.CurrentState)
}

// ReferenceNotFoundError reports a referenced external resource (agent,
// segment, survey) that failed to resolve.
type ReferenceNotFoundError struct {
	Kind string
	ID   int64
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// DependencyConflictError reports a dependent-object check that blocked the
// operation, e.g. archiving a campaign whose survey still has open campaigns.
type DependencyConflictError struct {
	Reason string
}

func (e *DependencyConflictError) Error() string {
	return e.Reason
}

// PersistenceError wraps a storage failure. The enclosing operation is
// rolled back entirely; no partial effect remains.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrNotFoundWithMsg creates a not found error with a custom message
func ErrNotFoundWithMsg(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}
