// Package apperr defines the caller-visible error kinds of the workflow engine.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Kind classifies a failure so any presentation layer can render it.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindAuthorization  Kind = "authorization"
	KindAuthentication Kind = "authentication"
	KindStorage        Kind = "storage"
	KindConflict       Kind = "conflict"
	KindTimeout        Kind = "timeout"
	KindInternal       Kind = "internal"
)

// Error is a classified failure carrying the operation, a human message and
// the identifiers involved.
type Error struct {
	Kind       Kind     `json:"kind"`
	Op         string   `json:"-"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
	Resource   string   `json:"resource,omitempty"`
	ID         string   `json:"id,omitempty"`
	Err        error    `json:"-"`
}

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrStorage        = &Error{Kind: KindStorage}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrTimeout        = &Error{Kind: KindTimeout}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Violations) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Violations, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation returns a validation error listing every violation.
func Validation(op string, violations ...string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: "validation failed", Violations: violations}
}

// NotFound reports a missing resource.
func NotFound(op, resource string, id any) *Error {
	return &Error{
		Kind:     KindNotFound,
		Op:       op,
		Message:  fmt.Sprintf("%s not found: %v", resource, id),
		Resource: resource,
		ID:       fmt.Sprint(id),
	}
}

// Forbidden reports an actor lacking rights for an operation on a resource.
func Forbidden(op, resource string, id any, reason string) *Error {
	return &Error{
		Kind:     KindAuthorization,
		Op:       op,
		Message:  reason,
		Resource: resource,
		ID:       fmt.Sprint(id),
	}
}

// Unauthenticated reports that no actor could be resolved.
func Unauthenticated(op string) *Error {
	return &Error{Kind: KindAuthentication, Op: op, Message: "no authenticated actor"}
}

// Storage wraps a blob store or metadata write failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Message: "storage failure", Err: err}
}

// Conflict reports a uniqueness violation.
func Conflict(op, resource, message string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: message, Resource: resource}
}

// Timeout reports an operation that outlived its deadline.
func Timeout(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: "deadline exceeded", Err: err}
}

// KindOf returns the kind of err, or KindInternal when it is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// FromStore classifies an error returned by the persistence store. Errors that
// are already classified pass through unchanged.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout(op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Op: op, Message: "duplicate key", Err: err}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Op: op, Message: "record not found", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
