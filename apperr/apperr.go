// Package apperr implements the error taxonomy: validation,
// not-found, upstream-auth, upstream-not-found, upstream-operation,
// upstream-transient, concurrency/precondition, and internal. Commands map
// a *Error's Kind to an HTTP-style status code in the OperationResult
// envelope (see commands.Result).
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of status-code mapping and
// retry policy.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUpstreamAuth Kind = "upstream_auth"
	KindUpstreamNotFound  Kind = "upstream_not_found"
	KindUpstreamOperation Kind = "upstream_operation"
	KindUpstreamTransient Kind = "upstream_transient"
	KindConcurrency  Kind = "concurrency"
	KindInternal     Kind = "internal"
)

// Error is the structured error carried across the command boundary.
type Error struct {
	Kind   Kind
	Entity string
	ID     string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s '%s': %s", e.Kind, e.Entity, e.ID, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Entity, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// StatusCode maps Kind to the HTTP-style status code used by
// commands.Result. isQuery distinguishes not-found's 400 vs
// 404 split between commands and queries.
func (e *Error) StatusCode(isQuery bool) int {
	switch e.Kind {
	case KindValidation, KindUpstreamAuth, KindUpstreamOperation, KindConcurrency:
		return 400
	case KindNotFound:
		if isQuery {
			return 404
		}
		return 400
	case KindUpstreamTransient:
		return 500
	case KindInternal:
		return 500
	default:
		return 500
	}
}

// NewValidation builds a validation error.
func NewValidation(entity, detail string) error {
	return &Error{Kind: KindValidation, Entity: entity, Detail: detail}
}

// NewNotFound builds a not-found error for an aggregate lookup.
func NewNotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Detail: "not found"}
}

// NewUpstreamAuth builds an upstream-auth error ("cloud credentials
// invalid or lab auth failed"); never retried.
func NewUpstreamAuth(entity, detail string, cause error) error {
	return &Error{Kind: KindUpstreamAuth, Entity: entity, Detail: detail, cause: cause}
}

// NewUpstreamNotFound builds an upstream-not-found error ("cloud instance
// gone"); callers log as warning and proceed locally.
func NewUpstreamNotFound(entity, id string) error {
	return &Error{Kind: KindUpstreamNotFound, Entity: entity, ID: id, Detail: "not found upstream"}
}

// NewUpstreamOperation builds an upstream-operation error ("cloud rejected
// the operation"); not retried inline.
func NewUpstreamOperation(entity, detail string, cause error) error {
	return &Error{Kind: KindUpstreamOperation, Entity: entity, Detail: detail, cause: cause}
}

// NewUpstreamTransient builds an upstream-transient error (timeout or 5xx);
// metrics paths treat this as recoverable.
func NewUpstreamTransient(entity, detail string, cause error) error {
	return &Error{Kind: KindUpstreamTransient, Entity: entity, Detail: detail, cause: cause}
}

// NewConcurrency builds a concurrency/precondition error ("attempted
// illegal transition").
func NewConcurrency(entity, detail string) error {
	return &Error{Kind: KindConcurrency, Entity: entity, Detail: detail}
}

// NewInternal builds an internal error (unexpected exception; full stack
// should be logged by the caller before wrapping).
func NewInternal(entity string, cause error) error {
	return &Error{Kind: KindInternal, Entity: entity, Detail: "internal error", cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
