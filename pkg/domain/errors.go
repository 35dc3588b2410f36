package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classify failures at the HTTP boundary via errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrReferenceNotFound = errors.New("reference not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDeliveryFailure   = errors.New("delivery failure")
)

// NotFoundError reports a missing record addressed directly by id.
type NotFoundError struct {
	Entity EntityType
	ID     int
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity.Label())
}

// Unwrap ties the error to ErrNotFound.
func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ReferenceError reports a write whose declared parent does not resolve.
// Entity is the record being written; Parent is the collection that was
// searched.
type ReferenceError struct {
	Entity EntityType
	Parent EntityType
	Field  string
	ID     int
}

func (e ReferenceError) Error() string {
	if e.Entity == EntityTask || e.Entity == EntityBug {
		return fmt.Sprintf("%s not found for %s", e.Parent.Label(), e.Entity)
	}
	return fmt.Sprintf("%s not found", e.Parent.Label())
}

// Unwrap ties the error to ErrReferenceNotFound.
func (e ReferenceError) Unwrap() error { return ErrReferenceNotFound }

// InputError reports a request field that is missing or cannot be coerced.
type InputError struct {
	Field  string
	Reason string
}

func (e InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap ties the error to ErrInvalidInput.
func (e InputError) Unwrap() error { return ErrInvalidInput }

// IsNotFound reports whether err is or wraps a missing-record error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// DeniedError is an access refusal carrying the message shown to the caller.
// Kind is ErrUnauthorized or ErrForbidden.
type DeniedError struct {
	Message string
	Kind    error
}

func (e DeniedError) Error() string { return e.Message }

// Unwrap ties the error to its Kind.
func (e DeniedError) Unwrap() error { return e.Kind }
