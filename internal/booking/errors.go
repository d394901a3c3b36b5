package booking

import (
	"errors"
	"fmt"

	"classbook/internal/availability"
	"classbook/internal/store"
)

// Kind classifies controller failures.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindStore      Kind = "store"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
)

// Error is a user-facing failure. Message is safe to show as is.
type Error struct {
	Kind     Kind
	Message  string
	Conflict availability.ConflictKind
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

func invalid(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func conflictError(kind availability.ConflictKind) *Error {
	name := "one-time booking"
	if kind == availability.KindRecurring {
		name = "recurring class"
	}
	return &Error{
		Kind:     KindConflict,
		Message:  fmt.Sprintf("This slot is already booked by another %s. Please choose a different time or classroom.", name),
		Conflict: kind,
	}
}

// storeError maps a store failure. Missing records become not-found.
func storeError(msg, notFound string, err error) *Error {
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: notFound, Err: err}
	}
	return &Error{Kind: KindStore, Message: msg, Err: err}
}
