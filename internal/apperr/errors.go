// Package apperr holds the error taxonomy shared by the booking packages and
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindIllegalTransition Kind = "illegal_transition"
	KindConflict          Kind = "conflict"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal_error"
)

// ConflictRef identifies an existing appointment that blocked a booking.
type ConflictRef struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type Error struct {
	Kind      Kind
	Message   string
	Fields    map[string]string
	Conflicts []ConflictRef
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on kind and message so that a freshly built error compares equal
// to the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Field is a shorthand for a validation error about a single input field.
func Field(field, reason string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("%s %s", field, reason),
		Fields:  map[string]string{field: reason},
	}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func IllegalTransition(from, to string) *Error {
	return &Error{
		Kind:    KindIllegalTransition,
		Message: "illegal status transition",
		Fields:  map[string]string{"status": fmt.Sprintf("cannot move from %s to %s", from, to)},
	}
}

// KindOf reports the kind of err. Anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
