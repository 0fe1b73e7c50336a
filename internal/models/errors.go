package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the stable failure taxonomy mutating operations return.
type ErrorKind string

const (
	ErrValidation          ErrorKind = "ValidationError"
	ErrIllegalTransition   ErrorKind = "IllegalTransition"
	ErrGuardFailed         ErrorKind = "GuardFailed"
	ErrPermissionDenied    ErrorKind = "PermissionDenied"
	ErrConcurrencyConflict ErrorKind = "ConcurrencyConflict"
	ErrAmendmentConflict   ErrorKind = "AmendmentConflict"
	ErrIntegrity           ErrorKind = "IntegrityError"
	ErrNotFound            ErrorKind = "NotFound"
)

// Error is the structured error surfaced to callers: a kind plus per-field
// reasons. Guard checks collect every failing reason before returning, so
// Fields may carry several entries.
type Error struct {
	Kind    ErrorKind         `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, "; "))
}

// Is lets callers match on kind with errors.Is and a kind-only target.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func NewErrorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// GuardError builds a GuardFailed error from collected per-field reasons.
func GuardError(fields map[string]string) *Error {
	return &Error{Kind: ErrGuardFailed, Message: "transition guard not satisfied", Fields: fields}
}

// KindOf extracts the taxonomy kind from any error chain; plain errors map
// onto IntegrityError because they can only come from the store.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrIntegrity
}
