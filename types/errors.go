/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies engine failures so callers can decide who sees them.
type ErrorKind string

const (
	// KindValidation covers malformed or type-incompatible proposed values. Recoverable.
	KindValidation ErrorKind = "validation"
	// KindConfiguration covers broken module definitions. Surfaced to operators.
	KindConfiguration ErrorKind = "configuration"
	// KindPermission is returned when the actor lacks a privilege on a task.
	KindPermission ErrorKind = "permission"
	// KindCycle is returned when a task link would create a dependency cycle.
	KindCycle ErrorKind = "cycle"
	// KindNotFound is returned for unknown tasks, projects, modules or documents.
	KindNotFound ErrorKind = "not_found"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrPermission    = &Error{Kind: KindPermission}
	ErrCycle         = &Error{Kind: KindCycle}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

// Error provides structured error information for engine callers.
type Error struct {
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind with no message,
// which is how the package sentinels are shaped.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// With returns a copy of the error with an extra detail set.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError creates a recoverable error about a proposed value.
func NewValidationError(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// NewConfigurationError creates an error about a broken module definition.
func NewConfigurationError(format string, args ...any) *Error {
	return newError(KindConfiguration, format, args...)
}

// NewPermissionError creates an error for a missing privilege.
func NewPermissionError(format string, args ...any) *Error {
	return newError(KindPermission, format, args...)
}

// NewCycleError creates an error for a rejected task linkage.
func NewCycleError(format string, args ...any) *Error {
	return newError(KindCycle, format, args...)
}

// NewNotFoundError creates an error for a missing entity.
func NewNotFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// WrapConfigurationError wraps err as a configuration error.
func WrapConfigurationError(err error, format string, args ...any) *Error {
	e := newError(KindConfiguration, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
