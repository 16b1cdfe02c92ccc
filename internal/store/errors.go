package store

import (
	"errors"
	"fmt"
)

// Code categorizes store errors.
type Code string

const (
	// CodeIO indicates the trace file is unreadable or unwritable.
	CodeIO Code = "IO"

	// CodeFormat indicates a corrupt trace or an incompatible format version.
	CodeFormat Code = "FORMAT"

	// CodeState indicates an operation invalid for the current session
	// phase, e.g. append after finalize.
	CodeState Code = "STATE"

	// CodeNotFound indicates the trace path is absent at replay open.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is a store error with a category code and the affected path.
// Open-time errors are fatal to the session: no partial session starts.
type Error struct {
	Code    Code
	Message string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsIO reports whether err is a store error with CodeIO.
func IsIO(err error) bool { return hasCode(err, CodeIO) }

// IsFormat reports whether err is a store error with CodeFormat.
func IsFormat(err error) bool { return hasCode(err, CodeFormat) }

// IsState reports whether err is a store error with CodeState.
func IsState(err error) bool { return hasCode(err, CodeState) }

// IsNotFound reports whether err is a store error with CodeNotFound.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

func hasCode(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func newError(code Code, path, message string, err error) *Error {
	return &Error{Code: code, Message: message, Path: path, Err: err}
}
