package models

import (
	"errors"
	"fmt"
)

// ErrorType identifies the category of error that occurred.
// It implements error so callers can match with errors.Is(err, models.ErrNotFound).
type ErrorType string

const (
	// Input
	ErrInvalidSpec ErrorType = "invalid_spec"
	ErrConfig      ErrorType = "config"

	// Fetch phase
	ErrTransport ErrorType = "transport"
	ErrNotFound  ErrorType = "not_found"

	// Unpack phase
	ErrUnsupportedFormat ErrorType = "unsupported_format"
	ErrUnpackLayout      ErrorType = "unpack_layout"

	// Build phase
	ErrBuildFailed       ErrorType = "build_failed"
	ErrAmbiguousArtifact ErrorType = "ambiguous_artifact"

	// Check/publish phase
	ErrMetadata ErrorType = "metadata"
	ErrPublish  ErrorType = "publish"

	// Catch-all
	ErrInternalError ErrorType = "internal_error"
)

func (t ErrorType) Error() string {
	return string(t)
}

// Error is a classified pipeline failure.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// NewError builds an Error of type t with a formatted message.
func NewError(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error of type t that wraps err.
func WrapError(t ErrorType, err error, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Type)
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the ErrorType of e.
func (e *Error) Is(target error) bool {
	t, ok := target.(ErrorType)
	return ok && t == e.Type
}

// TypeOf returns the ErrorType of the first classified error in err's chain,
// or ErrInternalError if there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrInternalError
}
