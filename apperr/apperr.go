package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced to callers. Match them with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrGenerationExhausted = errors.New("generation exhausted")
	ErrConfiguration       = errors.New("configuration error")
	ErrUnavailable         = errors.New("unavailable capability")
	ErrNotFound            = errors.New("not found")
)

// Error is a user-facing error of a given kind with an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(ErrValidation, format, args...)
}

func Exhausted(format string, args ...interface{}) error {
	return newf(ErrGenerationExhausted, format, args...)
}

func Configuration(format string, args ...interface{}) error {
	return newf(ErrConfiguration, format, args...)
}

func Unavailable(format string, args ...interface{}) error {
	return newf(ErrUnavailable, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(ErrNotFound, format, args...)
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind error, err error, format string, args ...interface{}) error {
	e := newf(kind, format, args...)
	e.Err = err
	return e
}

// Message returns the user-facing part of err, without wrapped causes
// when err is an *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the status code returned by the handlers.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGenerationExhausted):
		return http.StatusConflict
	case errors.Is(err, ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
