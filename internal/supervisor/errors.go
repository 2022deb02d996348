package supervisor

import (
	"errors"
	"fmt"
)

type invalidError struct{ msg string }

func (e *invalidError) Error() string { return e.msg }

// ErrInvalid marks a registration the supervisor must reject.
func ErrInvalid(msg string) error { return &invalidError{msg: msg} }

// IsInvalid reports whether err is a rejected registration.
func IsInvalid(err error) bool {
	var e *invalidError
	return errors.As(err, &e)
}

type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return fmt.Sprintf("service not found: %s", e.id) }

// ErrNotFound marks an operation on an unknown service.
func ErrNotFound(id string) error { return &notFoundError{id: id} }

// IsNotFound reports whether err is an unknown-service error.
func IsNotFound(err error) bool {
	var e *notFoundError
	return errors.As(err, &e)
}
