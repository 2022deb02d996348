package router

import (
	"errors"
	"fmt"
	"strings"

	"aegisd/pkg/types"
)

type noBackendError struct{ capability string }

func (e *noBackendError) Error() string {
	return fmt.Sprintf("no backend supports capability %q", e.capability)
}

// ErrNoBackend means the registry has no candidate for the capability.
func ErrNoBackend(capability string) error { return &noBackendError{capability: capability} }

// IsNoBackend reports whether err is a no-backend error.
func IsNoBackend(err error) bool {
	var e *noBackendError
	return errors.As(err, &e)
}

type backendUnavailableError struct {
	capability string
	attempts   []types.RouteAttempt
}

func (e *backendUnavailableError) Error() string {
	parts := make([]string, 0, len(e.attempts))
	for _, a := range e.attempts {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.Backend, a.Reason))
	}
	return fmt.Sprintf("all backends for %q exhausted: %s", e.capability, strings.Join(parts, ", "))
}

// Attempts returns the trail of candidates tried before giving up.
func (e *backendUnavailableError) Attempts() []types.RouteAttempt { return e.attempts }

// ErrBackendUnavailable means every candidate was tried and none served.
func ErrBackendUnavailable(capability string, attempts []types.RouteAttempt) error {
	return &backendUnavailableError{capability: capability, attempts: attempts}
}

// IsBackendUnavailable reports whether err is an exhausted-fallback error.
func IsBackendUnavailable(err error) bool {
	var e *backendUnavailableError
	return errors.As(err, &e)
}

// AttemptsFrom extracts the attempt trail from an exhausted-fallback error.
func AttemptsFrom(err error) []types.RouteAttempt {
	var e *backendUnavailableError
	if errors.As(err, &e) {
		return e.Attempts()
	}
	return nil
}
