package boot

import (
	"errors"
	"fmt"
	"strings"
)

type abortedError struct {
	stage     int
	unhealthy []string
	blocked   []string
}

func (e *abortedError) Error() string {
	msg := fmt.Sprintf("boot aborted at stage %d: %s unhealthy", e.stage, strings.Join(e.unhealthy, ", "))
	if len(e.blocked) > 0 {
		msg += fmt.Sprintf(" (blocking %s)", strings.Join(e.blocked, ", "))
	}
	return msg
}

// ErrBootAborted means a stage failed to converge within its timeout.
func ErrBootAborted(stage int, unhealthy, blocked []string) error {
	return &abortedError{stage: stage, unhealthy: unhealthy, blocked: blocked}
}

// IsBootAborted reports whether err is a boot abort.
func IsBootAborted(err error) bool {
	var e *abortedError
	return errors.As(err, &e)
}
