package sched

import "fmt"

// allocationError signals a request that can never be satisfied: the
// footprint alone exceeds the total budget. Rejected synchronously, never
// queued.
type allocationError struct {
	modelID  string
	sizeMB   int64
	budgetMB int64
}

func (e allocationError) Error() string {
	return fmt.Sprintf("allocation %s: %d MB exceeds total budget %d MB", e.modelID, e.sizeMB, e.budgetMB)
}

// ErrAllocation constructs an allocationError.
func ErrAllocation(modelID string, sizeMB, budgetMB int64) error {
	return allocationError{modelID: modelID, sizeMB: sizeMB, budgetMB: budgetMB}
}

// IsAllocation reports whether err indicates an unsatisfiable footprint.
func IsAllocation(err error) bool {
	_, ok := err.(allocationError)
	return ok
}

// timeoutError signals a deadline expiry on a blocking operation.
type timeoutError struct {
	op      string
	subject string
}

func (e timeoutError) Error() string { return "timeout: " + e.op + ": " + e.subject }

// ErrTimeout constructs a timeoutError.
func ErrTimeout(op, subject string) error { return timeoutError{op: op, subject: subject} }

// IsTimeout reports whether err indicates a deadline expiry.
func IsTimeout(err error) bool {
	_, ok := err.(timeoutError)
	return ok
}
