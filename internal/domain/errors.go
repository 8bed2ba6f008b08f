package domain

import (
	"context"
	"errors"
	"fmt"
)

// StatusError is a non-2xx response from the directory API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory returned status %d", e.Code)
}

// Transient reports whether the status is expected to resolve on retry.
// Server-side errors are transient; every other non-success is terminal.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 && e.Code <= 599
}

// TransientFailure classifies an activity-source error. Network-level faults
// carry no status and are treated as transient; cancellation and deadline
// expiry are terminal, since retrying a dead context only burns the attempt
// budget.
func TransientFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Transient()
	}
	return true
}
