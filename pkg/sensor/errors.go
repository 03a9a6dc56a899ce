package sensor

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("timeout")
	// ErrNoSamples is returned by Measure when nothing was measured.
	ErrNoSamples = errors.New("no samples")
)

// TimeoutError indicates a signal did not settle in time, or too many
// consecutive measurements failed.
type TimeoutError struct {
	Op       string
	Timeouts int
	Err      error
}

// Error implements error.
func (e *TimeoutError) Error() string {
	msg := e.Op + ": timed out"
	if e.Timeouts > 0 {
		msg = fmt.Sprintf("%s: %d measurements timed out", e.Op, e.Timeouts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Unwrap returns the cause.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}
