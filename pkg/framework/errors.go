package framework

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyAwaited indicates an Awaitable was awaited a second time.
	ErrAlreadyAwaited = errors.New("awaitable already awaited")
	// ErrFinished indicates a finished task was resumed.
	ErrFinished = errors.New("task already finished")
)

// TaskError is an unhandled failure of a task.
type TaskError struct {
	Task string
	Err  error
}

// Error implements error.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

// Unwrap returns the failure.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered panic of a task body.
type PanicError struct {
	Value interface{}
	Stack []byte
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Detail returns the stack of the panic.
func (e *PanicError) Detail() string {
	return string(e.Stack)
}

// AggregatedError aggregates multiple errors.
type AggregatedError struct {
	Errors []error
}

// Error implements error
func (e *AggregatedError) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}
	msg := make([]string, len(e.Errors)+1)
	msg[0] = "Multiple errors:"
	for n, err := range e.Errors {
		msg[n+1] = err.Error()
	}
	return strings.Join(msg, "\n")
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

// Add adds errors to be aggregated. nil will be skipped.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Aggregate returns aggregated error if any error happened.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
