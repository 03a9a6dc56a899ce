package framework

import (
	"context"
	"fmt"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Task is a unit of suspendable work driven by the Loop.
//
// Resume is called with the current time. It returns:
//   - (a, nil) when the task suspends until a is due;
//   - (nil, nil) when the task finished;
//   - (_, err) when the task failed.
//
// After finishing or failing, a task is never resumed again.
type Task interface {
	Resume(now time.Time) (*Awaitable, error)
}

// Aborter is implemented by tasks which hold resources while parked.
// The Loop calls Abort on every pending task when it stops.
type Aborter interface {
	Abort()
}

// TaskFunc is the func form of Task, usually an explicit state machine.
type TaskFunc func(now time.Time) (*Awaitable, error)

// Resume implements Task.
func (f TaskFunc) Resume(now time.Time) (*Awaitable, error) {
	return f(now)
}

type namedTask struct {
	Task
	name string
}

func (t *namedTask) Name() string {
	return t.name
}

func (t *namedTask) Abort() {
	if a, ok := t.Task.(Aborter); ok {
		a.Abort()
	}
}

// NamedTask wraps a Task with a name.
func NamedTask(name string, task Task) Task {
	return &namedTask{Task: task, name: name}
}

// TaskName returns the name of a task, or its type when unnamed.
func TaskName(task Task) string {
	if n, ok := task.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", task)
}

// TaskInfo is a snapshot of a pending task.
type TaskInfo struct {
	Name     string
	ResumeAt time.Time
}
