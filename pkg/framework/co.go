package framework

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/robotalks/picobot/pkg/clock"
)

// Co runs straight-line task code as a Task.
//
// The body runs on its own goroutine, but control is handed off strictly:
// the body only runs while the Loop is blocked in Resume, so at most one
// task body executes at any instant.
type Co struct {
	name  string
	clock clock.Clock
	body  func(*Co) error

	started  bool
	done     bool
	aborting bool

	resumeCh chan time.Time
	yieldCh  chan coYield
	abortCh  chan struct{}
	exitCh   chan struct{}
}

type coYield struct {
	a   *Awaitable
	err error
}

// NewCo creates a coroutine task. The body starts on the first Resume.
func NewCo(name string, c clock.Clock, body func(*Co) error) *Co {
	return &Co{
		name:     name,
		clock:    c,
		body:     body,
		resumeCh: make(chan time.Time),
		yieldCh:  make(chan coYield),
		abortCh:  make(chan struct{}),
		exitCh:   make(chan struct{}),
	}
}

// Name implements Named.
func (c *Co) Name() string {
	return c.name
}

// Now returns the current time of the coroutine's clock.
func (c *Co) Now() time.Time {
	return c.clock.Now()
}

// Resume implements Task.
func (c *Co) Resume(now time.Time) (*Awaitable, error) {
	if c.done {
		return nil, ErrFinished
	}
	if !c.started {
		c.started = true
		go c.run()
	} else {
		c.resumeCh <- now
	}
	y := <-c.yieldCh
	if y.a == nil {
		c.done = true
	}
	return y.a, y.err
}

// Abort unwinds a parked body, running its deferred calls.
func (c *Co) Abort() {
	if !c.started || c.done {
		c.done = true
		return
	}
	c.done = true
	close(c.abortCh)
	<-c.exitCh
}

func (c *Co) run() {
	defer close(c.exitCh)
	var result coYield
	defer func() {
		if c.aborting {
			return
		}
		if r := recover(); r != nil {
			result = coYield{err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
		c.yieldCh <- result
	}()
	result.err = c.body(c)
}

// Await suspends the body until the Loop resumes it, and returns the
// time of the resume.
func (c *Co) Await(a *Awaitable) (time.Time, error) {
	if a.Consumed() {
		return time.Time{}, ErrAlreadyAwaited
	}
	c.yieldCh <- coYield{a: a}
	select {
	case now := <-c.resumeCh:
		return now, nil
	case <-c.abortCh:
		c.aborting = true
		runtime.Goexit()
		return time.Time{}, nil
	}
}

// After creates an Awaitable due d from now.
func (c *Co) After(d time.Duration) *Awaitable {
	return Until(c.clock.Now().Add(d))
}

// Sleep suspends the body for at least d.
func (c *Co) Sleep(d time.Duration) (time.Time, error) {
	return c.Await(&Awaitable{resumeAt: c.clock.Now().Add(d), tag: "sleep"})
}

// SleepUntil suspends the body until t.
func (c *Co) SleepUntil(t time.Time) (time.Time, error) {
	return c.Await(&Awaitable{resumeAt: t, tag: "sleep"})
}

// Yield gives other due tasks a turn.
func (c *Co) Yield() (time.Time, error) {
	return c.Await(&Awaitable{tag: "yield"})
}
