// Package clock provides the monotonic time source used by the loop.
package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic time source.
// Sleep is only used by the loop when it idles, never by tasks.
type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// System returns the wall clock of the host, which carries a monotonic reading.
func System() Clock {
	return systemClock{}
}

// Sim is a simulated clock. Time only moves when Sleep or Advance is called,
// or by Step on every Now call when Step is non-zero.
type Sim struct {
	// Step advances the clock after each Now, to emulate time spent polling.
	Step time.Duration

	now  time.Time
	lock sync.Mutex
}

// Epoch is the start time of simulated clocks created by NewSim.
var Epoch = time.Date(2021, time.May, 1, 0, 0, 0, 0, time.UTC)

// NewSim creates a simulated clock starting at Epoch.
func NewSim() *Sim {
	return &Sim{now: Epoch}
}

// WithStep sets Step.
func (c *Sim) WithStep(step time.Duration) *Sim {
	c.Step = step
	return c
}

// Now implements Clock.
func (c *Sim) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	now := c.now
	c.now = c.now.Add(c.Step)
	return now
}

// Sleep implements Clock.
func (c *Sim) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward.
func (c *Sim) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.lock.Lock()
	c.now = c.now.Add(d)
	c.lock.Unlock()
}

// Elapsed returns the simulated time since Epoch without stepping.
func (c *Sim) Elapsed() time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now.Sub(Epoch)
}
