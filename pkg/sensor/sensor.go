// Package sensor implements the polling protocol shared by sensor drivers:
// wait for a signal with a deadline, and aggregate repeated measurements
// within a budget of consecutive failures.
package sensor

import (
	"sync/atomic"
	"time"

	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/hal"
	"github.com/robotalks/picobot/pkg/logging"
	"github.com/robotalks/picobot/pkg/metrics"
)

// Counter counts timeouts of one sensor.
type Counter struct {
	Name    string
	Log     logging.Sink
	Metrics *metrics.Collector

	n atomic.Int64
}

// NewCounter creates a Counter.
func NewCounter(name string) *Counter {
	return &Counter{Name: name}
}

// Inc records one timeout.
func (c *Counter) Inc() {
	if c == nil {
		return
	}
	n := c.n.Add(1)
	logging.Or(c.Log).Debugf("%s: %d timeouts", c.Name, n)
	c.Metrics.Timeout(c.Name)
}

// Count returns the number of timeouts so far.
func (c *Counter) Count() int64 {
	if c == nil {
		return 0
	}
	return c.n.Load()
}

// WaitFor polls line until it reads value, yielding between polls.
// It returns how long it waited, or a *TimeoutError once timeout elapsed.
func WaitFor(co *framework.Co, line hal.Pin, value bool, timeout time.Duration, counter *Counter) (time.Duration, error) {
	start := co.Now()
	deadline := start.Add(timeout)
	for line.Get() != value {
		now, err := co.Yield()
		if err != nil {
			return 0, err
		}
		if now.After(deadline) {
			counter.Inc()
			op := "wait for low"
			if value {
				op = "wait for high"
			}
			return 0, &TimeoutError{Op: op}
		}
	}
	return co.Now().Sub(start), nil
}

// MeasureOptions bounds an aggregate measurement.
type MeasureOptions struct {
	// MinCount is the minimum number of successful samples.
	MinCount int
	// MinDuration is the minimum time spent measuring.
	MinDuration time.Duration
	// MaxTimeouts is how many consecutive failures are tolerated.
	MaxTimeouts int
	// Cooldown is slept after each failure to let residual signals fade.
	Cooldown time.Duration
}

type accumulator struct {
	sum      float64
	count    int
	timeouts int
}

func (a *accumulator) mean() float64 {
	return a.sum / float64(a.count)
}

// Measure calls once until both MinCount samples were taken and
// MinDuration elapsed, and returns their mean.
//
// Any error from once counts as a failure. A success resets the count of
// consecutive failures; exceeding MaxTimeouts fails with a *TimeoutError
// wrapping the last failure.
func Measure(co *framework.Co, once func() (float64, error), opts MeasureOptions) (float64, error) {
	var acc accumulator
	end := co.Now().Add(opts.MinDuration)
	for acc.count < opts.MinCount || co.Now().Before(end) {
		v, err := once()
		if err != nil {
			acc.timeouts++
			if acc.timeouts > opts.MaxTimeouts {
				return 0, &TimeoutError{Op: "measure", Timeouts: acc.timeouts, Err: err}
			}
			if _, err := co.Sleep(opts.Cooldown); err != nil {
				return 0, err
			}
			continue
		}
		acc.timeouts = 0
		acc.sum += v
		acc.count++
	}
	if acc.count == 0 {
		return 0, ErrNoSamples
	}
	return acc.mean(), nil
}
