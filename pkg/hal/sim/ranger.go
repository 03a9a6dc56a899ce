package sim

import (
	"sync"
	"time"

	"github.com/robotalks/picobot/pkg/clock"
	"github.com/robotalks/picobot/pkg/hal"
)

// SpeedOfSound is used to convert the distance into an echo width.
const SpeedOfSound = 340.0

// Ranger simulates an ultrasonic ranger.
//
// A falling edge on Trigger starts a measurement: Echo rises after Latency
// and stays high for the round trip time of Distance.
type Ranger struct {
	Clock clock.Clock
	// Distance in metres.
	Distance float64
	// Latency between the trigger and the rising echo.
	Latency time.Duration
	// Drop returns true when the n-th measurement (from 1) gets no echo.
	Drop func(n int) bool

	trigger  Pin
	fired    bool
	dropped  bool
	fallenAt time.Time
	count    int
	lock     sync.Mutex
}

// NewRanger creates a Ranger at distance metres.
func NewRanger(c clock.Clock, distance float64) *Ranger {
	r := &Ranger{Clock: c, Distance: distance, Latency: 100 * time.Microsecond}
	r.trigger.OnSet = r.triggered
	return r
}

// Trigger returns the trigger line.
func (r *Ranger) Trigger() hal.Pin {
	return &r.trigger
}

// Echo returns the echo line.
func (r *Ranger) Echo() hal.Pin {
	return PinFunc(r.echo)
}

// Count returns the number of measurements triggered.
func (r *Ranger) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.count
}

// SetDistance moves the target.
func (r *Ranger) SetDistance(d float64) {
	r.lock.Lock()
	r.Distance = d
	r.lock.Unlock()
}

func (r *Ranger) triggered(v bool) {
	if v {
		return
	}
	now := r.Clock.Now()
	r.lock.Lock()
	defer r.lock.Unlock()
	r.count++
	r.fired = true
	r.fallenAt = now
	r.dropped = r.Drop != nil && r.Drop(r.count)
}

func (r *Ranger) echo() bool {
	now := r.Clock.Now()
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.fired || r.dropped {
		return false
	}
	rise := r.fallenAt.Add(r.Latency)
	fall := rise.Add(time.Duration(r.Distance * 2 / SpeedOfSound * float64(time.Second)))
	if now.Before(rise) {
		return false
	}
	if now.Before(fall) {
		return true
	}
	r.fired = false
	return false
}
