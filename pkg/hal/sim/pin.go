// Package sim provides simulated peripherals driven by a clock.
package sim

import (
	"sync"

	"github.com/robotalks/picobot/pkg/hal"
)

// Pin is a plain simulated line holding its last value.
type Pin struct {
	// OnSet is called after each Set with the new value.
	OnSet func(bool)

	value     bool
	direction hal.Direction
	lock      sync.Mutex
}

// Get implements hal.Pin.
func (p *Pin) Get() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.value
}

// Set implements hal.Pin.
func (p *Pin) Set(v bool) {
	p.lock.Lock()
	p.value = v
	fn := p.OnSet
	p.lock.Unlock()
	if fn != nil {
		fn(v)
	}
}

// SetDirection implements hal.Pin.
func (p *Pin) SetDirection(d hal.Direction) {
	p.lock.Lock()
	p.direction = d
	p.lock.Unlock()
}

// Direction returns the configured direction.
func (p *Pin) Direction() hal.Direction {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.direction
}

// PinFunc is a read-only line computed on every Get.
type PinFunc func() bool

// Get implements hal.Pin.
func (f PinFunc) Get() bool { return f() }

// Set implements hal.Pin.
func (f PinFunc) Set(bool) {}

// SetDirection implements hal.Pin.
func (f PinFunc) SetDirection(hal.Direction) {}
