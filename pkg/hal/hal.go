// Package hal defines the peripheral capabilities the drivers depend on.
//
// Backends implement these on real hardware (TinyGo machine pins and I2C
// buses) or in simulation (see package sim).
package hal

import "tinygo.org/x/drivers"

// Direction is the direction of a digital line.
type Direction int

// Directions.
const (
	Input Direction = iota
	Output
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// Pin is a digital signal line.
type Pin interface {
	Get() bool
	Set(bool)
	SetDirection(Direction)
}

// Bus is a shared two-wire bus with a non-blocking lock.
// Tx follows drivers.I2C: write w then read into r at the device address.
type Bus interface {
	drivers.I2C
	TryLock() bool
	Unlock()
}
