// Package hcsr04 drives an HC-SR04 ultrasonic ranger through two lines.
package hcsr04

import (
	"time"

	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/hal"
	"github.com/robotalks/picobot/pkg/sensor"
)

const (
	// MetresPerSecond converts the echo width into the distance,
	// half the speed of sound since the echo travels back and forth.
	MetresPerSecond = 170.0
	// TriggerPulse is the width of the trigger pulse.
	TriggerPulse = 10 * time.Microsecond
	// DefaultTimeout bounds each wait on the echo line.
	DefaultTimeout = 50 * time.Millisecond
)

// Device is an HC-SR04 ranger.
type Device struct {
	Trigger hal.Pin
	Echo    hal.Pin
	Timeout time.Duration
	// Timeouts counts every timed out wait on the echo line.
	Timeouts *sensor.Counter
}

// New configures the lines and creates a Device.
func New(trigger, echo hal.Pin) *Device {
	trigger.SetDirection(hal.Output)
	trigger.Set(false)
	echo.SetDirection(hal.Input)
	return &Device{
		Trigger:  trigger,
		Echo:     echo,
		Timeout:  DefaultTimeout,
		Timeouts: sensor.NewCounter("hcsr04"),
	}
}

// Options returns the default aggregation: 50 samples over at least
// 100ms, tolerating 5 consecutive timeouts, cooling down for Timeout.
func (d *Device) Options() sensor.MeasureOptions {
	return sensor.MeasureOptions{
		MinCount:    50,
		MinDuration: 100 * time.Millisecond,
		MaxTimeouts: 5,
		Cooldown:    d.Timeout,
	}
}

func (d *Device) waitFor(co *framework.Co, value bool) (time.Duration, error) {
	return sensor.WaitFor(co, d.Echo, value, d.Timeout, d.Timeouts)
}

// MeasureOnce triggers one ping and returns the distance in metres.
func (d *Device) MeasureOnce(co *framework.Co) (float64, error) {
	if _, err := d.waitFor(co, false); err != nil {
		return 0, err
	}
	d.Trigger.Set(true)
	_, err := co.Sleep(TriggerPulse)
	d.Trigger.Set(false)
	if err != nil {
		return 0, err
	}
	if _, err := d.waitFor(co, true); err != nil {
		return 0, err
	}
	width, err := d.waitFor(co, false)
	if err != nil {
		return 0, err
	}
	return width.Seconds() * MetresPerSecond, nil
}

// Measure returns the mean distance of repeated pings.
func (d *Device) Measure(co *framework.Co, opts sensor.MeasureOptions) (float64, error) {
	return sensor.Measure(co, func() (float64, error) {
		return d.MeasureOnce(co)
	}, opts)
}

// Distance measures with the default options.
func (d *Device) Distance(co *framework.Co) (float64, error) {
	return d.Measure(co, d.Options())
}
