package hcsr04

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/picobot/pkg/clock"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/hal"
	"github.com/robotalks/picobot/pkg/hal/sim"
	"github.com/robotalks/picobot/pkg/logging"
	"github.com/robotalks/picobot/pkg/sensor"
)

func run(t *testing.T, c clock.Clock, body func(*framework.Co) error) {
	l := framework.NewLoop(c)
	l.Log = &logging.Recorder{}
	l.Policy = framework.StopOnFailure
	l.Spawn("test", body)
	require.NoError(t, l.RunUntilComplete())
}

func TestNewConfiguresLines(t *testing.T) {
	trigger, echo := &sim.Pin{}, &sim.Pin{}
	trigger.Set(true)
	New(trigger, echo)
	require.Equal(t, hal.Output, trigger.Direction())
	require.Equal(t, hal.Input, echo.Direction())
	require.False(t, trigger.Get())
}

func TestMeasureOnce(t *testing.T) {
	c := clock.NewSim().WithStep(10 * time.Microsecond)
	ranger := sim.NewRanger(c, 1.0)
	dev := New(ranger.Trigger(), ranger.Echo())
	var distance float64
	run(t, c, func(co *framework.Co) error {
		var err error
		distance, err = dev.MeasureOnce(co)
		return err
	})
	require.InDelta(t, 1.0, distance, 0.02)
	require.Equal(t, 1, ranger.Count())
	require.Zero(t, dev.Timeouts.Count())
}

func TestMeasureNoEcho(t *testing.T) {
	c := clock.NewSim().WithStep(10 * time.Microsecond)
	ranger := sim.NewRanger(c, 1.0)
	ranger.Drop = func(int) bool { return true }
	dev := New(ranger.Trigger(), ranger.Echo())
	var measureErr error
	run(t, c, func(co *framework.Co) error {
		_, measureErr = dev.Distance(co)
		return nil
	})
	require.True(t, errors.Is(measureErr, sensor.ErrTimeout))
	require.Equal(t, 6, ranger.Count())
	require.Equal(t, int64(6), dev.Timeouts.Count())
}

func TestMeasureWithDrops(t *testing.T) {
	c := clock.NewSim().WithStep(10 * time.Microsecond)
	ranger := sim.NewRanger(c, 0.5)
	ranger.Drop = func(n int) bool { return n%3 == 0 }
	dev := New(ranger.Trigger(), ranger.Echo())
	opts := dev.Options()
	opts.MinCount = 10
	var distance float64
	run(t, c, func(co *framework.Co) error {
		var err error
		distance, err = dev.Measure(co, opts)
		return err
	})
	require.InDelta(t, 0.5, distance, 0.02)
	require.True(t, dev.Timeouts.Count() >= 4)
}
