package app

import (
	"math"
	"time"

	"github.com/robotalks/picobot/pkg/framework"
)

// main lets the peripherals boot, checks the IMU, then starts the
// telemetry and sensor tasks.
func (a *App) main(co *framework.Co) error {
	a.Log.Infof("starting %s", a.Config.ID())
	if _, err := co.Sleep(a.Config.BootDelay.D()); err != nil {
		return err
	}
	ok, err := a.IMU.Ping(co)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	a.Loop.Spawn("telemetry", a.Reporter.Run)
	a.Loop.Spawn("distance", a.pollDistance)
	if err := a.IMU.Init(co, a.Config.IMU.Deadline.D()); err != nil {
		a.Log.Failure(err, "%s init failed, orientation disabled", a.IMU)
		return nil
	}
	a.Loop.Spawn("orientation", a.pollOrientation)
	return nil
}

func (a *App) pollDistance(co *framework.Co) error {
	interval := a.Config.Ranger.Interval.D()
	opts := a.Config.MeasureOptions()
	for {
		start := co.Now()
		d, err := a.Ranger.Measure(co, opts)
		if err != nil {
			a.State.ClearDistance()
			a.Log.Warningf("distance: %v", err)
		} else {
			a.State.SetDistance(d, co.Now())
		}
		if err := sleepUntil(co, start.Add(interval)); err != nil {
			return err
		}
	}
}

func (a *App) pollOrientation(co *framework.Co) error {
	interval := a.Config.IMU.Interval.D()
	for {
		start := co.Now()
		euler, err := a.IMU.ReadEuler(co)
		if err == nil {
			var temp int8
			if temp, err = a.IMU.ReadTemperature(co); err == nil {
				a.State.SetOrientation(euler, temp)
			}
		}
		if err != nil {
			a.Log.Warningf("orientation: %v", err)
		}
		if err := sleepUntil(co, start.Add(interval)); err != nil {
			return err
		}
	}
}

// simulation moves the simulated world: the robot turns slowly while an
// obstacle comes and goes between 0.2m and 1.8m.
func (a *App) simulation(co *framework.Co) error {
	start := co.Now()
	for {
		t := co.Now().Sub(start).Seconds()
		a.Sim.Ranger.SetDistance(1.0 + 0.8*math.Sin(t/5))
		a.Sim.IMU.SetEuler(math.Mod(t*10, 360), 0, 0)
		if _, err := co.Sleep(100 * time.Millisecond); err != nil {
			return err
		}
	}
}

// sleepUntil yields instead when t already passed, so an overrun is not
// reported as a late resume.
func sleepUntil(co *framework.Co, t time.Time) (err error) {
	if t.After(co.Now()) {
		_, err = co.SleepUntil(t)
	} else {
		_, err = co.Yield()
	}
	return
}
