package terminal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/sensor"
	"github.com/robotalks/picobot/pkg/sensor/bno055"
	"github.com/robotalks/picobot/pkg/sensor/hcsr04"
	"github.com/robotalks/picobot/pkg/telemetry"
)

// ErrNoDevice is returned by a command whose device is not attached.
var ErrNoDevice = errors.New("device not attached")

// Device is what the builtin commands inspect.
type Device struct {
	Loop    *framework.Loop
	Ranger  *hcsr04.Device
	IMU     *bno055.Device
	State   *telemetry.State
	Started time.Time
}

// Builtins returns the commands on d.
func Builtins(d *Device) []*Command {
	return []*Command{
		{Name: "tasks", Help: "list pending tasks", Func: d.tasks},
		{Name: "distance", Help: "measure the distance", Func: d.distance},
		{Name: "ping", Help: "ping the IMU", Func: d.ping},
		{Name: "stats", Help: "show scheduler stats", Func: d.stats},
		{Name: "timeouts", Help: "show sensor timeouts", Func: d.timeouts},
	}
}

func (d *Device) tasks(co *framework.Co, _ []string) (string, error) {
	now := co.Now()
	var lines []string
	for _, info := range d.Loop.Tasks() {
		if wait := info.ResumeAt.Sub(now); wait > 0 {
			lines = append(lines, fmt.Sprintf("%s in %v", info.Name, wait))
		} else {
			lines = append(lines, info.Name+" ready")
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Device) distance(co *framework.Co, _ []string) (string, error) {
	if d.Ranger == nil {
		return "", ErrNoDevice
	}
	dist, err := d.Ranger.Distance(co)
	if err != nil {
		return "", err
	}
	if d.State != nil {
		d.State.SetDistance(dist, co.Now())
	}
	return fmt.Sprintf("%.3fm", dist), nil
}

func (d *Device) ping(co *framework.Co, _ []string) (string, error) {
	if d.IMU == nil {
		return "", ErrNoDevice
	}
	ok, err := d.IMU.Ping(co)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(ok), nil
}

func (d *Device) stats(co *framework.Co, _ []string) (string, error) {
	return fmt.Sprintf("uptime=%v pending=%d unawaited=%d",
		co.Now().Sub(d.Started).Truncate(time.Millisecond),
		d.Loop.Len(), framework.UnawaitedCount()), nil
}

func (d *Device) timeouts(*framework.Co, []string) (string, error) {
	var ranger, imu *sensor.Counter
	if d.Ranger != nil {
		ranger = d.Ranger.Timeouts
	}
	if d.IMU != nil {
		imu = d.IMU.Timeouts
	}
	return fmt.Sprintf("hcsr04=%d bno055=%d", ranger.Count(), imu.Count()), nil
}
