// Package telemetry keeps the readings of the sensor tasks and reports
// them periodically to the log and to the operators' link.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/robotalks/picobot/pkg/sensor/bno055"
)

// State is the latest readings of the sensors.
// It is written by sensor tasks and read by the reporter, all on the loop.
type State struct {
	Distance    float64
	DistanceOK  bool
	DistanceAt  time.Time
	Euler       bno055.Euler
	EulerOK     bool
	Temperature int8
}

// SetDistance records a distance reading.
func (s *State) SetDistance(d float64, at time.Time) {
	s.Distance, s.DistanceOK, s.DistanceAt = d, true, at
}

// ClearDistance marks the distance unknown after a failed measurement.
func (s *State) ClearDistance() {
	s.DistanceOK = false
}

// SetOrientation records an IMU reading.
func (s *State) SetOrientation(e bno055.Euler, temp int8) {
	s.Euler, s.EulerOK, s.Temperature = e, true, temp
}

// StatusLine formats the status like "OK | 0.420m | h=90.0 r=0.0 p=-1.5 | 24C".
func (s *State) StatusLine() string {
	fields := []string{"OK"}
	if s.DistanceOK {
		fields = append(fields, fmt.Sprintf("%.3fm", s.Distance))
	} else {
		fields = append(fields, "-")
	}
	if s.EulerOK {
		fields = append(fields,
			fmt.Sprintf("h=%.1f r=%.1f p=%.1f", s.Euler.Heading, s.Euler.Roll, s.Euler.Pitch),
			fmt.Sprintf("%dC", s.Temperature))
	}
	return strings.Join(fields, " | ")
}
