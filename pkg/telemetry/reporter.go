package telemetry

import (
	"errors"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/picobot/pkg/comm"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/logging"
	"github.com/robotalks/picobot/pkg/metrics"
	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
	"github.com/robotalks/picobot/pkg/sensor"
)

// Defaults of Reporter.
const (
	DefaultInterval       = 500 * time.Millisecond
	DefaultPublishTimeout = 200 * time.Millisecond
	publishPoll           = 5 * time.Millisecond
)

// ErrPublishTimeout is reported when the link does not take a report in time.
var ErrPublishTimeout = errors.New("publish timed out")

// Publisher queues a message without blocking.
type Publisher interface {
	Post(msg proto.Message, seq uint32) comm.Pending
}

// Reporter logs the State and publishes it every Interval.
type Reporter struct {
	DeviceID       string
	State          *State
	Publisher      Publisher
	Loop           *framework.Loop
	RangerTimeouts *sensor.Counter
	IMUTimeouts    *sensor.Counter
	Interval       time.Duration
	PublishTimeout time.Duration
	Log            logging.Sink
	Metrics        *metrics.Collector

	started time.Time
}

// Report builds a Report at now.
func (r *Reporter) Report(now time.Time) *pb.Report {
	s := r.State
	report := &pb.Report{
		DeviceId:       r.DeviceID,
		UptimeSeconds:  now.Sub(r.started).Seconds(),
		Distance:       s.Distance,
		DistanceOk:     s.DistanceOK,
		Heading:        s.Euler.Heading,
		Roll:           s.Euler.Roll,
		Pitch:          s.Euler.Pitch,
		Temperature:    int32(s.Temperature),
		RangerTimeouts: uint64(r.RangerTimeouts.Count()),
		ImuTimeouts:    uint64(r.IMUTimeouts.Count()),
		Status:         s.StatusLine(),
	}
	if r.Loop != nil {
		report.PendingTasks = uint32(r.Loop.Len())
	}
	return report
}

// Run is the body of the reporter task. It never returns unless the
// loop aborts it.
func (r *Reporter) Run(co *framework.Co) error {
	if r.State == nil {
		r.State = &State{}
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	r.started = co.Now()
	next := r.started
	for {
		now := co.Now()
		report := r.Report(now)
		logging.Or(r.Log).Infof("%s", report.Status)
		if r.Publisher != nil {
			err := r.publish(co, report)
			r.Metrics.Published(err)
			if err != nil {
				logging.Or(r.Log).Warningf("telemetry: %v", err)
			}
		}
		// Skip missed ticks.
		if next = next.Add(interval); next.Before(co.Now()) {
			next = co.Now().Add(interval)
		}
		if _, err := co.SleepUntil(next); err != nil {
			return err
		}
	}
}

func (r *Reporter) publish(co *framework.Co, report *pb.Report) error {
	timeout := r.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return Await(co, r.Publisher.Post(report, 0), timeout)
}

// Await polls p from a task until it is done or timeout elapses.
func Await(co *framework.Co, p comm.Pending, timeout time.Duration) error {
	deadline := co.Now().Add(timeout)
	for !p.Done() {
		now, err := co.Sleep(publishPoll)
		if err != nil {
			return err
		}
		if now.After(deadline) {
			return ErrPublishTimeout
		}
	}
	return p.Error()
}
