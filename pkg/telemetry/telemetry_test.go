package telemetry

import (
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/picobot/pkg/clock"
	"github.com/robotalks/picobot/pkg/comm"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/logging"
	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
	"github.com/robotalks/picobot/pkg/sensor/bno055"
)

type recordingPublisher struct {
	reports []*pb.Report
	at      []time.Time
	clock   clock.Clock
	pending func() comm.Pending
	stopAt  int
	loop    *framework.Loop
}

func (p *recordingPublisher) Post(msg proto.Message, seq uint32) comm.Pending {
	p.reports = append(p.reports, msg.(*pb.Report))
	p.at = append(p.at, p.clock.Now())
	if len(p.reports) >= p.stopAt {
		p.loop.Stop()
	}
	if p.pending != nil {
		return p.pending()
	}
	return comm.Failed(nil)
}

type neverDone struct{}

func (neverDone) Done() bool   { return false }
func (neverDone) Error() error { return nil }

func newReporter(stopAt int) (*Reporter, *recordingPublisher, *logging.Recorder) {
	c := clock.NewSim()
	loop := framework.NewLoop(c)
	rec := &logging.Recorder{}
	loop.Log = rec
	pub := &recordingPublisher{clock: c, stopAt: stopAt, loop: loop}
	r := &Reporter{
		DeviceID:  "bot",
		State:     &State{},
		Publisher: pub,
		Loop:      loop,
		Log:       rec,
	}
	loop.Spawn("telemetry", r.Run)
	return r, pub, rec
}

func TestStatusLine(t *testing.T) {
	s := &State{}
	assert.Equal(t, "OK | -", s.StatusLine())
	s.SetDistance(0.42, clock.Epoch)
	s.SetOrientation(bno055.Euler{Heading: 90, Pitch: -1.5}, 24)
	assert.Equal(t, "OK | 0.420m | h=90.0 r=0.0 p=-1.5 | 24C", s.StatusLine())
	s.ClearDistance()
	assert.Equal(t, "OK | - | h=90.0 r=0.0 p=-1.5 | 24C", s.StatusLine())
}

func TestReporterPeriod(t *testing.T) {
	r, pub, rec := newReporter(4)
	r.State.SetDistance(1.5, clock.Epoch)
	require.NoError(t, r.Loop.RunUntilComplete())

	require.Len(t, pub.reports, 4)
	for i := 1; i < len(pub.at); i++ {
		assert.Equal(t, DefaultInterval, pub.at[i].Sub(pub.at[i-1]))
	}
	last := pub.reports[3]
	assert.Equal(t, "bot", last.DeviceId)
	assert.Equal(t, 1.5, last.Distance)
	assert.True(t, last.DistanceOk)
	assert.InDelta(t, 1.5, last.UptimeSeconds, 1e-9)
	assert.Equal(t, "OK | 1.500m", last.Status)

	infos := rec.At(logging.Info)
	require.Len(t, infos, 4)
	assert.Equal(t, "OK | 1.500m", infos[0].Message)
	assert.Empty(t, rec.At(logging.Warning))
}

func TestReporterPublishTimeout(t *testing.T) {
	r, pub, rec := newReporter(2)
	pub.pending = func() comm.Pending { return neverDone{} }
	require.NoError(t, r.Loop.RunUntilComplete())

	warnings := rec.At(logging.Warning)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0].Message, ErrPublishTimeout.Error())
	require.Len(t, pub.at, 2)
	assert.Equal(t, DefaultInterval, pub.at[1].Sub(pub.at[0]))
}

func TestAwaitFailure(t *testing.T) {
	loop := framework.NewLoop(clock.NewSim())
	var err error
	loop.Spawn("await", func(co *framework.Co) error {
		err = Await(co, comm.Failed(comm.ErrBusy), time.Second)
		return nil
	})
	require.NoError(t, loop.RunUntilComplete())
	assert.ErrorIs(t, err, comm.ErrBusy)
}

func TestOpen(t *testing.T) {
	l, err := Open("mqtt://localhost:1883/lab/", comm.DeviceInfo{ID: "bot"})
	require.NoError(t, err)
	assert.Equal(t, "link:mqtt", l.Name())
	require.NotNil(t, l.Pipe)

	_, err = Open("ftp://localhost", comm.DeviceInfo{ID: "bot"})
	assert.Error(t, err)
	_, err = Open("serial:///dev/picobot-missing", comm.DeviceInfo{ID: "bot"})
	assert.Error(t, err)
}
