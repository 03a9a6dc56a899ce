package terminal

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/picobot/pkg/bus"
	"github.com/robotalks/picobot/pkg/clock"
	"github.com/robotalks/picobot/pkg/comm"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/hal/sim"
	"github.com/robotalks/picobot/pkg/logging"
	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
	"github.com/robotalks/picobot/pkg/sensor/bno055"
	"github.com/robotalks/picobot/pkg/sensor/hcsr04"
	"github.com/robotalks/picobot/pkg/telemetry"
)

type fixture struct {
	clock   *clock.Sim
	loop    *framework.Loop
	log     *logging.Recorder
	mailbox *Mailbox
	term    *Terminal
	device  *Device
}

func newFixture() *fixture {
	f := &fixture{
		clock:   clock.NewSim().WithStep(10 * time.Microsecond),
		log:     &logging.Recorder{},
		mailbox: NewMailbox(0),
	}
	f.loop = framework.NewLoop(f.clock)
	f.loop.Log = f.log
	f.term = New(f.mailbox)
	f.term.Log = f.log
	f.term.Register(&Command{Name: "quit", Func: func(*framework.Co, []string) (string, error) {
		f.loop.Stop()
		return "bye", nil
	}})
	f.device = &Device{Loop: f.loop, State: &telemetry.State{}, Started: f.clock.Now()}
	return f
}

// run submits lines followed by quit and runs the loop.
func (f *fixture) run(t *testing.T, lines ...string) []comm.Result {
	var chans []<-chan comm.Result
	for _, line := range append(lines, "quit") {
		chans = append(chans, f.mailbox.Submit(line))
	}
	f.loop.Spawn("terminal", f.term.Run)
	require.NoError(t, f.loop.RunUntilComplete())
	results := make([]comm.Result, 0, len(lines))
	for _, ch := range chans[:len(lines)] {
		select {
		case res := <-ch:
			results = append(results, res)
		default:
			require.FailNow(t, "no result")
		}
	}
	return results
}

func TestExecAndErrors(t *testing.T) {
	f := newFixture()
	f.term.Register(&Command{Name: "boom", Func: func(*framework.Co, []string) (string, error) {
		panic("boom")
	}}, &Command{Name: "echo", Func: func(_ *framework.Co, args []string) (string, error) {
		return strings.Join(args, " "), nil
	}})
	results := f.run(t, "echo hello  world", "", "bogus 1", "boom", "help")

	assert.Equal(t, "hello world", results[0].Output)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	var unknown *UnknownCommandError
	require.ErrorAs(t, results[2].Err, &unknown)
	assert.Equal(t, "bogus", unknown.Name)
	var panicErr *framework.PanicError
	assert.ErrorAs(t, results[3].Err, &panicErr)
	assert.Contains(t, results[4].Output, "quit")

	errs := f.log.At(logging.Error)
	require.Len(t, errs, 2)
	assert.Equal(t, "error in the remote terminal: `unknown command \"bogus\"` for input `bogus 1`", errs[0].Message)
}

func TestTerminalPolls(t *testing.T) {
	f := newFixture()
	f.loop.Spawn("terminal", f.term.Run)
	f.loop.Spawn("feeder", func(co *framework.Co) error {
		if _, err := co.Sleep(100 * time.Millisecond); err != nil {
			return err
		}
		f.mailbox.Submit("quit")
		return nil
	})
	require.NoError(t, f.loop.RunUntilComplete())
	assert.GreaterOrEqual(t, f.clock.Elapsed(), 100*time.Millisecond)
	assert.Less(t, f.clock.Elapsed(), 100*time.Millisecond+2*DefaultPoll)
}

func TestMailboxFull(t *testing.T) {
	mb := NewMailbox(1)
	mb.Submit("a")
	res := <-mb.Submit("b")
	assert.ErrorIs(t, res.Err, comm.ErrBusy)
	assert.Equal(t, 1, mb.Len())
}

func TestBuiltins(t *testing.T) {
	f := newFixture()
	ranger := sim.NewRanger(f.clock, 0.5)
	f.device.Ranger = hcsr04.New(ranger.Trigger(), ranger.Echo())
	i2c := sim.NewBus()
	sim.NewIMU(i2c, uint8(bno055.AddressA))
	f.device.IMU = bno055.New(bus.New("i2c0", bus.NewSoftLock(i2c)), bno055.AddressA)
	f.term.Register(Builtins(f.device)...)
	f.loop.Spawn("idle", func(co *framework.Co) error {
		_, err := co.Sleep(time.Hour)
		return err
	})

	results := f.run(t, "distance", "ping", "timeouts", "tasks", "stats")
	for _, res := range results {
		require.NoError(t, res.Err)
	}
	dist, err := strconv.ParseFloat(strings.TrimSuffix(results[0].Output, "m"), 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, dist, 0.01)
	assert.True(t, f.device.State.DistanceOK)
	assert.Equal(t, "true", results[1].Output)
	assert.Equal(t, "hcsr04=0 bno055=0", results[2].Output)
	assert.Contains(t, results[3].Output, "idle in ")
	assert.Contains(t, results[4].Output, "pending=")
}

func TestBuiltinsWithoutDevices(t *testing.T) {
	f := newFixture()
	f.term.Register(Builtins(f.device)...)
	results := f.run(t, "distance", "ping", "timeouts")
	assert.ErrorIs(t, results[0].Err, ErrNoDevice)
	assert.ErrorIs(t, results[1].Err, ErrNoDevice)
	assert.Equal(t, "hcsr04=0 bno055=0", results[2].Output)
}

type replies struct {
	ch chan *pb.Reply
}

func (r *replies) Post(msg proto.Message, seq uint32) comm.Pending {
	reply := msg.(*pb.Reply)
	reply.Output += " #" + strconv.Itoa(int(seq))
	r.ch <- reply
	return comm.Failed(nil)
}

func TestRemoteHandler(t *testing.T) {
	f := newFixture()
	f.term.Register(&Command{Name: "fail", Func: func(*framework.Co, []string) (string, error) {
		return "", errors.New("broken")
	}})
	r := &replies{ch: make(chan *pb.Reply, 2)}
	h := &RemoteHandler{Mailbox: f.mailbox, Replies: r}
	h.HandleMessage(&pb.Command{Line: "help"}, &comm.Frame{Frame: pb.Frame{Sequence: 3}})
	h.HandleMessage(&pb.Command{Line: "fail"}, &comm.Frame{Frame: pb.Frame{Sequence: 4}})
	h.HandleMessage(&pb.Report{}, &comm.Frame{})
	f.run(t)

	got := map[string]*pb.Reply{}
	for i := 0; i < 2; i++ {
		select {
		case reply := <-r.ch:
			got[reply.Output[strings.LastIndex(reply.Output, "#"):]] = reply
		case <-time.After(2 * time.Second):
			require.FailNow(t, "no reply")
		}
	}
	require.Contains(t, got, "#3")
	assert.Contains(t, got["#3"].Output, "help")
	assert.Empty(t, got["#3"].Error)
	require.Contains(t, got, "#4")
	assert.Equal(t, "broken", got["#4"].Error)
}

func TestShellExec(t *testing.T) {
	s := &Shell{Timeout: 50 * time.Millisecond}
	_, err := s.Exec("help")
	assert.ErrorIs(t, err, ErrNotConnected)

	s.Target = &Target{Name: "local", Exec: func(line string) <-chan comm.Result {
		ch := make(chan comm.Result, 1)
		if line != "hang" {
			ch <- comm.Result{Output: "ran " + line}
		}
		return ch
	}}
	res, err := s.Exec("tasks")
	require.NoError(t, err)
	assert.Equal(t, "ran tasks", res.Output)
	_, err = s.Exec("hang")
	assert.Error(t, err)
}

func TestFormatInfo(t *testing.T) {
	assert.Equal(t, "bot", FormatInfo(comm.DeviceInfo{ID: "bot"}))
	assert.Equal(t, "bot v1: hcsr04, bno055",
		FormatInfo(comm.DeviceInfo{ID: "bot", Version: "v1", Sensors: []string{"hcsr04", "bno055"}}))
}
