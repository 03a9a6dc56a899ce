package comm

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/picobot/pkg/comm/stream"
	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
)

type devicePair struct {
	device *Pipe
	client *Client
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDevicePair(t *testing.T) *devicePair {
	deviceEnd, clientEnd := net.Pipe()
	p := &devicePair{
		device: NewPipe(stream.New(deviceEnd)),
		client: NewClient(stream.New(clientEnd)),
	}
	p.device.Handler = HandleMessageFunc(func(msg proto.Message, frame *Frame) {
		cmd, ok := msg.(*pb.Command)
		if !ok {
			return
		}
		reply := &pb.Reply{Output: "echo " + cmd.Line}
		if cmd.Line == "fail" {
			reply = &pb.Reply{Error: "no such command"}
		}
		p.device.Post(reply, frame.Sequence)
	})
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.device.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.client.Run(ctx)
	}()
	t.Cleanup(p.stop)
	return p
}

func (p *devicePair) stop() {
	p.cancel()
	p.wg.Wait()
}

func waitResult(t *testing.T, f *CommandFuture) Result {
	select {
	case res := <-f.ResultChan():
		return res
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no result")
	}
	return Result{}
}

func TestClientCommandReply(t *testing.T) {
	p := newDevicePair(t)
	res := waitResult(t, p.client.DoCommand("ping"))
	require.NoError(t, res.Err)
	assert.Equal(t, "echo ping", res.Output)

	res = waitResult(t, p.client.DoCommand("fail"))
	var remote *RemoteError
	require.ErrorAs(t, res.Err, &remote)
	assert.Equal(t, "no such command", remote.Message)
}

func TestClientReceivesReports(t *testing.T) {
	p := newDevicePair(t)
	reports := make(chan *pb.Report, 1)
	p.client.OnReport = func(r *pb.Report) { reports <- r }
	require.NoError(t, p.device.Send(&pb.Report{DeviceId: "bot", Status: "OK"}, 0))
	select {
	case r := <-reports:
		assert.Equal(t, "bot", r.DeviceId)
		assert.Equal(t, "OK", r.Status)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no report")
	}
}

func TestPendingCompletesAfterWrite(t *testing.T) {
	p := newDevicePair(t)
	pending := p.device.Post(&pb.Report{DeviceId: "bot"}, 0)
	require.Eventually(t, pending.Done, 2*time.Second, time.Millisecond)
	assert.NoError(t, pending.Error())
}

type blockedWriter struct{}

func (blockedWriter) ReadPacket() ([]byte, error) { select {} }
func (blockedWriter) WritePacket([]byte) error    { select {} }

func TestPostNeverBlocks(t *testing.T) {
	p := NewPipe(blockedWriter{})
	var last Pending
	for i := 0; i <= DefaultQueueSize; i++ {
		last = p.Post(&pb.Report{}, 0)
	}
	require.True(t, last.Done())
	assert.ErrorIs(t, last.Error(), ErrBusy)
}

func TestClientCommandExpires(t *testing.T) {
	c := NewClient(blockedWriter{})
	f := c.DoCommand("ping")
	c.purgeExpired(time.Now().Add(time.Hour))
	res := waitResult(t, f)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}
