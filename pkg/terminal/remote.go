package terminal

import (
	"context"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/picobot/pkg/comm"
	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
	"github.com/robotalks/picobot/pkg/telemetry"
)

// RemoteHandler feeds Commands received on a link into a Mailbox and
// posts the Replies back.
type RemoteHandler struct {
	Mailbox *Mailbox
	Replies telemetry.Publisher
	Timeout time.Duration
}

// HandleMessage implements comm.MessageHandler.
func (h *RemoteHandler) HandleMessage(msg proto.Message, frame *comm.Frame) {
	cmd, ok := msg.(*pb.Command)
	if !ok {
		return
	}
	resCh := h.Mailbox.Submit(cmd.Line)
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = comm.DefaultCommandExpiration
	}
	seq := frame.Sequence
	go func() {
		var res comm.Result
		select {
		case res = <-resCh:
		case <-time.After(timeout):
			res.Err = context.DeadlineExceeded
		}
		reply := &pb.Reply{Output: res.Output}
		if res.Err != nil {
			reply.Error = res.Err.Error()
		}
		h.Replies.Post(reply, seq)
	}()
}
