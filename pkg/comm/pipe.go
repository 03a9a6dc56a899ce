package comm

import (
	"context"
	"errors"
	"io"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/logging"
	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
)

// ErrClosed completes sends still queued when a Pipe stops.
var ErrClosed = errors.New("pipe closed")

// DefaultQueueSize is the number of outgoing packets a Pipe buffers.
const DefaultQueueSize = 8

// MessageHandler processes a received message.
type MessageHandler interface {
	HandleMessage(msg proto.Message, frame *Frame)
}

// HandleMessageFunc is the func form of MessageHandler.
type HandleMessageFunc func(proto.Message, *Frame)

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(msg proto.Message, frame *Frame) {
	f(msg, frame)
}

// Pipe is a bi-directional pipe for framed messages.
// Sends are queued and written by Run, so Post never blocks.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    MessageHandler
	Log        logging.Sink

	outCh chan outgoing
}

type outgoing struct {
	pkt    []byte
	result *result
}

// NewPipe creates a Pipe with given PacketReadWriter.
func NewPipe(rw PacketReadWriter) *Pipe {
	return &Pipe{ReadWriter: rw, outCh: make(chan outgoing, DefaultQueueSize)}
}

// Post queues a message. The Pending fails with ErrBusy when the queue
// is full.
func (p *Pipe) Post(msg proto.Message, seq uint32) Pending {
	frame, err := FrameFrom(msg, seq)
	if err != nil {
		return Failed(err)
	}
	pkt, err := frame.Encode()
	if err != nil {
		return Failed(err)
	}
	r := newResult()
	select {
	case p.outCh <- outgoing{pkt: pkt, result: r}:
		return r
	default:
		return Failed(ErrBusy)
	}
}

// Send posts a message and waits until it is written.
func (p *Pipe) Send(msg proto.Message, seq uint32) error {
	pending := p.Post(msg, seq)
	if r, ok := pending.(*result); ok {
		return r.Wait()
	}
	return pending.Error()
}

// Run implements Runnable.
func (p *Pipe) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if runnable, ok := p.ReadWriter.(framework.Runnable); ok {
		go runnable.Run(ctx)
	}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.writeLoop(ctx)
	}()
	defer func() { <-writerDone }()
	defer cancel()
	return framework.RunWithContextCancel(ctx, func() { p.Close() }, p.readLoop)
}

func (p *Pipe) writeLoop(ctx context.Context) {
	for {
		select {
		case out := <-p.outCh:
			out.result.complete(p.ReadWriter.WritePacket(out.pkt))
		case <-ctx.Done():
			for {
				select {
				case out := <-p.outCh:
					out.result.complete(ErrClosed)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipe) readLoop() error {
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if err != nil {
			return err
		}
		frame, err := DecodeFrame(pkt)
		if err != nil {
			logging.Or(p.Log).Warningf("bad packet: %v", err)
			continue
		}
		msg, err := frame.Decode()
		if err != nil {
			// A bad command still gets a reply, other frames are ignored.
			if frame.IsCommand() && !frame.IsReply() {
				p.Post(&pb.Reply{Error: err.Error()}, frame.Sequence)
			}
			continue
		}
		if h := p.Handler; h != nil {
			h.HandleMessage(msg, frame)
		}
	}
}

// Close implements io.Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
