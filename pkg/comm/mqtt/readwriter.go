package mqtt

import (
	"context"
	"io"
	"time"
)

// PublishTimeout bounds the wait for a publish acknowledgement.
const PublishTimeout = 5 * time.Second

// ReadWriter implements PacketReadWriter on a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh chan []byte
	doneCh   chan struct{}
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, 4),
		doneCh:   make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForDevice sets topics as seen by the device:
// SubTopic = id/cmd
// PubTopic = id/msg
func (p *ReadWriter) ForDevice(id string) *ReadWriter {
	return p.WithTopics(id+"/cmd", id+"/msg")
}

// ForClient sets topics as seen by an operator of the device:
// SubTopic = id/msg
// PubTopic = id/cmd
func (p *ReadWriter) ForClient(id string) *ReadWriter {
	return p.WithTopics(id+"/msg", id+"/cmd")
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.doneCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	if !token.WaitTimeout(PublishTimeout) {
		return context.DeadlineExceeded
	}
	return token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.SubTopic, Handler(p.handleMsg))
	<-ctx.Done()
	close(p.doneCh)
	sub.Close()
	return ctx.Err()
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.doneCh:
	default:
		p.Queue.log().Warningf("mqtt: dropped packet on %s", p.SubTopic)
	}
}
