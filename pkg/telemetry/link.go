package telemetry

import (
	"context"
	"fmt"
	"net/url"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/picobot/pkg/comm"
	"github.com/robotalks/picobot/pkg/comm/mqtt"
	"github.com/robotalks/picobot/pkg/comm/stream"
	"github.com/robotalks/picobot/pkg/comm/websocket"
)

// Link is the device side of a connection to its operators.
type Link struct {
	Pipe *comm.Pipe

	scheme string
	run    func(context.Context) error
}

// Open creates a Link from a URL. Supported schemes:
//
//	mqtt://broker:1883/prefix/, mqtts://...
//	ws://host/path, wss://...
//	serial:///dev/ttyACM0?baud=115200
func Open(rawURL string, info comm.DeviceInfo) (*Link, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	l := &Link{scheme: u.Scheme}
	switch u.Scheme {
	case "mqtt", "mqtts":
		ml, err := mqtt.NewLink(rawURL, info)
		if err != nil {
			return nil, err
		}
		l.Pipe, l.run = ml.Pipe, ml.Run
	case "ws", "wss":
		rw, err := websocket.Dial(rawURL)
		if err != nil {
			return nil, err
		}
		l.Pipe = comm.NewPipe(rw)
	case "serial":
		rw, err := stream.OpenSerial(rawURL)
		if err != nil {
			return nil, err
		}
		l.Pipe = comm.NewPipe(rw)
	default:
		return nil, fmt.Errorf("unsupported telemetry URL %q", rawURL)
	}
	if l.run == nil {
		l.run = l.Pipe.Run
	}
	return l, nil
}

// Name implements Named.
func (l *Link) Name() string {
	return "link:" + l.scheme
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	return l.run(ctx)
}

// Post implements Publisher.
func (l *Link) Post(msg proto.Message, seq uint32) comm.Pending {
	return l.Pipe.Post(msg, seq)
}

// Handle sets the handler of messages from operators.
func (l *Link) Handle(h comm.MessageHandler) {
	l.Pipe.Handler = h
}
