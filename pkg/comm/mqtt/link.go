package mqtt

import (
	"context"
	"encoding/json"

	"github.com/robotalks/picobot/pkg/comm"
)

// Link connects a device to the broker: it announces DeviceInfo on
// id/meta, retained and cleared by the will when the device goes away,
// and exchanges frames on id/msg and id/cmd.
type Link struct {
	Queue *Queue
	Info  comm.DeviceInfo
	Pipe  *comm.Pipe

	metaJSON []byte
}

// NewLink creates a Link.
func NewLink(brokerURL string, info comm.DeviceInfo) (*Link, error) {
	meta, err := json.Marshal(&info)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+info.ID+"/meta", nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("picobot:" + info.ID)
	}
	l := &Link{
		Queue:    NewQueue(opts, topicPrefix),
		Info:     info,
		metaJSON: meta,
	}
	l.Queue.OnConnect = func(*Queue) { l.onConnected() }
	l.Pipe = comm.NewPipe(NewPacketReadWriter(l.Queue).ForDevice(info.ID))
	return l, nil
}

// Name implements Named.
func (l *Link) Name() string {
	return "mqtt"
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	token := l.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	err := l.Pipe.Run(ctx)
	l.Queue.PubWith(l.Info.ID+"/meta", nil, 1, true).WaitTimeout(PublishTimeout)
	l.Queue.Close()
	return err
}

func (l *Link) onConnected() {
	l.Queue.PubWith(l.Info.ID+"/meta", l.metaJSON, 1, true)
}
