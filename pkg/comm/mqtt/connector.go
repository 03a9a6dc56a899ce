package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/robotalks/picobot/pkg/comm"
)

// Connector finds devices on the broker and connects clients to them.
type Connector struct {
	DiscoverTimeout time.Duration
	BrokerURL       string
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// NewConnector creates a Connector.
func NewConnector(brokerURL string) (*Connector, error) {
	if _, _, err := ClientOptionsFromURL(brokerURL); err != nil {
		return nil, err
	}
	return &Connector{DiscoverTimeout: DefaultDiscoverTimeout, BrokerURL: brokerURL}, nil
}

func (c *Connector) queue() (*Queue, error) {
	return NewQueueFromURL(c.BrokerURL)
}

// Discover collects the DeviceInfo retained on the broker.
func (c *Connector) Discover(ctx context.Context) (res []comm.DeviceInfo, err error) {
	q, err := c.queue()
	if err != nil {
		return nil, err
	}
	q.Connect()
	defer q.Close()
	resCh := make(chan comm.DeviceInfo, 1)
	q.Sub("+/meta", Handler(func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		var info comm.DeviceInfo
		if json.Unmarshal(payload, &info) != nil || info.ID == "" {
			info.ID = strings.TrimSuffix(topic, "/meta")
		}
		select {
		case resCh <- info:
		case <-time.After(time.Second):
		}
	}))

	dur := c.DiscoverTimeout
	if dur == 0 {
		dur = DefaultDiscoverTimeout
	}
	timeout := time.After(dur)
	for {
		select {
		case info := <-resCh:
			res = append(res, info)
		case <-timeout:
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}

// Connect connects a client to the device with id.
// The returned Client must be run to exchange frames.
func (c *Connector) Connect(ctx context.Context, id string) (*comm.Client, *Queue, error) {
	q, err := c.queue()
	if err != nil {
		return nil, nil, err
	}
	client := comm.NewClient(NewPacketReadWriter(q).ForClient(id))
	token := q.Connect()
	select {
	case <-ctx.Done():
		q.Close()
		return nil, nil, ctx.Err()
	default:
	}
	if !token.WaitTimeout(DefaultConnectTimeout) {
		q.Close()
		return nil, nil, context.DeadlineExceeded
	}
	if err := token.Error(); err != nil {
		q.Close()
		return nil, nil, err
	}
	return client, q, nil
}

// DefaultConnectTimeout bounds the broker connection.
const DefaultConnectTimeout = 5 * time.Second
