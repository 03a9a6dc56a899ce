package comm

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"

	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
)

// DefaultCommandExpiration is the default expiration expecting a reply.
const DefaultCommandExpiration = 1 * time.Second

// RemoteError is an error replied by the device.
type RemoteError struct {
	Message string
}

// Error implements error.
func (e *RemoteError) Error() string {
	return e.Message
}

// Result is the outcome of a command.
type Result struct {
	Output string
	Err    error
}

// CommandFuture delivers the Result of a command.
type CommandFuture struct {
	seq      uint32
	expireAt time.Time
	elem     *list.Element
	result   chan Result
}

// ResultChan returns the channel receiving the Result.
func (f *CommandFuture) ResultChan() <-chan Result {
	return f.result
}

// Client sends terminal commands to a device and receives its reports.
type Client struct {
	Expiration time.Duration
	OnReport   func(*pb.Report)

	pipe     *Pipe
	seq      uint32
	commands list.List
	seqMap   map[uint32]*CommandFuture
	lock     sync.Mutex
}

// NewClient creates a Client over a packet transport.
func NewClient(rw PacketReadWriter) *Client {
	c := &Client{
		Expiration: DefaultCommandExpiration,
		pipe:       NewPipe(rw),
		seqMap:     make(map[uint32]*CommandFuture),
	}
	c.pipe.Handler = HandleMessageFunc(c.handleMessage)
	return c
}

// DoCommand sends a command line.
func (c *Client) DoCommand(line string) *CommandFuture {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	f := &CommandFuture{
		seq:      c.seq,
		expireAt: time.Now().Add(c.Expiration),
		result:   make(chan Result, 1),
	}
	if pending := c.pipe.Post(&pb.Command{Line: line}, f.seq); pending.Done() && pending.Error() != nil {
		f.result <- Result{Err: pending.Error()}
		return f
	}
	f.elem = c.commands.PushBack(f)
	c.seqMap[f.seq] = f
	return f
}

// Run implements Runnable.
func (c *Client) Run(ctx context.Context) error {
	go c.purgeLoop(ctx)
	return c.pipe.Run(ctx)
}

func (c *Client) handleMessage(msg proto.Message, frame *Frame) {
	switch m := msg.(type) {
	case *pb.Report:
		if fn := c.OnReport; fn != nil {
			fn(m)
		}
	case *pb.Reply:
		c.lock.Lock()
		defer c.lock.Unlock()
		f := c.seqMap[frame.Sequence]
		if f == nil {
			return
		}
		c.commands.Remove(f.elem)
		delete(c.seqMap, frame.Sequence)
		res := Result{Output: m.Output}
		if m.Error != "" {
			res.Err = &RemoteError{Message: m.Error}
		}
		f.result <- res
		close(f.result)
	}
}

func (c *Client) purgeLoop(ctx context.Context) {
	interval := c.Expiration / 4
	if interval <= 0 {
		interval = DefaultCommandExpiration / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.purgeExpired(now)
		}
	}
}

func (c *Client) purgeExpired(now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for c.commands.Len() > 0 {
		elem := c.commands.Front()
		f := elem.Value.(*CommandFuture)
		if f.expireAt.After(now) {
			break
		}
		c.commands.Remove(elem)
		delete(c.seqMap, f.seq)
		f.result <- Result{Err: context.DeadlineExceeded}
		close(f.result)
	}
}
