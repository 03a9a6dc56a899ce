package terminal

import (
	"github.com/robotalks/picobot/pkg/comm"
)

// DefaultMailboxSize is the number of command lines waiting for the loop.
const DefaultMailboxSize = 16

// Request is a command line waiting for the terminal task.
type Request struct {
	Line string

	resultCh chan comm.Result
}

func (r *Request) complete(res comm.Result) {
	r.resultCh <- res
	close(r.resultCh)
}

// Mailbox hands command lines from other goroutines to the terminal task,
// which polls it from the loop.
type Mailbox struct {
	ch chan *Request
}

// NewMailbox creates a Mailbox holding up to size lines.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{ch: make(chan *Request, size)}
}

// Submit queues a line. The result is delivered once the terminal task
// executed it, or immediately with comm.ErrBusy if the Mailbox is full.
func (m *Mailbox) Submit(line string) <-chan comm.Result {
	req := &Request{Line: line, resultCh: make(chan comm.Result, 1)}
	select {
	case m.ch <- req:
	default:
		req.complete(comm.Result{Err: comm.ErrBusy})
	}
	return req.resultCh
}

// Len returns the number of queued lines.
func (m *Mailbox) Len() int {
	return len(m.ch)
}

func (m *Mailbox) take() (*Request, bool) {
	select {
	case req := <-m.ch:
		return req, true
	default:
		return nil, false
	}
}
