package comm

import "errors"

// ErrBusy is reported when the outgoing queue is full.
var ErrBusy = errors.New("outgoing queue full")

// Pending is the state of an asynchronous send.
// It is polled by tasks on the loop, which must not block.
type Pending interface {
	Done() bool
	Error() error
}

type result struct {
	doneCh chan struct{}
	err    error
}

func newResult() *result {
	return &result{doneCh: make(chan struct{})}
}

// Failed returns a Pending which is already done with err.
func Failed(err error) Pending {
	r := newResult()
	r.complete(err)
	return r
}

func (r *result) complete(err error) {
	r.err = err
	close(r.doneCh)
}

// Done implements Pending.
func (r *result) Done() bool {
	select {
	case <-r.doneCh:
		return true
	default:
		return false
	}
}

// Error implements Pending. It is nil until Done.
func (r *result) Error() error {
	if !r.Done() {
		return nil
	}
	return r.err
}

// Wait blocks until the send completes.
func (r *result) Wait() error {
	<-r.doneCh
	return r.err
}
