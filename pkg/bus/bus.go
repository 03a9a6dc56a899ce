// Package bus serializes tasks sharing a hardware bus.
package bus

import (
	"errors"
	"runtime"
	"sync"

	"tinygo.org/x/drivers"

	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/hal"
	"github.com/robotalks/picobot/pkg/logging"
	"github.com/robotalks/picobot/pkg/metrics"
)

// ErrReleased is returned when a released Handle is used.
var ErrReleased = errors.New("bus handle released")

// AsyncBus lets tasks wait cooperatively for exclusive use of a bus.
//
// Acquisition spins on TryLock, yielding between attempts. There is no
// fairness and no reentrancy: a task acquiring a bus it already holds
// spins forever.
type AsyncBus struct {
	Name    string
	Bus     hal.Bus
	Log     logging.Sink
	Metrics *metrics.Collector
}

// New wraps a bus.
func New(name string, b hal.Bus) *AsyncBus {
	return &AsyncBus{Name: name, Bus: b}
}

// Acquire waits until the bus is locked by the calling task.
func (b *AsyncBus) Acquire(co *framework.Co) (*Handle, error) {
	for {
		if h, ok := b.TryAcquire(); ok {
			return h, nil
		}
		b.Metrics.LockRetry()
		if _, err := co.Yield(); err != nil {
			return nil, err
		}
	}
}

// TryAcquire locks the bus if it is free.
func (b *AsyncBus) TryAcquire() (*Handle, bool) {
	if !b.Bus.TryLock() {
		return nil, false
	}
	h := &Handle{bus: b}
	runtime.SetFinalizer(h, (*Handle).leaked)
	return h, true
}

// With runs fn holding the bus. The bus is released when fn returns,
// fails, panics, or its task is aborted.
func (b *AsyncBus) With(co *framework.Co, fn func(*Handle) error) error {
	h, err := b.Acquire(co)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h)
}

// Handle is the ownership of a locked bus.
type Handle struct {
	bus      *AsyncBus
	released bool
	lock     sync.Mutex
}

// Release unlocks the bus. Releasing twice is a no-op.
func (h *Handle) Release() {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.bus.Bus.Unlock()
}

// Released returns true after Release.
func (h *Handle) Released() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.released
}

func (h *Handle) leaked() {
	if !h.Released() {
		logging.Or(h.bus.Log).Warningf("bus %s: handle collected while held", h.bus.Name)
		h.bus.Metrics.LockLeak()
	}
}

// Tx writes w and reads into r at addr.
func (h *Handle) Tx(addr uint16, w, r []byte) error {
	if h.Released() {
		return ErrReleased
	}
	return h.bus.Bus.Tx(addr, w, r)
}

// ReadRegister reads len(buf) bytes starting at reg.
func (h *Handle) ReadRegister(addr uint16, reg uint8, buf []byte) error {
	return h.Tx(addr, []byte{reg}, buf)
}

// WriteRegister writes data starting at reg.
func (h *Handle) WriteRegister(addr uint16, reg uint8, data ...byte) error {
	return h.Tx(addr, append([]byte{reg}, data...), nil)
}

// SoftLock adds a try-lock to a bus which has none.
type SoftLock struct {
	drivers.I2C
	lock sync.Mutex
}

// NewSoftLock wraps an I2C bus.
func NewSoftLock(i2c drivers.I2C) *SoftLock {
	return &SoftLock{I2C: i2c}
}

// TryLock implements hal.Bus.
func (s *SoftLock) TryLock() bool {
	return s.lock.TryLock()
}

// Unlock implements hal.Bus.
func (s *SoftLock) Unlock() {
	s.lock.Unlock()
}
