package logging

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/robotalks/picobot/pkg/clock"
)

// Mirror forwards every record to Sink and writes a copy as a
// "<uptime> [L] message" line to W, e.g. a UART.
type Mirror struct {
	Sink  Sink
	W     io.Writer
	Clock clock.Clock

	start     time.Time
	startOnce sync.Once
	lock      sync.Mutex
}

// NewMirror creates a Mirror.
func NewMirror(sink Sink, w io.Writer, c clock.Clock) *Mirror {
	m := &Mirror{Sink: Or(sink), W: w, Clock: c}
	m.startOnce.Do(func() { m.start = c.Now() })
	return m
}

// OpenUART opens a serial port to mirror logs to.
func OpenUART(name string, baud int) (io.WriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, err
	}
	return port, nil
}

func (m *Mirror) write(level Level, msg string) {
	m.startOnce.Do(func() { m.start = m.Clock.Now() })
	line := fmt.Sprintf("%.3f [%s] %s\r\n", m.Clock.Now().Sub(m.start).Seconds(), level.Marker(), msg)
	m.lock.Lock()
	// a broken UART must not take the loop down; the record still reaches Sink.
	m.W.Write([]byte(line))
	m.lock.Unlock()
}

// Debugf implements Sink.
func (m *Mirror) Debugf(format string, args ...interface{}) {
	m.Sink.Debugf(format, args...)
	m.write(Debug, fmt.Sprintf(format, args...))
}

// Infof implements Sink.
func (m *Mirror) Infof(format string, args ...interface{}) {
	m.Sink.Infof(format, args...)
	m.write(Info, fmt.Sprintf(format, args...))
}

// Warningf implements Sink.
func (m *Mirror) Warningf(format string, args ...interface{}) {
	m.Sink.Warningf(format, args...)
	m.write(Warning, fmt.Sprintf(format, args...))
}

// Errorf implements Sink.
func (m *Mirror) Errorf(format string, args ...interface{}) {
	m.Sink.Errorf(format, args...)
	m.write(Error, fmt.Sprintf(format, args...))
}

// Failure implements Sink.
func (m *Mirror) Failure(err error, format string, args ...interface{}) {
	m.Sink.Failure(err, format, args...)
	m.write(Error, fmt.Sprintf(format, args...)+": "+detail(err))
}
