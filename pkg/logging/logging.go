// Package logging defines the leveled sink used by the loop and the drivers.
package logging

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// Level is the severity of a record.
type Level int

// Levels
const (
	Debug Level = iota
	Info
	Warning
	Error
)

// Marker returns the single letter used when mirroring a record.
func (l Level) Marker() string {
	switch l {
	case Debug:
		return "D"
	case Info:
		return "I"
	case Warning:
		return "W"
	case Error:
		return "E"
	default:
		return "?"
	}
}

// Sink accepts leveled messages.
type Sink interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	// Failure logs at error level with the failure attached.
	Failure(err error, format string, args ...interface{})
}

// Glog writes to glog. Debug records need -v=2.
type Glog struct{}

// Debugf implements Sink.
func (Glog) Debugf(format string, args ...interface{}) {
	if glog.V(2) {
		glog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

// Infof implements Sink.
func (Glog) Infof(format string, args ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf(format, args...))
}

// Warningf implements Sink.
func (Glog) Warningf(format string, args ...interface{}) {
	glog.WarningDepth(1, fmt.Sprintf(format, args...))
}

// Errorf implements Sink.
func (Glog) Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

// Failure implements Sink.
func (Glog) Failure(err error, format string, args ...interface{}) {
	glog.ErrorDepth(1, fmt.Sprintf(format, args...)+": "+detail(err))
}

// Default is used when a component has no sink configured.
var Default Sink = Glog{}

// Or returns s, or Default if s is nil.
func Or(s Sink) Sink {
	if s == nil {
		return Default
	}
	return s
}

func detail(err error) string {
	if err == nil {
		return "<nil>"
	}
	if d, ok := err.(interface{ Detail() string }); ok {
		return err.Error() + "\n" + d.Detail()
	}
	return err.Error()
}

// Record is a captured log record.
type Record struct {
	Level   Level
	Message string
	Err     error
}

// Recorder keeps records in memory, mostly for tests.
type Recorder struct {
	records []Record
	lock    sync.Mutex
}

func (r *Recorder) add(level Level, err error, format string, args ...interface{}) {
	r.lock.Lock()
	r.records = append(r.records, Record{Level: level, Message: fmt.Sprintf(format, args...), Err: err})
	r.lock.Unlock()
}

// Debugf implements Sink.
func (r *Recorder) Debugf(format string, args ...interface{}) { r.add(Debug, nil, format, args...) }

// Infof implements Sink.
func (r *Recorder) Infof(format string, args ...interface{}) { r.add(Info, nil, format, args...) }

// Warningf implements Sink.
func (r *Recorder) Warningf(format string, args ...interface{}) { r.add(Warning, nil, format, args...) }

// Errorf implements Sink.
func (r *Recorder) Errorf(format string, args ...interface{}) { r.add(Error, nil, format, args...) }

// Failure implements Sink.
func (r *Recorder) Failure(err error, format string, args ...interface{}) {
	r.add(Error, err, format, args...)
}

// Records returns a copy of the records.
func (r *Recorder) Records() []Record {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Record(nil), r.records...)
}

// At returns the records with the given level.
func (r *Recorder) At(level Level) []Record {
	var res []Record
	for _, rec := range r.Records() {
		if rec.Level == level {
			res = append(res, rec)
		}
	}
	return res
}
