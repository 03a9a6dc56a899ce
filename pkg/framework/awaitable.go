package framework

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/robotalks/picobot/pkg/logging"
)

// Awaitable describes when a suspended task wants control back.
// It is consumed exactly once, by the Loop which re-enqueues its task.
type Awaitable struct {
	resumeAt time.Time
	tag      string
	consumed atomic.Bool
}

var unawaited atomic.Int64

// UnawaitedReporter receives Awaitables collected without being awaited.
// It runs on the finalizer goroutine.
var UnawaitedReporter = func(a *Awaitable) {
	logging.Default.Warningf("awaitable %s was never awaited", a)
}

// Ready creates an Awaitable which resumes as soon as it is scheduled.
func Ready() *Awaitable {
	return track(&Awaitable{})
}

// Until creates an Awaitable which resumes no earlier than t.
func Until(t time.Time) *Awaitable {
	return track(&Awaitable{resumeAt: t})
}

// UnawaitedCount reports how many Awaitables were collected unawaited.
func UnawaitedCount() int64 {
	return unawaited.Load()
}

func track(a *Awaitable) *Awaitable {
	runtime.SetFinalizer(a, func(a *Awaitable) {
		if !a.consumed.Load() {
			unawaited.Add(1)
			UnawaitedReporter(a)
		}
	})
	return a
}

// WithTag labels the Awaitable for diagnostics.
func (a *Awaitable) WithTag(tag string) *Awaitable {
	a.tag = tag
	return a
}

// Tag returns the label.
func (a *Awaitable) Tag() string {
	return a.tag
}

// ResumeAt returns the requested resume time, zero when ready.
func (a *Awaitable) ResumeAt() time.Time {
	return a.resumeAt
}

// IsReady returns true for the ready variant.
func (a *Awaitable) IsReady() bool {
	return a.resumeAt.IsZero()
}

// Consumed returns true once the Awaitable has been awaited.
func (a *Awaitable) Consumed() bool {
	return a.consumed.Load()
}

func (a *Awaitable) consume() bool {
	return a.consumed.CompareAndSwap(false, true)
}

// String implements fmt.Stringer.
func (a *Awaitable) String() string {
	name := a.tag
	if name == "" {
		name = "-"
	}
	if a.IsReady() {
		return name + "(ready)"
	}
	return name + "(until " + a.resumeAt.Format("15:04:05.000000") + ")"
}
