package framework

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/robotalks/picobot/pkg/clock"
	"github.com/robotalks/picobot/pkg/logging"
	"github.com/robotalks/picobot/pkg/metrics"
)

// IdleMode selects what the Loop does when no task is due.
type IdleMode int

// Idle modes.
const (
	// IdleBlock sleeps on the clock until the nearest resume time.
	IdleBlock IdleMode = iota
	// IdleBusyPoll re-reads the clock until a task is due.
	IdleBusyPoll
)

// FailurePolicy selects how the Loop reacts to a failed task.
type FailurePolicy int

// Failure policies.
const (
	// IsolateFailures logs the failure, drops the task and continues.
	IsolateFailures FailurePolicy = iota
	// StopOnFailure stops the loop and returns the failure.
	StopOnFailure
)

// DefaultLateTolerance is how late a resume may be before it is reported.
const DefaultLateTolerance = time.Millisecond

// Loop is a cooperative scheduler running tasks on a single goroutine.
//
// Pending tasks are ordered by resume time, then by arrival, so tasks
// which are due run in FIFO order and sleeping tasks run earliest first.
type Loop struct {
	Clock         clock.Clock
	Log           logging.Sink
	Metrics       *metrics.Collector
	LateTolerance time.Duration
	Idle          IdleMode
	Policy        FailurePolicy

	queue   *redblacktree.Tree
	seq     uint64
	stopped atomic.Bool
	lock    sync.Mutex
}

type entry struct {
	task  Task
	name  string
	timed bool
}

// queueKey orders the queue by resume time and arrival.
type queueKey struct {
	at  time.Time
	seq uint64
}

func compareKeys(a, b interface{}) int {
	ka, kb := a.(queueKey), b.(queueKey)
	switch {
	case ka.at.Before(kb.at):
		return -1
	case ka.at.After(kb.at):
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// NewLoop creates a Loop on the given clock.
func NewLoop(c clock.Clock) *Loop {
	return &Loop{
		Clock:         c,
		LateTolerance: DefaultLateTolerance,
		queue:         redblacktree.NewWith(compareKeys),
	}
}

func (l *Loop) clock() clock.Clock {
	if l.Clock == nil {
		l.Clock = clock.System()
	}
	return l.Clock
}

func (l *Loop) log() logging.Sink {
	return logging.Or(l.Log)
}

func (l *Loop) init() {
	if l.queue == nil {
		l.queue = redblacktree.NewWith(compareKeys)
	}
}

// Schedule enqueues tasks as ready now.
// It may be called by a running task.
func (l *Loop) Schedule(tasks ...Task) *Loop {
	now := l.clock().Now()
	for _, task := range tasks {
		l.push(&entry{task: task, name: TaskName(task)}, now)
		l.Metrics.TaskScheduled()
	}
	return l
}

// Spawn creates a coroutine task on the loop's clock and schedules it.
func (l *Loop) Spawn(name string, body func(*Co) error) *Co {
	co := NewCo(name, l.clock(), body)
	l.Schedule(co)
	return co
}

func (l *Loop) push(e *entry, at time.Time) {
	l.lock.Lock()
	l.init()
	l.seq++
	l.queue.Put(queueKey{at: at, seq: l.seq}, e)
	l.Metrics.SetPending(l.queue.Size())
	l.lock.Unlock()
}

func (l *Loop) first() (queueKey, *entry, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.init()
	node := l.queue.Left()
	if node == nil {
		return queueKey{}, nil, false
	}
	return node.Key.(queueKey), node.Value.(*entry), true
}

func (l *Loop) remove(key queueKey) {
	l.lock.Lock()
	l.queue.Remove(key)
	l.Metrics.SetPending(l.queue.Size())
	l.lock.Unlock()
}

// Len returns the number of pending tasks.
func (l *Loop) Len() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.init()
	return l.queue.Size()
}

// Tasks returns a snapshot of pending tasks in resume order.
func (l *Loop) Tasks() []TaskInfo {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.init()
	infos := make([]TaskInfo, 0, l.queue.Size())
	it := l.queue.Iterator()
	for it.Next() {
		infos = append(infos, TaskInfo{
			Name:     it.Value().(*entry).name,
			ResumeAt: it.Key().(queueKey).at,
		})
	}
	return infos
}

// Stop ends the loop after the current resume.
// Tasks still pending are aborted and dropped.
func (l *Loop) Stop() {
	l.stopped.Store(true)
}

// Stopped returns true once Stop has been called.
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// RunUntilComplete runs tasks until none is pending or Stop is called.
// It returns a *TaskError only under StopOnFailure.
func (l *Loop) RunUntilComplete() error {
	defer l.abortAll()
	for !l.stopped.Load() {
		key, e, ok := l.first()
		if !ok {
			return nil
		}
		now := l.clock().Now()
		if now.Before(key.at) {
			l.idle(key.at.Sub(now))
			continue
		}
		l.remove(key)
		if err := l.resume(e, key, now); err != nil {
			return err
		}
	}
	return nil
}

// Run implements Runnable. The loop stops when ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	doneCh := make(chan struct{})
	defer close(doneCh)
	go func() {
		select {
		case <-ctx.Done():
			l.Stop()
		case <-doneCh:
		}
	}()
	if err := l.RunUntilComplete(); err != nil {
		return err
	}
	return ctx.Err()
}

func (l *Loop) idle(d time.Duration) {
	if l.Idle == IdleBlock {
		l.clock().Sleep(d)
	}
}

func (l *Loop) resume(e *entry, key queueKey, now time.Time) error {
	if e.timed {
		if late := now.Sub(key.at); late > l.LateTolerance {
			l.log().Warningf("task %s resumed %v late", e.name, late)
			l.Metrics.LateResume(late)
		}
	}
	l.Metrics.Resumed()
	a, err := call(e.task, now)
	if err == nil && a != nil && !a.consume() {
		err = ErrAlreadyAwaited
	}
	switch {
	case err != nil:
		l.Metrics.TaskFailed()
		taskErr := &TaskError{Task: e.name, Err: err}
		if l.Policy == StopOnFailure {
			l.log().Failure(err, "task %s failed, stopping loop", e.name)
			l.Stop()
			return taskErr
		}
		l.log().Failure(err, "task %s failed", e.name)
		if aborter, ok := e.task.(Aborter); ok {
			aborter.Abort()
		}
	case a == nil:
		l.log().Debugf("task %s finished", e.name)
		l.Metrics.TaskFinished()
	case a.IsReady():
		e.timed = false
		l.push(e, l.clock().Now())
	default:
		e.timed = true
		l.push(e, a.ResumeAt())
	}
	return nil
}

func call(task Task, now time.Time) (a *Awaitable, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task.Resume(now)
}

func (l *Loop) abortAll() {
	l.lock.Lock()
	l.init()
	var entries []*entry
	if l.stopped.Load() {
		for _, v := range l.queue.Values() {
			entries = append(entries, v.(*entry))
		}
		l.queue.Clear()
		l.Metrics.SetPending(0)
	}
	l.lock.Unlock()
	for _, e := range entries {
		if aborter, ok := e.task.(Aborter); ok {
			aborter.Abort()
		}
		l.log().Debugf("task %s dropped on stop", e.name)
	}
}
