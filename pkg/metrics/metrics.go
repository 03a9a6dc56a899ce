// Package metrics exposes loop and sensor health as Prometheus metrics.
//
// All methods are safe to call on a nil *Collector, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metrics of one loop and its drivers.
type Collector struct {
	Registry *prometheus.Registry

	tasksScheduled prometheus.Counter
	tasksFinished  prometheus.Counter
	tasksFailed    prometheus.Counter
	resumes        prometheus.Counter
	lateResumes    prometheus.Counter
	lateness       prometheus.Histogram
	unawaited      prometheus.Counter
	lockRetries    prometheus.Counter
	lockLeaks      prometheus.Counter
	pending        prometheus.Gauge
	timeouts       *prometheus.CounterVec
	publishes      *prometheus.CounterVec
}

// NewCollector creates a Collector registered to its own registry.
func NewCollector() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		tasksScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picobot_tasks_scheduled_total",
			Help: "Tasks handed to the loop",
		}),
		tasksFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picobot_tasks_finished_total",
			Help: "Tasks which returned normally",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picobot_tasks_failed_total",
			Help: "Tasks dropped after an unhandled failure",
		}),
		resumes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picobot_resumes_total",
			Help: "Task resumes performed by the loop",
		}),
		lateResumes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picobot_late_resumes_total",
			Help: "Resumes later than the tolerance after the requested time",
		}),
		lateness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "picobot_resume_lateness_seconds",
			Help:    "Lateness of late resumes",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		unawaited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picobot_unawaited_total",
			Help: "Suspensions collected without ever being awaited",
		}),
		lockRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picobot_bus_lock_retries_total",
			Help: "Failed bus try-lock attempts",
		}),
		lockLeaks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picobot_bus_lock_leaks_total",
			Help: "Bus handles collected while still held",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "picobot_tasks_pending",
			Help: "Entries in the loop queue",
		}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picobot_sensor_timeouts_total",
			Help: "Sensor signal timeouts",
		}, []string{"sensor"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picobot_telemetry_publishes_total",
			Help: "Telemetry publish attempts",
		}, []string{"result"}),
	}
	c.Registry.MustRegister(
		c.tasksScheduled,
		c.tasksFinished,
		c.tasksFailed,
		c.resumes,
		c.lateResumes,
		c.lateness,
		c.unawaited,
		c.lockRetries,
		c.lockLeaks,
		c.pending,
		c.timeouts,
		c.publishes,
	)
	return c
}

// TaskScheduled records a task handed to the loop.
func (c *Collector) TaskScheduled() {
	if c != nil {
		c.tasksScheduled.Inc()
	}
}

// TaskFinished records a finished task.
func (c *Collector) TaskFinished() {
	if c != nil {
		c.tasksFinished.Inc()
	}
}

// TaskFailed records a failed task.
func (c *Collector) TaskFailed() {
	if c != nil {
		c.tasksFailed.Inc()
	}
}

// Resumed records a resume.
func (c *Collector) Resumed() {
	if c != nil {
		c.resumes.Inc()
	}
}

// LateResume records a late resume.
func (c *Collector) LateResume(late time.Duration) {
	if c != nil {
		c.lateResumes.Inc()
		c.lateness.Observe(late.Seconds())
	}
}

// Unawaited records a suspension which was never awaited.
func (c *Collector) Unawaited() {
	if c != nil {
		c.unawaited.Inc()
	}
}

// LockRetry records a failed try-lock.
func (c *Collector) LockRetry() {
	if c != nil {
		c.lockRetries.Inc()
	}
}

// LockLeak records a handle collected while held.
func (c *Collector) LockLeak() {
	if c != nil {
		c.lockLeaks.Inc()
	}
}

// SetPending sets the queue length.
func (c *Collector) SetPending(n int) {
	if c != nil {
		c.pending.Set(float64(n))
	}
}

// Timeout records a signal timeout of a sensor.
func (c *Collector) Timeout(sensor string) {
	if c != nil {
		c.timeouts.WithLabelValues(sensor).Inc()
	}
}

// Published records a telemetry publish.
func (c *Collector) Published(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.publishes.WithLabelValues("error").Inc()
	} else {
		c.publishes.WithLabelValues("ok").Inc()
	}
}

// Handler serves the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}
