package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.TaskScheduled()
		c.TaskFinished()
		c.TaskFailed()
		c.Resumed()
		c.LateResume(time.Second)
		c.Unawaited()
		c.LockRetry()
		c.LockLeak()
		c.SetPending(3)
		c.Timeout("hcsr04")
		c.Published(nil)
	})
}

func TestCounters(t *testing.T) {
	c := NewCollector()
	c.TaskScheduled()
	c.TaskScheduled()
	c.TaskFailed()
	c.LateResume(2 * time.Millisecond)
	c.Timeout("hcsr04")
	c.Timeout("hcsr04")
	c.Published(errors.New("offline"))
	c.SetPending(4)

	require.Equal(t, 2.0, testutil.ToFloat64(c.tasksScheduled))
	require.Equal(t, 1.0, testutil.ToFloat64(c.tasksFailed))
	require.Equal(t, 1.0, testutil.ToFloat64(c.lateResumes))
	require.Equal(t, 2.0, testutil.ToFloat64(c.timeouts.WithLabelValues("hcsr04")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.publishes.WithLabelValues("error")))
	require.Equal(t, 4.0, testutil.ToFloat64(c.pending))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.Resumed()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "picobot_resumes_total 1"))
}
