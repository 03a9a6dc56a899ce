package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/picobot/pkg/clock"
	"github.com/robotalks/picobot/pkg/config"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/logging"
)

func testConfig() *config.Config {
	conf := config.NewConfig()
	conf.DeviceID = "bot"
	conf.Sim = true
	conf.LogUART = ""
	conf.MetricsAddr = ""
	conf.Telemetry.URL = ""
	return conf
}

func newTestApp(t *testing.T) (*App, *logging.Recorder) {
	rec := &logging.Recorder{}
	a, err := New(testConfig(), Options{
		Clock: clock.NewSim().WithStep(10 * time.Microsecond),
		Log:   rec,
	})
	require.NoError(t, err)
	return a, rec
}

func (a *App) runFor(t *testing.T, d time.Duration) {
	a.Schedule()
	a.Loop.Spawn("stop", func(co *framework.Co) error {
		if _, err := co.Sleep(d); err != nil {
			return err
		}
		a.Loop.Stop()
		return nil
	})
	require.NoError(t, a.Loop.RunUntilComplete())
}

func statusLines(rec *logging.Recorder) []string {
	var lines []string
	for _, r := range rec.At(logging.Info) {
		if strings.HasPrefix(r.Message, "OK") {
			lines = append(lines, r.Message)
		}
	}
	return lines
}

func TestBootAndReport(t *testing.T) {
	a, rec := newTestApp(t)
	a.runFor(t, 3*time.Second)

	lines := statusLines(rec)
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[len(lines)-1], "m | h=")
	assert.True(t, a.State.DistanceOK)
	assert.True(t, a.State.EulerOK)
	assert.Equal(t, int8(25), a.State.Temperature)
	assert.Empty(t, rec.At(logging.Error))
}

func TestNoTelemetryWithoutIMU(t *testing.T) {
	a, rec := newTestApp(t)
	a.Sim.IMU.Unplug()
	a.runFor(t, 2*time.Second)

	assert.Empty(t, statusLines(rec))
	errs := rec.At(logging.Error)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "ping failed")
}

func TestTerminalOnLoop(t *testing.T) {
	a, _ := newTestApp(t)
	resCh := a.Mailbox.Submit("timeouts")
	a.runFor(t, 100*time.Millisecond)
	select {
	case res := <-resCh:
		require.NoError(t, res.Err)
		assert.Equal(t, "hcsr04=0 bno055=0", res.Output)
	default:
		require.FailNow(t, "command not executed")
	}
}

func TestNewErrors(t *testing.T) {
	conf := testConfig()
	conf.Sim = false
	_, err := New(conf, Options{})
	assert.ErrorIs(t, err, ErrNoPeripherals)

	conf = testConfig()
	conf.Loop.Idle = "spin"
	_, err = New(conf, Options{})
	assert.Error(t, err)

	conf = testConfig()
	conf.LogUART = "tcp://localhost"
	_, err = New(conf, Options{})
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	conf := testConfig()
	conf.Telemetry.URL = "mqtt://localhost:1883/lab/"
	a, err := New(conf, Options{Log: &logging.Recorder{}})
	require.NoError(t, err)
	require.NoError(t, a.Connect())
	require.NotNil(t, a.Link)
	assert.Equal(t, a.Link, a.Reporter.Publisher)
	assert.Equal(t, "bot", a.Info().ID)
}

func TestRunStopsWithContext(t *testing.T) {
	conf := testConfig()
	conf.MetricsAddr = "127.0.0.1:0"
	a, err := New(conf, Options{Log: &logging.Recorder{}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	assert.NoError(t, a.Run(ctx))
	assert.True(t, a.Loop.Stopped())
}
