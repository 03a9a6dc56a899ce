// Package app wires the firmware: peripherals, sensors, the loop and its
// tasks, and the host-side services next to it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/robotalks/picobot/pkg/bus"
	"github.com/robotalks/picobot/pkg/clock"
	"github.com/robotalks/picobot/pkg/comm"
	"github.com/robotalks/picobot/pkg/comm/stream"
	"github.com/robotalks/picobot/pkg/config"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/hal"
	"github.com/robotalks/picobot/pkg/hal/sim"
	"github.com/robotalks/picobot/pkg/logging"
	"github.com/robotalks/picobot/pkg/metrics"
	"github.com/robotalks/picobot/pkg/sensor/bno055"
	"github.com/robotalks/picobot/pkg/sensor/hcsr04"
	"github.com/robotalks/picobot/pkg/telemetry"
	"github.com/robotalks/picobot/pkg/terminal"
)

// Version is reported in DeviceInfo.
var Version = "dev"

// ErrNoPeripherals is returned when not simulating and no peripherals are given.
var ErrNoPeripherals = errors.New("no peripherals, run with --sim")

// Peripherals are the hardware lines and bus the firmware drives.
type Peripherals struct {
	Trigger hal.Pin
	Echo    hal.Pin
	Bus     hal.Bus
}

// Simulation is the models behind simulated Peripherals.
type Simulation struct {
	Ranger *sim.Ranger
	IMU    *sim.IMU
}

// App is the assembled firmware.
type App struct {
	Config   *config.Config
	Clock    clock.Clock
	Log      logging.Sink
	Metrics  *metrics.Collector
	Loop     *framework.Loop
	State    *telemetry.State
	Ranger   *hcsr04.Device
	IMU      *bno055.Device
	Mailbox  *terminal.Mailbox
	Terminal *terminal.Terminal
	Reporter *telemetry.Reporter
	Link     *telemetry.Link
	Sim      *Simulation

	closers []io.Closer
}

// Options customizes New.
type Options struct {
	// Clock defaults to the system clock.
	Clock clock.Clock
	// Log defaults to logging.Default.
	Log logging.Sink
	// Peripherals are simulated when nil and the config asks for it.
	Peripherals *Peripherals
}

// New assembles the firmware.
func New(conf *config.Config, opts Options) (*App, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	c := opts.Clock
	if c == nil {
		c = clock.System()
	}
	a := &App{
		Config:  conf,
		Clock:   c,
		Log:     logging.Or(opts.Log),
		Metrics: metrics.NewCollector(),
		State:   &telemetry.State{},
	}
	if conf.LogUART != "" {
		uart, err := openUART(conf.LogUART)
		if err != nil {
			return nil, fmt.Errorf("open log UART: %w", err)
		}
		a.closers = append(a.closers, uart)
		a.Log = logging.NewMirror(a.Log, uart, c)
	}

	p := opts.Peripherals
	if p == nil {
		if !conf.Sim {
			a.Close()
			return nil, ErrNoPeripherals
		}
		p = a.simulate()
	}

	a.Loop = framework.NewLoop(c)
	a.Loop.Log = a.Log
	a.Loop.Metrics = a.Metrics
	a.Loop.LateTolerance = conf.Loop.LateTolerance.D()
	a.Loop.Idle, _ = conf.IdleMode()
	a.Loop.Policy, _ = conf.FailurePolicy()

	a.Ranger = hcsr04.New(p.Trigger, p.Echo)
	a.Ranger.Timeout = conf.Ranger.Timeout.D()
	a.Ranger.Timeouts.Log, a.Ranger.Timeouts.Metrics = a.Log, a.Metrics

	i2c := bus.New("i2c0", p.Bus)
	i2c.Log, i2c.Metrics = a.Log, a.Metrics
	a.IMU = bno055.New(i2c, conf.IMU.Address)
	a.IMU.Log = a.Log
	a.IMU.Timeouts.Log, a.IMU.Timeouts.Metrics = a.Log, a.Metrics

	a.Mailbox = terminal.NewMailbox(0)
	a.Terminal = terminal.New(a.Mailbox)
	a.Terminal.Poll = conf.TerminalPoll.D()
	a.Terminal.Log = a.Log
	a.Terminal.Register(terminal.Builtins(&terminal.Device{
		Loop:    a.Loop,
		Ranger:  a.Ranger,
		IMU:     a.IMU,
		State:   a.State,
		Started: c.Now(),
	})...)

	a.Reporter = &telemetry.Reporter{
		DeviceID:       conf.ID(),
		State:          a.State,
		Loop:           a.Loop,
		RangerTimeouts: a.Ranger.Timeouts,
		IMUTimeouts:    a.IMU.Timeouts,
		Interval:       conf.Telemetry.Interval.D(),
		PublishTimeout: conf.Telemetry.PublishTimeout.D(),
		Log:            a.Log,
		Metrics:        a.Metrics,
	}
	return a, nil
}

func (a *App) simulate() *Peripherals {
	i2c := sim.NewBus()
	a.Sim = &Simulation{
		Ranger: sim.NewRanger(a.Clock, 1.0),
		IMU:    sim.NewIMU(i2c, uint8(a.Config.IMU.Address)),
	}
	return &Peripherals{
		Trigger: a.Sim.Ranger.Trigger(),
		Echo:    a.Sim.Ranger.Echo(),
		Bus:     bus.NewSoftLock(i2c),
	}
}

// Info describes the device for its operators.
func (a *App) Info() comm.DeviceInfo {
	return comm.DeviceInfo{
		ID:      a.Config.ID(),
		Version: Version,
		Sensors: []string{"hcsr04", "bno055"},
	}
}

// Connect opens the telemetry link if configured. Reports are published
// and commands from the link are executed by the terminal task.
func (a *App) Connect() error {
	if a.Config.Telemetry.URL == "" {
		return nil
	}
	link, err := telemetry.Open(a.Config.Telemetry.URL, a.Info())
	if err != nil {
		return err
	}
	link.Pipe.Log = a.Log
	link.Handle(&terminal.RemoteHandler{Mailbox: a.Mailbox, Replies: link})
	a.Link = link
	a.Reporter.Publisher = link
	return nil
}

// Schedule puts the main and terminal tasks on the loop.
func (a *App) Schedule() {
	a.hookUnawaited()
	a.Loop.Spawn("main", a.main)
	a.Loop.Spawn("terminal", a.Terminal.Run)
	if a.Sim != nil {
		a.Loop.Spawn("sim", a.simulation)
	}
}

func (a *App) hookUnawaited() {
	log, m := a.Log, a.Metrics
	framework.UnawaitedReporter = func(aw *framework.Awaitable) {
		log.Warningf("awaitable %s was never awaited", aw)
		m.Unawaited()
	}
}

// Run runs the loop with the link and the metrics endpoint until ctx is
// done or any of them stops.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	if err := a.Connect(); err != nil {
		return err
	}
	a.Schedule()
	runner := framework.NewRunnerWith(ctx)
	runner.Log = a.Log
	runner.Go(framework.NamedRun("loop", a.Loop))
	if a.Link != nil {
		runner.Go(a.Link)
	}
	if a.Config.MetricsAddr != "" {
		runner.Go(framework.NamedRun("metrics", framework.RunFunc(a.serveMetrics)))
	}
	return runner.Wait()
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{Addr: a.Config.MetricsAddr, Handler: mux}
	a.Log.Infof("metrics on %s", a.Config.MetricsAddr)
	err := framework.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close releases the log UART.
func (a *App) Close() error {
	var errs framework.AggregatedError
	for _, c := range a.closers {
		errs.Add(c.Close())
	}
	a.closers = nil
	return errs.Aggregate()
}

// openUART opens serial:///dev/ttyX?baud=N.
func openUART(rawURL string) (io.WriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "serial" {
		return nil, fmt.Errorf("not a serial URL: %q", rawURL)
	}
	baud := stream.DefaultBaud
	if val := u.Query().Get("baud"); val != "" {
		if baud, err = strconv.Atoi(val); err != nil {
			return nil, fmt.Errorf("invalid baud %q: %v", val, err)
		}
	}
	return logging.OpenUART(u.Path, baud)
}
