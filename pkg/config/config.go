// Package config holds the settings of the firmware host.
//
// Settings start from defaults, overridden by PICOBOT_* environment
// variables, then a YAML file, then command line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/pflag"

	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/sensor"
)

// Duration is a time.Duration written like "500ms" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (d *Duration) UnmarshalYAML(data []byte) error {
	var s string
	if err := yaml.Unmarshal(data, &s); err != nil {
		return err
	}
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(val)
	return nil
}

// MarshalYAML implements yaml.InterfaceMarshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// D returns the time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// LoopConfig configures the scheduler.
type LoopConfig struct {
	LateTolerance Duration `yaml:"late_tolerance"`
	// Idle is "block" or "poll".
	Idle string `yaml:"idle"`
	// FailurePolicy is "isolate" or "stop".
	FailurePolicy string `yaml:"failure_policy"`
}

// RangerConfig configures the ultrasonic ranger and its poller.
type RangerConfig struct {
	Timeout     Duration `yaml:"timeout"`
	MinCount    int      `yaml:"min_count"`
	MinDuration Duration `yaml:"min_duration"`
	MaxTimeouts int      `yaml:"max_timeouts"`
	Interval    Duration `yaml:"interval"`
}

// IMUConfig configures the inertial sensor and its poller.
type IMUConfig struct {
	Address  uint16   `yaml:"address"`
	Deadline Duration `yaml:"deadline"`
	Interval Duration `yaml:"interval"`
}

// TelemetryConfig configures the reporter and the link.
type TelemetryConfig struct {
	// URL selects the link, e.g. mqtt://localhost:1883/picobot/.
	// Reports are only logged when empty.
	URL            string   `yaml:"url"`
	Interval       Duration `yaml:"interval"`
	PublishTimeout Duration `yaml:"publish_timeout"`
}

// Config is the full configuration.
type Config struct {
	DeviceID  string          `yaml:"device_id"`
	Sim       bool            `yaml:"sim"`
	BootDelay Duration        `yaml:"boot_delay"`
	Loop      LoopConfig      `yaml:"loop"`
	Ranger    RangerConfig    `yaml:"ranger"`
	IMU       IMUConfig       `yaml:"imu"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	// TerminalPoll is how often the terminal task checks for commands.
	TerminalPoll Duration `yaml:"terminal_poll"`
	// LogUART mirrors the log to a serial port, e.g. serial:///dev/ttyS0?baud=115200.
	LogUART string `yaml:"log_uart"`
	// MetricsAddr serves Prometheus metrics when set, e.g. :9100.
	MetricsAddr string `yaml:"metrics_addr"`
}

var defaultConfig = Config{
	Sim:       true,
	BootDelay: Duration(time.Second),
	Loop: LoopConfig{
		LateTolerance: Duration(framework.DefaultLateTolerance),
		Idle:          "block",
		FailurePolicy: "isolate",
	},
	Ranger: RangerConfig{
		Timeout:     Duration(50 * time.Millisecond),
		MinCount:    50,
		MinDuration: Duration(100 * time.Millisecond),
		MaxTimeouts: 5,
		Interval:    Duration(200 * time.Millisecond),
	},
	IMU: IMUConfig{
		Address:  0x28,
		Deadline: Duration(time.Second),
		Interval: Duration(100 * time.Millisecond),
	},
	Telemetry: TelemetryConfig{
		Interval:       Duration(500 * time.Millisecond),
		PublishTimeout: Duration(200 * time.Millisecond),
	},
	TerminalPoll: Duration(10 * time.Millisecond),
}

func init() {
	if val := os.Getenv("PICOBOT_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
	if val := os.Getenv("PICOBOT_SIM"); val != "" {
		if sim, err := strconv.ParseBool(val); err == nil {
			defaultConfig.Sim = sim
		}
	}
	if val := os.Getenv("PICOBOT_TELEMETRY_URL"); val != "" {
		defaultConfig.Telemetry.URL = val
	}
	if val := os.Getenv("PICOBOT_LOG_UART"); val != "" {
		defaultConfig.LogUART = val
	}
	if val := os.Getenv("PICOBOT_METRICS_ADDR"); val != "" {
		defaultConfig.MetricsAddr = val
	}
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// SetupFlags sets command line flags bound to c.
func (c *Config) SetupFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DeviceID, "id", c.DeviceID, "Device ID, the machine id by default.")
	fs.BoolVar(&c.Sim, "sim", c.Sim, "Run on simulated peripherals.")
	fs.DurationVar((*time.Duration)(&c.BootDelay), "boot-delay", c.BootDelay.D(), "Wait for peripherals to boot.")
	fs.StringVar(&c.Loop.Idle, "idle", c.Loop.Idle, "Idle mode of the loop: block or poll.")
	fs.StringVar(&c.Loop.FailurePolicy, "failure-policy", c.Loop.FailurePolicy, "On task failure: isolate or stop.")
	fs.StringVar(&c.Telemetry.URL, "telemetry", c.Telemetry.URL, "Telemetry link URL (mqtt://, ws://, serial://).")
	fs.DurationVar((*time.Duration)(&c.Telemetry.Interval), "report-interval", c.Telemetry.Interval.D(), "Telemetry report interval.")
	fs.StringVar(&c.LogUART, "log-uart", c.LogUART, "Mirror the log to a serial port URL.")
	fs.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "Listen address of the metrics endpoint.")
}

// LoadFile overrides c with a YAML file. Flags changed in fs keep their values.
func (c *Config) LoadFile(path string, fs *pflag.FlagSet) error {
	changed := make(map[string]string)
	if fs != nil {
		fs.Visit(func(f *pflag.Flag) {
			changed[f.Name] = f.Value.String()
		})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	for name, val := range changed {
		if err := fs.Set(name, val); err != nil {
			return err
		}
	}
	c.clamp()
	return nil
}

// clamp restores defaults of values which make no sense.
func (c *Config) clamp() {
	if c.Ranger.Timeout <= 0 {
		c.Ranger.Timeout = defaultConfig.Ranger.Timeout
	}
	if c.Ranger.MinCount <= 0 {
		c.Ranger.MinCount = 1
	}
	if c.Ranger.MaxTimeouts < 0 {
		c.Ranger.MaxTimeouts = 0
	}
	if c.Ranger.Interval <= 0 {
		c.Ranger.Interval = defaultConfig.Ranger.Interval
	}
	if c.IMU.Address == 0 {
		c.IMU.Address = defaultConfig.IMU.Address
	}
	if c.IMU.Interval <= 0 {
		c.IMU.Interval = defaultConfig.IMU.Interval
	}
	if c.Telemetry.Interval <= 0 {
		c.Telemetry.Interval = defaultConfig.Telemetry.Interval
	}
	if c.Telemetry.PublishTimeout <= 0 {
		c.Telemetry.PublishTimeout = defaultConfig.Telemetry.PublishTimeout
	}
	if c.TerminalPoll <= 0 {
		c.TerminalPoll = defaultConfig.TerminalPoll
	}
	if c.Loop.LateTolerance < 0 {
		c.Loop.LateTolerance = 0
	}
}

// Validate checks the enumerations.
func (c *Config) Validate() error {
	if _, err := c.IdleMode(); err != nil {
		return err
	}
	_, err := c.FailurePolicy()
	return err
}

// IdleMode converts Loop.Idle.
func (c *Config) IdleMode() (framework.IdleMode, error) {
	switch c.Loop.Idle {
	case "", "block":
		return framework.IdleBlock, nil
	case "poll":
		return framework.IdleBusyPoll, nil
	default:
		return 0, fmt.Errorf("invalid idle mode %q", c.Loop.Idle)
	}
}

// FailurePolicy converts Loop.FailurePolicy.
func (c *Config) FailurePolicy() (framework.FailurePolicy, error) {
	switch c.Loop.FailurePolicy {
	case "", "isolate":
		return framework.IsolateFailures, nil
	case "stop":
		return framework.StopOnFailure, nil
	default:
		return 0, fmt.Errorf("invalid failure policy %q", c.Loop.FailurePolicy)
	}
}

// MeasureOptions converts the ranger settings.
func (c *Config) MeasureOptions() sensor.MeasureOptions {
	return sensor.MeasureOptions{
		MinCount:    c.Ranger.MinCount,
		MinDuration: c.Ranger.MinDuration.D(),
		MaxTimeouts: c.Ranger.MaxTimeouts,
		Cooldown:    c.Ranger.Timeout.D(),
	}
}

// ID returns DeviceID, or the machine id if not set.
func (c *Config) ID() string {
	if c.DeviceID == "" {
		c.DeviceID = MachineID()
	}
	return c.DeviceID
}

// MachineID retrieves the ID identifying the machine for this application.
func MachineID() string {
	id, err := machineid.ProtectedID("picobot")
	if err != nil || len(id) < 12 {
		return "picobot"
	}
	return id[:12]
}
