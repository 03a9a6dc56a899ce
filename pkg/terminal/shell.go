package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/picobot/pkg/comm"
	"github.com/robotalks/picobot/pkg/comm/mqtt"
	"github.com/robotalks/picobot/pkg/comm/stream"
)

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "

	// DefaultShellTimeout bounds the wait for a command result.
	DefaultShellTimeout = 2 * time.Second
)

// ErrNotConnected is reported by device commands without a target.
var ErrNotConnected = errors.New("not connected")

// Target is the device a Shell sends lines to.
type Target struct {
	Name string
	Exec func(line string) <-chan comm.Result

	cancel func()
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration
	BrokerURL   string

	Shell  *ishell.Shell
	Target *Target
}

// NewShell creates a new shell.
func NewShell() *Shell {
	s := &Shell{
		Interactive: true,
		Timeout:     DefaultShellTimeout,
		Shell:       ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range []*ishell.Cmd{&discoverCmd, &connectCmd, &disconnectCmd, &execCmd} {
		s.Shell.AddCmd(cmd)
	}
	s.Shell.NotFound(MustBeConnected(func(c *ishell.Context) {
		DoCommand(c, strings.Join(c.Args, " "))
	}))
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a target.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Target == nil {
			c.Err(ErrNotConnected)
			return
		}
		fn(c)
	}
}

// Exec sends a line to the target and waits for the result.
func (s *Shell) Exec(line string) (comm.Result, error) {
	if s.Target == nil {
		return comm.Result{}, ErrNotConnected
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	select {
	case res := <-s.Target.Exec(line):
		return res, nil
	case <-time.After(timeout):
		return comm.Result{}, fmt.Errorf("command timeout")
	}
}

// DoCommand runs a command and prints the result.
func DoCommand(c *ishell.Context, line string) error {
	s := ShellFrom(c)
	res, err := s.Exec(line)
	if err == nil {
		err = res.Err
	}
	if s.OutputJSON {
		out := struct {
			Output string `json:"output,omitempty"`
			Error  string `json:"error,omitempty"`
		}{Output: res.Output}
		if err != nil {
			out.Error = err.Error()
		}
		data, _ := json.Marshal(&out)
		c.Println(string(data))
		return err
	}
	if err != nil {
		c.Err(err)
		return err
	}
	if res.Output != "" {
		c.Println(res.Output)
	}
	return nil
}

// Use makes the shell talk to a local target.
func (s *Shell) Use(name string, exec func(string) <-chan comm.Result) *Shell {
	s.setTarget(&Target{Name: name, Exec: exec})
	return s
}

func (s *Shell) setTarget(t *Target) {
	s.Disconnect()
	s.Target = t
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", t.Name))
}

// Discover lists devices on the broker.
func (s *Shell) Discover(ctx context.Context) ([]comm.DeviceInfo, error) {
	connector, err := mqtt.NewConnector(s.BrokerURL)
	if err != nil {
		return nil, err
	}
	return connector.Discover(ctx)
}

// Connect connects a device by its id on the broker, or by a serial URL.
func (s *Shell) Connect(id string) error {
	ctx, cancel := context.WithCancel(context.Background())
	var client *comm.Client
	closeFn := func() {}
	if strings.HasPrefix(id, "serial://") {
		rw, err := stream.OpenSerial(id)
		if err != nil {
			cancel()
			return err
		}
		client = comm.NewClient(rw)
	} else {
		connector, err := mqtt.NewConnector(s.BrokerURL)
		if err != nil {
			cancel()
			return err
		}
		c, q, err := connector.Connect(ctx, id)
		if err != nil {
			cancel()
			return err
		}
		client, closeFn = c, func() { q.Close() }
	}
	client.Expiration = s.Timeout
	go client.Run(ctx)
	s.setTarget(&Target{
		Name: id,
		Exec: func(line string) <-chan comm.Result {
			return client.DoCommand(line).ResultChan()
		},
		cancel: func() {
			cancel()
			closeFn()
		},
	})
	return nil
}

// Disconnect disconnects current target.
func (s *Shell) Disconnect() {
	if s.Target != nil {
		if s.Target.cancel != nil {
			s.Target.cancel()
		}
		s.Target = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run processes args as one command, or runs the interactive shell.
func (s *Shell) Run(args ...string) error {
	defer s.Disconnect()
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if !s.Interactive {
		return fmt.Errorf("command expected")
	}
	s.Shell.Run()
	return nil
}

var (
	discoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "list devices on the broker",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infoList, err := s.Discover(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					infoList = []comm.DeviceInfo{}
				}
				out, err := json.Marshal(infoList)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infoList) == 0 {
				c.Println("No devices found")
				return
			}
			for _, info := range infoList {
				c.Println(FormatInfo(info))
			}
		},
	}

	connectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "ID | serial:///dev/tty?baud=N",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var id string
			if len(c.Args) > 0 {
				id = c.Args[0]
			} else {
				infoList, err := s.Discover(context.Background())
				if err != nil {
					c.Err(err)
					return
				}
				switch len(infoList) {
				case 0:
					c.Err(fmt.Errorf("no device discovered"))
					return
				case 1:
					id = infoList[0].ID
				default:
					items := make([]string, len(infoList))
					for n, info := range infoList {
						items[n] = FormatInfo(info)
					}
					id = infoList[c.MultiChoice(items, "Which one to connect?")].ID
				}
			}
			if err := s.Connect(id); err != nil {
				c.Err(err)
			}
		},
	}

	disconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "disconnect the device",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	execCmd = ishell.Cmd{
		Name:    "exec",
		Aliases: []string{"x"},
		Help:    "run a command on the device, e.g. exec help",
		Func: MustBeConnected(func(c *ishell.Context) {
			DoCommand(c, strings.Join(c.Args, " "))
		}),
	}
)

// FormatInfo prints DeviceInfo for display.
func FormatInfo(info comm.DeviceInfo) string {
	var sb strings.Builder
	sb.WriteString(info.ID)
	if info.Version != "" {
		fmt.Fprintf(&sb, " %s", info.Version)
	}
	if len(info.Sensors) > 0 {
		fmt.Fprintf(&sb, ": %s", strings.Join(info.Sensors, ", "))
	}
	return sb.String()
}
