// Package terminal runs operator commands on the loop.
//
// Lines come from a Mailbox, fed by the local shell or by the link, and
// are executed by a task which polls the Mailbox, so commands may use the
// bus and sensors like any other task.
package terminal

import (
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/robotalks/picobot/pkg/comm"
	"github.com/robotalks/picobot/pkg/framework"
	"github.com/robotalks/picobot/pkg/logging"
)

// DefaultPoll is how often the terminal task checks the Mailbox.
const DefaultPoll = 10 * time.Millisecond

// Command is executed by the terminal task.
type Command struct {
	Name string
	Help string
	Func func(co *framework.Co, args []string) (string, error)
}

// UnknownCommandError is returned for a line naming no command.
type UnknownCommandError struct {
	Name string
}

// Error implements error.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// Terminal executes lines from a Mailbox.
type Terminal struct {
	Mailbox *Mailbox
	Poll    time.Duration
	Log     logging.Sink

	commands map[string]*Command
}

// New creates a Terminal with the help command registered.
func New(mb *Mailbox) *Terminal {
	t := &Terminal{Mailbox: mb, Poll: DefaultPoll, commands: make(map[string]*Command)}
	t.Register(&Command{Name: "help", Help: "list commands", Func: t.help})
	return t
}

// Register adds commands, replacing those with the same names.
func (t *Terminal) Register(cmds ...*Command) *Terminal {
	for _, cmd := range cmds {
		t.commands[cmd.Name] = cmd
	}
	return t
}

// Names returns the sorted command names.
func (t *Terminal) Names() []string {
	names := make([]string, 0, len(t.commands))
	for name := range t.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exec runs one line.
func (t *Terminal) Exec(co *framework.Co, line string) (out string, err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", nil
	}
	cmd := t.commands[args[0]]
	if cmd == nil {
		return "", &UnknownCommandError{Name: args[0]}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &framework.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return cmd.Func(co, args[1:])
}

// Run is the body of the terminal task.
func (t *Terminal) Run(co *framework.Co) error {
	poll := t.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	for {
		req, ok := t.Mailbox.take()
		if !ok {
			if _, err := co.Sleep(poll); err != nil {
				return err
			}
			continue
		}
		line := strings.TrimSpace(req.Line)
		out, err := t.Exec(co, line)
		if err != nil {
			logging.Or(t.Log).Failure(err, "error in the remote terminal: `%v` for input `%s`", err, line)
		}
		req.complete(comm.Result{Output: out, Err: err})
		if _, err := co.Yield(); err != nil {
			return err
		}
	}
}

func (t *Terminal) help(*framework.Co, []string) (string, error) {
	var sb strings.Builder
	for _, name := range t.Names() {
		fmt.Fprintf(&sb, "%-10s %s\n", name, t.commands[name].Help)
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}
