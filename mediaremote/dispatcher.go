package mediaremote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/GiGurra/cmder"
	"github.com/samber/lo"
)

// Command is a control action understood by the bridge in command mode.
type Command string

const (
	CommandPlay            Command = "play"
	CommandPause           Command = "pause"
	CommandTogglePlayPause Command = "toggle_play_pause"
	CommandNextTrack       Command = "next_track"
	CommandPreviousTrack   Command = "previous_track"
	CommandStop            Command = "stop"
	CommandSetTime         Command = "set_time"
)

// Commands lists every control command in a stable order.
var Commands = []Command{
	CommandPlay,
	CommandPause,
	CommandTogglePlayPause,
	CommandNextTrack,
	CommandPreviousTrack,
	CommandStop,
	CommandSetTime,
}

// ParseCommand accepts a bridge command name, with dashes or underscores.
func ParseCommand(name string) (Command, error) {
	c := Command(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if !lo.Contains(Commands, c) {
		return "", fmt.Errorf("unknown command %q", name)
	}
	return c, nil
}

// FormatSeconds renders a seek target the way the bridge expects it.
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// CommandResult is the outcome of one command-mode invocation. A non-zero
// exit code is not an error here; Err is only set when the bridge could not
// be located or launched.
type CommandResult struct {
	Command     Command
	Args        []string
	Output      string
	ErrorOutput string
	ExitCode    int // -1 when no exit status was obtained
	Err         error
	Elapsed     time.Duration
}

// Succeeded reports whether the bridge ran and exited with status 0.
func (r CommandResult) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0
}

// State decodes the command's standard output as a playback record, if it
// printed one.
func (r CommandResult) State() (PlaybackState, bool) {
	if r.Output == "" {
		return PlaybackState{}, false
	}
	st, err := DecodeState([]byte(r.Output))
	if err != nil {
		return PlaybackState{}, false
	}
	return st, true
}

// Dispatcher runs one short-lived bridge process per control command.
// Calls share nothing and may run concurrently.
type Dispatcher struct {
	interpreter string
	locator     *Locator
	log         *slog.Logger
}

func NewDispatcher(opts ...Option) *Dispatcher {
	o := buildOptions(opts)
	return newDispatcher(o, NewLocator(o.sources...))
}

func newDispatcher(o options, locator *Locator) *Dispatcher {
	return &Dispatcher{
		interpreter: o.interpreter,
		locator:     locator,
		log:         o.logger,
	}
}

// Dispatch runs cmd and waits for it to exit. Cancelling ctx does not stop a
// launched process; callers wanting a deadline should use Go and stop
// waiting on the channel instead.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, args ...string) CommandResult {
	res := CommandResult{Command: cmd, Args: args, ExitCode: -1}

	loc, err := d.locator.Locate()
	if err != nil {
		res.Err = err
		d.logResult(res)
		return res
	}

	argv := append([]string{d.interpreter, loc.Script, loc.Library, string(cmd)}, args...)
	start := time.Now()
	out := cmder.New(argv...).Run(context.WithoutCancel(ctx))
	res.Elapsed = time.Since(start)
	res.Output = strings.TrimSpace(out.StdOut)
	res.ErrorOutput = strings.TrimSpace(out.StdErr)

	var exitErr *exec.ExitError
	switch {
	case out.Err == nil:
		res.ExitCode = 0
	case errors.As(out.Err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.Err = &LaunchError{Interpreter: d.interpreter, Err: out.Err}
	}
	d.logResult(res)
	return res
}

func (d *Dispatcher) logResult(res CommandResult) {
	switch {
	case res.Err != nil:
		d.log.Warn("bridge command failed", "command", res.Command, "error", res.Err)
	case res.ExitCode != 0:
		d.log.Warn("bridge command exited non-zero", "command", res.Command,
			"exit_code", res.ExitCode, "stderr", res.ErrorOutput)
	default:
		d.log.Debug("bridge command done", "command", res.Command, "elapsed", res.Elapsed)
	}
}

// Go runs cmd in the background. The channel receives exactly one result
// and is buffered, so it may be ignored.
func (d *Dispatcher) Go(cmd Command, args ...string) <-chan CommandResult {
	return async(func() CommandResult {
		return d.Dispatch(context.Background(), cmd, args...)
	})
}

func async(fn func() CommandResult) <-chan CommandResult {
	ch := make(chan CommandResult, 1)
	go func() {
		ch <- fn()
		close(ch)
	}()
	return ch
}

// SetTime seeks the active player to seconds.
func (d *Dispatcher) SetTime(ctx context.Context, seconds float64) CommandResult {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		res := CommandResult{
			Command:  CommandSetTime,
			ExitCode: -1,
			Err:      fmt.Errorf("invalid seek target %v", seconds),
		}
		d.logResult(res)
		return res
	}
	return d.Dispatch(ctx, CommandSetTime, FormatSeconds(seconds))
}
