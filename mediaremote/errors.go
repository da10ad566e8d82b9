package mediaremote

import (
	"fmt"
	"strings"
)

// LocationError reports that the bridge script or native library could not
// be found. Callers may retry once the installation changes.
type LocationError struct {
	Tried []Location
}

func (e *LocationError) Error() string {
	if len(e.Tried) == 0 {
		return "bridge not found: no candidate locations"
	}
	parts := make([]string, 0, len(e.Tried))
	for _, loc := range e.Tried {
		parts = append(parts, loc.String())
	}
	return "bridge not found, tried: " + strings.Join(parts, "; ")
}

// LaunchError reports that the bridge process could not be spawned.
type LaunchError struct {
	Interpreter string
	Err         error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching bridge with %s: %v", e.Interpreter, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// DecodeError describes one malformed record on the bridge output.
// The stream it came from keeps going.
type DecodeError struct {
	Line int
	Raw  []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding bridge record on line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProcessExitError reports how a listening process ended.
type ProcessExitError struct {
	ExitCode int    // -1 when killed by a signal or unknown
	Signal   string // empty unless terminated by a signal
	Stderr   string // tail of the process's standard error
	Err      error
}

func (e *ProcessExitError) Error() string {
	var b strings.Builder
	b.WriteString("bridge exited")
	switch {
	case e.Signal != "":
		fmt.Fprintf(&b, " on signal %s", e.Signal)
	case e.ExitCode >= 0:
		fmt.Fprintf(&b, " with status %d", e.ExitCode)
	}
	if e.Err != nil && e.ExitCode < 0 && e.Signal == "" {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, " (%s)", e.Stderr)
	}
	return b.String()
}

func (e *ProcessExitError) Unwrap() error { return e.Err }
