package mediaremote

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SupervisorState is the lifecycle state of the listening process.
type SupervisorState int

const (
	StateIdle SupervisorState = iota
	StateStarting
	StateListening
	StateTerminating
)

func (s SupervisorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// StartStatus tells a caller of Start whether a new session was launched.
type StartStatus int

const (
	NotStarted StartStatus = iota
	Started
	AlreadyRunning
)

func (s StartStatus) String() string {
	switch s {
	case Started:
		return "started"
	case AlreadyRunning:
		return "already running"
	default:
		return "not started"
	}
}

// ErrStartCancelled is returned by Start when Stop was called while the
// start was still waiting for the previous session to exit.
var ErrStartCancelled = errors.New("start cancelled by stop")

// Termination describes the end of one listening session. It is always the
// last notification of that session.
type Termination struct {
	SessionID string
	Requested bool // ended by Stop
	Exit      *ProcessExitError
}

// Observer receives the events of a listening session. Calls for one
// session come from a single goroutine, in the order the bridge wrote them.
type Observer interface {
	OnEvent(Event)
	OnTerminated(Termination)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Event      func(Event)
	Terminated func(Termination)
}

func (f ObserverFuncs) OnEvent(ev Event) {
	if f.Event != nil {
		f.Event(ev)
	}
}

func (f ObserverFuncs) OnTerminated(t Termination) {
	if f.Terminated != nil {
		f.Terminated(t)
	}
}

const stderrTailLines = 5

// Supervisor owns the long-lived streaming bridge process. At most one
// such process is alive per Supervisor.
type Supervisor struct {
	interpreter string
	locator     *Locator
	grace       time.Duration
	log         *slog.Logger

	mu      sync.Mutex
	state   SupervisorState
	gen     uint64
	current *session
	last    *session
}

func NewSupervisor(opts ...Option) *Supervisor {
	o := buildOptions(opts)
	return newSupervisor(o, NewLocator(o.sources...))
}

func newSupervisor(o options, locator *Locator) *Supervisor {
	return &Supervisor{
		interpreter: o.interpreter,
		locator:     locator,
		grace:       o.stopGrace,
		log:         o.logger,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the bridge in streaming mode and delivers its output to
// obs. Calling Start while a session is starting or running is a no-op that
// returns AlreadyRunning.
//
// If a stopped session's process has not exited yet, Start waits for it
// first; ctx bounds that wait only.
func (s *Supervisor) Start(ctx context.Context, obs Observer) (StartStatus, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.log.Debug("bridge listener already running")
		return AlreadyRunning, nil
	}
	s.state = StateStarting
	s.gen++
	gen := s.gen
	prev := s.last
	s.mu.Unlock()

	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			s.abortStart(gen)
			return NotStarted, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStarting || s.gen != gen {
		return NotStarted, ErrStartCancelled
	}

	loc, err := s.locator.Locate()
	if err != nil {
		s.state = StateIdle
		s.log.Warn("bridge not found", "error", err)
		return NotStarted, err
	}

	sess, stdout, stderr, err := s.launch(loc, obs)
	if err != nil {
		s.state = StateIdle
		s.log.Warn("failed to start bridge listener", "error", err)
		return NotStarted, err
	}

	s.current, s.last = sess, sess
	s.state = StateListening
	sess.log.Info("bridge listener started", "pid", sess.cmd.Process.Pid)

	go s.run(sess, stdout, stderr)
	return Started, nil
}

func (s *Supervisor) abortStart(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStarting && s.gen == gen {
		s.state = StateIdle
	}
}

// Stop asks the listening process to terminate and returns at once. The
// supervisor is Idle when Stop returns; the session's termination is still
// reported to its observer once the process is gone. Stop is idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return
	case StateStarting:
		s.state = StateIdle
		return
	}

	sess := s.current
	s.current = nil
	s.state = StateIdle
	if sess != nil {
		sess.terminate(s.grace)
	}
}

type session struct {
	id       string
	cmd      *exec.Cmd
	observer Observer
	log      *slog.Logger
	stopped  atomic.Bool
	done     chan struct{}
}

func (s *Supervisor) launch(loc Location, obs Observer) (*session, io.ReadCloser, io.ReadCloser, error) {
	cmd := exec.Command(s.interpreter, loc.Script, loc.Library, "loop")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, &LaunchError{Interpreter: s.interpreter, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, &LaunchError{Interpreter: s.interpreter, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, &LaunchError{Interpreter: s.interpreter, Err: err}
	}

	if obs == nil {
		obs = ObserverFuncs{}
	}
	id := uuid.NewString()
	return &session{
		id:       id,
		cmd:      cmd,
		observer: obs,
		log:      s.log.With("session", id),
		done:     make(chan struct{}),
	}, stdout, stderr, nil
}

// run drains the session's output, waits for the process and reports the
// termination. It is the only goroutine that calls the session's observer.
func (s *Supervisor) run(sess *session, stdout, stderr io.Reader) {
	var tail []string
	var g errgroup.Group

	g.Go(func() error {
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 4096), 1<<20)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			sess.log.Debug("bridge stderr", "line", line)
			tail = append(tail, line)
			if len(tail) > stderrTailLines {
				tail = tail[1:]
			}
		}
		_, err := io.Copy(io.Discard, stderr)
		return err
	})

	g.Go(func() error {
		dec := NewDecoder(stdout)
		for ev := range dec.Events() {
			// keep draining after Stop so the child never blocks on a full pipe
			if sess.stopped.Load() {
				continue
			}
			if ev.Failed() {
				sess.log.Debug("malformed bridge record", "line", ev.Err.Line, "error", ev.Err.Err)
			}
			sess.observer.OnEvent(ev)
		}
		return dec.Err()
	})

	if err := g.Wait(); err != nil {
		sess.log.Debug("bridge output closed with error", "error", err)
	}

	s.mu.Lock()
	if s.current == sess {
		s.state = StateTerminating
	}
	s.mu.Unlock()

	waitErr := sess.cmd.Wait()
	exit := exitError(sess.cmd.ProcessState, waitErr, strings.Join(tail, "; "))

	s.mu.Lock()
	if s.current == sess {
		s.current = nil
		s.state = StateIdle
	}
	s.mu.Unlock()
	close(sess.done)

	requested := sess.stopped.Load()
	if requested {
		sess.log.Info("bridge listener stopped")
	} else {
		sess.log.Warn("bridge listener exited", "error", exit)
	}
	sess.observer.OnTerminated(Termination{
		SessionID: sess.id,
		Requested: requested,
		Exit:      exit,
	})
}

// terminate sends SIGTERM and kills the process if it is still alive after
// grace.
func (sess *session) terminate(grace time.Duration) {
	if sess.stopped.Swap(true) {
		return
	}
	proc := sess.cmd.Process
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if !errors.Is(err, os.ErrProcessDone) {
			_ = proc.Kill()
		}
		return
	}
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-sess.done:
		case <-timer.C:
			sess.log.Warn("bridge listener ignored SIGTERM, killing", "grace", grace)
			_ = proc.Kill()
		}
	}()
}

func exitError(state *os.ProcessState, waitErr error, stderrTail string) *ProcessExitError {
	e := &ProcessExitError{ExitCode: -1, Stderr: stderrTail, Err: waitErr}
	if state == nil {
		return e
	}
	e.ExitCode = state.ExitCode()
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		e.Signal = ws.Signal().String()
	}
	return e
}
