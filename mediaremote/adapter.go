package mediaremote

import (
	"context"
	"log/slog"
	"sync"
)

// Adapter is the entry point for hosts: it streams playback state from a
// listening bridge and sends control commands through short-lived ones.
//
// Control methods never block. Each returns a buffered channel with the
// command's result that callers are free to ignore.
type Adapter struct {
	supervisor *Supervisor
	dispatcher *Dispatcher
	log        *slog.Logger

	mu            sync.RWMutex
	onTrackInfo   func(PlaybackState)
	onDecodeError func(*DecodeError)
	onTerminated  func(Termination)
}

func New(opts ...Option) *Adapter {
	o := buildOptions(opts)
	locator := NewLocator(o.sources...)
	return &Adapter{
		supervisor: newSupervisor(o, locator),
		dispatcher: newDispatcher(o, locator),
		log:        o.logger,
	}
}

// OnTrackInfo registers the callback for decoded states. It is called from
// the listener goroutine, in stream order.
func (a *Adapter) OnTrackInfo(fn func(PlaybackState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onTrackInfo = fn
}

// OnDecodeError registers the callback for malformed records.
func (a *Adapter) OnDecodeError(fn func(*DecodeError)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onDecodeError = fn
}

// OnListenerTerminated registers the callback fired once per listening
// session after its process has exited.
func (a *Adapter) OnListenerTerminated(fn func(Termination)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onTerminated = fn
}

// StartListening starts the streaming bridge. A second call while a
// session is active returns AlreadyRunning.
func (a *Adapter) StartListening(ctx context.Context) (StartStatus, error) {
	return a.supervisor.Start(ctx, ObserverFuncs{
		Event:      a.deliver,
		Terminated: a.terminated,
	})
}

// StopListening stops the streaming bridge without waiting for it to exit.
func (a *Adapter) StopListening() {
	a.supervisor.Stop()
}

// ListenerState reports the supervisor's lifecycle state.
func (a *Adapter) ListenerState() SupervisorState {
	return a.supervisor.State()
}

func (a *Adapter) deliver(ev Event) {
	a.mu.RLock()
	onState, onErr := a.onTrackInfo, a.onDecodeError
	a.mu.RUnlock()

	if ev.Failed() {
		if onErr != nil {
			onErr(ev.Err)
		}
		return
	}
	if onState != nil {
		onState(ev.State)
	}
}

func (a *Adapter) terminated(t Termination) {
	a.mu.RLock()
	fn := a.onTerminated
	a.mu.RUnlock()
	if fn != nil {
		fn(t)
	}
}

// Dispatch runs a command and waits for its result.
func (a *Adapter) Dispatch(ctx context.Context, cmd Command, args ...string) CommandResult {
	return a.dispatcher.Dispatch(ctx, cmd, args...)
}

func (a *Adapter) Play() <-chan CommandResult { return a.dispatcher.Go(CommandPlay) }

func (a *Adapter) Pause() <-chan CommandResult { return a.dispatcher.Go(CommandPause) }

func (a *Adapter) TogglePlayPause() <-chan CommandResult {
	return a.dispatcher.Go(CommandTogglePlayPause)
}

func (a *Adapter) NextTrack() <-chan CommandResult { return a.dispatcher.Go(CommandNextTrack) }

func (a *Adapter) PreviousTrack() <-chan CommandResult {
	return a.dispatcher.Go(CommandPreviousTrack)
}

func (a *Adapter) Stop() <-chan CommandResult { return a.dispatcher.Go(CommandStop) }

// SetTime seeks the active player to the given position in seconds.
func (a *Adapter) SetTime(seconds float64) <-chan CommandResult {
	return async(func() CommandResult {
		return a.dispatcher.SetTime(context.Background(), seconds)
	})
}
