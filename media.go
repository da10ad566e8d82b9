package main

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shirou/gopsutil/v3/process"

	"goplaying/mediaremote"
)

// MediaController is the part of the bridge adapter the TUI drives
type MediaController interface {
	StartListening(ctx context.Context) (mediaremote.StartStatus, error)
	StopListening()
	TogglePlayPause() <-chan mediaremote.CommandResult
	NextTrack() <-chan mediaremote.CommandResult
	PreviousTrack() <-chan mediaremote.CommandResult
	Stop() <-chan mediaremote.CommandResult
	SetTime(seconds float64) <-chan mediaremote.CommandResult
}

var _ MediaController = (*mediaremote.Adapter)(nil)

// New playback state pushed by the listening bridge
type stateMsg struct {
	state mediaremote.PlaybackState
}

// The listening bridge exited
type listenerStoppedMsg struct {
	termination mediaremote.Termination
}

// Outcome of a StartListening call
type listenerStartedMsg struct {
	err error
}

// Outcome of a control command
type commandResultMsg struct {
	result mediaremote.CommandResult
}

// Artwork processed in the background for a track
type artworkMsg struct {
	trackID string
	encoded string
	color   string
}

// Name of the process that owns the session, looked up by PID
type sourceNameMsg struct {
	pid  int
	name string
}

// newAdapter builds the bridge adapter from the current config.
func newAdapter(cfg Config, logger *slog.Logger) *mediaremote.Adapter {
	return mediaremote.New(bridgeOptions(cfg, logger)...)
}

// attachProgram forwards adapter notifications into the bubbletea program.
// Send blocks until the program reads the message, which keeps the
// bridge's event order intact.
func attachProgram(a *mediaremote.Adapter, p *tea.Program, logger *slog.Logger) {
	a.OnTrackInfo(func(st mediaremote.PlaybackState) {
		p.Send(stateMsg{state: st})
	})
	a.OnDecodeError(func(err *mediaremote.DecodeError) {
		logger.Warn("ignoring malformed bridge record", "line", err.Line, "error", err.Err)
	})
	a.OnListenerTerminated(func(t mediaremote.Termination) {
		p.Send(listenerStoppedMsg{termination: t})
	})
}

func startListeningCmd(mc MediaController) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := mc.StartListening(ctx)
		return listenerStartedMsg{err: err}
	}
}

// awaitResult turns a control command's result channel into a message
func awaitResult(ch <-chan mediaremote.CommandResult) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{result: <-ch}
	}
}

// processArtworkCmd decodes and encodes artwork off the UI goroutine
func processArtworkCmd(st mediaremote.PlaybackState, extractColor bool) tea.Cmd {
	trackID := st.UniqueIdentifier()
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				// Silently ignore artwork processing panics
				msg = artworkMsg{trackID: trackID}
			}
		}()
		color, encoded, err := processArtwork(st, extractColor)
		if err != nil {
			slog.Debug("artwork unavailable", "track", trackID, "error", err)
		}
		return artworkMsg{trackID: trackID, encoded: encoded, color: color}
	}
}

// lookupSourceNameCmd resolves the player's name when the bridge only sent
// its PID
func lookupSourceNameCmd(pid int) tea.Cmd {
	return func() tea.Msg {
		return sourceNameMsg{pid: pid, name: processName(pid)}
	}
}

func processName(pid int) string {
	if pid <= 0 {
		return ""
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ""
	}
	name, err := p.Name()
	if err != nil {
		return ""
	}
	return name
}
