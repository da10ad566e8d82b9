package main

import (
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"goplaying/mediaremote"
)

// model is the Bubble Tea model for the TUI application
type model struct {
	media  MediaController
	color  string
	width  int
	height int

	// Latest snapshot from the bridge
	state     mediaremote.PlaybackState
	haveState bool
	lastTrack string // UniqueIdentifier of the displayed track

	// Source application, from the record or looked up by PID
	sourceName string
	sourcePID  int

	// Listener lifecycle
	listening  bool
	stopped    *mediaremote.Termination
	lastError  error
	commandErr error // last failed control command, cleared on success

	// Album artwork support
	artworkEncoded string // Kitty protocol-encoded artwork for display
	supportsKitty  bool   // Whether terminal supports Kitty graphics
	artworkTrack   string // Track the encoded artwork belongs to

	// Text scrolling state
	scrollOffset int
	scrollPause  int
	scrollTick   int

	showHelp bool
}

func newModel(mc MediaController) model {
	cfg := config.Get()
	return model{
		media:         mc,
		color:         cfg.UI.Color,
		supportsKitty: supportsKittyGraphics(),
	}
}

// UI refresh tick - drives the progress bar and scrolling
type tickMsg time.Time

// Schedule next UI refresh tick
func tickCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.Timing.UIRefreshMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		watchConfigCmd(),
		startListeningCmd(m.media),
	)
}

// position returns the extrapolated playback position and the track length.
// Either is zero when the bridge did not report it.
func (m model) position(now time.Time) (elapsed, total time.Duration) {
	if !m.haveState {
		return 0, 0
	}
	total, _ = m.state.Duration()
	elapsed, _ = m.state.CurrentElapsedTime(now)
	if elapsed < 0 {
		elapsed = 0
	}
	if total > 0 && elapsed > total {
		elapsed = total
	}
	return elapsed, total
}

// seekTarget returns the position in seconds after moving by delta,
// clamped to the track.
func (m model) seekTarget(now time.Time, delta float64) (float64, bool) {
	if !m.haveState {
		return 0, false
	}
	if _, ok := m.state.CurrentElapsedTime(now); !ok {
		return 0, false
	}
	elapsed, total := m.position(now)
	target := math.Max(0, elapsed.Seconds()+delta)
	if total > 0 {
		target = math.Min(target, total.Seconds())
	}
	return target, true
}

func (m model) control(ch <-chan mediaremote.CommandResult) (tea.Model, tea.Cmd) {
	return m, awaitResult(ch)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case configReloadMsg:
		cfg := config.Get()
		if cfg.UI.ColorMode == "manual" {
			m.color = cfg.UI.Color
		}
		if !cfg.Artwork.Enabled {
			m.artworkEncoded = ""
			m.artworkTrack = ""
		} else if m.artworkEncoded == "" && m.supportsKitty && m.haveState {
			return m, tea.Batch(watchConfigCmd(), processArtworkCmd(m.state, cfg.UI.ColorMode == "auto"))
		}
		return m, watchConfigCmd()

	case tickMsg:
		m.advanceScroll()
		return m, tickCmd()

	case listenerStartedMsg:
		m.lastError = msg.err
		m.listening = msg.err == nil
		if msg.err == nil {
			m.stopped = nil
		}

	case listenerStoppedMsg:
		t := msg.termination
		m.listening = false
		m.stopped = &t
		m.artworkEncoded = ""
		m.artworkTrack = ""

	case stateMsg:
		return m.applyState(msg.state)

	case artworkMsg:
		cfg := config.Get()
		if msg.trackID != m.lastTrack {
			return m, nil
		}
		m.artworkEncoded = msg.encoded
		m.artworkTrack = msg.trackID
		if cfg.UI.ColorMode == "auto" && msg.color != "" {
			m.color = msg.color
		}

	case sourceNameMsg:
		if msg.pid == m.sourcePID && msg.name != "" {
			m.sourceName = msg.name
		}

	case commandResultMsg:
		res := msg.result
		switch {
		case res.Err != nil:
			m.commandErr = res.Err
		case res.ExitCode != 0:
			m.commandErr = fmt.Errorf("%s exited with status %d", res.Command, res.ExitCode)
		default:
			m.commandErr = nil
		}
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cfg := config.Get()
	switch msg.String() {
	case "q", "ctrl+c":
		m.media.StopListening()
		return m, tea.Quit
	case "p", " ":
		return m.control(m.media.TogglePlayPause())
	case "n":
		return m.control(m.media.NextTrack())
	case "b":
		return m.control(m.media.PreviousTrack())
	case "s":
		return m.control(m.media.Stop())
	case "left", "right":
		delta := cfg.Seek.StepSeconds
		if msg.String() == "left" {
			delta = -delta
		}
		target, ok := m.seekTarget(time.Now(), delta)
		if !ok {
			return m, nil
		}
		return m.control(m.media.SetTime(target))
	case "r":
		if m.listening {
			return m, nil
		}
		m.lastError = nil
		return m, startListeningCmd(m.media)
	case "a":
		cfg.Artwork.Enabled = !cfg.Artwork.Enabled
		config.Set(cfg)
		if !cfg.Artwork.Enabled {
			m.artworkEncoded = ""
			m.artworkTrack = ""
			return m, nil
		}
		if m.supportsKitty && m.haveState {
			return m, processArtworkCmd(m.state, cfg.UI.ColorMode == "auto")
		}
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m model) applyState(st mediaremote.PlaybackState) (tea.Model, tea.Cmd) {
	cfg := config.Get()
	var cmds []tea.Cmd

	m.state = st
	m.haveState = true
	m.lastError = nil

	trackID := st.UniqueIdentifier()
	if trackID != m.lastTrack {
		m.lastTrack = trackID
		m.scrollOffset = 0
		m.scrollPause = 30 // Pause at start for 3 seconds
		m.scrollTick = 0
		if m.artworkTrack != trackID {
			m.artworkEncoded = ""
		}
	}

	// Artwork may arrive in a later record for the same track
	if m.supportsKitty && cfg.Artwork.Enabled && m.artworkTrack != trackID {
		if _, ok := st.ArtworkDataBase64(); ok {
			cmds = append(cmds, processArtworkCmd(st, cfg.UI.ColorMode == "auto"))
		}
	}

	if name, ok := st.ApplicationName(); ok && name != "" {
		m.sourceName = name
	} else if pid, ok := st.ProcessID(); ok && pid != m.sourcePID {
		m.sourcePID = pid
		m.sourceName = ""
		cmds = append(cmds, lookupSourceNameCmd(pid))
	}

	return m, tea.Batch(cmds...)
}

func (m *model) advanceScroll() {
	m.scrollTick++
	if m.scrollPause > 0 {
		m.scrollPause--
		return
	}
	if m.scrollTick%3 != 0 { // Scroll every 3rd tick
		return
	}
	m.scrollOffset++

	maxLen := m.maxTextLength(config.Get())
	longestLen := 0
	for _, s := range m.trackTexts() {
		longestLen = max(longestLen, len([]rune(s)))
	}
	if longestLen > maxLen {
		loopPoint := longestLen + len([]rune(scrollSeparator))
		if m.scrollOffset >= loopPoint {
			m.scrollOffset = 0
			m.scrollPause = 30 // Pause for 3 seconds when looping back
		}
	}
}

func (m model) maxTextLength(cfg Config) int {
	if m.supportsKitty && cfg.Artwork.Enabled {
		return cfg.Text.MaxLengthWithArt
	}
	return cfg.Text.MaxLengthNoArt
}

// trackTexts returns title, artist and album, empty when absent
func (m model) trackTexts() [3]string {
	title, _ := m.state.Title()
	artist, _ := m.state.Artist()
	album, _ := m.state.Album()
	return [3]string{title, artist, album}
}
