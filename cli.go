package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"goplaying/mediaremote"
)

// loadCLIConfig reads the config and sets up logging to stderr for the
// non-interactive subcommands.
func loadCLIConfig(path string, stderr io.Writer) (Config, *slog.Logger, func(), error) {
	initConfig(configFlags{path: path})
	cfg := config.Get()
	logger, closeLog, err := setupLogging(cfg, stderr)
	if err != nil {
		return cfg, nil, closeLog, err
	}
	return cfg, logger, closeLog, nil
}

type streamParams struct {
	Config string `optional:"true" help:"Path to the config file"`
}

func streamCmd() *cobra.Command {
	return boa.CmdT[streamParams]{
		Use:   "stream",
		Short: "Print playback states as JSON lines",
		Long: `Starts the bridge in listening mode and prints every playback state it
reports as one JSON object per line, until interrupted or the bridge exits.`,
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *streamParams, cmd *cobra.Command, args []string) {
			os.Exit(runStream(params, os.Stdout, os.Stderr))
		},
	}.ToCobra()
}

func runStream(params *streamParams, stdout, stderr io.Writer) int {
	cfg, logger, closeLog, err := loadCLIConfig(params.Config, stderr)
	defer closeLog()
	if err != nil {
		fmt.Fprintf(stderr, "stream: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newAdapter(cfg, logger)
	enc := json.NewEncoder(stdout)
	a.OnTrackInfo(func(st mediaremote.PlaybackState) {
		if err := enc.Encode(st); err != nil {
			logger.Warn("writing state", "error", err)
		}
	})
	a.OnDecodeError(func(err *mediaremote.DecodeError) {
		logger.Warn("ignoring malformed bridge record", "line", err.Line, "error", err.Err)
	})
	done := make(chan mediaremote.Termination, 1)
	a.OnListenerTerminated(func(t mediaremote.Termination) { done <- t })

	if _, err := a.StartListening(ctx); err != nil {
		fmt.Fprintf(stderr, "stream: %v\n", err)
		return 1
	}

	select {
	case <-ctx.Done():
		a.StopListening()
		<-done
		return 0
	case t := <-done:
		if t.Exit != nil && t.Exit.ExitCode != 0 {
			fmt.Fprintf(stderr, "stream: %v\n", t.Exit)
			return 1
		}
		return 0
	}
}

type statusParams struct {
	Config  string `optional:"true" help:"Path to the config file"`
	Timeout int    `short:"t" optional:"true" default:"5" help:"Seconds to wait for the bridge to report a state"`
}

func statusCmd() *cobra.Command {
	return boa.CmdT[statusParams]{
		Use:         "status",
		Short:       "Show what is playing right now",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *statusParams, cmd *cobra.Command, args []string) {
			os.Exit(runStatus(params, os.Stdout, os.Stderr))
		},
	}.ToCobra()
}

var errNoState = errors.New("the bridge reported no playback state")

func runStatus(params *statusParams, stdout, stderr io.Writer) int {
	cfg, logger, closeLog, err := loadCLIConfig(params.Config, stderr)
	defer closeLog()
	if err != nil {
		fmt.Fprintf(stderr, "status: %v\n", err)
		return 1
	}

	st, err := firstState(newAdapter(cfg, logger), time.Duration(params.Timeout)*time.Second)
	if err != nil {
		fmt.Fprintf(stderr, "status: %v\n", err)
		return 1
	}
	renderStatus(stdout, st, time.Now())
	return 0
}

// firstState listens until the bridge reports one state, then stops it.
func firstState(a *mediaremote.Adapter, timeout time.Duration) (mediaremote.PlaybackState, error) {
	states := make(chan mediaremote.PlaybackState, 1)
	done := make(chan mediaremote.Termination, 1)
	a.OnTrackInfo(func(st mediaremote.PlaybackState) {
		select {
		case states <- st:
		default:
		}
	})
	a.OnListenerTerminated(func(t mediaremote.Termination) { done <- t })

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := a.StartListening(ctx); err != nil {
		return mediaremote.PlaybackState{}, err
	}
	defer a.StopListening()

	select {
	case st := <-states:
		return st, nil
	case t := <-done:
		// the bridge may have written its record right before exiting
		select {
		case st := <-states:
			return st, nil
		default:
		}
		if t.Exit != nil && t.Exit.ExitCode != 0 {
			return mediaremote.PlaybackState{}, t.Exit
		}
		return mediaremote.PlaybackState{}, errNoState
	case <-ctx.Done():
		return mediaremote.PlaybackState{}, fmt.Errorf("%w within %s", errNoState, timeout)
	}
}

func renderStatus(w io.Writer, st mediaremote.PlaybackState, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})

	add := func(field, value string) {
		if value != "" {
			t.AppendRow(table.Row{field, value})
		}
	}
	str := func(v string, _ bool) string { return v }

	add("Title", str(st.Title()))
	add("Artist", str(st.Artist()))
	add("Album", str(st.Album()))
	add("Status", playbackStatus(st))

	if elapsed, ok := st.CurrentElapsedTime(now); ok {
		pos := formatDuration(max(elapsed, 0))
		if total, ok := st.Duration(); ok {
			pos += " / " + formatDuration(total)
		}
		add("Position", pos)
	}
	if rate, ok := st.PlaybackRate(); ok {
		add("Rate", strconv.FormatFloat(rate, 'f', -1, 64))
	}

	add("Application", str(st.ApplicationName()))
	add("Bundle ID", str(st.BundleIdentifier()))
	if pid, ok := st.ProcessID(); ok {
		name := processName(pid)
		add("PID", strconv.Itoa(pid)+lo.Ternary(name != "", " ("+name+")", ""))
	}
	add("Modes", modeBadges(st))

	if data, ok := st.ArtworkData(); ok {
		mime, _ := st.ArtworkMimeType()
		add("Artwork", strings.TrimSpace(fmt.Sprintf("%s %d bytes", mime, len(data))))
	}

	t.Render()
}

type controlParams struct {
	Command string `pos:"true" help:"Command to send: play, pause, toggle-play-pause, next-track, previous-track, stop or set-time"`
	Seconds string `pos:"true" optional:"true" help:"Position in seconds, for set-time"`
	Config  string `optional:"true" help:"Path to the config file"`
}

func controlCmd() *cobra.Command {
	return boa.CmdT[controlParams]{
		Use:         "control",
		Short:       "Send one control command to the active player",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *controlParams, cmd *cobra.Command, args []string) {
			os.Exit(runControl(params, os.Stdout, os.Stderr))
		},
	}.ToCobra()
}

func runControl(params *controlParams, stdout, stderr io.Writer) int {
	command, err := mediaremote.ParseCommand(params.Command)
	if err != nil {
		names := lo.Map(mediaremote.Commands, func(c mediaremote.Command, _ int) string {
			return strings.ReplaceAll(string(c), "_", "-")
		})
		fmt.Fprintf(stderr, "control: %v (expected one of %s)\n", err, strings.Join(names, ", "))
		return 2
	}

	var seconds float64
	if command == mediaremote.CommandSetTime {
		seconds, err = strconv.ParseFloat(params.Seconds, 64)
		if err != nil {
			fmt.Fprintf(stderr, "control: set-time needs a position in seconds (got %q)\n", params.Seconds)
			return 2
		}
	} else if params.Seconds != "" {
		fmt.Fprintf(stderr, "control: %s takes no argument\n", params.Command)
		return 2
	}

	cfg, logger, closeLog, err := loadCLIConfig(params.Config, stderr)
	defer closeLog()
	if err != nil {
		fmt.Fprintf(stderr, "control: %v\n", err)
		return 1
	}

	d := mediaremote.NewDispatcher(bridgeOptions(cfg, logger)...)
	ctx := context.Background()
	var res mediaremote.CommandResult
	if command == mediaremote.CommandSetTime {
		res = d.SetTime(ctx, seconds)
	} else {
		res = d.Dispatch(ctx, command)
	}
	return reportResult(res, stdout, stderr)
}

func reportResult(res mediaremote.CommandResult, stdout, stderr io.Writer) int {
	if res.Err != nil {
		fmt.Fprintf(stderr, "control: %v\n", res.Err)
		return 1
	}
	if res.Output != "" {
		fmt.Fprintln(stdout, res.Output)
	}
	if res.ExitCode != 0 {
		if res.ErrorOutput != "" {
			fmt.Fprintln(stderr, res.ErrorOutput)
		}
		fmt.Fprintf(stderr, "control: %s exited with status %d\n", res.Command, res.ExitCode)
		return lo.Ternary(res.ExitCode > 0, res.ExitCode, 1)
	}
	return 0
}
