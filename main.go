package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/GiGurra/boa/pkg/boa"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

type rootParams struct {
	Color     string `short:"c" optional:"true" help:"Set the desired color (ANSI code or hex)"`
	NoArtwork bool   `help:"Disable album artwork display"`
	Config    string `optional:"true" help:"Path to the config file"`
}

func main() {
	boa.CmdT[rootParams]{
		Use:         "goplaying",
		Short:       "Now playing for the macOS media session",
		Long:        "Shows the track the system is playing and controls it, through the MediaRemote bridge.",
		Version:     appVersion(),
		ParamEnrich: defaultParamEnricher(),
		SubCmds: []*cobra.Command{
			streamCmd(),
			statusCmd(),
			controlCmd(),
		},
		RunFunc: func(params *rootParams, cmd *cobra.Command, args []string) {
			if err := runTUI(params); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}.Run()
}

func defaultParamEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}

func runTUI(params *rootParams) error {
	initConfig(configFlags{
		path:      params.Config,
		color:     params.Color,
		noArtwork: params.NoArtwork,
	})
	cfg := config.Get()

	logger, closeLog, err := setupLogging(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	adapter := newAdapter(cfg, logger)
	defer adapter.StopListening()

	p := tea.NewProgram(newModel(adapter), tea.WithAltScreen())
	attachProgram(adapter, p, logger)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
