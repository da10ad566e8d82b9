package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"goplaying/mediaremote"
)

// Config holds all application configuration
type Config struct {
	UI struct {
		Color     string `mapstructure:"color"`
		ColorMode string `mapstructure:"color_mode"`
		MaxWidth  int    `mapstructure:"max_width"`
	} `mapstructure:"ui"`
	Artwork struct {
		Enabled      bool `mapstructure:"enabled"`
		Padding      int  `mapstructure:"padding"`
		WidthPixels  int  `mapstructure:"width_pixels"`
		WidthColumns int  `mapstructure:"width_columns"`
	} `mapstructure:"artwork"`
	Text struct {
		MaxLengthWithArt int `mapstructure:"max_length_with_art"`
		MaxLengthNoArt   int `mapstructure:"max_length_no_art"`
	} `mapstructure:"text"`
	Timing struct {
		UIRefreshMs int `mapstructure:"ui_refresh_ms"`
	} `mapstructure:"timing"`
	Seek struct {
		StepSeconds float64 `mapstructure:"step_seconds"`
	} `mapstructure:"seek"`
	Bridge struct {
		Interpreter string `mapstructure:"interpreter"`
		BundleDir   string `mapstructure:"bundle_dir"`
		ScriptName  string `mapstructure:"script_name"`
		LibraryName string `mapstructure:"library_name"`
		Script      string `mapstructure:"script"`
		Library     string `mapstructure:"library"`
		StopGraceMs int    `mapstructure:"stop_grace_ms"`
	} `mapstructure:"bridge"`
	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

var config = &SafeConfig{}

// Config file changed notification
type configReloadMsg struct{}

var configChangeChan = make(chan struct{}, 1)

// Watch for config file changes
func watchConfigCmd() tea.Cmd {
	return func() tea.Msg {
		<-configChangeChan
		return configReloadMsg{}
	}
}

// configFlags are the command-line values that override the config file.
type configFlags struct {
	path      string
	color     string
	noArtwork bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ui.color", "2")
	v.SetDefault("ui.color_mode", "manual")
	v.SetDefault("ui.max_width", 45)
	v.SetDefault("artwork.enabled", true)
	v.SetDefault("artwork.padding", 15)
	v.SetDefault("artwork.width_pixels", 300)
	v.SetDefault("artwork.width_columns", 13)
	v.SetDefault("text.max_length_with_art", 22)
	v.SetDefault("text.max_length_no_art", 36)
	v.SetDefault("timing.ui_refresh_ms", 100)
	v.SetDefault("seek.step_seconds", 10)
	v.SetDefault("bridge.interpreter", mediaremote.DefaultInterpreter)
	v.SetDefault("bridge.script_name", mediaremote.DefaultScriptName)
	v.SetDefault("bridge.library_name", mediaremote.DefaultLibraryName)
	v.SetDefault("bridge.stop_grace_ms", int(mediaremote.DefaultStopGrace/time.Millisecond))
	v.SetDefault("log.level", "info")
}

func initConfig(flags configFlags) {
	v := viper.GetViper()
	setDefaults(v)

	if flags.path != "" {
		v.SetConfigFile(flags.path)
	} else {
		// Set config file location following XDG standard
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check XDG_CONFIG_HOME first, fallback to ~/.config
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			homeDir, err := os.UserHomeDir()
			if err == nil {
				configHome = filepath.Join(homeDir, ".config")
			}
		}
		if configHome != "" {
			v.AddConfigPath(filepath.Join(configHome, "goplaying"))
		}
	}

	// Environment variable support with GOPLAYING_ prefix
	v.SetEnvPrefix("GOPLAYING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore error if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	// Command-line flags take precedence
	if flags.color != "" {
		v.Set("ui.color", flags.color)
	}
	if flags.noArtwork {
		v.Set("artwork.enabled", false)
	}

	config.Set(loadConfig(v, os.Stderr))

	// Watch for config file changes and live reload
	v.OnConfigChange(func(e fsnotify.Event) {
		slog.Debug("config file changed", "file", e.Name, "op", e.Op.String())
		config.Set(loadConfig(v, io.Discard))
		select {
		case configChangeChan <- struct{}{}:
		default:
			// Channel full, skip notification
		}
	})
	v.WatchConfig()
}

// loadConfig unmarshals, validates and repairs the config held by v.
// Problems are reported to w and replaced by defaults.
func loadConfig(v *viper.Viper, w io.Writer) Config {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(w, "Warning: Error parsing config: %v\n", err)
	}
	if errs := validateConfig(&cfg); len(errs) > 0 {
		printConfigWarnings(w, errs)
		applyDefaultsForInvalidFields(&cfg, errs)
	}
	return cfg
}

// configError describes one invalid config value
type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.message)
}

var logLevels = []string{"debug", "info", "warn", "error"}

// validateConfig checks every field and returns all problems found
func validateConfig(cfg *Config) []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, configError{field: field, message: fmt.Sprintf(format, args...)})
	}

	if !isValidColor(cfg.UI.Color) {
		add("ui.color", "invalid color format '%s'", cfg.UI.Color)
	}
	if cfg.UI.ColorMode != "manual" && cfg.UI.ColorMode != "auto" {
		add("ui.color_mode", "must be 'manual' or 'auto' (got '%s')", cfg.UI.ColorMode)
	}
	if cfg.UI.MaxWidth < 20 {
		add("ui.max_width", "must be at least 20 (got %d)", cfg.UI.MaxWidth)
	}

	if cfg.Artwork.Padding < 0 || (cfg.UI.MaxWidth >= 20 && cfg.Artwork.Padding >= cfg.UI.MaxWidth) {
		add("artwork.padding", "must be between 0 and max_width (got %d)", cfg.Artwork.Padding)
	}
	if cfg.Artwork.WidthPixels <= 0 || cfg.Artwork.WidthPixels > 2000 {
		add("artwork.width_pixels", "must be between 1 and 2000 (got %d)", cfg.Artwork.WidthPixels)
	}
	if cfg.Artwork.WidthColumns <= 0 {
		add("artwork.width_columns", "must be positive (got %d)", cfg.Artwork.WidthColumns)
	}

	if cfg.Text.MaxLengthWithArt <= 0 || cfg.Text.MaxLengthWithArt > 200 {
		add("text.max_length_with_art", "must be between 1 and 200 (got %d)", cfg.Text.MaxLengthWithArt)
	}
	if cfg.Text.MaxLengthNoArt <= 0 || cfg.Text.MaxLengthNoArt > 200 {
		add("text.max_length_no_art", "must be between 1 and 200 (got %d)", cfg.Text.MaxLengthNoArt)
	}

	if cfg.Timing.UIRefreshMs < 10 || cfg.Timing.UIRefreshMs > 10000 {
		add("timing.ui_refresh_ms", "must be between 10 and 10000 (got %d)", cfg.Timing.UIRefreshMs)
	}
	if cfg.Seek.StepSeconds <= 0 || cfg.Seek.StepSeconds > 600 {
		add("seek.step_seconds", "must be between 0 and 600 (got %v)", cfg.Seek.StepSeconds)
	}

	if cfg.Bridge.Interpreter == "" {
		add("bridge.interpreter", "must not be empty")
	}
	if (cfg.Bridge.Script == "") != (cfg.Bridge.Library == "") {
		add("bridge.script", "script and library must be set together")
	}
	if cfg.Bridge.StopGraceMs < 0 {
		add("bridge.stop_grace_ms", "must not be negative (got %d)", cfg.Bridge.StopGraceMs)
	}

	if !lo.Contains(logLevels, strings.ToLower(cfg.Log.Level)) {
		add("log.level", "must be one of %s (got '%s')", strings.Join(logLevels, ", "), cfg.Log.Level)
	}

	return errs
}

// applyDefaultsForInvalidFields resets each field named in errs to its default
func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	for _, err := range errs {
		var ce configError
		if !errors.As(err, &ce) {
			continue
		}
		switch ce.field {
		case "ui.color":
			cfg.UI.Color = "2"
		case "ui.color_mode":
			cfg.UI.ColorMode = "auto"
		case "ui.max_width":
			cfg.UI.MaxWidth = 45
		case "artwork.padding":
			cfg.Artwork.Padding = 16
		case "artwork.width_pixels":
			cfg.Artwork.WidthPixels = 300
		case "artwork.width_columns":
			cfg.Artwork.WidthColumns = 13
		case "text.max_length_with_art":
			cfg.Text.MaxLengthWithArt = 22
		case "text.max_length_no_art":
			cfg.Text.MaxLengthNoArt = 36
		case "timing.ui_refresh_ms":
			cfg.Timing.UIRefreshMs = 100
		case "seek.step_seconds":
			cfg.Seek.StepSeconds = 10
		case "bridge.interpreter":
			cfg.Bridge.Interpreter = mediaremote.DefaultInterpreter
		case "bridge.script":
			cfg.Bridge.Script, cfg.Bridge.Library = "", ""
		case "bridge.stop_grace_ms":
			cfg.Bridge.StopGraceMs = int(mediaremote.DefaultStopGrace / time.Millisecond)
		case "log.level":
			cfg.Log.Level = "info"
		}
	}
}

func printConfigWarnings(w io.Writer, errs []error) {
	fmt.Fprintln(w, "Warning: invalid config values, using defaults for:")
	for _, err := range errs {
		fmt.Fprintf(w, "  - %v\n", err)
	}
}

// isValidColor accepts ANSI codes 0-255 and #RGB / #RRGGBB hex colors
func isValidColor(color string) bool {
	if color == "" {
		return false
	}
	if color[0] == '#' {
		hex := color[1:]
		if len(hex) != 3 && len(hex) != 6 {
			return false
		}
		for _, c := range hex {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
		return true
	}
	if len(color) > 3 {
		return false
	}
	n := 0
	for _, c := range color {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	return n <= 255
}

// bridgeOptions maps the bridge section to adapter options. Explicit paths
// are tried before the bundle layouts.
func bridgeOptions(cfg Config, logger *slog.Logger) []mediaremote.Option {
	b := cfg.Bridge
	var sources []mediaremote.CandidateSource
	if b.Script != "" && b.Library != "" {
		sources = append(sources, mediaremote.Candidates{{Script: b.Script, Library: b.Library}})
	}

	dirs := []string{b.BundleDir}
	if b.BundleDir == "" {
		dirs = defaultBundleDirs()
	}
	for _, dir := range lo.Compact(dirs) {
		sources = append(sources, mediaremote.BundleLayout{
			Dir:         dir,
			ScriptName:  b.ScriptName,
			LibraryName: b.LibraryName,
		})
	}

	return []mediaremote.Option{
		mediaremote.WithInterpreter(b.Interpreter),
		mediaremote.WithStopGrace(time.Duration(b.StopGraceMs) * time.Millisecond),
		mediaremote.WithLogger(logger),
		mediaremote.WithCandidates(sources...),
	}
}

// defaultBundleDirs looks for the bridge bundle next to the executable.
func defaultBundleDirs() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	return []string{
		filepath.Join(dir, "MediaRemoteAdapter.framework"),
		filepath.Join(dir, "MediaRemoteAdapter_MediaRemoteAdapter.bundle"),
		dir,
	}
}

// setupLogging installs the default slog logger. The TUI owns the terminal,
// so unless a log file is configured its logs are discarded.
func setupLogging(cfg Config, fallback io.Writer) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	w, closeFn := fallback, func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("opening log file: %w", err)
		}
		w, closeFn = f, func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
