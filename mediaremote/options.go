package mediaremote

import (
	"io"
	"log/slog"
	"time"
)

const DefaultStopGrace = 3 * time.Second

type options struct {
	interpreter string
	stopGrace   time.Duration
	logger      *slog.Logger
	sources     []CandidateSource
}

// Option configures a Supervisor, Dispatcher or Adapter.
type Option func(*options)

// WithInterpreter sets the program that runs the bridge script.
func WithInterpreter(path string) Option {
	return func(o *options) { o.interpreter = path }
}

// WithStopGrace sets how long a stopped listener may take to exit after
// SIGTERM before it is killed.
func WithStopGrace(d time.Duration) Option {
	return func(o *options) { o.stopGrace = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCandidates adds places to look for the bridge. Sources are tried in
// the order they were added.
func WithCandidates(sources ...CandidateSource) Option {
	return func(o *options) { o.sources = append(o.sources, sources...) }
}

func buildOptions(opts []Option) options {
	o := options{
		interpreter: DefaultInterpreter,
		stopGrace:   DefaultStopGrace,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
