package mediaremote

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// fakeBridge lays out a bundle directory holding a shell script posing as
// the bridge, plus an empty library next to it. The script is run by sh,
// so $1 is the library path and $2 the mode or command.
type fakeBridge struct {
	dir    string
	bundle string
	shell  string
}

func newFakeBridge(t *testing.T, script string) *fakeBridge {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake bridge needs a POSIX shell")
	}
	shell, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	bundle := filepath.Join(dir, "MediaRemoteAdapter.framework")
	if err := os.MkdirAll(filepath.Join(bundle, "Resources"), 0o755); err != nil {
		t.Fatalf("creating bundle: %v", err)
	}
	writeFile(t, filepath.Join(bundle, "Resources", DefaultScriptName), script)
	writeFile(t, filepath.Join(dir, DefaultLibraryName), "")

	return &fakeBridge{dir: dir, bundle: bundle, shell: shell}
}

func (b *fakeBridge) options(extra ...Option) []Option {
	opts := []Option{
		WithInterpreter(b.shell),
		WithCandidates(BundleLayout{Dir: b.bundle}),
		WithStopGrace(500 * time.Millisecond),
	}
	return append(opts, extra...)
}

func (b *fakeBridge) path(name string) string {
	return filepath.Join(b.dir, name)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// recorder collects everything a listening session reports.
type recorder struct {
	events chan Event
	done   chan Termination
}

func newRecorder() *recorder {
	return &recorder{
		events: make(chan Event, 1024),
		done:   make(chan Termination, 4),
	}
}

func (r *recorder) OnEvent(ev Event)           { r.events <- ev }
func (r *recorder) OnTerminated(t Termination) { r.done <- t }

func (r *recorder) waitTermination(t *testing.T) Termination {
	t.Helper()
	select {
	case term := <-r.done:
		return term
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for termination")
		return Termination{}
	}
}

func (r *recorder) waitEvent(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// drain returns the events received so far.
func (r *recorder) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func mustDecode(t *testing.T, record string) PlaybackState {
	t.Helper()
	st, err := DecodeState([]byte(record))
	if err != nil {
		t.Fatalf("DecodeState(%s): %v", record, err)
	}
	return st
}

func assertEqual(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}
