package mediaremote

import (
	"os"
	"path/filepath"

	"github.com/samber/lo"
)

const (
	DefaultInterpreter = "/usr/bin/perl"
	DefaultScriptName  = "run.pl"
	DefaultLibraryName = "libCIMediaRemote.dylib"
)

// Location is the pair of paths the bridge needs: the script run by the
// interpreter and the native library handed to it as first argument.
type Location struct {
	Script  string
	Library string
}

func (l Location) String() string {
	return l.Script + " + " + l.Library
}

func (l Location) exists() bool {
	return isFile(l.Script) && isFile(l.Library)
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CandidateSource lists possible bridge locations in priority order.
type CandidateSource interface {
	Candidates() []Location
}

// Candidates is a fixed list of locations, tried as given.
type Candidates []Location

func (c Candidates) Candidates() []Location { return c }

// BundleLayout derives candidates from the directory the host ships the
// bridge in. The native library sits next to the bundle when embedded as a
// framework, or in the same build output directory during development.
type BundleLayout struct {
	Dir         string
	ScriptName  string
	LibraryName string
}

func (b BundleLayout) Candidates() []Location {
	if b.Dir == "" {
		return nil
	}
	script := lo.Ternary(b.ScriptName != "", b.ScriptName, DefaultScriptName)
	library := lo.Ternary(b.LibraryName != "", b.LibraryName, DefaultLibraryName)
	parent := filepath.Dir(filepath.Clean(b.Dir))

	return []Location{
		// App bundle: .../Frameworks/X.framework/Resources/run.pl, dylib in .../Frameworks
		{Script: filepath.Join(b.Dir, "Resources", script), Library: filepath.Join(parent, library)},
		// Build products: .../Debug/X.bundle/run.pl, dylib in .../Debug
		{Script: filepath.Join(b.Dir, script), Library: filepath.Join(parent, library)},
		// Flat install
		{Script: filepath.Join(b.Dir, script), Library: filepath.Join(b.Dir, library)},
	}
}

// Locator resolves the bridge location. It only inspects the filesystem and
// is safe for concurrent use.
type Locator struct {
	sources []CandidateSource
}

func NewLocator(sources ...CandidateSource) *Locator {
	return &Locator{sources: sources}
}

// Locate returns the first candidate whose script and library both exist.
func (l *Locator) Locate() (Location, error) {
	var tried []Location
	for _, src := range l.sources {
		if src == nil {
			continue
		}
		tried = append(tried, src.Candidates()...)
	}
	tried = lo.Uniq(tried)

	found, ok := lo.Find(tried, Location.exists)
	if !ok {
		return Location{}, &LocationError{Tried: tried}
	}
	return found, nil
}
