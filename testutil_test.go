package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"goplaying/mediaremote"
)

// generateTestImage creates a simple test image with specified dimensions and colors
func generateTestImage(width, height int, fillColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// generateGradientImage creates a gradient test image for color extraction testing
func generateGradientImage(width, height int, startColor, endColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		ratio := float64(y) / float64(height)
		r := uint8(float64(startColor.R)*(1-ratio) + float64(endColor.R)*ratio)
		g := uint8(float64(startColor.G)*(1-ratio) + float64(endColor.G)*ratio)
		b := uint8(float64(startColor.B)*(1-ratio) + float64(endColor.B)*ratio)

		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}

	return img
}

// pngBase64 encodes img the way the bridge ships artwork
func pngBase64(t testing.TB, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// stateFromJSON decodes a bridge record, failing the test on error
func stateFromJSON(t testing.TB, record string) mediaremote.PlaybackState {
	t.Helper()
	st, err := mediaremote.DecodeState([]byte(record))
	if err != nil {
		t.Fatalf("DecodeState(%s): %v", record, err)
	}
	return st
}

// fakeController records control calls instead of running the bridge
type fakeController struct {
	mu       sync.Mutex
	calls    []string
	seeks    []float64
	startErr error
	stops    int
}

func (f *fakeController) record(call string) <-chan mediaremote.CommandResult {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	ch := make(chan mediaremote.CommandResult, 1)
	ch <- mediaremote.CommandResult{Command: mediaremote.Command(call)}
	close(ch)
	return ch
}

func (f *fakeController) StartListening(ctx context.Context) (mediaremote.StartStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return mediaremote.NotStarted, f.startErr
	}
	return mediaremote.Started, nil
}

func (f *fakeController) StopListening() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeController) TogglePlayPause() <-chan mediaremote.CommandResult {
	return f.record(string(mediaremote.CommandTogglePlayPause))
}

func (f *fakeController) NextTrack() <-chan mediaremote.CommandResult {
	return f.record(string(mediaremote.CommandNextTrack))
}

func (f *fakeController) PreviousTrack() <-chan mediaremote.CommandResult {
	return f.record(string(mediaremote.CommandPreviousTrack))
}

func (f *fakeController) Stop() <-chan mediaremote.CommandResult {
	return f.record(string(mediaremote.CommandStop))
}

func (f *fakeController) SetTime(seconds float64) <-chan mediaremote.CommandResult {
	f.mu.Lock()
	f.seeks = append(f.seeks, seconds)
	f.mu.Unlock()
	return f.record(string(mediaremote.CommandSetTime))
}

func (f *fakeController) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

// assertError is a test helper that checks if an error occurred and fails the test if not
func assertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("Expected error: %s, got nil", msg)
	}
}

// assertNoError is a test helper that fails the test if an error occurred
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// assertEqual is a generic test helper for comparing values
func assertEqual(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

// isValidHexColor checks if a string is a valid hex color (e.g., "#RRGGBB")
func isValidHexColor(color string) bool {
	if len(color) != 7 || color[0] != '#' {
		return false
	}
	for i := 1; i < 7; i++ {
		c := color[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
