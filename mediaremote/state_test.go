package mediaremote

import (
	"encoding/base64"
	"errors"
	"image"
	"math"
	"strconv"
	"testing"
	"time"
)

// TestDecodeStateFullRecord tests decoding a record with every field set
func TestDecodeStateFullRecord(t *testing.T) {
	st := mustDecode(t, `{
		"title": "Song", "artist": "Artist", "album": "Album",
		"isPlaying": true, "playbackRate": 1.0,
		"durationMicros": 180000000, "elapsedTimeMicros": 42500000,
		"timestampEpochMicros": 1700000000000000,
		"applicationName": "Music", "bundleIdentifier": "com.apple.Music",
		"PID": 4242, "artworkDataBase64": "aGVsbG8=", "artworkMimeType": "image/png",
		"shuffleMode": 1, "repeatMode": 2, "unknownKey": [1, 2, 3]
	}`)

	title, _ := st.Title()
	assertEqual(t, title, "Song", "title")
	artist, _ := st.Artist()
	assertEqual(t, artist, "Artist", "artist")
	album, _ := st.Album()
	assertEqual(t, album, "Album", "album")
	playing, ok := st.IsPlaying()
	assertEqual(t, ok && playing, true, "isPlaying")
	rate, _ := st.PlaybackRate()
	assertEqual(t, rate, 1.0, "playbackRate")
	dur, _ := st.Duration()
	assertEqual(t, dur, 180*time.Second, "duration")
	elapsed, _ := st.Elapsed()
	assertEqual(t, elapsed, 42500*time.Millisecond, "elapsed")
	ts, _ := st.Timestamp()
	assertEqual(t, ts.Unix(), int64(1700000000), "timestamp")
	app, _ := st.ApplicationName()
	assertEqual(t, app, "Music", "applicationName")
	bundle, _ := st.BundleIdentifier()
	assertEqual(t, bundle, "com.apple.Music", "bundleIdentifier")
	pid, _ := st.ProcessID()
	assertEqual(t, pid, 4242, "PID")
	mime, _ := st.ArtworkMimeType()
	assertEqual(t, mime, "image/png", "artworkMimeType")
	shuffle, _ := st.ShuffleMode()
	assertEqual(t, shuffle, ShuffleSongs, "shuffleMode")
	repeat, _ := st.RepeatMode()
	assertEqual(t, repeat, RepeatAll, "repeatMode")
}

// TestDecodeStateMissingFields tests that absent keys decode as absent, never as errors
func TestDecodeStateMissingFields(t *testing.T) {
	records := []string{
		`{}`,
		`{"title": "Only Title"}`,
		`{"artist": null, "album": null}`,
		`{"elapsedTimeMicros": 1000}`,
	}
	for _, rec := range records {
		t.Run(rec, func(t *testing.T) {
			st, err := DecodeState([]byte(rec))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := st.Artist(); ok {
				t.Error("artist should be absent")
			}
			if _, ok := st.IsPlaying(); ok {
				t.Error("isPlaying should be absent")
			}
			if _, ok := st.ProcessID(); ok {
				t.Error("PID should be absent")
			}
			if _, ok := st.ShuffleMode(); ok {
				t.Error("shuffleMode should be absent")
			}
		})
	}
}

// TestDecodeStateWrongFieldTypes tests that one bad field does not spoil the record
func TestDecodeStateWrongFieldTypes(t *testing.T) {
	st := mustDecode(t, `{"title": 12, "artist": "Still Here", "durationMicros": "long", "playbackRate": false}`)

	if _, ok := st.Title(); ok {
		t.Error("numeric title should be absent")
	}
	if _, ok := st.Duration(); ok {
		t.Error("string duration should be absent")
	}
	if _, ok := st.PlaybackRate(); ok {
		t.Error("boolean rate should be absent")
	}
	artist, ok := st.Artist()
	if !ok || artist != "Still Here" {
		t.Errorf("artist = %q, %v; want Still Here", artist, ok)
	}
}

// TestDecodeStateNotObject tests the only whole-record failure
func TestDecodeStateNotObject(t *testing.T) {
	tests := []string{"", "   ", "[]", `"title"`, "42", "null", "{not json", `{"title": "x"`}
	for _, rec := range tests {
		t.Run(rec, func(t *testing.T) {
			if _, err := DecodeState([]byte(rec)); !errors.Is(err, errNotObject) {
				t.Errorf("DecodeState(%q) error = %v; want errNotObject", rec, err)
			}
		})
	}
}

// TestDecodeIsPlaying tests the bool-or-integer representations of isPlaying
func TestDecodeIsPlaying(t *testing.T) {
	tests := []struct {
		name    string
		record  string
		want    bool
		present bool
	}{
		{"literal true", `{"isPlaying": true}`, true, true},
		{"literal false", `{"isPlaying": false}`, false, true},
		{"integer one", `{"isPlaying": 1}`, true, true},
		{"integer zero", `{"isPlaying": 0}`, false, true},
		{"integer two", `{"isPlaying": 2}`, false, false},
		{"string true", `{"isPlaying": "true"}`, false, false},
		{"float", `{"isPlaying": 0.5}`, false, false},
		{"null", `{"isPlaying": null}`, false, false},
		{"missing", `{}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mustDecode(t, tt.record).IsPlaying()
			if ok != tt.present || got != tt.want {
				t.Errorf("IsPlaying() = %v, %v; want %v, %v", got, ok, tt.want, tt.present)
			}
		})
	}
}

// TestDecodePID tests the integer-or-string representations of PID
func TestDecodePID(t *testing.T) {
	tests := []struct {
		name    string
		record  string
		want    int
		present bool
	}{
		{"integer", `{"PID": 501}`, 501, true},
		{"numeric string", `{"PID": "501"}`, 501, true},
		{"negative string", `{"PID": "-1"}`, -1, true},
		{"non numeric string", `{"PID": "abc"}`, 0, false},
		{"padded string", `{"PID": " 501"}`, 0, false},
		{"float", `{"PID": 5.5}`, 0, false},
		{"too large", `{"PID": 99999999999}`, 0, false},
		{"bool", `{"PID": true}`, 0, false},
		{"lowercase key ignored", `{"pid": 501}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mustDecode(t, tt.record).ProcessID()
			if ok != tt.present || got != tt.want {
				t.Errorf("ProcessID() = %v, %v; want %v, %v", got, ok, tt.want, tt.present)
			}
		})
	}
}

// TestDecodeModes tests that out-of-range enum values become absent
func TestDecodeModes(t *testing.T) {
	tests := []struct {
		record    string
		shuffle   ShuffleMode
		shuffleOK bool
		repeat    RepeatMode
		repeatOK  bool
	}{
		{`{"shuffleMode": 0, "repeatMode": 0}`, ShuffleOff, true, RepeatOff, true},
		{`{"shuffleMode": 2, "repeatMode": 1}`, ShuffleAlbums, true, RepeatOne, true},
		{`{"shuffleMode": 3, "repeatMode": -1}`, 0, false, 0, false},
		{`{"shuffleMode": "1", "repeatMode": 1.5}`, 0, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.record, func(t *testing.T) {
			st := mustDecode(t, tt.record)
			shuffle, ok := st.ShuffleMode()
			if ok != tt.shuffleOK || shuffle != tt.shuffle {
				t.Errorf("ShuffleMode() = %v, %v; want %v, %v", shuffle, ok, tt.shuffle, tt.shuffleOK)
			}
			repeat, ok := st.RepeatMode()
			if ok != tt.repeatOK || repeat != tt.repeat {
				t.Errorf("RepeatMode() = %v, %v; want %v, %v", repeat, ok, tt.repeat, tt.repeatOK)
			}
		})
	}
}

// TestDecodeStateEnvelope tests unwrapping of the bridge's payload envelope
func TestDecodeStateEnvelope(t *testing.T) {
	st := mustDecode(t, `{"type": "data", "diff": false, "payload": {"title": "Wrapped", "isPlaying": 1}}`)
	title, _ := st.Title()
	assertEqual(t, title, "Wrapped", "title")
	playing, _ := st.IsPlaying()
	assertEqual(t, playing, true, "isPlaying")

	empty := mustDecode(t, `{"type": "data", "payload": null}`)
	if _, ok := empty.Title(); ok {
		t.Error("null payload should decode to an empty state")
	}
}

// TestUniqueIdentifier tests change-detection keys
func TestUniqueIdentifier(t *testing.T) {
	tests := []struct {
		record string
		want   string
	}{
		{`{"title": "T", "artist": "A", "album": "B"}`, "T-A-B"},
		{`{"title": "T"}`, "T--"},
		{`{}`, "--"},
	}
	for _, tt := range tests {
		assertEqual(t, mustDecode(t, tt.record).UniqueIdentifier(), tt.want, tt.record)
	}
}

// TestCurrentElapsedTime tests position extrapolation from a snapshot
func TestCurrentElapsedTime(t *testing.T) {
	snapshot := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ts := snapshot.UnixMicro()

	t.Run("playing at normal rate", func(t *testing.T) {
		st := mustDecode(t, `{"elapsedTimeMicros": 10000000, "playbackRate": 1.0, "timestampEpochMicros": `+itoa(ts)+`}`)
		got, ok := st.CurrentElapsedSeconds(snapshot.Add(5 * time.Second))
		if !ok || math.Abs(got-15.0) > 1e-3 {
			t.Errorf("CurrentElapsedSeconds = %v, %v; want 15", got, ok)
		}
		d, _ := st.CurrentElapsedTime(snapshot.Add(5 * time.Second))
		if (d - 15*time.Second).Abs() > time.Millisecond {
			t.Errorf("CurrentElapsedTime = %v; want 15s", d)
		}
	})

	t.Run("paused", func(t *testing.T) {
		st := mustDecode(t, `{"elapsedTimeMicros": 10000000, "playbackRate": 0.0, "timestampEpochMicros": `+itoa(ts)+`}`)
		got, _ := st.CurrentElapsedSeconds(snapshot.Add(time.Hour))
		if math.Abs(got-10.0) > 1e-3 {
			t.Errorf("CurrentElapsedSeconds = %v; want 10", got)
		}
	})

	t.Run("missing rate freezes position", func(t *testing.T) {
		st := mustDecode(t, `{"elapsedTimeMicros": 10000000, "timestampEpochMicros": `+itoa(ts)+`}`)
		got, ok := st.CurrentElapsedSeconds(snapshot.Add(30 * time.Second))
		if !ok || math.Abs(got-10.0) > 1e-3 {
			t.Errorf("CurrentElapsedSeconds = %v, %v; want 10", got, ok)
		}
	})

	t.Run("double rate", func(t *testing.T) {
		st := mustDecode(t, `{"elapsedTimeMicros": 0, "playbackRate": 2, "timestampEpochMicros": `+itoa(ts)+`}`)
		got, _ := st.CurrentElapsedSeconds(snapshot.Add(3 * time.Second))
		if math.Abs(got-6.0) > 1e-3 {
			t.Errorf("CurrentElapsedSeconds = %v; want 6", got)
		}
	})

	t.Run("undefined without timestamp", func(t *testing.T) {
		st := mustDecode(t, `{"elapsedTimeMicros": 10000000, "playbackRate": 1}`)
		if _, ok := st.CurrentElapsedSeconds(snapshot); ok {
			t.Error("expected undefined position without timestamp")
		}
	})

	t.Run("undefined without elapsed", func(t *testing.T) {
		st := mustDecode(t, `{"timestampEpochMicros": `+itoa(ts)+`}`)
		if _, ok := st.CurrentElapsedTime(snapshot); ok {
			t.Error("expected undefined position without elapsed time")
		}
	})
}

type stubDecoder struct {
	img  image.Image
	err  error
	mime string
	data []byte
}

func (s *stubDecoder) DecodeArtwork(data []byte, mimeType string) (image.Image, error) {
	s.data, s.mime = data, mimeType
	return s.img, s.err
}

// TestArtwork tests that artwork decoding is delegated and declined on bad payloads
func TestArtwork(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("png bytes"))

	t.Run("valid payload", func(t *testing.T) {
		st := mustDecode(t, `{"artworkDataBase64": "`+payload+`", "artworkMimeType": "image/png"}`)
		dec := &stubDecoder{img: image.NewRGBA(image.Rect(0, 0, 1, 1))}
		img, ok := st.Artwork(dec)
		if !ok || img == nil {
			t.Fatal("expected artwork")
		}
		assertEqual(t, string(dec.data), "png bytes", "decoded bytes")
		assertEqual(t, dec.mime, "image/png", "mime type")
	})

	t.Run("invalid base64", func(t *testing.T) {
		st := mustDecode(t, `{"artworkDataBase64": "!!not base64!!"}`)
		if _, ok := st.ArtworkData(); ok {
			t.Error("expected no artwork data")
		}
		if _, ok := st.Artwork(&stubDecoder{img: image.NewRGBA(image.Rect(0, 0, 1, 1))}); ok {
			t.Error("expected no artwork")
		}
	})

	t.Run("absent", func(t *testing.T) {
		if _, ok := mustDecode(t, `{}`).Artwork(&stubDecoder{}); ok {
			t.Error("expected no artwork")
		}
	})

	t.Run("decoder rejects", func(t *testing.T) {
		st := mustDecode(t, `{"artworkDataBase64": "`+payload+`"}`)
		if _, ok := st.Artwork(&stubDecoder{err: errors.New("bad image")}); ok {
			t.Error("expected no artwork")
		}
	})
}

// TestMarshalJSON tests that the normalized record decodes back to the same state
func TestMarshalJSON(t *testing.T) {
	st := mustDecode(t, `{"title": "T", "isPlaying": 1, "PID": "77", "shuffleMode": 0, "repeatMode": 9}`)
	data, err := st.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	assertEqual(t, string(data), `{"title":"T","isPlaying":true,"PID":77,"shuffleMode":0}`, "normalized json")

	again := mustDecode(t, string(data))
	assertEqual(t, again, st, "round trip")
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
