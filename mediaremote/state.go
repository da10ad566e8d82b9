// Package mediaremote supervises the MediaRemote bridge process and turns
// its line-oriented output into normalized playback state.
//
// The bridge is an external script run by an interpreter. In streaming mode
// it writes one JSON record per line for as long as it lives; in command
// mode it performs one control action and exits.
package mediaremote

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"time"
)

// ShuffleMode mirrors the system shuffle setting of the active player.
type ShuffleMode int

const (
	ShuffleOff    ShuffleMode = 0
	ShuffleSongs  ShuffleMode = 1
	ShuffleAlbums ShuffleMode = 2
)

func (m ShuffleMode) String() string {
	switch m {
	case ShuffleOff:
		return "off"
	case ShuffleSongs:
		return "songs"
	case ShuffleAlbums:
		return "albums"
	default:
		return "unknown"
	}
}

// RepeatMode mirrors the system repeat setting of the active player.
type RepeatMode int

const (
	RepeatOff RepeatMode = 0
	RepeatOne RepeatMode = 1
	RepeatAll RepeatMode = 2
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

type optional[T any] struct {
	v  T
	ok bool
}

func some[T any](v T) optional[T] { return optional[T]{v: v, ok: true} }

func (o optional[T]) get() (T, bool) { return o.v, o.ok }

func (o optional[T]) ptr() *T {
	if !o.ok {
		return nil
	}
	v := o.v
	return &v
}

// PlaybackState is one decoded record of "what is playing". Every field is
// optional; an absent field means unknown. Values are immutable once
// decoded.
type PlaybackState struct {
	title            optional[string]
	artist           optional[string]
	album            optional[string]
	isPlaying        optional[bool]
	playbackRate     optional[float64]
	durationMicros   optional[float64]
	elapsedMicros    optional[float64]
	timestampMicros  optional[float64]
	applicationName  optional[string]
	bundleIdentifier optional[string]
	processID        optional[int]
	artworkBase64    optional[string]
	artworkMimeType  optional[string]
	shuffleMode      optional[ShuffleMode]
	repeatMode       optional[RepeatMode]
}

func (s PlaybackState) Title() (string, bool) { return s.title.get() }
func (s PlaybackState) Artist() (string, bool) { return s.artist.get() }
func (s PlaybackState) Album() (string, bool) { return s.album.get() }
func (s PlaybackState) IsPlaying() (bool, bool) { return s.isPlaying.get() }
func (s PlaybackState) PlaybackRate() (float64, bool) { return s.playbackRate.get() }
func (s PlaybackState) DurationMicros() (float64, bool) { return s.durationMicros.get() }
func (s PlaybackState) ElapsedTimeMicros() (float64, bool) { return s.elapsedMicros.get() }
func (s PlaybackState) TimestampEpochMicros() (float64, bool) { return s.timestampMicros.get() }
func (s PlaybackState) ApplicationName() (string, bool) { return s.applicationName.get() }
func (s PlaybackState) BundleIdentifier() (string, bool) { return s.bundleIdentifier.get() }
func (s PlaybackState) ProcessID() (int, bool) { return s.processID.get() }
func (s PlaybackState) ArtworkDataBase64() (string, bool) { return s.artworkBase64.get() }
func (s PlaybackState) ArtworkMimeType() (string, bool) { return s.artworkMimeType.get() }
func (s PlaybackState) ShuffleMode() (ShuffleMode, bool) { return s.shuffleMode.get() }
func (s PlaybackState) RepeatMode() (RepeatMode, bool) { return s.repeatMode.get() }

// Duration returns the track length.
func (s PlaybackState) Duration() (time.Duration, bool) {
	us, ok := s.durationMicros.get()
	if !ok {
		return 0, false
	}
	return microsToDuration(us), true
}

// Elapsed returns the position recorded in the snapshot, without
// extrapolation.
func (s PlaybackState) Elapsed() (time.Duration, bool) {
	us, ok := s.elapsedMicros.get()
	if !ok {
		return 0, false
	}
	return microsToDuration(us), true
}

// Timestamp returns the wall-clock instant at which Elapsed was true.
func (s PlaybackState) Timestamp() (time.Time, bool) {
	us, ok := s.timestampMicros.get()
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMicro(int64(math.Round(us))), true
}

// UniqueIdentifier joins title, artist and album so callers can detect track
// changes. Missing parts contribute empty strings.
func (s PlaybackState) UniqueIdentifier() string {
	return s.title.v + "-" + s.artist.v + "-" + s.album.v
}

// CurrentElapsedSeconds extrapolates the playback position at now from the
// snapshot's elapsed time, timestamp and rate. A missing rate counts as 0,
// which freezes the position at the snapshot value.
func (s PlaybackState) CurrentElapsedSeconds(now time.Time) (float64, bool) {
	elapsed, ok := s.elapsedMicros.get()
	if !ok {
		return 0, false
	}
	ts, ok := s.timestampMicros.get()
	if !ok {
		return 0, false
	}
	rate, _ := s.playbackRate.get()
	nowSeconds := float64(now.UnixMicro()) / 1e6
	return elapsed/1e6 + (nowSeconds-ts/1e6)*rate, true
}

// CurrentElapsedTime is CurrentElapsedSeconds as a time.Duration.
func (s PlaybackState) CurrentElapsedTime(now time.Time) (time.Duration, bool) {
	secs, ok := s.CurrentElapsedSeconds(now)
	if !ok {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// ArtworkData returns the decoded artwork bytes. It reports false when the
// record carries no artwork or the payload is not valid base64.
func (s PlaybackState) ArtworkData() ([]byte, bool) {
	encoded, ok := s.artworkBase64.get()
	if !ok || encoded == "" {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// ArtworkDecoder turns raw artwork bytes into an image. Implementations live
// with the host; this package only carries the encoded payload.
type ArtworkDecoder interface {
	DecodeArtwork(data []byte, mimeType string) (image.Image, error)
}

// Artwork decodes the artwork with d, declining when the payload is absent
// or d rejects it.
func (s PlaybackState) Artwork(d ArtworkDecoder) (image.Image, bool) {
	if d == nil {
		return nil, false
	}
	data, ok := s.ArtworkData()
	if !ok {
		return nil, false
	}
	mime, _ := s.artworkMimeType.get()
	img, err := d.DecodeArtwork(data, mime)
	if err != nil || img == nil {
		return nil, false
	}
	return img, true
}

var errNotObject = errors.New("record is not a JSON object")

// DecodeState decodes one wire record. Only a record that is not a JSON
// object fails; every field is decoded on its own and falls back to absent
// when its wire type does not fit.
//
// Records wrapped in the bridge envelope {"type": ..., "payload": {...}}
// are unwrapped first.
func DecodeState(data []byte) (PlaybackState, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return PlaybackState{}, err
	}
	if payload, ok := fields["payload"]; ok {
		inner, err := decodeObject(payload)
		if err != nil {
			// "payload": null is how the bridge says nothing is playing
			return PlaybackState{}, nil
		}
		fields = inner
	}

	return PlaybackState{
		title:            decodeField[string](fields, "title"),
		artist:           decodeField[string](fields, "artist"),
		album:            decodeField[string](fields, "album"),
		isPlaying:        decodeIsPlaying(fields["isPlaying"]),
		playbackRate:     decodeField[float64](fields, "playbackRate"),
		durationMicros:   decodeField[float64](fields, "durationMicros"),
		elapsedMicros:    decodeField[float64](fields, "elapsedTimeMicros"),
		timestampMicros:  decodeField[float64](fields, "timestampEpochMicros"),
		applicationName:  decodeField[string](fields, "applicationName"),
		bundleIdentifier: decodeField[string](fields, "bundleIdentifier"),
		processID:        decodePID(fields["PID"]),
		artworkBase64:    decodeField[string](fields, "artworkDataBase64"),
		artworkMimeType:  decodeField[string](fields, "artworkMimeType"),
		shuffleMode:      decodeEnum(fields["shuffleMode"], ShuffleOff, ShuffleAlbums),
		repeatMode:       decodeEnum(fields["repeatMode"], RepeatOff, RepeatAll),
	}, nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotObject, err)
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeField[T any](fields map[string]json.RawMessage, key string) optional[T] {
	raw := fields[key]
	if isNull(raw) {
		return optional[T]{}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return optional[T]{}
	}
	return some(v)
}

// decodeIsPlaying accepts a boolean first, then the integers 0 and 1.
func decodeIsPlaying(raw json.RawMessage) optional[bool] {
	if isNull(raw) {
		return optional[bool]{}
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return some(b)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n {
		case 1:
			return some(true)
		case 0:
			return some(false)
		}
	}
	return optional[bool]{}
}

// decodePID accepts an integer first, then a numeric string.
func decodePID(raw json.RawMessage) optional[int] {
	if isNull(raw) {
		return optional[int]{}
	}
	var n int32
	if err := json.Unmarshal(raw, &n); err == nil {
		return some(int(n))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 32); err == nil {
			return some(int(n))
		}
	}
	return optional[int]{}
}

func decodeEnum[T ~int](raw json.RawMessage, lo, hi T) optional[T] {
	if isNull(raw) {
		return optional[T]{}
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return optional[T]{}
	}
	if T(n) < lo || T(n) > hi {
		return optional[T]{}
	}
	return some(T(n))
}

func microsToDuration(us float64) time.Duration {
	return time.Duration(us * float64(time.Microsecond))
}

type wireState struct {
	Title                *string  `json:"title,omitempty"`
	Artist               *string  `json:"artist,omitempty"`
	Album                *string  `json:"album,omitempty"`
	IsPlaying            *bool    `json:"isPlaying,omitempty"`
	PlaybackRate         *float64 `json:"playbackRate,omitempty"`
	DurationMicros       *float64 `json:"durationMicros,omitempty"`
	ElapsedTimeMicros    *float64 `json:"elapsedTimeMicros,omitempty"`
	TimestampEpochMicros *float64 `json:"timestampEpochMicros,omitempty"`
	ApplicationName      *string  `json:"applicationName,omitempty"`
	BundleIdentifier     *string  `json:"bundleIdentifier,omitempty"`
	PID                  *int     `json:"PID,omitempty"`
	ArtworkDataBase64    *string  `json:"artworkDataBase64,omitempty"`
	ArtworkMimeType      *string  `json:"artworkMimeType,omitempty"`
	ShuffleMode          *int     `json:"shuffleMode,omitempty"`
	RepeatMode           *int     `json:"repeatMode,omitempty"`
}

// MarshalJSON writes the normalized record using the bridge's key names.
// Absent fields are omitted.
func (s PlaybackState) MarshalJSON() ([]byte, error) {
	w := wireState{
		Title:                s.title.ptr(),
		Artist:               s.artist.ptr(),
		Album:                s.album.ptr(),
		IsPlaying:            s.isPlaying.ptr(),
		PlaybackRate:         s.playbackRate.ptr(),
		DurationMicros:       s.durationMicros.ptr(),
		ElapsedTimeMicros:    s.elapsedMicros.ptr(),
		TimestampEpochMicros: s.timestampMicros.ptr(),
		ApplicationName:      s.applicationName.ptr(),
		BundleIdentifier:     s.bundleIdentifier.ptr(),
		PID:                  s.processID.ptr(),
		ArtworkDataBase64:    s.artworkBase64.ptr(),
		ArtworkMimeType:      s.artworkMimeType.ptr(),
	}
	if m, ok := s.shuffleMode.get(); ok {
		v := int(m)
		w.ShuffleMode = &v
	}
	if m, ok := s.repeatMode.get(); ok {
		v := int(m)
		w.RepeatMode = &v
	}
	return json.Marshal(w)
}
