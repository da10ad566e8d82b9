package mediaremote

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
)

// Event is one item of a bridge stream: either a decoded state or the
// error for a line that could not be decoded.
type Event struct {
	State PlaybackState
	Err   *DecodeError
}

// Failed reports whether the event carries a decode error instead of a state.
func (e Event) Failed() bool { return e.Err != nil }

// Decoder reads newline-delimited records from one bridge invocation.
// Reads may arrive in chunks of any size; a record is decoded once its line
// is complete. A Decoder cannot be restarted.
type Decoder struct {
	r    *bufio.Reader
	line int
	err  error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event. Malformed lines are returned as events with
// Err set; the error return is reserved for the end of the stream (io.EOF)
// or a failed read.
func (d *Decoder) Next() (Event, error) {
	for d.err == nil {
		raw, err := d.r.ReadBytes('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.err = err
			} else {
				d.err = io.EOF
			}
		}
		if len(raw) == 0 {
			continue
		}
		d.line++
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		state, decErr := DecodeState(line)
		if decErr != nil {
			return Event{Err: &DecodeError{Line: d.line, Raw: line, Err: decErr}}, nil
		}
		return Event{State: state}, nil
	}
	return Event{}, d.err
}

// Events yields the remaining events in order until the stream ends.
func (d *Decoder) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			ev, err := d.Next()
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Err returns the read error that ended the stream, or nil for a clean end.
func (d *Decoder) Err() error {
	if errors.Is(d.err, io.EOF) {
		return nil
	}
	return d.err
}
