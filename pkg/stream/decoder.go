package stream

import (
	"bytes"
	"log/slog"
)

var framePrefix = []byte("data: ")

// Decoder turns an event-stream byte sequence into events. It is not safe
// for concurrent use; one decoder serves one ordered stream.
type Decoder struct {
	buf     []byte
	dropped int
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk and returns the events of every line it completes, in
// order. The trailing incomplete line is kept for the next call.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		if ev, ok := d.parseLine(d.buf[:i]); ok {
			events = append(events, ev)
		}
		d.buf = d.buf[i+1:]
	}
	return events
}

// Flush treats any buffered fragment as a final line, for streams that end
// without a trailing newline.
func (d *Decoder) Flush() []Event {
	if len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil
	if ev, ok := d.parseLine(line); ok {
		return []Event{ev}
	}
	return nil
}

// Dropped returns how many non-empty lines were discarded.
func (d *Decoder) Dropped() int {
	return d.dropped
}

func (d *Decoder) parseLine(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return Event{}, false
	}

	payload, ok := bytes.CutPrefix(line, framePrefix)
	if !ok {
		// Comments (": keep-alive") and other fields are not events.
		d.dropped++
		return Event{}, false
	}

	ev, err := parseEvent(bytes.TrimSpace(payload))
	if err != nil {
		d.dropped++
		slog.Debug("dropping malformed event frame", "error", err, "bytes", len(payload))
		return Event{}, false
	}
	return ev, true
}
