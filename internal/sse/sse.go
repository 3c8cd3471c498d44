package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Payload tokens carried on the reload channel.
const (
	TokenConnected = "connected"
	TokenReload    = "reload"
)

// maxLineSize bounds a single line read by [Reader].
const maxLineSize = 64 * 1024

// Event is one dispatched Server-Sent Event.
type Event struct {
	// Name is the optional "event:" tag. Empty means the default "message" type.
	Name string

	// Data is the payload. Multi-line payloads are split over several data lines.
	Data string
}

var (
	// Connected acknowledges a freshly opened channel.
	Connected = Event{Data: TokenConnected}

	// Reload tells the client to reload the page.
	Reload = Event{Data: TokenReload}
)

// Encode renders e as a wire frame terminated by a blank line.
func Encode(e Event) []byte {
	var buf bytes.Buffer
	if e.Name != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.Name)
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Comment renders a comment frame. Event readers discard comment frames, so
// they are safe to use as keepalives.
func Comment(text string) []byte {
	return []byte(": " + text + "\n\n")
}

// Reader decodes events from an event stream.
//
// Comment lines and unknown fields are skipped. Blocks with no data lines
// are not dispatched, matching browser EventSource behavior.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a [Reader] reading from r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &Reader{scanner: s}
}

// Next returns the next dispatched event. It returns io.EOF when the stream
// ends cleanly between events and io.ErrUnexpectedEOF when it ends inside one.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		started bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if len(data) == 0 {
				// comment-only or empty block
				ev, started = Event{}, false
				continue
			}
			ev.Data = strings.Join(data, "\n")
			return ev, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		started = true
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if started {
		return Event{}, io.ErrUnexpectedEOF
	}
	return Event{}, io.EOF
}

// IsEndOfStream reports whether err marks the end of an event stream.
func IsEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
