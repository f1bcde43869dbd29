package sse

import (
	"bufio"
	"io"
	"strings"
)

// MaxLineBytes bounds a single line of the stream. Longer lines fail the
// decoder with bufio.ErrTooLong.
const MaxLineBytes = 1 << 20

// Decoder pulls events off an SSE stream one at a time. Next returns as soon
// as the blank line ending an event has arrived; it never waits for bytes
// beyond it.
type Decoder struct {
	r       *bufio.Reader
	lastID  string
	started bool
	// pendingCR is set after a line ended in CR; a following LF belongs to
	// the same line ending.
	pendingCR bool
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 4096)}
}

// LastEventID returns the id most recently set by the stream.
func (d *Decoder) LastEventID() string { return d.lastID }

// Next blocks until a complete event has been read and returns it. At the end
// of the stream it returns io.EOF; a trailing frame without its terminating
// blank line is discarded.
func (d *Decoder) Next() (Event, error) {
	var (
		ev    Event
		data  []string
		dirty bool
	)
	for {
		line, err := d.readLine()
		if err != nil {
			// A trailing frame without its blank line is never dispatched.
			return Event{}, err
		}
		if !d.started {
			d.started = true
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if line == "" {
			if !dirty {
				continue
			}
			ev.Data = strings.Join(data, "\n")
			ev.ID = d.lastID
			return ev, nil
		}
		if line[0] == ':' {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Event = value
			dirty = true
		case "data":
			data = append(data, value)
			dirty = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
				dirty = true
			}
		case "retry":
			if isDigits(value) {
				ev.Retry = value
				dirty = true
			}
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// readLine returns the next line without its terminator. Lines end in LF,
// CR or CRLF. A line cut short by the end of the stream is dropped and
// io.EOF returned.
func (d *Decoder) readLine() (string, error) {
	var line []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return "", err
		}
		if d.pendingCR {
			d.pendingCR = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case '\n':
			return string(line), nil
		case '\r':
			d.pendingCR = true
			return string(line), nil
		}
		if len(line) >= MaxLineBytes {
			return "", bufio.ErrTooLong
		}
		line = append(line, b)
	}
}
