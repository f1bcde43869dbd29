package sse

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

type flusher interface{ Flush() }

// Encoder writes events in SSE framing. Writes are serialized so a keep-alive
// ticker may share an Encoder with the producer of events.
type Encoder struct {
	mu sync.Mutex
	w  *bufio.Writer
	f  flusher
}

// NewEncoder returns an Encoder writing to w. If w has a Flush method (as
// http.ResponseWriter usually does) it is called after every frame.
func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(flusher)
	return &Encoder{w: bufio.NewWriter(w), f: f}
}

// Encode writes ev followed by the blank line that dispatches it. Multi-line
// data is split across several data fields.
func (e *Encoder) Encode(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.Event != "" {
		e.field("event", ev.Event)
	}
	if ev.ID != "" {
		e.field("id", ev.ID)
	}
	if ev.Retry != "" {
		e.field("retry", ev.Retry)
	}
	data := strings.ReplaceAll(ev.Data, "\r\n", "\n")
	for _, line := range strings.Split(data, "\n") {
		e.field("data", line)
	}
	e.w.WriteByte('\n')
	return e.flush()
}

// Comment writes a comment line. Clients ignore it; it keeps idle
// connections from being reaped by proxies.
func (e *Encoder) Comment(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.w.WriteString(": ")
	e.w.WriteString(text)
	e.w.WriteString("\n\n")
	return e.flush()
}

func (e *Encoder) field(name, value string) {
	e.w.WriteString(name)
	e.w.WriteString(": ")
	e.w.WriteString(value)
	e.w.WriteByte('\n')
}

func (e *Encoder) flush() error {
	if err := e.w.Flush(); err != nil {
		return err
	}
	if e.f != nil {
		e.f.Flush()
	}
	return nil
}
