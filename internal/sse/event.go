// Package sse reads and writes Server-Sent Event streams
// (text/event-stream) as described by the WHATWG HTML standard.
package sse

// ContentType is the media type of an SSE response body.
const ContentType = "text/event-stream"

// Event is one dispatched Server-Sent Event. Fields not present on the wire
// are empty.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry string
}
