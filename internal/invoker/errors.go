package invoker

import (
	"errors"
	"fmt"
)

// ErrNotEventStream is returned when the server answers with a content type
// other than text/event-stream.
var ErrNotEventStream = errors.New("response is not an event stream")

// StatusError reports a non-2xx response from the invoke endpoint.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "invoke http error: " + e.Status
	}
	return "invoke http error: " + e.Status + ": " + e.Body
}

// StatusCode returns the HTTP status code of the response.
func (e *StatusError) StatusCode() int { return e.Code }

// connectError wraps a failure to reach the server at all.
type connectError struct {
	url string
	err error
}

func (e *connectError) Error() string { return fmt.Sprintf("connect %s: %v", e.url, e.err) }
func (e *connectError) Unwrap() error { return e.err }

// IsConnectError reports whether err means the server could not be reached.
func IsConnectError(err error) bool {
	var ce *connectError
	return errors.As(err, &ce)
}

// IsStatusError reports whether err is a non-2xx response.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
