package invoker

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"weatherwax/internal/sse"
)

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("stream closed")

// Stream is a lazy, single-pass sequence of events read off one response.
// It is not safe for concurrent use, except that Close may be called from
// any goroutine to abort a blocked Next.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	dec    *sse.Decoder
	done   string

	ended     bool
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func newStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, doneMarker string) *Stream {
	return &Stream{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		dec:    sse.NewDecoder(body),
		done:   doneMarker,
		closed: make(chan struct{}),
	}
}

// Next blocks until the next event arrives. It returns io.EOF once the server
// closes the stream or the done marker is seen.
func (s *Stream) Next() (sse.Event, error) {
	select {
	case <-s.closed:
		return sse.Event{}, ErrStreamClosed
	default:
	}
	if s.ended {
		return sse.Event{}, io.EOF
	}
	ev, err := s.dec.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.ended = true
			return sse.Event{}, io.EOF
		}
		if cerr := s.ctx.Err(); cerr != nil {
			return sse.Event{}, cerr
		}
		return sse.Event{}, err
	}
	if s.done != "" && ev.Data == s.done {
		s.ended = true
		return sse.Event{}, io.EOF
	}
	return ev, nil
}

// LastEventID is the id most recently set by the server, the value a client
// would send as Last-Event-ID to resume.
func (s *Stream) LastEventID() string { return s.dec.LastEventID() }

// Events adapts the stream to a range-over-func sequence. The stream is
// closed when the loop finishes, including when the caller breaks early.
// A read error is yielded once and ends the sequence.
func (s *Stream) Events() iter.Seq2[sse.Event, error] {
	return func(yield func(sse.Event, error) bool) {
		defer s.Close()
		for {
			ev, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the response body and cancels the request. It is idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.body.Close()
		s.cancel()
	})
	return s.closeErr
}
