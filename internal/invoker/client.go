// Package invoker sends a chat request to an invoke endpoint and consumes the
// Server-Sent Events it streams back.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"weatherwax/internal/sse"
	"weatherwax/pkg/types"
)

// Config selects the endpoint and model an invocation targets.
type Config struct {
	BaseURI string
	Path    string
	Model   string
	// RequestTimeout bounds the whole invocation, stream included. Zero disables it.
	RequestTimeout time.Duration
	// ConnectTimeout bounds dialing. Zero leaves the dialer without a timeout.
	ConnectTimeout time.Duration
	// DoneMarker, when set, ends the stream at the first event whose data
	// equals it. The marker event itself is not returned.
	DoneMarker string
}

// Client owns a connection pool to one invoke endpoint. Call Close when done
// to release idle connections.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger installs a structured logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New constructs a Client for cfg.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Path == "" {
		cfg.Path = "/invoke"
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	cfg.BaseURI = strings.TrimRight(cfg.BaseURI, "/")
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0: the stream may legitimately run for a long time, so
	// deadlines are carried by the request context instead.
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Transport: tr, Timeout: 0},
		log:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL is the full address of the invoke endpoint.
func (c *Client) URL() string { return c.cfg.BaseURI + c.cfg.Path }

// Close releases idle connections held by the client.
func (c *Client) Close() { c.http.CloseIdleConnections() }

// Body serializes the request for message. The content is carried verbatim.
func (c *Client) Body(message string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(types.NewUserRequest(c.cfg.Model, message)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Connect posts message and returns the open event stream. The caller must
// Close the stream; closing it also cancels the request.
func (c *Client) Connect(ctx context.Context, message string) (*Stream, error) {
	body, err := c.Body(message)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var cancel context.CancelFunc
	if c.cfg.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	url := c.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", sse.ContentType)
	req.Header.Set("Cache-Control", "no-store")

	c.log.Debug().Str("url", url).Str("model", c.cfg.Model).Int("body_bytes", len(body)).Msg("invoke start")
	resp, err := c.http.Do(req)
	if err != nil {
		// Read ctx.Err before cancel, which would always set it.
		cerr := ctx.Err()
		cancel()
		if cerr != nil {
			return nil, cerr
		}
		return nil, &connectError{url: url, err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(b))}
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != sse.ContentType {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: content type %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}
	c.log.Debug().Int("status", resp.StatusCode).Msg("stream open")
	return newStream(ctx, cancel, resp.Body, c.cfg.DoneMarker), nil
}

// Invoke posts message and writes each received event to w as one line of
// "event data id retry", in arrival order. It returns nil when the server
// ends the stream.
func (c *Client) Invoke(ctx context.Context, message string, w io.Writer) error {
	start := time.Now()
	st, err := c.Connect(ctx, message)
	if err != nil {
		return err
	}
	defer st.Close()
	n := 0
	for ev, err := range st.Events() {
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		if _, err := io.WriteString(w, FormatEvent(ev)+"\n"); err != nil {
			return err
		}
		n++
	}
	c.log.Debug().Int("events", n).Str("last_event_id", st.LastEventID()).Dur("dur", time.Since(start)).Msg("stream end")
	return nil
}

// FormatEvent renders the four event fields space-separated. Absent fields
// render as empty strings.
func FormatEvent(ev sse.Event) string {
	return strings.Join([]string{ev.Event, ev.Data, ev.ID, ev.Retry}, " ")
}
