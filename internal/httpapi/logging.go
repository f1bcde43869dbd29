package httpapi

import (
	"bytes"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// loggingLineWriter logs complete SSE lines as they are written to a stream.
type loggingLineWriter struct {
	rid string
	buf []byte
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(lw.buf[:idx])
		if len(line) > 0 {
			if zlog != nil {
				zlog.Debug().Str("request_id", lw.rid).Str("line", line).Msg("invoke>")
			} else {
				log.Printf("invoke> %s", line)
			}
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("WEATHERWAX_HTTP_LOG_LEVEL"))

// SetDefaultLogLevel sets the request log level used without per-request overrides.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logInvokeStart records the start of an /invoke stream.
func logInvokeStart(r *http.Request, lvl LogLevel, model string) {
	if lvl < LevelInfo {
		return
	}
	rid := middleware.GetReqID(r.Context())
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path).Str("model", model)
		if rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("invoke start")
		return
	}
	log.Printf("invoke start path=%s model=%s", r.URL.Path, model)
}

// logInvokeEnd records how an /invoke request finished. Errors are logged at
// LevelError and above, successes only at LevelInfo.
func logInvokeEnd(r *http.Request, lvl LogLevel, status int, start time.Time, err error) {
	if lvl < LevelInfo && !(err != nil && lvl >= LevelError) {
		return
	}
	rid := middleware.GetReqID(r.Context())
	if zlog != nil {
		z := zlog.Info()
		if err != nil {
			z = zlog.Error().Err(err)
		}
		z = z.Int("status", status).Dur("dur", time.Since(start))
		if rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("invoke end")
		return
	}
	if err != nil {
		log.Printf("invoke end status=%d dur=%s err=%v", status, time.Since(start), err)
		return
	}
	log.Printf("invoke end status=%d dur=%s", status, time.Since(start))
}
