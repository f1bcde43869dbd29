package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weatherwax/internal/provider"
	"weatherwax/internal/sse"
	"weatherwax/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Ready() bool
	Resolve(code string) (types.Model, provider.Provider, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints; text/event-stream is not compressed.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", handleModels(svc))
	r.Post("/invoke", handleInvoke(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no models"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleModels lists the models that can be invoked.
//
// @Summary  List models
// @Tags     models
// @Produce  json
// @Success  200 {object} types.ModelsResponse
// @Router   /models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: svc.ListModels()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	}
}

// handleInvoke streams the reply to a chat request as Server-Sent Events.
// Each data field carries one JSON-encoded types.Message.
//
// @Summary  Stream a chat reply
// @Tags     invoke
// @Accept   json
// @Produce  text/event-stream
// @Param    request body types.InvokeRequest true "Chat request"
// @Success  200 {string} string "SSE stream of types.Message"
// @Failure  400 {object} types.ErrorResponse
// @Failure  404 {object} types.ErrorResponse
// @Failure  415 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /invoke [post]
func handleInvoke(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.InvokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Oversized bodies also land here; still 400 to avoid size leak details
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Messages) == 0 {
			writeJSONError(w, http.StatusBadRequest, "messages are required")
			return
		}
		for _, m := range req.Messages {
			if !m.Role.Valid() {
				writeJSONError(w, http.StatusBadRequest, "invalid role: "+string(m.Role))
				return
			}
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		logInvokeStart(r, lvl, req.Model)
		model, p, err := svc.Resolve(req.Model)
		if err != nil {
			status := statusFor(err)
			invokeErrorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
			writeJSONError(w, status, err.Error())
			logInvokeEnd(r, lvl, status, start, err)
			return
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		out := io.Writer(w)
		if lvl >= LevelDebug {
			out = io.MultiWriter(w, &loggingLineWriter{rid: middleware.GetReqID(r.Context())})
		}
		w.Header().Set("Content-Type", sse.ContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		enc := sse.NewEncoder(flushWriter{Writer: out, rw: w})
		stopKeepAlive := startKeepAlive(ctx, enc)

		err = p.Invoke(ctx, model, req.Messages, func(m types.Message) error {
			b, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := enc.Encode(sse.Event{Data: string(b)}); err != nil {
				return err
			}
			sseFramesTotal.WithLabelValues("message").Inc()
			return nil
		})
		stopKeepAlive()
		if err != nil {
			// If context was canceled (client disconnect or shutdown), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			// Headers are already sent, so the failure travels in-band.
			status := statusFor(err)
			invokeErrorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
			b, _ := json.Marshal(types.ErrorResponse{Error: err.Error(), Code: status})
			_ = enc.Encode(sse.Event{Event: "error", Data: string(b)})
			sseFramesTotal.WithLabelValues("error").Inc()
			logInvokeEnd(r, lvl, status, start, err)
			return
		}
		logInvokeEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// flushWriter routes writes through Writer (possibly a tee) while flushing
// the underlying response.
type flushWriter struct {
	io.Writer
	rw http.ResponseWriter
}

func (f flushWriter) Flush() {
	if fl, ok := f.rw.(http.Flusher); ok {
		fl.Flush()
	}
}

// startKeepAlive writes a comment every keepAliveInterval until ctx is done or
// the returned stop func is called. stop waits for the ticker goroutine so no
// write happens after the handler returns.
func startKeepAlive(ctx context.Context, enc *sse.Encoder) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(keepAliveInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-t.C:
				if err := enc.Comment("keep-alive"); err != nil {
					return
				}
				sseFramesTotal.WithLabelValues("keepalive").Inc()
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
