package provider

import (
	"errors"
	"net/http"
)

// noModelAvailableError signals an empty registry (503).
type noModelAvailableError struct{}

func (noModelAvailableError) Error() string   { return "no model available" }
func (noModelAvailableError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrNoModelAvailable is returned when no provider registered any model.
var ErrNoModelAvailable error = noModelAvailableError{}

// IsNoModelAvailable reports whether err indicates an empty registry.
func IsNoModelAvailable(err error) bool {
	var e noModelAvailableError
	return errors.As(err, &e)
}

// modelNotFoundError is returned when a requested model code is not registered.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string   { return "model not found: " + e.id }
func (e modelNotFoundError) StatusCode() int { return http.StatusNotFound }

// ErrModelNotFound returns an error for a missing model code.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model code.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// upstreamError reports a failed or malformed exchange with an upstream
// provider, surfaced as 502 Bad Gateway.
type upstreamError struct{ msg string }

func (e upstreamError) Error() string   { return e.msg }
func (e upstreamError) StatusCode() int { return http.StatusBadGateway }

// ErrUpstream constructs an upstreamError.
func ErrUpstream(msg string) error { return upstreamError{msg: msg} }

// IsUpstream reports whether err came from an upstream provider.
func IsUpstream(err error) bool {
	var e upstreamError
	return errors.As(err, &e)
}
