// Package httpserver provides an http.Server wrapper with sane timeout
// defaults, graceful shutdown on signals or context cancellation, and probe
// handlers for orchestration.
package httpserver
