// Package logger builds configured log/slog loggers with env-driven level and
// format selection, plus context attribute extractors that inject
// request-scoped values (user id, request id) into every record.
package logger
