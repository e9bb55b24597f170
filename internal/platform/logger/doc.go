// Package logger provides structured logging for the application using the
// standard library log/slog package. It configures the process-wide JSON
// logger and carries request-scoped loggers through context.Context so that
// trace IDs and component tags survive across layer boundaries.
package logger
