package constants

import "time"

// Timeout and duration constants used throughout the application.
const (
	// ShutdownTimeout is the maximum time allowed for graceful shutdown.
	// Used in: shutdown/shutdown.go
	ShutdownTimeout = 30 * time.Second

	// HTTPReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Used in: server/server.go
	HTTPReadTimeout = 15 * time.Second

	// HTTPWriteTimeout is the maximum duration before timing out writes of the response.
	// Used in: server/server.go
	HTTPWriteTimeout = 15 * time.Second

	// HTTPIdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Used in: server/server.go
	HTTPIdleTimeout = 60 * time.Second

	// ReporterFlushTimeout bounds how long shutdown waits for queued
	// error-reporting events to be delivered.
	// Used in: reporting/reporting.go, main.go
	ReporterFlushTimeout = 2 * time.Second
)
