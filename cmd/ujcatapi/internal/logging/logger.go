// Package logging provides structured logging with zerolog.
// Every output handler renders events through a formatter, and unless
// redaction is disabled each formatter is wrapped so that rendered lines are
// sanitized before they are written. Error-level calls can also be forwarded
// to an error-reporting service.
package logging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/sanitize"
)

// Level represents logging levels
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Output formats
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatSimple  = "simple"
)

// Reporter receives error-level log calls as an unformatted template and its
// parameters.
type Reporter interface {
	CaptureLog(template string, params []any)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level Level

	// Format is the output format (json, console or simple)
	Format string

	// Output is the writer for logs (default: os.Stdout)
	Output io.Writer

	// FilePath is the path to the log file (if specified, Output is ignored)
	FilePath string

	// DualOutput enables dual logging: stdout (console format) + file (simple format)
	DualOutput bool

	// ServiceName is the name of the service
	ServiceName string

	// Version is the version of the service
	Version string

	// AdditionalSensitiveFields are redacted on top of the default table.
	// Ignored when Sanitizer is set.
	AdditionalSensitiveFields []string

	// Sanitizer overrides the sanitizer built from the default table.
	Sanitizer *sanitize.Sanitizer

	// DisableRedaction leaves rendered lines unsanitized. Structured field
	// values are still masked.
	DisableRedaction bool

	// Reporter, when set, receives every error-level call.
	Reporter Reporter
}

// Logger wraps zerolog for structured logging
type Logger struct {
	logger    zerolog.Logger
	config    LoggerConfig
	sanitizer *sanitize.Sanitizer
	handlers  []*Handler
	headers   map[string]bool
}

// NewLogger creates a new structured logger.
//
// Each handler it creates gets its formatter sanitized exactly once.
func NewLogger(config LoggerConfig) *Logger {
	if config.Level == "" {
		config.Level = LevelInfo
	}

	s := config.Sanitizer
	if s == nil {
		if len(config.AdditionalSensitiveFields) > 0 {
			s = sanitize.New(sanitize.Options{AdditionalFields: config.AdditionalSensitiveFields})
		} else {
			s = sanitize.Default()
		}
	}

	handlers := buildHandlers(config)
	if !config.DisableRedaction {
		if err := SanitizeFormatters(handlers, s); err != nil {
			panic(fmt.Sprintf("logging: %v", err))
		}
	}

	logger := zerolog.New(handlerSet(handlers)).Level(zeroLevel(config.Level)).With().Timestamp().Logger()

	if config.ServiceName != "" {
		logger = logger.With().Str("service", config.ServiceName).Logger()
	}
	if config.Version != "" {
		logger = logger.With().Str("version", config.Version).Logger()
	}

	headers := make(map[string]bool, len(constants.SensitiveHeaders))
	for _, h := range constants.SensitiveHeaders {
		headers[http.CanonicalHeaderKey(h)] = true
	}

	return &Logger{
		logger:    logger,
		config:    config,
		sanitizer: s,
		handlers:  handlers,
		headers:   headers,
	}
}

// buildHandlers creates the output handlers for config. A log file that
// cannot be opened falls back to stdout.
func buildHandlers(config LoggerConfig) []*Handler {
	if config.FilePath != "" {
		file, err := openLogFile(config.FilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return []*Handler{NewHandler(os.Stdout, formatterFor(config.Format))}
		}
		if config.DualOutput {
			// Dual output: stdout gets console format, file gets simple format
			return []*Handler{
				NewHandler(os.Stdout, ConsoleFormatter{}),
				NewHandler(file, SimpleFormatter{}),
			}
		}
		return []*Handler{NewHandler(file, formatterFor(config.Format))}
	}

	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	return []*Handler{NewHandler(output, formatterFor(config.Format))}
}

func openLogFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.FilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}

func formatterFor(format string) Formatter {
	switch format {
	case FormatJSON:
		return JSONFormatter{}
	case FormatConsole:
		return ConsoleFormatter{}
	default:
		return SimpleFormatter{}
	}
}

func zeroLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Handlers returns the logger's output handlers.
func (l *Logger) Handlers() []*Handler {
	return l.handlers
}

// Sanitizer returns the sanitizer used for structured fields and lines.
func (l *Logger) Sanitizer() *sanitize.Sanitizer {
	return l.sanitizer
}

// WithContext returns a logger with context fields
func (l *Logger) WithContext(ctx context.Context) *Logger {
	newLogger := *l

	if requestID := GetRequestID(ctx); requestID != "" {
		newLogger.logger = l.logger.With().Str(constants.ContextKeyRequestID, requestID).Logger()
	}

	return &newLogger
}

// WithField returns a logger with an additional field
func (l *Logger) WithField(key string, value any) *Logger {
	newLogger := *l
	newLogger.logger = l.logger.With().Interface(key, l.sanitizer.Field(key, value)).Logger()
	return &newLogger
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	newLogger := *l
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, l.sanitizer.Field(key, value))
	}
	newLogger.logger = ctx.Logger()
	return &newLogger
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
	l.report(msg, nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
	l.report(format, args)
}

// ErrorWithErr logs an error with the error object
func (l *Logger) ErrorWithErr(msg string, err error) {
	l.logger.Error().Err(err).Msg(msg)
	l.report(msg+": %s", []any{errString(err)})
}

func (l *Logger) report(template string, params []any) {
	if l.config.Reporter != nil {
		l.config.Reporter.CaptureLog(template, params)
	}
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

// Context key for request ID
type contextKey string

const requestIDKey contextKey = constants.ContextKeyRequestID

// SetRequestID sets the request ID in the context
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID gets the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLoggerConfig holds configuration for request logging middleware
type RequestLoggerConfig struct {
	Logger *Logger

	// SkipPaths are paths that should not be logged
	SkipPaths []string

	// LogHeaders logs request headers at debug level
	LogHeaders bool
}

// RequestLogger is middleware for logging HTTP requests
type RequestLogger struct {
	config    RequestLoggerConfig
	skipPaths map[string]bool
}

// NewRequestLogger creates a new request logging middleware
func NewRequestLogger(config RequestLoggerConfig) *RequestLogger {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return &RequestLogger{
		config:    config,
		skipPaths: skipPaths,
	}
}

// Middleware returns the HTTP middleware function
func (rl *RequestLogger) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rl.skipPaths[r.URL.Path] {
			next(w, r)
			return
		}

		start := time.Now()

		requestID := GetRequestID(r.Context())
		if requestID == "" {
			requestID = r.Header.Get(constants.HeaderRequestID)
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(constants.HeaderRequestID, requestID)

		ctx := SetRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		logger := rl.config.Logger.WithContext(ctx)

		if rl.config.Logger.config.Level == LevelDebug {
			debugFields := map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"query":  r.URL.RawQuery,
			}

			if rl.config.LogHeaders {
				headers := make(map[string]string)
				for key, values := range r.Header {
					if rl.config.Logger.headers[key] {
						headers[key] = rl.config.Logger.sanitizer.Placeholder()
					} else if len(values) > 0 {
						headers[key] = values[0]
					}
				}
				debugFields["headers"] = headers
			}

			logger.WithFields(debugFields).Debug("Request started")
		}

		next(rw, r)

		duration := time.Since(start)

		event := rl.config.Logger.logger.Info()
		if rw.statusCode >= 500 {
			event = rl.config.Logger.logger.Error()
		} else if rw.statusCode >= 400 {
			event = rl.config.Logger.logger.Warn()
		}

		event.
			Str(constants.ContextKeyRequestID, requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Int("bytes", rw.bytesWritten).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Request completed")
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and bytes
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Global logger instance
var globalLogger atomic.Pointer[Logger]

// Init initializes the global logger
func Init(config LoggerConfig) {
	globalLogger.Store(NewLogger(config))
}

// GetLogger returns the global logger. Without Init, the first caller installs
// a JSON logger at info level; concurrent first callers all get that one.
func GetLogger() *Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	globalLogger.CompareAndSwap(nil, NewLogger(LoggerConfig{
		Level:  LevelInfo,
		Format: FormatJSON,
	}))
	return globalLogger.Load()
}

// Debug logs a debug message using the global logger
func Debug(msg string) {
	GetLogger().Debug(msg)
}

// Debugf logs a formatted debug message using the global logger
func Debugf(format string, args ...any) {
	GetLogger().Debugf(format, args...)
}

// Info logs an info message using the global logger
func Info(msg string) {
	GetLogger().Info(msg)
}

// Infof logs a formatted info message using the global logger
func Infof(format string, args ...any) {
	GetLogger().Infof(format, args...)
}

// Warn logs a warning message using the global logger
func Warn(msg string) {
	GetLogger().Warn(msg)
}

// Warnf logs a formatted warning message using the global logger
func Warnf(format string, args ...any) {
	GetLogger().Warnf(format, args...)
}

// Error logs an error message using the global logger
func Error(msg string) {
	GetLogger().Error(msg)
}

// Errorf logs a formatted error message using the global logger
func Errorf(format string, args ...any) {
	GetLogger().Errorf(format, args...)
}

// ErrorWithErr logs an error with the error object using the global logger
func ErrorWithErr(msg string, err error) {
	GetLogger().ErrorWithErr(msg, err)
}
