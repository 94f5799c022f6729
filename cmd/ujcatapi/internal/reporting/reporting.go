// Package reporting forwards errors to Sentry. Every event passes through a
// BeforeSend hook that sanitizes its log message parameters first.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/sanitize"
)

// Config holds error-reporting settings.
type Config struct {
	Enabled     bool
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
	Debug       bool
}

// EventLogSanitizer returns a BeforeSend hook that replaces every log message
// parameter of an event, in place, with its sanitized value. The message
// template is left as is.
func EventLogSanitizer(s *sanitize.Sanitizer) func(*sentry.Event, *sentry.EventHint) *sentry.Event {
	if s == nil {
		s = sanitize.Default()
	}
	return func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		if event == nil {
			return nil
		}
		entry, ok := event.Contexts[constants.EventContextLogEntry]
		if !ok {
			return event
		}
		sanitizeParams(s, entry[constants.EventLogEntryParams])
		return event
	}
}

// SanitizeEvent applies the same rule to a JSON-like event, as decoded from an
// event payload: event["logentry"]["params"] is sanitized in place. Events
// without that shape are returned untouched.
func SanitizeEvent(s *sanitize.Sanitizer, event map[string]any) map[string]any {
	if s == nil {
		s = sanitize.Default()
	}
	entry, ok := event[constants.EventContextLogEntry].(map[string]any)
	if !ok {
		return event
	}
	sanitizeParams(s, entry[constants.EventLogEntryParams])
	return event
}

func sanitizeParams(s *sanitize.Sanitizer, params any) {
	list, ok := params.([]any)
	if !ok {
		return
	}
	for i, param := range list {
		list[i] = s.Value(param)
	}
}

// Reporter sends events to Sentry. A Reporter built from a disabled config
// accepts every call and sends nothing.
type Reporter struct {
	hub *sentry.Hub
}

// New creates a reporter. The sanitizing hook is always installed.
func New(cfg Config, s *sanitize.Sanitizer) (*Reporter, error) {
	if !cfg.Enabled {
		return &Reporter{}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:            cfg.DSN,
		Environment:    cfg.Environment,
		Release:        cfg.Release,
		SampleRate:     sampleRate,
		Debug:          cfg.Debug,
		SendDefaultPII: true,
		BeforeSend:     EventLogSanitizer(s),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", constants.ServiceName)
	})

	return &Reporter{hub: hub}, nil
}

// Enabled reports whether events are forwarded.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// CaptureLog sends an error-level event carrying the unformatted message
// template and its parameters.
func (r *Reporter) CaptureLog(template string, params []any) {
	if !r.Enabled() {
		return
	}

	if params == nil {
		params = []any{}
	}

	event := sentry.NewEvent()
	event.Level = sentry.LevelError
	event.Message = template
	if event.Contexts == nil {
		event.Contexts = make(map[string]sentry.Context)
	}
	event.Contexts[constants.EventContextLogEntry] = sentry.Context{
		constants.EventLogEntryMessage: template,
		constants.EventLogEntryParams:  params,
	}

	r.hub.CaptureEvent(event)
}

// CaptureException reports err.
func (r *Reporter) CaptureException(err error) {
	if !r.Enabled() || err == nil {
		return
	}
	r.hub.CaptureException(err)
}

// Recover reports a recovered panic value.
func (r *Reporter) Recover(v any) {
	if !r.Enabled() || v == nil {
		return
	}
	r.hub.Recover(v)
}

// Flush waits up to timeout for queued events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}

// Close flushes pending events, bounded by ctx or constants.ReporterFlushTimeout.
func (r *Reporter) Close(ctx context.Context) error {
	timeout := constants.ReporterFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if !r.Flush(timeout) {
		return fmt.Errorf("timed out flushing error reports after %v", timeout)
	}
	return nil
}
