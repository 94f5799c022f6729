package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/sanitize"
)

// ErrNoFormatter is returned when a sanitized formatter has nothing to delegate to.
var ErrNoFormatter = errors.New("log sanitizer: no formatter to delegate to")

// Formatter renders one zerolog event (a JSON document) into an output line.
type Formatter interface {
	Format(event []byte) ([]byte, error)
}

// StructuredFormatter is implemented by formatters whose output is the event
// document itself. A SanitizedFormatter cleans the values of such events
// before rendering instead of scrubbing the rendered text.
type StructuredFormatter interface {
	Formatter
	Structured() bool
}

func isStructured(f Formatter) bool {
	sf, ok := f.(StructuredFormatter)
	return ok && sf.Structured()
}

// JSONFormatter writes events as zerolog produced them.
type JSONFormatter struct{}

func (JSONFormatter) Format(event []byte) ([]byte, error) {
	return event, nil
}

func (JSONFormatter) Structured() bool { return true }

// SimpleFormatter renders events as: [LEVEL](TIMESTAMP): {MESSAGE}
type SimpleFormatter struct{}

func (SimpleFormatter) Format(event []byte) ([]byte, error) {
	var logEntry map[string]any
	if err := json.Unmarshal(event, &logEntry); err != nil {
		// If not JSON, just write as-is
		return event, nil
	}

	level, _ := logEntry[zerolog.LevelFieldName].(string)
	timestamp, _ := logEntry[zerolog.TimestampFieldName].(string)
	message, _ := logEntry[zerolog.MessageFieldName].(string)

	return []byte(fmt.Sprintf("[%s](%s): %s\n",
		strings.ToUpper(level),
		timestamp,
		message,
	)), nil
}

// ConsoleFormatter renders events with zerolog's human readable console layout.
type ConsoleFormatter struct {
	TimeFormat string
	NoColor    bool
}

func (f ConsoleFormatter) Format(event []byte) ([]byte, error) {
	timeFormat := f.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	var buf bytes.Buffer
	w := zerolog.ConsoleWriter{Out: &buf, TimeFormat: timeFormat, NoColor: f.NoColor}
	if _, err := w.Write(event); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SanitizedFormatter scrubs the output of another formatter. Everything about
// the rendered line other than the masked and redacted spans is left to the
// wrapped formatter.
//
// Text output is sanitized after rendering. For structured output each string
// value of the event is sanitized before rendering, since the sanitizer does
// not understand JSON escapes; an event that is not valid JSON falls back to
// the text path.
type SanitizedFormatter struct {
	inner     Formatter
	sanitizer *sanitize.Sanitizer
}

// NewSanitizedFormatter wraps inner. A nil sanitizer means sanitize.Default().
func NewSanitizedFormatter(inner Formatter, s *sanitize.Sanitizer) *SanitizedFormatter {
	if s == nil {
		s = sanitize.Default()
	}
	return &SanitizedFormatter{inner: inner, sanitizer: s}
}

// Format renders the event with the wrapped formatter and sanitizes the result.
func (f *SanitizedFormatter) Format(event []byte) ([]byte, error) {
	if f.inner == nil {
		return nil, ErrNoFormatter
	}
	if isStructured(f.inner) {
		if clean, err := sanitizeEvent(f.sanitizer, event); err == nil {
			return f.inner.Format(clean)
		}
	}
	line, err := f.inner.Format(event)
	if err != nil {
		return nil, err
	}
	return []byte(f.sanitizer.String(string(line))), nil
}

// Structured reports whether the wrapped formatter is structured, so that
// stacked sanitizers all take the same path.
func (f *SanitizedFormatter) Structured() bool {
	return isStructured(f.inner)
}

// Inner returns the wrapped formatter.
func (f *SanitizedFormatter) Inner() Formatter {
	return f.inner
}

// Handler is one log output: a destination and the formatter that renders
// events for it. It is safe for concurrent use.
type Handler struct {
	mu        sync.Mutex
	out       io.Writer
	formatter Formatter
}

// NewHandler creates a handler writing to out.
func NewHandler(out io.Writer, formatter Formatter) *Handler {
	return &Handler{out: out, formatter: formatter}
}

// Formatter returns the handler's current formatter.
func (h *Handler) Formatter() Formatter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.formatter
}

// SetFormatter replaces the handler's formatter.
func (h *Handler) SetFormatter(f Formatter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.formatter = f
}

// Write renders one event and writes it. When rendering fails nothing is
// written and the error goes back to zerolog, which reports it on stderr.
func (h *Handler) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.formatter == nil {
		return 0, ErrNoFormatter
	}

	line, err := h.formatter.Format(p)
	if err != nil {
		return 0, errors.Wrap(err, "format log event")
	}
	if _, err := h.out.Write(line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SanitizeFormatters wraps the formatter of every handler in a
// SanitizedFormatter. It fails on the first handler without a formatter.
//
// Calling it twice on the same handler wraps twice; install once per handler.
func SanitizeFormatters(handlers []*Handler, s *sanitize.Sanitizer) error {
	for i, h := range handlers {
		inner := h.Formatter()
		if inner == nil {
			return errors.Wrapf(ErrNoFormatter, "handler %d", i)
		}
		h.SetFormatter(NewSanitizedFormatter(inner, s))
	}
	return nil
}

// handlerSet fans each event out to several handlers.
type handlerSet []*Handler

func (hs handlerSet) Write(p []byte) (int, error) {
	var firstErr error
	// Every handler is attempted, even after a failure.
	for _, h := range hs {
		if _, err := h.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return 0, firstErr
	}
	return len(p), nil
}
