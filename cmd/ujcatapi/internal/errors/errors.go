// Package errors provides the application error kinds, their mapping to HTTP
// status codes, and middleware for consistent error responses. Every message
// written to a client is sanitized first.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/logging"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/sanitize"
)

// Error kinds. A kind belongs to the family of each of its ancestors, so an
// EntityNotFound error is also an Ujcatapi error.
var (
	ErrUjcatapi        = errors.New("ujcatapi error")
	ErrDuplicateEntity = errors.New("duplicate entity")
	ErrEntityNotFound  = errors.New("entity not found")
)

// parents maps each kind to its direct parent.
var parents = map[error]error{
	ErrDuplicateEntity: ErrUjcatapi,
	ErrEntityNotFound:  ErrUjcatapi,
}

var kinds = []error{
	ErrUjcatapi,
	ErrDuplicateEntity,
	ErrEntityNotFound,
}

// New creates an error of the given kind whose message is msg.
func New(kind error, msg string) error {
	return Mark(errors.New(msg), kind)
}

// Newf is New with a format string.
func Newf(kind error, format string, args ...any) error {
	return Mark(errors.Newf(format, args...), kind)
}

// Mark tags err with kind and every ancestor of kind. The message of err is
// unchanged.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	for k := kind; k != nil; k = parents[k] {
		err = errors.Mark(err, k)
	}
	return err
}

// IsKind reports whether err belongs to the family of kind, either because it
// was created by New, Newf or Mark with kind or a descendant, or because it is
// itself such a kind.
func IsKind(err error, kind error) bool {
	if err == nil {
		return false
	}
	for _, k := range kinds {
		if !errors.Is(err, k) {
			continue
		}
		for a := k; a != nil; a = parents[a] {
			if a == kind {
				return true
			}
		}
	}
	return false
}

// StatusCode maps an error to its HTTP status code.
func StatusCode(err error) int {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case IsKind(err, ErrEntityNotFound):
		return http.StatusNotFound
	case IsKind(err, ErrDuplicateEntity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the body of every non-validation error response.
type ErrorResponse struct {
	Errors string `json:"errors"`
}

// FieldError describes one invalid input location.
type FieldError struct {
	// Loc is the path to the offending value, e.g. ["body", "cats", 0, "name"].
	Loc []any

	Msg  string
	Type string

	// ReasonCode is optional and omitted from the response when empty.
	ReasonCode string
}

// ValidationError carries every input error found in a request. Handlers
// that decode request input return it; WriteError renders it as a 422.
type ValidationError struct {
	Errors []FieldError
}

// NewValidationError creates a validation error.
func NewValidationError(errs ...FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.location(), fe.Msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldError) location() string {
	parts := make([]string, len(fe.Loc))
	for i, p := range fe.Loc {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".")
}

type validationDetail struct {
	Msg        string `json:"msg"`
	Type       string `json:"type"`
	ReasonCode string `json:"reason_code,omitempty"`
}

type validationResponse struct {
	Errors []map[string]validationDetail `json:"errors"`
}

// PanicReporter receives recovered panic values.
type PanicReporter interface {
	Recover(v any)
}

// ErrorHandlerConfig holds configuration for error handling
type ErrorHandlerConfig struct {
	// Logger receives one entry per error response. Defaults to the global logger.
	Logger *logging.Logger

	// Sanitizer cleans client-facing messages. Defaults to sanitize.Default().
	Sanitizer *sanitize.Sanitizer

	// Reporter, when set, receives recovered panics.
	Reporter PanicReporter

	// LogStackTrace logs stack traces for panics
	LogStackTrace bool
}

// ErrorHandler provides error handling middleware and utilities
type ErrorHandler struct {
	config ErrorHandlerConfig
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(config ErrorHandlerConfig) *ErrorHandler {
	if config.Sanitizer == nil {
		config.Sanitizer = sanitize.Default()
	}
	return &ErrorHandler{config: config}
}

func (h *ErrorHandler) logger(r *http.Request) *logging.Logger {
	l := h.config.Logger
	if l == nil {
		l = logging.GetLogger()
	}
	return l.WithContext(r.Context())
}

// RecoveryMiddleware catches panics and converts them to 500 errors
func (h *ErrorHandler) RecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			if h.config.Reporter != nil {
				h.config.Reporter.Recover(rec)
			}

			l := h.logger(r)
			if h.config.LogStackTrace {
				l.WithField("stack", string(debug.Stack())).Warnf("panic: %v", rec)
			} else {
				l.Warnf("panic: %v", rec)
			}

			h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Errors: "Internal server error"})
		}()

		next(w, r)
	}
}

// WriteError writes the response for err. Validation errors get the 422
// layout; every other error gets {"errors": message} with the status code of
// its kind.
func (h *ErrorHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		h.WriteValidationError(w, r, verr)
		return
	}

	status := StatusCode(err)
	message := h.config.Sanitizer.String(err.Error())

	if status >= http.StatusInternalServerError {
		h.logger(r).ErrorWithErr("request failed", err)
	} else {
		h.logger(r).WithField("status", status).Warn(message)
	}

	h.writeJSON(w, status, ErrorResponse{Errors: message})
}

// WriteValidationError writes a 422 response listing every field error.
func (h *ErrorHandler) WriteValidationError(w http.ResponseWriter, r *http.Request, verr *ValidationError) {
	body := validationResponse{Errors: make([]map[string]validationDetail, 0, len(verr.Errors))}
	for _, fe := range verr.Errors {
		body.Errors = append(body.Errors, map[string]validationDetail{
			fe.location(): {
				Msg:        h.config.Sanitizer.String(fe.Msg),
				Type:       fe.Type,
				ReasonCode: fe.ReasonCode,
			},
		})
	}

	h.logger(r).WithField("errors", len(verr.Errors)).Warn("validation failed")
	h.writeJSON(w, http.StatusUnprocessableEntity, body)
}

func (h *ErrorHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(constants.HeaderContentType, constants.MIMEApplicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RequestIDMiddleware adds a request ID to each request
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(constants.HeaderRequestID, requestID)

		ctx := logging.SetRequestID(r.Context(), requestID)
		next(w, r.WithContext(ctx))
	}
}

// GetRequestID gets the request ID from the request context
func GetRequestID(r *http.Request) string {
	return logging.GetRequestID(r.Context())
}
