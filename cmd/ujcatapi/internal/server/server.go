// Package server provides HTTP server setup and routing.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/config"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
	apperrors "github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/errors"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/logging"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/middleware"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/reporting"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/sanitize"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/shutdown"
)

// Options holds the dependencies of a Server.
type Options struct {
	Config    *config.AppConfig
	Logger    *logging.Logger
	Sanitizer *sanitize.Sanitizer

	// Reporter may be nil; panics are then only logged.
	Reporter *reporting.Reporter
}

// Link is a hypermedia link in a status response.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
	Type string `json:"type"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Service      string          `json:"service"`
	Version      string          `json:"version"`
	Links        []Link          `json:"links"`
	FeatureFlags map[string]bool `json:"feature_flags"`
}

// Server represents the HTTP server
type Server struct {
	config        *config.AppConfig
	logger        *logging.Logger
	reporter      *reporting.Reporter
	errors        *apperrors.ErrorHandler
	cors          *middleware.CORSMiddleware
	requestLogger *logging.RequestLogger
	mux           *http.ServeMux
	server        *http.Server
}

// New creates a new server instance
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	cors, err := middleware.NewCORSMiddleware(middleware.CORSConfig{
		AllowedOriginsRegexps: opts.Config.CORS.AllowedOriginsRegexps,
	})
	if err != nil {
		return nil, err
	}

	errHandlerConfig := apperrors.ErrorHandlerConfig{
		Logger:        logger,
		Sanitizer:     opts.Sanitizer,
		LogStackTrace: true,
	}
	if opts.Reporter.Enabled() {
		errHandlerConfig.Reporter = opts.Reporter
	}

	mux := http.NewServeMux()
	srv := &Server{
		config:   opts.Config,
		logger:   logger,
		reporter: opts.Reporter,
		errors:   apperrors.NewErrorHandler(errHandlerConfig),
		cors:     cors,
		requestLogger: logging.NewRequestLogger(logging.RequestLoggerConfig{
			Logger:     logger,
			LogHeaders: true,
		}),
		mux: mux,
		server: &http.Server{
			Addr:         opts.Config.Server.Addr(),
			Handler:      mux,
			ReadTimeout:  constants.HTTPReadTimeout,
			WriteTimeout: constants.HTTPWriteTimeout,
			IdleTimeout:  constants.HTTPIdleTimeout,
		},
	}

	srv.setupRoutes()
	return srv, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /status", s.wrap(s.statusHandler))
	s.mux.HandleFunc("GET /{$}", s.wrap(s.rootHandler))
	s.mux.HandleFunc("/", s.wrap(s.notFoundHandler))
}

// wrap applies, outermost first: request ID, panic recovery, request
// logging, CORS.
func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return apperrors.RequestIDMiddleware(
		s.errors.RecoveryMiddleware(
			s.requestLogger.Middleware(
				s.cors.Handle(h),
			),
		),
	)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.server.Shutdown(ctx)
}

// Run starts the server and blocks until a termination signal has been
// handled. Pending error reports are flushed after the server stops.
func (s *Server) Run() error {
	gs := shutdown.NewGracefulServer(s, s.Start, shutdown.Config{
		Timeout: constants.ShutdownTimeout,
		Logger:  s.logger,
	})
	gs.Register("error-reporter", s.reporter.Close)
	return gs.Run()
}

// statusHandler returns the name and version of the service, a link to the
// documentation and the feature flags.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Service: constants.ServiceName,
		Version: config.Version(),
		Links: []Link{
			{Href: "/docs", Rel: "documentation", Type: http.MethodGet},
		},
		FeatureFlags: s.config.Features.Flags(),
	})
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.errors.WriteError(w, r, apperrors.New(apperrors.ErrEntityNotFound, "Not Found"))
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set(constants.HeaderContentType, constants.MIMEApplicationJSON)
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warnf("Error encoding JSON response: %v", err)
	}
}
