// Package shutdown runs registered cleanup functions when the process is asked
// to stop, newest first and within a shared deadline.
package shutdown

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/logging"
)

// ShutdownFunc is a function that will be called during shutdown
type ShutdownFunc func(ctx context.Context) error

// Config holds configuration for the shutdown handler
type Config struct {
	// Timeout bounds the whole shutdown sequence
	Timeout time.Duration

	// Signals is the list of OS signals to listen for
	Signals []os.Signal

	// OnShutdownStart is called when shutdown begins
	OnShutdownStart func()

	// OnShutdownComplete is called with the joined errors of every step
	OnShutdownComplete func(err error)

	// Logger receives progress messages (default: the global logger)
	Logger *logging.Logger
}

// DefaultConfig returns the default shutdown configuration
func DefaultConfig() Config {
	return Config{
		Timeout: constants.ShutdownTimeout,
		Signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// HTTPServer is an interface for HTTP servers that support graceful shutdown
type HTTPServer interface {
	Shutdown(ctx context.Context) error
}

// Handler manages graceful shutdown of services
type Handler struct {
	config Config

	mu    sync.Mutex
	funcs []namedShutdownFunc

	trigger     chan struct{}
	triggerOnce sync.Once
	runOnce     sync.Once
	done        chan struct{}
	err         error
}

type namedShutdownFunc struct {
	name string
	fn   ShutdownFunc
}

// NewHandler creates a new shutdown handler
func NewHandler(config Config) *Handler {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Signals == nil {
		config.Signals = defaults.Signals
	}

	return &Handler{
		config:  config,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Register adds a shutdown function. Functions run in LIFO order.
func (h *Handler) Register(name string, fn ShutdownFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs = append(h.funcs, namedShutdownFunc{name: name, fn: fn})
}

// RegisterServer registers an HTTP server for shutdown
func (h *Handler) RegisterServer(name string, server HTTPServer) {
	h.Register(name, server.Shutdown)
}

// RegisterCloser registers an io.Closer for shutdown
func (h *Handler) RegisterCloser(name string, closer io.Closer) {
	h.Register(name, func(context.Context) error {
		return closer.Close()
	})
}

// Start blocks until a configured signal arrives or Trigger is called, then
// runs the shutdown sequence.
func (h *Handler) Start() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, h.config.Signals...)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		h.logger().WithField("signal", sig.String()).Info("Shutdown signal received")
	case <-h.trigger:
		h.logger().Info("Shutdown requested")
	case <-h.done:
		return
	}

	h.run()
}

// Trigger initiates shutdown programmatically. It does not wait; use Wait.
func (h *Handler) Trigger() {
	h.triggerOnce.Do(func() {
		close(h.trigger)
		go h.run()
	})
}

// Wait blocks until shutdown is complete and returns its error.
func (h *Handler) Wait() error {
	<-h.done
	return h.err
}

// Done is closed once shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

func (h *Handler) logger() *logging.Logger {
	if h.config.Logger != nil {
		return h.config.Logger
	}
	return logging.GetLogger()
}

func (h *Handler) run() {
	h.runOnce.Do(h.performShutdown)
}

// performShutdown executes all registered shutdown functions
func (h *Handler) performShutdown() {
	defer close(h.done)

	log := h.logger()

	if h.config.OnShutdownStart != nil {
		h.config.OnShutdownStart()
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.mu.Lock()
	funcs := make([]namedShutdownFunc, len(h.funcs))
	copy(funcs, h.funcs)
	h.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		f := funcs[i]
		step := log.WithField("component", f.name)

		start := time.Now()
		if err := f.fn(ctx); err != nil {
			step.Warnf("Error shutting down: %v", err)
			errs = append(errs, err)
			continue
		}
		step.WithField("took", time.Since(start).String()).Info("Shut down successfully")
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn("Shutdown timeout exceeded")
		errs = append(errs, ctx.Err())
	}

	h.err = errors.Join(errs...)

	if h.config.OnShutdownComplete != nil {
		h.config.OnShutdownComplete(h.err)
	}

	log.Info("Shutdown complete")
}

// GracefulServer wraps an HTTP server with graceful shutdown support
type GracefulServer struct {
	server    HTTPServer
	handler   *Handler
	startFunc func() error
}

// NewGracefulServer creates a new graceful server wrapper
func NewGracefulServer(server HTTPServer, startFunc func() error, config Config) *GracefulServer {
	return &GracefulServer{
		server:    server,
		handler:   NewHandler(config),
		startFunc: startFunc,
	}
}

// Register adds a shutdown function to be called during shutdown
func (gs *GracefulServer) Register(name string, fn ShutdownFunc) {
	gs.handler.Register(name, fn)
}

// RegisterCloser adds an io.Closer to be closed during shutdown
func (gs *GracefulServer) RegisterCloser(name string, closer io.Closer) {
	gs.handler.RegisterCloser(name, closer)
}

// Run starts the server and blocks until shutdown completes. The server is
// registered last, so it stops accepting requests before anything registered
// earlier is shut down. A server that fails to start triggers shutdown and
// its error is returned.
func (gs *GracefulServer) Run() error {
	gs.handler.RegisterServer("http-server", gs.server)
	go gs.handler.Start()

	serverErr := make(chan error, 1)
	go func() {
		err := gs.startFunc()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			gs.handler.Trigger()
		}
		close(serverErr)
	}()

	shutdownErr := gs.handler.Wait()

	select {
	case err, ok := <-serverErr:
		if ok {
			return err
		}
	default:
	}
	return shutdownErr
}

// Shutdown triggers shutdown programmatically
func (gs *GracefulServer) Shutdown() {
	gs.handler.Trigger()
}
