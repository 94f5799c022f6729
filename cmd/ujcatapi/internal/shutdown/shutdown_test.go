package shutdown

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/logging"
)

func testLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.NewLogger(logging.LoggerConfig{
		Level:  logging.LevelDebug,
		Format: logging.FormatJSON,
		Output: buf,
	})
}

func waitDone(t *testing.T, h *Handler) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not complete in time")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", config.Timeout)
	}
	if len(config.Signals) == 0 {
		t.Error("Expected default signals to be set")
	}
}

func TestNewHandler(t *testing.T) {
	t.Run("With defaults", func(t *testing.T) {
		handler := NewHandler(Config{})
		if handler.config.Timeout != 30*time.Second {
			t.Errorf("Expected default timeout 30s, got %v", handler.config.Timeout)
		}
	})

	t.Run("With custom config", func(t *testing.T) {
		handler := NewHandler(Config{Timeout: 10 * time.Second})
		if handler.config.Timeout != 10*time.Second {
			t.Errorf("Expected timeout 10s, got %v", handler.config.Timeout)
		}
	})
}

type testServer struct {
	onShutdown func(ctx context.Context) error
}

func (ts *testServer) Shutdown(ctx context.Context) error {
	if ts.onShutdown != nil {
		return ts.onShutdown(ctx)
	}
	return nil
}

type testCloser struct {
	closed atomic.Bool
}

func (tc *testCloser) Close() error {
	tc.closed.Store(true)
	return nil
}

func TestHandler_TriggerRunsLIFO(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(Config{Timeout: time.Second, Logger: testLogger(&buf)})

	var mu sync.Mutex
	var callOrder []string
	record := func(name string) ShutdownFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			callOrder = append(callOrder, name)
			return nil
		}
	}

	handler.Register("first", record("first"))
	handler.RegisterServer("server", &testServer{onShutdown: record("server")})
	closer := &testCloser{}
	handler.RegisterCloser("closer", closer)
	handler.Register("last", record("last"))

	handler.Trigger()
	if err := handler.Wait(); err != nil {
		t.Fatalf("Unexpected shutdown error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"last", "server", "first"}
	if strings.Join(callOrder, ",") != strings.Join(want, ",") {
		t.Errorf("Expected order %v, got %v", want, callOrder)
	}
	if !closer.closed.Load() {
		t.Error("Closer should have been closed")
	}
	if !strings.Contains(buf.String(), "Shutdown complete") {
		t.Errorf("Expected completion log, got: %s", buf.String())
	}
}

func TestHandler_ShutdownErrors(t *testing.T) {
	var buf bytes.Buffer
	var capturedErr error

	handler := NewHandler(Config{
		Timeout: time.Second,
		Logger:  testLogger(&buf),
		OnShutdownComplete: func(err error) {
			capturedErr = err
		},
	})

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	handler.Register("a", func(context.Context) error { return errA })
	handler.Register("b", func(context.Context) error { return errB })

	handler.Trigger()
	err := handler.Wait()

	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Expected both errors to be joined, got %v", err)
	}
	if capturedErr != err {
		t.Error("OnShutdownComplete should receive the same error")
	}
}

func TestHandler_ShutdownTimeout(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(Config{Timeout: 100 * time.Millisecond, Logger: testLogger(&buf)})

	handler.Register("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	handler.Trigger()
	waitDone(t, handler)

	if !errors.Is(handler.Wait(), context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", handler.Wait())
	}
	if !strings.Contains(buf.String(), "Shutdown timeout exceeded") {
		t.Errorf("Expected timeout log, got: %s", buf.String())
	}
}

func TestHandler_Callbacks(t *testing.T) {
	var buf bytes.Buffer
	var startCalled, completeCalled bool

	handler := NewHandler(Config{
		Timeout:            time.Second,
		Logger:             testLogger(&buf),
		OnShutdownStart:    func() { startCalled = true },
		OnShutdownComplete: func(error) { completeCalled = true },
	})

	handler.Trigger()
	waitDone(t, handler)

	if !startCalled {
		t.Error("OnShutdownStart should have been called")
	}
	if !completeCalled {
		t.Error("OnShutdownComplete should have been called")
	}
}

func TestHandler_DoubleTrigger(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(Config{Timeout: time.Second, Logger: testLogger(&buf)})

	var callCount atomic.Int32
	handler.Register("test", func(context.Context) error {
		callCount.Add(1)
		return nil
	})

	go handler.Start()
	handler.Trigger()
	handler.Trigger()
	waitDone(t, handler)

	if callCount.Load() != 1 {
		t.Errorf("Expected shutdown to run only once, got %d", callCount.Load())
	}
}

func TestHandler_Signal(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(Config{
		Timeout: time.Second,
		Signals: []os.Signal{syscall.SIGUSR1},
		Logger:  testLogger(&buf),
	})

	// Keeps the default action from killing the test binary.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGUSR1)
	defer signal.Stop(guard)

	go handler.Start()
	time.Sleep(50 * time.Millisecond)

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Failed to send signal: %v", err)
	}
	waitDone(t, handler)

	if !strings.Contains(buf.String(), "Shutdown signal received") {
		t.Errorf("Expected signal log, got: %s", buf.String())
	}
}

func TestGracefulServer(t *testing.T) {
	var buf bytes.Buffer

	stop := make(chan struct{})
	var shutdownCalled atomic.Bool
	closer := &testCloser{}
	server := &testServer{onShutdown: func(context.Context) error {
		if closer.closed.Load() {
			t.Error("Server should stop before registered closers run")
		}
		shutdownCalled.Store(true)
		close(stop)
		return nil
	}}

	started := make(chan struct{})
	gs := NewGracefulServer(server, func() error {
		close(started)
		<-stop
		return nil
	}, Config{Timeout: time.Second, Logger: testLogger(&buf)})

	gs.RegisterCloser("reporter", closer)

	done := make(chan error, 1)
	go func() { done <- gs.Run() }()

	<-started
	gs.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete in time")
	}

	if !shutdownCalled.Load() {
		t.Error("Server shutdown should have been called")
	}
	if !closer.closed.Load() {
		t.Error("Registered closer should have been closed")
	}
}

func TestGracefulServer_StartFailure(t *testing.T) {
	var buf bytes.Buffer
	startErr := errors.New("address in use")

	gs := NewGracefulServer(&testServer{}, func() error {
		return startErr
	}, Config{Timeout: time.Second, Logger: testLogger(&buf)})

	done := make(chan error, 1)
	go func() { done <- gs.Run() }()

	select {
	case err := <-done:
		if !errors.Is(err, startErr) {
			t.Errorf("Expected start error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete in time")
	}
}

func TestHandler_ConcurrentRegister(t *testing.T) {
	handler := NewHandler(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.Register("fn", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	if len(handler.funcs) != 100 {
		t.Errorf("Expected 100 functions, got %d", len(handler.funcs))
	}
}
