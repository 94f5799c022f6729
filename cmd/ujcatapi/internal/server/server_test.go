package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/config"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/logging"
)

func setupTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()

	cfg := &config.AppConfig{
		Server: config.ServerConfig{Port: 8000, Host: "127.0.0.1"},
		Features: config.FeaturesConfig{
			EnableFoo: true,
		},
		CORS: config.CORSConfig{
			AllowedOriginsRegexps: config.Defaults.CORS.AllowedOriginsRegexps,
		},
	}

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.LoggerConfig{
		Level:  logging.LevelDebug,
		Format: logging.FormatJSON,
		Output: &buf,
	})

	srv, err := New(Options{Config: cfg, Logger: logger})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return srv, &buf
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	srv, _ := setupTestServer(t)

	if srv.server.Addr != "127.0.0.1:8000" {
		t.Errorf("Unexpected address %s", srv.server.Addr)
	}
	if srv.server.ReadTimeout != constants.HTTPReadTimeout {
		t.Errorf("Unexpected read timeout %v", srv.server.ReadTimeout)
	}
}

func TestNew_InvalidCORS(t *testing.T) {
	cfg := &config.AppConfig{CORS: config.CORSConfig{AllowedOriginsRegexps: []string{"("}}}
	if _, err := New(Options{Config: cfg}); err == nil {
		t.Error("Expected error for invalid CORS pattern")
	}
}

func TestStatusHandler(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(constants.HeaderContentType); ct != "application/json; charset=utf-8" {
		t.Errorf("Unexpected content type %q", ct)
	}

	var response StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Service != "ujcatapi" {
		t.Errorf("Expected service 'ujcatapi', got %q", response.Service)
	}
	if response.Version != "1.8.8" {
		t.Errorf("Expected version '1.8.8', got %q", response.Version)
	}
	want := Link{Href: "/docs", Rel: "documentation", Type: "GET"}
	if len(response.Links) != 1 || response.Links[0] != want {
		t.Errorf("Unexpected links %+v", response.Links)
	}
	if !response.FeatureFlags["ENABLE_FOO"] || response.FeatureFlags["ENABLE_BAR"] {
		t.Errorf("Unexpected feature flags %v", response.FeatureFlags)
	}
	if rec.Header().Get(constants.HeaderRequestID) == "" {
		t.Error("Response should carry a request ID")
	}
}

func TestRootRedirect(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("Expected status 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get(constants.HeaderLocation); loc != "/status" {
		t.Errorf("Expected Location '/status', got %q", loc)
	}
}

func TestNotFound(t *testing.T) {
	srv, buf := setupTestServer(t)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/cats/alice@example.com", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["errors"] != "Not Found" {
		t.Errorf("Unexpected body %v", body)
	}
	if strings.Contains(buf.String(), "alice@example.com") {
		t.Errorf("Request log leaked the email in the path: %s", buf.String())
	}
}

func TestPostToStatusIsNotFound(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := serve(srv, httptest.NewRequest(http.MethodPost, "/status", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestCORSOnStatus(t *testing.T) {
	srv, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := serve(srv, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("Expected CORS headers for localhost, got %v", rec.Header())
	}
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	srv, buf := setupTestServer(t)

	handler := srv.wrap(func(w http.ResponseWriter, r *http.Request) {
		panic("token refresh_token='abc123' rejected")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
	if rec.Header().Get(constants.HeaderRequestID) == "" {
		t.Error("Request ID should be set even when the handler panics")
	}
	if strings.Contains(buf.String(), "abc123") {
		t.Errorf("Log leaked the token: %s", buf.String())
	}
}

func TestRequestLogHidesSensitiveHeaders(t *testing.T) {
	srv, buf := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(constants.HeaderAuthorization, "Bearer very-secret-token")
	serve(srv, req)

	if strings.Contains(buf.String(), "very-secret-token") {
		t.Errorf("Request log leaked the Authorization header: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "Request completed") {
		t.Errorf("Expected a request completion log, got: %s", buf.String())
	}
}
