// Package middleware holds HTTP middleware shared by every route.
package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
)

// CORSConfig holds CORS middleware configuration
type CORSConfig struct {
	// AllowedOriginsRegexps are alternatives; an origin must match one of them
	// in full.
	AllowedOriginsRegexps []string

	// ExposedHeaders are readable by browser scripts.
	ExposedHeaders []string

	// MaxAge is the preflight cache duration in seconds.
	MaxAge int
}

// DefaultExposedHeaders are exposed when CORSConfig.ExposedHeaders is empty.
var DefaultExposedHeaders = []string{
	constants.HeaderContentType,
	"Date",
	"Content-Length",
	constants.HeaderAuthorization,
	constants.HeaderRequestID,
	"X-Correlation-ID",
}

// DefaultCORSMaxAge is 20 days.
const DefaultCORSMaxAge = 1728000

// CORSMiddleware handles Cross-Origin Resource Sharing (CORS). Credentials,
// every method and every requested header are allowed for matching origins.
type CORSMiddleware struct {
	config  CORSConfig
	origins *regexp.Regexp
}

// NewCORSMiddleware compiles the origin patterns into one anchored expression.
// With no patterns no origin is allowed.
func NewCORSMiddleware(config CORSConfig) (*CORSMiddleware, error) {
	if len(config.ExposedHeaders) == 0 {
		config.ExposedHeaders = DefaultExposedHeaders
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultCORSMaxAge
	}

	m := &CORSMiddleware{config: config}
	if len(config.AllowedOriginsRegexps) > 0 {
		expr := "^(?:" + strings.Join(config.AllowedOriginsRegexps, "|") + ")$"
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed origin pattern: %w", err)
		}
		m.origins = re
	}
	return m, nil
}

// IsOriginAllowed reports whether origin matches an allowed pattern.
func (m *CORSMiddleware) IsOriginAllowed(origin string) bool {
	return m.origins != nil && origin != "" && m.origins.MatchString(origin)
}

// Handle adds CORS headers to HTTP responses and answers preflight requests.
func (m *CORSMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next(w, r)
			return
		}

		allowed := m.IsOriginAllowed(origin)
		w.Header().Add("Vary", "Origin")

		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
		if preflight {
			if !allowed {
				http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
				return
			}
			m.setOriginHeaders(w, origin)
			w.Header().Set("Access-Control-Allow-Methods", r.Header.Get("Access-Control-Request-Method"))
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				w.Header().Set("Access-Control-Allow-Headers", requested)
			}
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(m.config.MaxAge))
			w.WriteHeader(http.StatusOK)
			return
		}

		if allowed {
			m.setOriginHeaders(w, origin)
			w.Header().Set("Access-Control-Expose-Headers", strings.Join(m.config.ExposedHeaders, ", "))
		}
		next(w, r)
	}
}

func (m *CORSMiddleware) setOriginHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
}
