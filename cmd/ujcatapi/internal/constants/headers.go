// Package constants provides centralized constant definitions for ujcatapi.
// Values that are reused across packages are defined here so that every
// component agrees on them.
package constants

// HTTP header names used throughout the application.
const (
	// HeaderRequestID is the HTTP header used for request tracking and correlation.
	// Used in: errors/errors.go, logging/logger.go
	HeaderRequestID = "X-Request-ID"

	// HeaderAuthorization is the standard HTTP Authorization header.
	HeaderAuthorization = "Authorization"

	// HeaderContentType is the standard HTTP Content-Type header.
	HeaderContentType = "Content-Type"

	// HeaderLocation is used by redirects.
	HeaderLocation = "Location"
)

// MIME types used in HTTP responses.
const (
	// MIMEApplicationJSON is the content type of every JSON response. The
	// charset is spelled out for clients that do not default to UTF-8.
	MIMEApplicationJSON = "application/json; charset=utf-8"

	// MIMETextPlain is the MIME type for plain text responses.
	MIMETextPlain = "text/plain; charset=utf-8"
)
