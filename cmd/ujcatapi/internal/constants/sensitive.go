package constants

// SensitiveFields are the field names whose values are always replaced in full
// by HiddenFieldDisplayValue, in logs and in error-reporting events.
// Matching is exact and case-sensitive. The order is the order in which the
// field redactor runs its passes.
// Used in: sanitize/sanitizer.go
var SensitiveFields = []string{
	"access_token",
	"client_secret",
	"first_name",
	"id_token",
	"jwt",
	"last_name",
	"password",
	"password_reset_token",
	"refresh_token",
	"reset_password_url",
	"secret",
}

// HiddenFieldDisplayValue replaces every redacted value. It contains no
// sensitive field name and no email shape, so sanitizing it again is a no-op.
// Used in: sanitize/sanitizer.go, logging/logger.go
const HiddenFieldDisplayValue = "**** [hidden for privacy] ****"

// SensitiveHeaders are HTTP request headers (canonical form) whose values the
// request logger never prints.
// Used in: logging/logger.go
var SensitiveHeaders = []string{
	HeaderAuthorization,
	"Cookie",
	"X-Api-Key",
}
