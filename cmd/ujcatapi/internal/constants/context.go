package constants

// Context keys for storing and retrieving values from request contexts.
const (
	// ContextKeyRequestID is the context key for storing request IDs.
	// It is also the field name request IDs are logged under.
	// Used in: errors/errors.go, logging/logger.go
	ContextKeyRequestID = "request_id"
)

// Keys used in error-reporting events.
const (
	// EventContextLogEntry is the event context that carries the message
	// template and its interpolation parameters.
	// Used in: reporting/reporting.go
	EventContextLogEntry = "logentry"

	// EventLogEntryMessage holds the unformatted message template.
	EventLogEntryMessage = "message"

	// EventLogEntryParams holds the ordered interpolation parameters.
	EventLogEntryParams = "params"
)
