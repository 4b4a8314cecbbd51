package domain

// ErrorType classifies why a message landed in a quarantine lane.
type ErrorType string

const (
	// ErrorTypeValidation covers schema and domain failures: the
	// input itself is bad, and replaying it reproduces the failure.
	ErrorTypeValidation ErrorType = "VALIDATION"
	// ErrorTypeProcessing covers unexpected faults (store down, bug):
	// the input may be fine and a replay can succeed.
	ErrorTypeProcessing ErrorType = "PROCESSING"
)

// InvalidEvent is the typed envelope written to the invalid and dlq
// topics, so downstream auditors can parse quarantined messages.
type InvalidEvent struct {
	Error     string    `json:"error"`
	Raw       string    `json:"raw"`
	ErrorType ErrorType `json:"error_type"`
}

// NewInvalidEvent wraps a rejected raw payload. An empty errorType
// defaults to VALIDATION.
func NewInvalidEvent(cause string, raw string, errorType ErrorType) InvalidEvent {
	if errorType == "" {
		errorType = ErrorTypeValidation
	}
	return InvalidEvent{
		Error:     cause,
		Raw:       raw,
		ErrorType: errorType,
	}
}
