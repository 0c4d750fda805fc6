package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors or bugs.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

const (
	// Transient
	ErrCodeTimeout           ErrorCode = "TIMEOUT"            // Operation timed out
	ErrCodeUnavailable       ErrorCode = "UNAVAILABLE"        // Store or feed unreachable
	ErrCodeFeedLost          ErrorCode = "FEED_LOST"          // Subscription ended unexpectedly
	ErrCodeControllerOffline ErrorCode = "CONTROLLER_OFFLINE" // Controller heartbeat is stale
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"       // Command throttled

	// Permanent
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"      // Key or sensor does not exist
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"  // Malformed payload or request
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG" // Configuration rejected
	ErrCodeCanceled      ErrorCode = "CANCELED"       // Operation was canceled
	ErrCodeCommandFailed ErrorCode = "COMMAND_FAILED" // Outbound command not acknowledged

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
	ErrCodePanic    ErrorCode = "PANIC"    // Recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeFeedLost, ErrCodeControllerOffline,
		ErrCodeRateLimited:
		return CategoryTransient
	case ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeInvalidConfig, ErrCodeCanceled,
		ErrCodeCommandFailed:
		return CategoryPermanent
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:           "operation timed out",
	ErrCodeUnavailable:       "store unavailable",
	ErrCodeFeedLost:          "feed subscription lost",
	ErrCodeControllerOffline: "controller is offline",
	ErrCodeRateLimited:       "too many commands",
	ErrCodeNotFound:          "not found",
	ErrCodeInvalidInput:      "invalid input",
	ErrCodeInvalidConfig:     "invalid configuration",
	ErrCodeCanceled:          "operation canceled",
	ErrCodeCommandFailed:     "command failed",
	ErrCodeInternal:          "internal error",
	ErrCodePanic:             "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
