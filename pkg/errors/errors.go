package errors

import "fmt"

// ErrorType classifies the ways a crawl can fail
type ErrorType string

const (
	ErrorTypeCredentialsMissing   ErrorType = "credentials_missing"
	ErrorTypeCredentialsMalformed ErrorType = "credentials_malformed"
	ErrorTypeAuthChallenge        ErrorType = "auth_challenge"
	ErrorTypeNoContent            ErrorType = "no_content"
	ErrorTypeNavigation           ErrorType = "navigation"
	ErrorTypeUnknown              ErrorType = "unknown"
)

// Error represents a crawl error with type information
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a typed crawl error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed crawl error around an underlying cause
func Wrap(errorType ErrorType, message string, cause error) *Error {
	return &Error{Type: errorType, Message: message, Cause: cause}
}

// IsRetryable checks if an error type should be retried. Credential and
// challenge failures signal state that won't change on its own; only a
// navigation timeout is worth another attempt.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation:
		return true
	case ErrorTypeCredentialsMissing, ErrorTypeCredentialsMalformed,
		ErrorTypeAuthChallenge, ErrorTypeNoContent:
		return false
	default:
		return false
	}
}
