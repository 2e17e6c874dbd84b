package llm

import "fmt"

// ErrorType categorizes provider failures.
type ErrorType string

const (
	ErrTypeConfiguration  ErrorType = "configuration"
	ErrTypeAuthentication ErrorType = "authentication"
	ErrTypeNetwork        ErrorType = "network"
	ErrTypeProvider       ErrorType = "provider"
	ErrTypeRateLimit      ErrorType = "rate_limit"
	ErrTypeInternal       ErrorType = "internal"
)

// ProviderError is a backend failure with enough context to decide whether
// retrying makes sense.
type ProviderError struct {
	Type       ErrorType
	Provider   string
	Message    string
	StatusCode int
	Cause      error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func newProviderError(errType ErrorType, provider, message string) *ProviderError {
	return &ProviderError{Type: errType, Provider: provider, Message: message}
}

func wrapProviderError(errType ErrorType, provider, message string, cause error) *ProviderError {
	return &ProviderError{
		Type:      errType,
		Provider:  provider,
		Message:   message,
		Cause:     cause,
		Retryable: errType == ErrTypeNetwork || errType == ErrTypeRateLimit,
	}
}
