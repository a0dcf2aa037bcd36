package adapters

import "fmt"

// ProviderError classifies external call failures so callers can decide
// between retrying, degrading, and surfacing.
type ProviderError struct {
	Type     string // "network", "rate_limit", "upstream", "decode", "rejected"
	Provider string
	Subject  string // location, market id, or instrument id
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error from %s for %s: %s: %v", e.Type, e.Provider, e.Subject, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error from %s for %s: %s", e.Type, e.Provider, e.Subject, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func NewNetworkError(provider, subject, message string, cause error) *ProviderError {
	return &ProviderError{Type: "network", Provider: provider, Subject: subject, Message: message, Cause: cause}
}

func NewRateLimitError(provider, subject, message string) *ProviderError {
	return &ProviderError{Type: "rate_limit", Provider: provider, Subject: subject, Message: message}
}

func NewUpstreamError(provider, subject, message string, cause error) *ProviderError {
	return &ProviderError{Type: "upstream", Provider: provider, Subject: subject, Message: message, Cause: cause}
}

func NewDecodeError(provider, subject, message string, cause error) *ProviderError {
	return &ProviderError{Type: "decode", Provider: provider, Subject: subject, Message: message, Cause: cause}
}

func NewRejectedError(provider, subject, message string) *ProviderError {
	return &ProviderError{Type: "rejected", Provider: provider, Subject: subject, Message: message}
}
