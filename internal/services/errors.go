package services

import (
	"errors"
	"fmt"
)

// ProviderError describes a failed provider call: transport failure,
// non-2xx status, undecodable body or empty audio.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when the request never got a response
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a later attempt could succeed. Nothing retries
// automatically; callers use it to decide what to tell the user.
func (e *ProviderError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func newProviderError(provider string, status int, message string, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    message,
		Cause:      cause,
	}
}

// IsProviderError reports whether err wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
