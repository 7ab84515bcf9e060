package narrator

import (
	"errors"
	"fmt"

	"github.com/bobarin/readaloud/internal/models"
)

// Error categories. Every error returned by Service matches exactly one of
// these with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = models.ErrNotFound
	ErrProvider      = errors.New("provider error")
)

// ErrEmptyContent is a validation error for posts with nothing to read.
var ErrEmptyContent = fmt.Errorf("%w: post has no readable content", ErrValidation)

// ConfigError reports a missing provider credential with a remediation hint.
type ConfigError struct {
	Service models.Service
	Hint    string
	Cause   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s API key is not configured. %s", serviceLabel(e.Service), e.Hint)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func newConfigError(svc models.Service, cause error) *ConfigError {
	return &ConfigError{
		Service: svc,
		Hint:    "Add it under Settings > AI Audio > API Settings.",
		Cause:   cause,
	}
}

func serviceLabel(svc models.Service) string {
	switch svc {
	case models.ServiceGoogle:
		return "Google Cloud Text-to-Speech"
	case models.ServiceOpenAI:
		return "OpenAI"
	}
	return string(svc)
}

// providerError tags a synthesis failure as ErrProvider while keeping the
// underlying *services.ProviderError reachable through errors.As.
type providerError struct {
	err error
}

func (e *providerError) Error() string { return "failed to generate audio: " + e.err.Error() }
func (e *providerError) Is(target error) bool { return target == ErrProvider }
func (e *providerError) Unwrap() error        { return e.err }
