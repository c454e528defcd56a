package fusion

import (
	"fmt"

	"FinFuse/internal/domain/models"
)

// InvalidSignalError reports a signal rejected before any gate ran.
// Out-of-domain values are refused outright, never clamped.
type InvalidSignalError struct {
	Source models.SignalSource
	Field  string
	Reason string
}

func (e *InvalidSignalError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid signal: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s signal: %s %s", e.Source, e.Field, e.Reason)
}

// InsufficientSignalError reports a fuse call with no signals at all.
type InsufficientSignalError struct {
	Ticker string
}

func (e *InsufficientSignalError) Error() string {
	return fmt.Sprintf("no signals to fuse for %q", e.Ticker)
}

// ConfigurationError reports unusable gate thresholds. It is meant to stop
// startup, not to be retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("fusion config: %s %s", e.Field, e.Reason)
}
