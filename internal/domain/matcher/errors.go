package matcher

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a dictionary pattern that was skipped at build
	// time. Never fatal: the rest of the dictionary still compiles.
	ErrConfiguration = errors.New("invalid dictionary pattern")

	// ErrNotInitialized is reported by Ready before the first successful
	// build. Search itself degrades to an empty result instead.
	ErrNotInitialized = errors.New("matcher not initialized")

	// ErrRebuildFailed wraps provider failures during Rebuild. The previous
	// snapshot stays active.
	ErrRebuildFailed = errors.New("matcher rebuild failed")
)

// ConfigurationError describes one skipped pattern.
type ConfigurationError struct {
	TopicID int64
	Pattern string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("topic %d: pattern %q skipped: %s", e.TopicID, e.Pattern, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
