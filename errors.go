package osmloc

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when no location was recorded for an id.
	//
	// It is the expected outcome for ids outside the populated range and for
	// slots still holding the undefined sentinel; callers decide the fallback.
	ErrNotFound = errors.New("osmloc: id not found")

	// ErrUnsorted is returned when a sorted-sequence store (sparse, multimap)
	// is queried while still in its building state. Call Sort first.
	ErrUnsorted = errors.New("osmloc: store must be sorted before lookup")

	// ErrClosed is returned for operations on a store that has been closed.
	ErrClosed = errors.New("osmloc: store is closed")

	// ErrCapacity is returned by Set when an id or record count would
	// exceed the backend's addressable range.
	ErrCapacity = errors.New("osmloc: backend capacity exceeded")
)

// ConfigError indicates that a store spec string could not be turned into a
// store: unknown backend name, missing required parameter, or a malformed
// parameter value.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Spec   string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid store spec %q: %s", e.Spec, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.cause }

func configErr(spec, reason string, cause error) *ConfigError {
	return &ConfigError{Spec: spec, Reason: reason, cause: cause}
}
