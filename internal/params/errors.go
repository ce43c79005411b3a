package params

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownParam is returned when a parameter path does not exist in the
	// defaults.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrInvalidParam is returned when a parameter value is malformed or
	// inconsistent with the rest of the tree.
	ErrInvalidParam = errors.New("invalid parameter")
)

// ConfigError locates a configuration problem in the parameter tree.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Path, e.Err, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func invalid(path, format string, args ...any) error {
	return &ConfigError{Path: path, Err: ErrInvalidParam, Reason: fmt.Sprintf(format, args...)}
}
