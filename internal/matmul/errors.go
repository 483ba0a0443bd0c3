package matmul

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports dimensions or a tile size that do not fit the
	// partition. Nothing is scheduled and the result is left untouched.
	ErrConfiguration = errors.New("configuration error")

	// ErrResourceExhausted reports a tile that needs more lanes or scratch
	// memory than the device offers.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// ConfigError names the violated constraint.
type ConfigError struct {
	Constraint string
	Detail     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Constraint, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// ResourceError names the exhausted device resource.
type ResourceError struct {
	Resource  string
	Requested int
	Available int
	Device    string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource exhausted: %s: requested %d, %s offers %d", e.Resource, e.Requested, e.Device, e.Available)
}

func (e *ResourceError) Unwrap() error {
	return ErrResourceExhausted
}

func configErrorf(constraint, format string, args ...any) error {
	return &ConfigError{Constraint: constraint, Detail: fmt.Sprintf(format, args...)}
}
