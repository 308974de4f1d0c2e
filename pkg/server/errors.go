package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server operations.
var (
	// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("server: closed")

	// ErrAlreadyServing is returned when Serve is called twice.
	ErrAlreadyServing = errors.New("server: already serving")

	// ErrInvalidConfig is wrapped by ConfigError.
	ErrInvalidConfig = errors.New("server: invalid config")
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

// Error returns the field and the reason it was rejected.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("server: config %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidConfig for errors.Is.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
