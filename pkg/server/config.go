package server

import (
	"runtime"
	"time"

	"github.com/vango-dev/duplex/pkg/conn"
)

// Config holds configuration for the server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// Workers is the number of goroutines running connection completions.
	// Default: runtime.NumCPU().
	Workers int

	// MaxConnections caps concurrently accepted connections.
	// 0 means no limit.
	MaxConnections int

	// MaxRequestBytes bounds the request head of a connection.
	// Default: 64KB.
	MaxRequestBytes int

	// ShutdownTimeout is the maximum time to wait for open connections
	// during Shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// AdminAddress enables the admin HTTP endpoint when set.
	// Default: "" (disabled).
	AdminAddress string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         ":8080",
		Workers:         runtime.NumCPU(),
		MaxConnections:  0, // No limit
		MaxRequestBytes: conn.DefaultMaxRequestBytes,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the listen address and returns the config for chaining.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// WithWorkers sets the worker count and returns the config for chaining.
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

// WithMaxConnections sets the connection cap and returns the config for chaining.
func (c *Config) WithMaxConnections(n int) *Config {
	c.MaxConnections = n
	return c
}

// WithAdminAddress enables the admin endpoint and returns the config for chaining.
func (c *Config) WithAdminAddress(addr string) *Config {
	c.AdminAddress = addr
	return c
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = defaults.MaxRequestBytes
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// ValidateConfig reports the first invalid field.
func (c *Config) ValidateConfig() error {
	if c.MaxConnections < 0 {
		return &ConfigError{Field: "MaxConnections", Reason: "must not be negative"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "Workers", Reason: "must not be negative"}
	}
	if c.MaxRequestBytes < 0 {
		return &ConfigError{Field: "MaxRequestBytes", Reason: "must not be negative"}
	}
	if c.AdminAddress != "" && c.AdminAddress == c.Address {
		return &ConfigError{Field: "AdminAddress", Reason: "must differ from Address"}
	}
	return nil
}
