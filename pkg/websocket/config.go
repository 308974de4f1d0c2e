package websocket

import (
	"log/slog"
	"time"

	"github.com/vango-dev/duplex/pkg/metrics"
	"github.com/vango-dev/duplex/pkg/wsframe"
)

// SessionConfig holds the tunables of a Session.
type SessionConfig struct {
	// MaxFrameSize bounds the payload of an inbound frame.
	// Default: 16 MiB. A negative value disables the limit.
	MaxFrameSize int64

	// CloseTimeout is how long a connection may stay open after the session
	// sent its close frame.
	// Default: 5s
	CloseTimeout time.Duration
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxFrameSize: wsframe.DefaultMaxPayload,
		CloseTimeout: 5 * time.Second,
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithConfig replaces the session configuration. Zero fields keep their
// defaults.
func WithConfig(cfg SessionConfig) SessionOption {
	return func(s *Session) {
		if cfg.MaxFrameSize != 0 {
			s.config.MaxFrameSize = cfg.MaxFrameSize
		}
		if cfg.CloseTimeout > 0 {
			s.config.CloseTimeout = cfg.CloseTimeout
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}
