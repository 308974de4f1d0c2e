package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/duplex/internal/errors"
	"github.com/vango-dev/duplex/pkg/server"
	"github.com/vango-dev/duplex/pkg/websocket"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "duplex.json"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultShutdownTimeout bounds a graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultCloseTimeout bounds the websocket closing handshake.
	DefaultCloseTimeout = 5 * time.Second
)

// Session modes.
const (
	ModeEcho      = "echo"
	ModeBroadcast = "broadcast"
	ModeJSON      = "json"
)

// Config represents the complete duplex.json configuration.
type Config struct {
	// Address is the service listen address.
	Address string `json:"address,omitempty"`

	// Workers is the size of the worker pool (0: one per CPU).
	Workers int `json:"workers,omitempty"`

	// MaxConnections caps concurrent connections (0: unlimited).
	MaxConnections int `json:"maxConnections,omitempty"`

	// MaxRequestBytes bounds the request head.
	MaxRequestBytes int `json:"maxRequestBytes,omitempty"`

	// ShutdownTimeout bounds a graceful shutdown, e.g. "30s".
	ShutdownTimeout Duration `json:"shutdownTimeout,omitempty"`

	// AdminAddress enables the admin endpoint.
	AdminAddress string `json:"adminAddress,omitempty"`

	Log       LogConfig       `json:"log,omitempty"`
	WebSocket WebSocketConfig `json:"websocket,omitempty"`
	Static    StaticConfig    `json:"static,omitempty"`
	S3        S3Config        `json:"s3,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// WebSocketConfig holds session settings.
type WebSocketConfig struct {
	// MaxFrameSize bounds inbound frame payloads. Negative disables the limit.
	MaxFrameSize int64 `json:"maxFrameSize,omitempty"`

	// CloseTimeout bounds the closing handshake, e.g. "5s".
	CloseTimeout Duration `json:"closeTimeout,omitempty"`

	// Sessions are registered at startup.
	Sessions []SessionEntry `json:"sessions,omitempty"`
}

// SessionEntry declares a session served at "/<name>".
type SessionEntry struct {
	Name string `json:"name"`

	// Mode is echo (default), broadcast or json.
	Mode string `json:"mode,omitempty"`
}

// StaticConfig enables serving files from a directory.
type StaticConfig struct {
	Dir string `json:"dir,omitempty"`
}

// S3Config enables serving files from an S3 bucket.
type S3Config struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`

	// Endpoint overrides the service endpoint, e.g. for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`

	// MaxObjectSize bounds the size of a served object in bytes.
	MaxObjectSize int64 `json:"maxObjectSize,omitempty"`
}

// Duration is a time.Duration written as a Go duration string in JSON.
type Duration time.Duration

// UnmarshalJSON accepts a duration string such as "5s".
func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '"' {
		return fmt.Errorf("duration must be a string such as \"5s\", got %s", data)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Address:         DefaultAddress,
		ShutdownTimeout: Duration(DefaultShutdownTimeout),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		WebSocket: WebSocketConfig{
			CloseTimeout: Duration(DefaultCloseTimeout),
		},
	}
}

// Load reads duplex.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path, applies defaults and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("D100").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Create one or run without --config to use the defaults")
		}
		return nil, errors.New("D101").Wrap(err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Parse decodes data, which was read from file, into a validated Config.
func Parse(file string, data []byte) (*Config, error) {
	cfg := New()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, decodeError(file, data, dec, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeError(file string, data []byte, dec *json.Decoder, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		return errors.New("D101").
			WithDetail(syntaxErr.Error()).
			WithSource(file, data, syntaxErr.Offset).
			WithSuggestion("Check " + filepath.Base(file) + " is valid JSON")
	case stderrors.As(err, &typeErr):
		return errors.New("D102").
			WithDetail(fmt.Sprintf("%s must be %s, not %s", typeErr.Field, typeErr.Type, typeErr.Value)).
			WithSource(file, data, typeErr.Offset)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return errors.New("D102").
			WithDetail(strings.TrimPrefix(err.Error(), "json: ")).
			WithSource(file, data, dec.InputOffset())
	default:
		// Errors returned by Duration.UnmarshalJSON.
		return errors.New("D103").
			Wrap(err).
			WithSource(file, data, dec.InputOffset())
	}
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.WebSocket.CloseTimeout == 0 {
		c.WebSocket.CloseTimeout = Duration(DefaultCloseTimeout)
	}
	for i := range c.WebSocket.Sessions {
		if c.WebSocket.Sessions[i].Mode == "" {
			c.WebSocket.Sessions[i].Mode = ModeEcho
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validateAddress("address", c.Address); err != nil {
		return err
	}
	if c.AdminAddress != "" {
		if err := validateAddress("adminAddress", c.AdminAddress); err != nil {
			return err
		}
	}
	if c.Workers < 0 || c.MaxConnections < 0 || c.MaxRequestBytes < 0 {
		return errors.New("D102").
			WithDetail("workers, maxConnections and maxRequestBytes must not be negative")
	}
	if c.ShutdownTimeout < 0 || c.WebSocket.CloseTimeout < 0 {
		return errors.New("D103").WithDetail("timeouts must not be negative")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("D102").
			WithDetail(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("D102").
			WithDetail(fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}

	seen := make(map[string]bool, len(c.WebSocket.Sessions))
	for _, s := range c.WebSocket.Sessions {
		if s.Name == "" || strings.ContainsAny(s.Name, "/? ") {
			return errors.New("D102").
				WithDetail(fmt.Sprintf("session name %q must be non-empty without '/', '?' or spaces", s.Name))
		}
		if seen[s.Name] {
			return errors.New("D104").WithDetail(fmt.Sprintf("session %q is declared twice", s.Name))
		}
		seen[s.Name] = true
		switch s.Mode {
		case ModeEcho, ModeBroadcast, ModeJSON:
		default:
			return errors.New("D102").
				WithDetail(fmt.Sprintf("session %q: mode %q is not echo, broadcast or json", s.Name, s.Mode))
		}
	}

	if c.S3.MaxObjectSize < 0 {
		return errors.New("D102").WithDetail("s3.maxObjectSize must not be negative")
	}
	if c.S3.Bucket == "" && (c.S3.Prefix != "" || c.S3.Endpoint != "") {
		return errors.New("D102").
			WithDetail("s3.prefix and s3.endpoint require s3.bucket")
	}
	return nil
}

func validateAddress(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return errors.New("D102").
			WithDetail(fmt.Sprintf("%s %q is not host:port", field, addr)).
			WithSuggestion(`Use a form like ":8080" or "127.0.0.1:8080"`)
	}
	return nil
}

// ServerConfig converts c into a server configuration.
func (c *Config) ServerConfig() *server.Config {
	cfg := server.DefaultConfig()
	cfg.Address = c.Address
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	cfg.MaxConnections = c.MaxConnections
	if c.MaxRequestBytes > 0 {
		cfg.MaxRequestBytes = c.MaxRequestBytes
	}
	cfg.ShutdownTimeout = time.Duration(c.ShutdownTimeout)
	cfg.AdminAddress = c.AdminAddress
	return cfg
}

// SessionConfig converts c into a websocket session configuration.
func (c *Config) SessionConfig() websocket.SessionConfig {
	cfg := websocket.DefaultSessionConfig()
	if c.WebSocket.MaxFrameSize != 0 {
		cfg.MaxFrameSize = c.WebSocket.MaxFrameSize
	}
	cfg.CloseTimeout = time.Duration(c.WebSocket.CloseTimeout)
	return cfg
}
