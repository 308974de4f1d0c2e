package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/duplex"
	"github.com/vango-dev/duplex/internal/config"
	"github.com/vango-dev/duplex/internal/errors"
	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/fileserve"
	"github.com/vango-dev/duplex/pkg/metrics"
	"github.com/vango-dev/duplex/pkg/server"
	"github.com/vango-dev/duplex/pkg/tracing"
	"github.com/vango-dev/duplex/pkg/websocket"
)

// serveFlags are the command line overrides shared by serve and check.
type serveFlags struct {
	configPath string
	address    string
	admin      string
	static     string
	workers    int
	logLevel   string
	sessions   []string
}

func (f *serveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to duplex.json (default ./duplex.json if present)")
	cmd.Flags().StringVarP(&f.address, "address", "a", "", "Listen address")
	cmd.Flags().StringVar(&f.admin, "admin", "", "Admin endpoint address (metrics, health, sessions)")
	cmd.Flags().StringVar(&f.static, "static", "", "Serve files from this directory")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Worker goroutines (default one per CPU)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringSliceVarP(&f.sessions, "session", "s", nil, "Session to register as name[:mode] (repeatable)")
}

func serveCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the server.

Requests whose path names a registered session are upgraded to WebSocket;
everything else is served from the static directory or the S3 bucket.

Examples:
  duplex serve
  duplex serve --session chat:broadcast --session echo --static ./public
  duplex serve --config deploy/duplex.json --admin 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	flags.register(cmd)
	return cmd
}

// loadConfig reads the configuration file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, f *serveFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load(".")
		var de *errors.Error
		if stderrors.As(err, &de) && de.Code == "D100" {
			cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	fl := cmd.Flags()
	if fl.Changed("address") {
		cfg.Address = f.address
	}
	if fl.Changed("admin") {
		cfg.AdminAddress = f.admin
	}
	if fl.Changed("static") {
		cfg.Static.Dir = f.static
	}
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fl.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	for _, s := range f.sessions {
		name, mode, _ := strings.Cut(s, ":")
		if mode == "" {
			mode = config.ModeEcho
		}
		cfg.WebSocket.Sessions = append(cfg.WebSocket.Sessions, config.SessionEntry{Name: name, Mode: mode})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, duplex.Config{
		Logger:   logger,
		Metrics:  metrics.New(reg),
		Tracer:   tracing.New(),
		Gatherer: reg,
	})
	if err != nil {
		return err
	}

	printBanner()
	info("version  %s", version)
	info("address  %s", cfg.Address)
	if cfg.AdminAddress != "" {
		info("admin    %s", cfg.AdminAddress)
	}
	for _, s := range cfg.WebSocket.Sessions {
		info("session  /%s (%s)", s.Name, s.Mode)
	}
	fmt.Println()

	err = app.Run(ctx)
	if stderrors.Is(err, server.ErrServerClosed) {
		success("stopped")
		return nil
	}
	return errors.New("D120").WithDetail(cfg.Address).Wrap(err)
}

// newLogger builds the process logger from the log settings.
func newLogger(lc config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// buildApp mounts the configured sessions and file sources. Requests try the
// upgrader first, then the static directory, then S3. base supplies the
// logger and instrumentation.
func buildApp(ctx context.Context, cfg *config.Config, base duplex.Config) (*duplex.App, error) {
	if cfg.Static.Dir != "" {
		st, err := os.Stat(cfg.Static.Dir)
		if err != nil || !st.IsDir() {
			return nil, errors.New("D140").
				WithDetail(cfg.Static.Dir).
				WithSuggestion("Create the directory or change static.dir")
		}
	}

	base.Server = cfg.ServerConfig()
	base.Session = cfg.SessionConfig()
	base.StaticDir = cfg.Static.Dir
	if base.Logger == nil {
		base.Logger = slog.Default()
	}
	app := duplex.New(base)

	for _, entry := range cfg.WebSocket.Sessions {
		if err := addSession(app, entry, base.Logger); err != nil {
			return nil, errors.New("D104").WithDetail(entry.Name).Wrap(err)
		}
	}

	if cfg.S3.Bucket != "" {
		client, err := newS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		sh := fileserve.S3(client, cfg.S3.Bucket, cfg.S3.Prefix)
		if cfg.S3.MaxObjectSize > 0 {
			sh = sh.WithMaxSize(cfg.S3.MaxObjectSize)
		}
		app.Files(sh)
	}
	return app, nil
}

// addSession registers the session for entry.
//
//	echo       every message goes back to its sender
//	broadcast  every message goes to every connection of the session
//	json       text must be JSON; documents are echoed re-encoded
func addSession(app *duplex.App, entry config.SessionEntry, logger *slog.Logger) error {
	onOpen := func(c *conn.Conn) {
		logger.Debug("session open", "session", entry.Name, "conn_id", c.ID(), "remote_addr", c.RemoteAddr().String())
	}
	onClose := func(c *conn.Conn, info websocket.CloseInfo) {
		logger.Debug("session close", "session", entry.Name, "conn_id", c.ID(), "code", info.Code, "remote", info.Remote)
	}

	var err error
	switch entry.Mode {
	case config.ModeBroadcast:
		var s *websocket.Session
		s, err = app.Session(entry.Name, websocket.Callbacks{
			OnOpen:   onOpen,
			OnText:   func(msg []byte, c *conn.Conn) { s.SendText(msg) },
			OnBinary: func(msg []byte, c *conn.Conn) { s.SendBinary(msg) },
			OnClose:  onClose,
		})

	case config.ModeJSON:
		var js *websocket.JSONSession
		js, err = app.JSONSession(entry.Name, websocket.JSONCallbacks{
			OnOpen: onOpen,
			OnJSON: func(v any, c *conn.Conn) {
				if err := js.SendJSONTo(c, v); err != nil {
					logger.Debug("json reply failed", "session", entry.Name, "error", err)
				}
			},
			OnClose: onClose,
		})

	default:
		var s *websocket.Session
		s, err = app.Session(entry.Name, websocket.Callbacks{
			OnOpen: onOpen,
			OnText: func(msg []byte, c *conn.Conn) {
				if err := s.SendTextTo(c, msg); err != nil {
					logger.Debug("echo failed", "session", entry.Name, "error", err)
				}
			},
			OnBinary: func(msg []byte, c *conn.Conn) {
				if err := s.SendBinaryTo(c, msg); err != nil {
					logger.Debug("echo failed", "session", entry.Name, "error", err)
				}
			},
			OnClose: onClose,
		})
	}
	return err
}

// newS3Client builds a client from the default AWS credential chain.
func newS3Client(ctx context.Context, c config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New("D141").Wrap(err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
