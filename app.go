package duplex

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/fileserve"
	"github.com/vango-dev/duplex/pkg/server"
	"github.com/vango-dev/duplex/pkg/websocket"
)

// App wires sessions and file sources to a server.
type App struct {
	config   Config
	logger   *slog.Logger
	upgrader *websocket.Upgrader

	mu    sync.Mutex
	files []conn.Handler

	serverOnce sync.Once
	server     *server.Server
}

// New creates an App.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		config:   cfg,
		logger:   logger,
		upgrader: websocket.NewUpgrader(websocket.WithUpgraderLogger(logger)),
	}
	if cfg.StaticDir != "" {
		a.files = append(a.files, fileserve.Static(cfg.StaticDir))
	}
	return a
}

func (a *App) sessionOptions() []websocket.SessionOption {
	return []websocket.SessionOption{
		websocket.WithConfig(a.config.Session),
		websocket.WithLogger(a.logger),
		websocket.WithMetrics(a.config.Metrics),
	}
}

// Session creates a session served at "/<name>" and registers it.
func (a *App) Session(name string, cb websocket.Callbacks) (*websocket.Session, error) {
	s := websocket.NewSession(name, cb, a.sessionOptions()...)
	if !a.upgrader.Register(name, s) {
		return nil, ErrDuplicateSession
	}
	return s, nil
}

// JSONSession creates a JSON session served at "/<name>" and registers it.
func (a *App) JSONSession(name string, cb websocket.JSONCallbacks) (*websocket.JSONSession, error) {
	js := websocket.NewJSONSession(name, cb, a.sessionOptions()...)
	if !a.upgrader.Register(name, js.Session) {
		return nil, ErrDuplicateSession
	}
	return js, nil
}

// Mount registers an existing session.
func (a *App) Mount(s *websocket.Session) error {
	if !a.upgrader.Register(s.Name(), s) {
		return ErrDuplicateSession
	}
	return nil
}

// Files appends file sources. They are tried in order after the upgrader.
func (a *App) Files(h ...conn.Handler) {
	a.mu.Lock()
	a.files = append(a.files, h...)
	a.mu.Unlock()
}

// Handler returns the request handler: the upgrader followed by the file
// sources added so far.
func (a *App) Handler() conn.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	handlers := make([]conn.Handler, 0, 1+len(a.files))
	handlers = append(handlers, a.upgrader)
	handlers = append(handlers, a.files...)
	return fileserve.Chain(handlers...)
}

// Upgrader returns the session registry.
func (a *App) Upgrader() *websocket.Upgrader {
	return a.upgrader
}

// Server returns the server, creating it on first use with the handler as it
// is at that moment.
func (a *App) Server() *server.Server {
	a.serverOnce.Do(func() {
		opts := []server.Option{
			server.WithLogger(a.logger),
			server.WithMetrics(a.config.Metrics),
			server.WithTracer(a.config.Tracer),
			server.WithSessionLister(a.upgrader),
		}
		if a.config.Gatherer != nil {
			opts = append(opts, server.WithGatherer(a.config.Gatherer))
		}
		a.server = server.New(a.config.Server, a.Handler(), opts...)
	})
	return a.server
}

// Run listens on the configured address until ctx is canceled or Shutdown is
// called, then waits for the shutdown to finish.
func (a *App) Run(ctx context.Context) error {
	srv := a.Server()
	err := srv.ListenAndServe(ctx)
	if errors.Is(err, server.ErrServerClosed) {
		if serr := srv.Shutdown(context.Background()); serr != nil {
			a.logger.Warn("shutdown incomplete", "error", serr)
		}
	}
	return err
}

// Shutdown stops the server. Sessions receive a 1001 close.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Server().Shutdown(ctx)
}
