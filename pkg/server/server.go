package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/netutil"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/metrics"
	"github.com/vango-dev/duplex/pkg/tracing"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the collector passed to every connection.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracer sets the tracer passed to every connection.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithGatherer sets the source served on the admin /metrics route.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithSessionLister sets the source of the admin /sessions route.
func WithSessionLister(l SessionLister) Option {
	return func(s *Server) {
		s.sessions = l
	}
}

// Server accepts connections and hands them to a handler.
type Server struct {
	config  *Config
	handler conn.Handler
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer

	gatherer prometheus.Gatherer
	sessions SessionLister

	pool *conn.Pool

	mu       sync.Mutex
	listener net.Listener
	admin    *http.Server
	conns    map[*conn.Conn]struct{}
	serving  bool
	closed   bool
	wg       sync.WaitGroup
	done     chan struct{}
	stopped  chan struct{}
}

// New creates a server that runs h for every connection. A nil config uses
// DefaultConfig.
func New(config *Config, h conn.Handler, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.Clone()
	}
	config.applyDefaults()

	s := &Server{
		config:   config,
		handler:  h,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
		conns:    make(map[*conn.Conn]struct{}),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	s.pool = conn.NewPool(config.Workers, s.logger)
	return s
}

// Config returns a copy of the effective configuration.
func (s *Server) Config() *Config {
	return s.config.Clone()
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on Config.Address and serves until Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.config.ValidateConfig(); err != nil {
		return err
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until Shutdown is called or ctx is
// canceled. It always returns a non-nil error; after Shutdown the error is
// ErrServerClosed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	case s.serving:
		s.mu.Unlock()
		return ErrAlreadyServing
	}
	s.serving = true
	s.listener = ln
	s.mu.Unlock()

	if s.config.AdminAddress != "" {
		if err := s.startAdmin(); err != nil {
			ln.Close()
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown after context cancel", "error", err)
		}
	})
	defer stop()

	s.logger.Info("listening",
		"address", ln.Addr().String(),
		"workers", s.config.Workers,
		"max_connections", s.config.MaxConnections)

	var delay time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			s.logger.Warn("accept failed", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
				continue
			case <-s.done:
				return ErrServerClosed
			}
		}
		delay = 0
		s.serveConn(ctx, nc)
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	c := conn.New(nc, s.pool,
		conn.WithLogger(s.logger),
		conn.WithMetrics(s.metrics),
		conn.WithTracer(s.tracer),
		conn.WithMaxRequestBytes(s.config.MaxRequestBytes),
		conn.WithContext(context.WithoutCancel(ctx)),
	)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.Close()
		c.Release()
		return
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	context.AfterFunc(c.Context(), func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.wg.Done()
	})

	c.Start(s.handler)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting, asks the handler to shut down and waits for open
// connections. Connections still open when ctx or ShutdownTimeout expires are
// closed. Later calls wait for the first one to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		select {
		case <-s.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.closed = true
	close(s.done)
	ln := s.listener
	admin := s.admin
	s.mu.Unlock()

	s.logger.Info("shutting down", "connections", s.ActiveConnections())

	if ln != nil {
		ln.Close()
	}
	if sd, ok := s.handler.(conn.Shutdowner); ok {
		sd.Shutdown()
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		s.mu.Lock()
		remaining := make([]*conn.Conn, 0, len(s.conns))
		for c := range s.conns {
			remaining = append(remaining, c)
		}
		s.mu.Unlock()
		s.logger.Warn("closing connections after timeout", "connections", len(remaining))
		for _, c := range remaining {
			c.Close()
		}
		<-drained
	}

	if admin != nil {
		if err != nil {
			admin.Close()
		} else {
			err = admin.Shutdown(ctx)
		}
	}
	s.pool.Close()
	close(s.stopped)

	s.logger.Info("shutdown complete")
	return err
}
