// Package duplex is the entry point for embedding a duplex server.
//
// An App bundles a websocket upgrader, an ordered list of file sources and
// the server that runs them:
//
//	app := duplex.New(duplex.Config{StaticDir: "public"})
//
//	var chat *websocket.Session
//	chat, _ = app.Session("chat", websocket.Callbacks{
//	    OnText: func(msg []byte, c *conn.Conn) { chat.SendText(msg) },
//	})
//
//	if err := app.Run(ctx); err != nil && !errors.Is(err, server.ErrServerClosed) {
//	    log.Fatal(err)
//	}
//
// Requests whose path names a session are upgraded; the rest go to the file
// sources in the order they were added.
package duplex

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/duplex/pkg/metrics"
	"github.com/vango-dev/duplex/pkg/server"
	"github.com/vango-dev/duplex/pkg/tracing"
	"github.com/vango-dev/duplex/pkg/websocket"
)

// ErrDuplicateSession is returned when a session name is already registered.
var ErrDuplicateSession = errors.New("duplex: session already registered")

// Config configures an App. The zero value serves on :8080 with default
// session settings and no file sources.
type Config struct {
	// Server configures the listener. Nil uses server.DefaultConfig.
	Server *server.Config

	// Session applies to every session created through the App.
	Session websocket.SessionConfig

	// StaticDir, when set, is the first file source.
	StaticDir string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// Gatherer backs the admin /metrics route.
	Gatherer prometheus.Gatherer
}
