package conn

import (
	"context"

	"github.com/vango-dev/duplex/pkg/httpmsg"
)

// Handler produces the reply for the first request of a connection.
//
// Handle fills rep and reports whether it handled the request. The connection
// writes rep regardless; a handler that declines without setting a status gets
// a 404 stock reply. Handle runs on the connection's strand and must not block
// on reads from c.
type Handler interface {
	Handle(ctx context.Context, c *Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool
}

// Shutdowner is implemented by handlers that hold state beyond a single
// request. The server calls Shutdown once when it stops.
type Shutdowner interface {
	Shutdown()
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, c *Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, c *Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool {
	return f(ctx, c, req, rep)
}

// WithShutdown pairs a handler function with a shutdown function.
func WithShutdown(h HandlerFunc, shutdown func()) Handler {
	return &funcHandler{handle: h, shutdown: shutdown}
}

type funcHandler struct {
	handle   HandlerFunc
	shutdown func()
}

func (h *funcHandler) Handle(ctx context.Context, c *Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool {
	return h.handle(ctx, c, req, rep)
}

func (h *funcHandler) Shutdown() {
	if h.shutdown != nil {
		h.shutdown()
	}
}
