package fileserve

import (
	"context"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/httpmsg"
)

// ChainHandler tries handlers in order.
type ChainHandler []conn.Handler

// Chain returns a handler that stops at the first handler reporting true. When
// none does, the reply of the last one is sent.
func Chain(handlers ...conn.Handler) ChainHandler {
	return ChainHandler(handlers)
}

// Handle implements conn.Handler.
func (ch ChainHandler) Handle(ctx context.Context, c *conn.Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool {
	for _, h := range ch {
		*rep = httpmsg.Reply{}
		if h.Handle(ctx, c, req, rep) {
			return true
		}
	}
	return false
}

// Shutdown forwards to every handler implementing conn.Shutdowner.
func (ch ChainHandler) Shutdown() {
	for _, h := range ch {
		if sd, ok := h.(conn.Shutdowner); ok {
			sd.Shutdown()
		}
	}
}
