package fileserve

import (
	"context"
	"sync"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/httpmsg"
)

// ContentFunc produces the body of a callback file.
type ContentFunc func(req *httpmsg.Request) []byte

type callbackFile struct {
	mimeType string
	content  ContentFunc
}

// CallbackHandler serves files whose content is computed per request.
type CallbackHandler struct {
	dir string

	mu    sync.RWMutex
	files map[string]callbackFile
}

// Callback serves files under "/dir/". An empty dir serves from "/".
func Callback(dir string) *CallbackHandler {
	return &CallbackHandler{dir: dir, files: make(map[string]callbackFile)}
}

// Add registers a file. It reports false if name already exists.
func (h *CallbackHandler) Add(name, mimeType string, fn ContentFunc) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.files[name]; ok {
		return false
	}
	h.files[name] = callbackFile{mimeType: mimeType, content: fn}
	return true
}

// Erase removes a file and reports whether it existed.
func (h *CallbackHandler) Erase(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.files[name]
	delete(h.files, name)
	return ok
}

// Clear removes every file.
func (h *CallbackHandler) Clear() {
	h.mu.Lock()
	h.files = make(map[string]callbackFile)
	h.mu.Unlock()
}

// Handle implements conn.Handler. The callback runs outside the registry lock.
func (h *CallbackHandler) Handle(ctx context.Context, c *conn.Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool {
	if !checkURI(req, rep) {
		return false
	}
	name, ok := relName(h.dir, requestPath(req.URI))
	if !ok {
		*rep = httpmsg.StockReply(httpmsg.StatusBadRequest)
		return false
	}

	h.mu.RLock()
	f, ok := h.files[name]
	h.mu.RUnlock()
	if !ok {
		*rep = httpmsg.StockReply(httpmsg.StatusNotFound)
		return false
	}

	setFile(rep, f.mimeType, f.content(req))
	return true
}
