package fileserve

import (
	"context"
	"sort"
	"sync"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/httpmsg"
)

type virtualFile struct {
	mimeType string
	content  []byte
}

// VirtualHandler serves files held in memory below a virtual directory.
type VirtualHandler struct {
	dir string

	mu    sync.RWMutex
	files map[string]virtualFile
}

// Virtual serves files under "/dir/". An empty dir serves from "/".
func Virtual(dir string) *VirtualHandler {
	return &VirtualHandler{dir: dir, files: make(map[string]virtualFile)}
}

// Add registers a file. It reports false if name already exists.
func (h *VirtualHandler) Add(name, mimeType string, content []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.files[name]; ok {
		return false
	}
	h.files[name] = virtualFile{mimeType: mimeType, content: content}
	return true
}

// Erase removes a file and reports whether it existed.
func (h *VirtualHandler) Erase(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.files[name]
	delete(h.files, name)
	return ok
}

// Clear removes every file.
func (h *VirtualHandler) Clear() {
	h.mu.Lock()
	h.files = make(map[string]virtualFile)
	h.mu.Unlock()
}

// Names lists the registered files in order.
func (h *VirtualHandler) Names() []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.files))
	for name := range h.files {
		out = append(out, name)
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Handle implements conn.Handler.
func (h *VirtualHandler) Handle(ctx context.Context, c *conn.Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool {
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

	setFile(rep, f.mimeType, f.content)
	return true
}
