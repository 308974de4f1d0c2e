package fileserve

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/httpmsg"
)

// StaticHandler serves files from a file system.
type StaticHandler struct {
	fsys fs.FS
}

// Static serves the directory root.
func Static(root string) *StaticHandler {
	return FS(os.DirFS(root))
}

// FS serves fsys.
func FS(fsys fs.FS) *StaticHandler {
	return &StaticHandler{fsys: fsys}
}

// Handle implements conn.Handler. A path ending in "/" serves index.html.
func (h *StaticHandler) Handle(ctx context.Context, c *conn.Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool {
	if !checkURI(req, rep) {
		return false
	}

	name := requestPath(req.URI)
	if strings.HasSuffix(name, "/") {
		name += "index.html"
	}

	body, err := fs.ReadFile(h.fsys, strings.TrimPrefix(name, "/"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && c != nil {
			c.Logger().Debug("read file", "name", name, "error", err)
		}
		*rep = httpmsg.StockReply(httpmsg.StatusNotFound)
		return false
	}

	setFile(rep, MimeType(extension(name)), body)
	return true
}
