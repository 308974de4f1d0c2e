package fileserve

import (
	"strings"

	"github.com/vango-dev/duplex/pkg/httpmsg"
)

// checkURI requires an absolute path without "/..". On failure rep holds a
// 400 reply.
func checkURI(req *httpmsg.Request, rep *httpmsg.Reply) bool {
	if req.URI == "" || req.URI[0] != '/' || strings.Contains(req.URI, "/..") {
		*rep = httpmsg.StockReply(httpmsg.StatusBadRequest)
		return false
	}
	return true
}

// requestPath returns the URI without its query.
func requestPath(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}

// extension returns the text after the last dot of the final path element.
func extension(name string) string {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 || dot < slash {
		return ""
	}
	return name[dot+1:]
}

// relName strips the "/dir/" prefix from path. An empty dir serves from the
// root.
func relName(dir, path string) (string, bool) {
	prefix := "/"
	if dir != "" {
		prefix = "/" + dir + "/"
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return path[len(prefix):], true
}

func setFile(rep *httpmsg.Reply, mimeType string, body []byte) {
	rep.Status = httpmsg.StatusOK
	rep.SetContent(mimeType, body)
}
