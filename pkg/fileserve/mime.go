package fileserve

import "strings"

var mimeTypes = map[string]string{
	"gif":  "image/gif",
	"htm":  "text/html",
	"html": "text/html",
	"js":   "text/javascript",
	"css":  "text/css",
	"jpg":  "image/jpeg",
	"svg":  "image/svg+xml",
	"png":  "image/png",
	"gz":   "application/gzip",
}

// DefaultMimeType is returned for unknown extensions.
const DefaultMimeType = "text/plain"

// MimeType maps a file extension without the dot to a MIME type. The lookup
// ignores case.
func MimeType(ext string) string {
	if t, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return DefaultMimeType
}
