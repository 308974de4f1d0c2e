// Package fileserve provides conn.Handler implementations that answer a
// request with a file body: from a file system, from an in-memory table, from
// per-file callbacks or from an S3 bucket.
//
// Handlers decline by returning false with a 400 or 404 stock reply. Chain
// combines them with other handlers, such as a websocket.Upgrader:
//
//	files := fileserve.Virtual("")
//	files.Add("index.html", "text/html", page)
//	h := fileserve.Chain(upgrader, files)
package fileserve
