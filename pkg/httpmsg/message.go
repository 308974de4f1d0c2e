package httpmsg

import (
	"net"
	"strconv"
)

// Request is a request received from a client.
//
// The parser builds it incrementally; it must be treated as read-only once
// parsing has completed.
type Request struct {
	Method       string
	URI          string
	VersionMajor int
	VersionMinor int
	Header       Header
}

// Reply is a reply to be sent to a client.
type Reply struct {
	Status Status
	Header Header
	Body   []byte
}

var (
	nameValueSeparator = []byte(": ")
	crlf               = []byte("\r\n")
)

// Buffers renders the reply to wire segments: status line, every header line,
// the blank line and the body.
//
// The body is referenced, not copied. The reply must stay unchanged until the
// write of the returned buffers has completed.
func (r *Reply) Buffers() net.Buffers {
	bufs := make(net.Buffers, 0, 2+4*len(r.Header)+1)
	bufs = append(bufs, r.Status.statusLine())
	for _, f := range r.Header {
		bufs = append(bufs, []byte(f.Name), nameValueSeparator, []byte(f.Value), crlf)
	}
	bufs = append(bufs, crlf)
	if len(r.Body) > 0 {
		bufs = append(bufs, r.Body)
	}
	return bufs
}

// Bytes renders the reply into a single byte slice.
func (r *Reply) Bytes() []byte {
	var n int
	bufs := r.Buffers()
	for _, b := range bufs {
		n += len(b)
	}
	out := make([]byte, 0, n)
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out
}

// SetContent replaces the headers with Content-Length and Content-Type for body.
func (r *Reply) SetContent(mimeType string, body []byte) {
	r.Body = body
	r.Header = Header{
		{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		{Name: "Content-Type", Value: mimeType},
	}
}

// StockReply returns a canned reply for status.
//
// Every status except 100, 101 and 200 carries a small HTML page naming the
// status. Codes missing from the status table produce a 500 reply.
func StockReply(status Status) Reply {
	if !status.Known() {
		status = StatusInternalServerError
	}
	rep := Reply{Status: status}
	switch status {
	case StatusContinue, StatusSwitchingProtocols, StatusOK:
		return rep
	}
	text := status.String()
	rep.SetContent("text/html", []byte(
		"<!DOCTYPE html>"+
			"<html>"+
			"<head><title>"+text+"</title></head>"+
			"<body><h1>"+text+"</h1></body>"+
			"</html>"))
	return rep
}
