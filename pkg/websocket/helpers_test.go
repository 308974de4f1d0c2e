package websocket

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/wsframe"
)

const sampleKey = "dGhlIHNhbXBsZSBub25jZQ=="

var clientKey = [4]byte{0x37, 0xfa, 0x21, 0x3d}

// startServer accepts connections on a loopback listener and runs every
// first request through h.
func startServer(t *testing.T, h conn.Handler) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	pool := conn.NewPool(4, nil)
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			conn.New(nc, pool).Start(h)
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		pool.Close()
	})
	return ln.Addr().String()
}

type rawClient struct {
	t  *testing.T
	nc net.Conn
	br *bufio.Reader
}

func handshake(addr, path string) string {
	return "GET " + path + " HTTP/1.1\r\n" +
		"Host: " + addr + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: keep-alive, Upgrade\r\n" +
		"Sec-WebSocket-Key: " + sampleKey + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
}

// dialRaw writes the opening handshake followed by extra in a single write
// and returns the client with the status line read.
func dialRaw(t *testing.T, addr, path string, extra []byte) (*rawClient, string) {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = nc.Close() })

	out := append([]byte(handshake(addr, path)), extra...)
	if _, err := nc.Write(out); err != nil {
		t.Fatalf("write handshake: %v", err)
	}

	rc := &rawClient{t: t, nc: nc, br: bufio.NewReader(nc)}
	_ = nc.SetReadDeadline(time.Now().Add(5 * time.Second))
	status, err := rc.br.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	return rc, status
}

// rawUpgrade performs the opening handshake by hand and checks the 101 reply.
func rawUpgrade(t *testing.T, addr, path string) *rawClient {
	t.Helper()
	return rawUpgradeWith(t, addr, path, nil)
}

// rawUpgradeWith is rawUpgrade with extra bytes sent right behind the
// request head.
func rawUpgradeWith(t *testing.T, addr, path string, extra []byte) *rawClient {
	t.Helper()
	rc, status := dialRaw(t, addr, path, extra)
	if status != "HTTP/1.1 101 Switching Protocols\r\n" {
		t.Fatalf("status line = %q", status)
	}
	accept := ""
	for {
		line, err := rc.br.ReadString('\n')
		if err != nil {
			t.Fatalf("read header: %v", err)
		}
		if line == "\r\n" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Sec-WebSocket-Accept: "); ok {
			accept = strings.TrimSpace(v)
		}
	}
	if accept != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("Sec-WebSocket-Accept = %q", accept)
	}
	return rc
}

func (rc *rawClient) send(fin bool, op wsframe.Opcode, payload []byte) {
	rc.t.Helper()
	if _, err := rc.nc.Write(wsframe.AppendMasked(nil, fin, op, payload, clientKey)); err != nil {
		rc.t.Fatalf("write frame: %v", err)
	}
}

func (rc *rawClient) sendRaw(b []byte) {
	rc.t.Helper()
	if _, err := rc.nc.Write(b); err != nil {
		rc.t.Fatalf("write: %v", err)
	}
}

// readFrame reads one unmasked server frame.
func (rc *rawClient) readFrame() wsframe.Frame {
	rc.t.Helper()
	_ = rc.nc.SetReadDeadline(time.Now().Add(5 * time.Second))

	var h [2]byte
	if _, err := io.ReadFull(rc.br, h[:]); err != nil {
		rc.t.Fatalf("read frame header: %v", err)
	}
	if h[1]&0x80 != 0 {
		rc.t.Fatal("server frame is masked")
	}
	n := uint64(h[1] & 0x7f)
	switch n {
	case 126:
		var ext [2]byte
		_, _ = io.ReadFull(rc.br, ext[:])
		n = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		_, _ = io.ReadFull(rc.br, ext[:])
		n = binary.BigEndian.Uint64(ext[:])
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(rc.br, payload); err != nil {
		rc.t.Fatalf("read payload: %v", err)
	}
	return wsframe.Frame{Fin: h[0]&0x80 != 0, Opcode: wsframe.Opcode(h[0] & 0x0f), Payload: payload}
}

// expectClose reads a close frame and returns its status and reason.
func (rc *rawClient) expectClose() (uint16, string) {
	rc.t.Helper()
	f := rc.readFrame()
	if f.Opcode != wsframe.OpClose {
		rc.t.Fatalf("opcode = %v, want Close", f.Opcode)
	}
	return wsframe.ParseClose(f.Payload)
}

func wsURL(addr, path string) string {
	return "ws://" + addr + path
}

func dialWS(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	c, _, err := gorilla.DefaultDialer.Dial(url, http.Header{})
	if err != nil {
		t.Fatalf("Dial(%q) failed: %v", url, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	var zero T
	return zero
}
