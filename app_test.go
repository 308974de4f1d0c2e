package duplex

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/fileserve"
	"github.com/vango-dev/duplex/pkg/server"
	duplexws "github.com/vango-dev/duplex/pkg/websocket"
)

func quietApp(t *testing.T, cfg Config) *App {
	t.Helper()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Session.CloseTimeout == 0 {
		// Test clients do not answer close frames.
		cfg.Session.CloseTimeout = 100 * time.Millisecond
	}
	return New(cfg)
}

func TestApp_SessionRegistration(t *testing.T) {
	app := quietApp(t, Config{})

	if _, err := app.Session("chat", duplexws.Callbacks{}); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if _, err := app.Session("chat", duplexws.Callbacks{}); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("duplicate Session err = %v", err)
	}
	if _, err := app.JSONSession("chat", duplexws.JSONCallbacks{}); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("duplicate JSONSession err = %v", err)
	}
	if err := app.Mount(duplexws.NewSession("other", duplexws.Callbacks{})); err != nil {
		t.Errorf("Mount: %v", err)
	}

	infos := app.Upgrader().Sessions()
	if len(infos) != 2 || infos[0].Name != "chat" || infos[1].Name != "other" {
		t.Errorf("Sessions = %+v", infos)
	}
}

func TestApp_ServesSessionsAndFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.css"), []byte("body{}"), 0644); err != nil {
		t.Fatal(err)
	}

	app := quietApp(t, Config{StaticDir: dir})
	var echo *duplexws.Session
	echo, _ = app.Session("echo", duplexws.Callbacks{
		OnText: func(msg []byte, c *conn.Conn) { echo.SendTextTo(c, msg) },
	})

	virtual := fileserve.Virtual("")
	virtual.Add("v.txt", "text/plain", []byte("virtual"))
	app.Files(virtual)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := app.Server()
	if app.Server() != srv {
		t.Fatal("Server() not stable")
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background(), ln) }()
	addr := ln.Addr().String()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/echo", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	ws.WriteMessage(websocket.TextMessage, []byte("x"))
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, msg, err := ws.ReadMessage(); err != nil || string(msg) != "x" {
		t.Fatalf("echo = %q, %v", msg, err)
	}

	tests := []struct {
		path   string
		status int
		body   string
		mime   string
	}{
		{"/a.css", http.StatusOK, "body{}", "text/css"},
		{"/v.txt", http.StatusOK, "virtual", "text/plain"},
		{"/none", http.StatusNotFound, "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := http.Get("http://" + addr + tc.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			if tc.body != "" && string(body) != tc.body {
				t.Errorf("body = %q", body)
			}
			if tc.mime != "" && resp.Header.Get("Content-Type") != tc.mime {
				t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
			}
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-served; !errors.Is(err, server.ErrServerClosed) {
		t.Errorf("Serve = %v", err)
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := server.DefaultConfig().WithAddress("127.0.0.1:0")
	app := quietApp(t, Config{Server: cfg})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for app.Server().Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, server.ErrServerClosed) {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
}
