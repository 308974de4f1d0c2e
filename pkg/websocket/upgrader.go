package websocket

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/httpmsg"
	"github.com/vango-dev/duplex/pkg/wsframe"
)

// acceptGUID is appended to the client key before hashing (RFC 6455 4.2.2).
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// SessionInfo is a summary of a registered session.
type SessionInfo struct {
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}

// Upgrader validates upgrade requests and routes them to registered sessions
// by path. It implements conn.Handler and conn.Shutdowner.
type Upgrader struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// UpgraderOption configures an Upgrader.
type UpgraderOption func(*Upgrader)

// WithUpgraderLogger sets the upgrader logger.
func WithUpgraderLogger(logger *slog.Logger) UpgraderOption {
	return func(u *Upgrader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUpgrader returns an upgrader without sessions.
func NewUpgrader(opts ...UpgraderOption) *Upgrader {
	u := &Upgrader{
		logger:   slog.Default(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.With("component", "upgrader")
	return u
}

// Register makes s reachable under /name. It reports false if the name is
// taken.
func (u *Upgrader) Register(name string, s *Session) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.sessions[name]; ok {
		return false
	}
	u.sessions[name] = s
	return true
}

// Unregister shuts the session down with 1001 and removes it. It reports false
// if no session has that name.
func (u *Upgrader) Unregister(name string) bool {
	u.mu.Lock()
	s, ok := u.sessions[name]
	delete(u.sessions, name)
	u.mu.Unlock()
	if !ok {
		return false
	}
	s.Shutdown(wsframe.CloseGoingAway, "Websocket shutdown")
	return true
}

// Lookup returns the session registered under name.
func (u *Upgrader) Lookup(name string) (*Session, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	s, ok := u.sessions[name]
	return s, ok
}

// Sessions lists the registered sessions ordered by name.
func (u *Upgrader) Sessions() []SessionInfo {
	u.mu.RLock()
	out := make([]SessionInfo, 0, len(u.sessions))
	for name, s := range u.sessions {
		out = append(out, SessionInfo{Name: name, Connections: s.Len()})
	}
	u.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Handle implements conn.Handler. It accepts a GET-style upgrade for a
// registered session name and replies 101; a session that has shut down gets
// 503.
//
// Header names are matched case-sensitively, so a client must send
// "Connection", "Upgrade", "Sec-WebSocket-Version" and "Sec-WebSocket-Key"
// exactly as written here; lowercase names are rejected with 400.
func (u *Upgrader) Handle(ctx context.Context, c *conn.Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool {
	if req.URI == "" || req.URI[0] != '/' {
		*rep = httpmsg.StockReply(httpmsg.StatusBadRequest)
		return false
	}

	connection, ok := req.Header.Lookup("Connection")
	if !ok || !hasToken(connection, "Upgrade") {
		*rep = httpmsg.StockReply(httpmsg.StatusBadRequest)
		return false
	}

	upgrade, ok := req.Header.Lookup("Upgrade")
	if !ok || upgrade != "websocket" {
		*rep = httpmsg.StockReply(httpmsg.StatusBadRequest)
		return false
	}

	if v, ok := req.Header.Lookup("Sec-WebSocket-Version"); !ok || v != "13" {
		*rep = httpmsg.StockReply(httpmsg.StatusBadRequest)
		rep.Header.Add("Sec-WebSocket-Version", "13")
		return false
	}

	key, ok := req.Header.Lookup("Sec-WebSocket-Key")
	if !ok {
		*rep = httpmsg.StockReply(httpmsg.StatusBadRequest)
		return false
	}

	name := req.URI[1:]
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}

	s, ok := u.Lookup(name)
	if !ok {
		u.logger.Debug("no session", "name", name)
		*rep = httpmsg.StockReply(httpmsg.StatusNotFound)
		return false
	}

	if err := s.AddConnection(c); err != nil {
		u.logger.Debug("upgrade refused", "name", name, "error", err)
		*rep = httpmsg.StockReply(httpmsg.StatusServiceUnavailable)
		return false
	}

	*rep = httpmsg.StockReply(httpmsg.StatusSwitchingProtocols)
	rep.Header.Add("Connection", "Upgrade")
	rep.Header.Add("Upgrade", upgrade)
	rep.Header.Add("Sec-WebSocket-Accept", AcceptKey(key))
	return true
}

// Shutdown implements conn.Shutdowner. Every registered session is shut down
// with 1001.
func (u *Upgrader) Shutdown() {
	u.mu.RLock()
	sessions := make([]*Session, 0, len(u.sessions))
	for _, s := range u.sessions {
		sessions = append(sessions, s)
	}
	u.mu.RUnlock()

	for _, s := range sessions {
		s.Shutdown(wsframe.CloseGoingAway, "Server shutdown")
	}
}

func hasToken(list, token string) bool {
	for _, t := range strings.Split(list, ",") {
		if strings.TrimSpace(t) == token {
			return true
		}
	}
	return false
}
