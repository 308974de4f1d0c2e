package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/metrics"
	"github.com/vango-dev/duplex/pkg/wsframe"
)

// Callbacks are invoked by a Session. Any of them may be nil.
//
// OnText and OnBinary run on the strand of the sending connection, so calls
// for one connection never overlap while different connections may call
// concurrently.
type Callbacks struct {
	OnOpen   func(c *conn.Conn)
	OnText   func(msg []byte, c *conn.Conn)
	OnBinary func(msg []byte, c *conn.Conn)
	OnClose  func(c *conn.Conn, info CloseInfo)
}

// connState is the per-connection receive state.
type connState struct {
	conn      *conn.Conn
	parser    wsframe.Parser
	frame     wsframe.Frame // in progress across reads
	fragments [][]byte
	opcode    wsframe.Opcode // of the first fragment
}

// Session is a named group of WebSocket connections.
type Session struct {
	name    string
	cb      Callbacks
	config  SessionConfig
	logger  *slog.Logger
	metrics *metrics.Collector

	mu       sync.Mutex
	conns    map[*conn.Conn]*connState
	shutdown bool
}

// NewSession creates a session.
func NewSession(name string, cb Callbacks, opts ...SessionOption) *Session {
	s := &Session{
		name:   name,
		cb:     cb,
		config: DefaultSessionConfig(),
		logger: slog.Default(),
		conns:  make(map[*conn.Conn]*connState),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "websocket", "session", name)
	return s
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.name
}

// Len returns the number of attached connections.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Connections returns a snapshot of the attached connections.
func (s *Session) Connections() []*conn.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn.Conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// IsShutdown reports whether Shutdown has been called.
func (s *Session) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// AddConnection attaches c once the upgrade reply has been written. After
// Shutdown it returns ErrSessionShutdown and c is left alone.
func (s *Session) AddConnection(c *conn.Conn) error {
	if s.IsShutdown() {
		return ErrSessionShutdown
	}
	c.OnReady(func(c *conn.Conn, err error) {
		if err != nil {
			s.logger.Error("upgrade reply failed", "conn_id", c.ID(), "error", err)
			return
		}
		if err := s.attach(c); err != nil {
			s.logger.Debug("connection not attached", "conn_id", c.ID(), "error", err)
		}
	})
	return nil
}

func (s *Session) attach(c *conn.Conn) error {
	st := &connState{
		conn:   c,
		parser: wsframe.Parser{MaxPayload: s.config.MaxFrameSize},
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrSessionShutdown
	}
	s.conns[c] = st
	n := len(s.conns)
	s.mu.Unlock()

	c.Retain()
	s.metrics.SetSessionConnections(s.name, n)
	s.logger.Debug("connection added", "conn_id", c.ID(), "remote_addr", c.RemoteAddr().String())

	if s.cb.OnOpen != nil {
		s.cb.OnOpen(c)
	}
	s.read(st)
	return nil
}

func (s *Session) lookup(c *conn.Conn) (*connState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.conns[c]
	return st, ok
}

func (s *Session) read(st *connState) {
	st.conn.Read(func(c *conn.Conn, data []byte, err error) {
		if err != nil {
			var oe *conn.OpError
			if errors.As(err, &oe) {
				err = oe.Err
			}
			s.fail(c, wsframe.CloseProtocolError, "Read-Error: "+err.Error(), err)
			return
		}
		s.receive(st, data)
	})
}

// receive handles every complete frame in data and then reads again.
func (s *Session) receive(st *connState, data []byte) {
	if _, ok := s.lookup(st.conn); !ok {
		return
	}

	for len(data) > 0 {
		res, n := st.parser.Parse(&st.frame, data)
		data = data[n:]

		switch res {
		case wsframe.Reject:
			s.fail(st.conn, wsframe.CloseProtocolError, "Read-Error: Parsing-Error", nil)
			return
		case wsframe.Accept:
			f := st.frame
			st.frame = wsframe.Frame{}
			s.metrics.FrameReceived(f.Opcode.String())
			if !s.handleFrame(st, &f) {
				return
			}
		}
	}
	s.read(st)
}

// handleFrame reports whether the connection keeps reading.
func (s *Session) handleFrame(st *connState, f *wsframe.Frame) bool {
	c := st.conn

	if f.Opcode.IsControl() {
		if !f.Fin {
			s.fail(c, wsframe.CloseProtocolError, "Read-Error: Control-frames must not be fragmented.", nil)
			return false
		}
		if len(f.Payload) > wsframe.MaxControlPayload {
			s.fail(c, wsframe.CloseProtocolError, "Read-Error: Control-frame payload too large.", nil)
			return false
		}
	}

	switch f.Opcode {
	case wsframe.OpContinuation:
		if len(st.fragments) == 0 {
			s.fail(c, wsframe.CloseProtocolError, "Read-Error: Continuation-frame without initial-frame received.", nil)
			return false
		}
		st.fragments = append(st.fragments, f.Payload)

	case wsframe.OpText, wsframe.OpBinary:
		if len(st.fragments) > 0 {
			s.fail(c, wsframe.CloseProtocolError, "Read-Error: Data-frame while waiting for a continuation-frame.", nil)
			return false
		}
		st.opcode = f.Opcode
		st.fragments = append(st.fragments, f.Payload)

	case wsframe.OpClose:
		info := peerClose(f.Payload)
		reason := "Client request"
		if len(f.Payload) >= 2 {
			reason = fmt.Sprintf("Client request: %s (Code: %d)", info.Reason, info.Code)
		}
		s.closeWith(c, wsframe.CloseNormal, reason, info)
		return false

	case wsframe.OpPing:
		s.pong(c, f.Payload)
		return true

	case wsframe.OpPong:
		return true

	default:
		s.fail(c, wsframe.CloseUnsupportedData, "Read-Error: Unknown opcode '"+strconv.Itoa(int(f.Opcode))+"' received.", nil)
		return false
	}

	if !f.Fin {
		return true
	}

	msg := joinFragments(st.fragments)
	st.fragments = st.fragments[:0]

	switch st.opcode {
	case wsframe.OpText:
		s.metrics.MessageDispatched(s.name, "text")
		if s.cb.OnText != nil {
			s.cb.OnText(msg, c)
		}
	case wsframe.OpBinary:
		s.metrics.MessageDispatched(s.name, "binary")
		if s.cb.OnBinary != nil {
			s.cb.OnBinary(msg, c)
		}
	}

	// A callback may have closed the connection.
	_, ok := s.lookup(c)
	return ok
}

func joinFragments(parts [][]byte) []byte {
	if len(parts) == 1 {
		return parts[0]
	}
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	msg := make([]byte, 0, n)
	for _, p := range parts {
		msg = append(msg, p...)
	}
	return msg
}

func (s *Session) pong(c *conn.Conn, payload []byte) {
	frame, err := wsframe.Control(wsframe.OpPong, payload)
	if err != nil {
		s.logger.Error("pong", "conn_id", c.ID(), "error", err)
		return
	}
	_ = s.writeTo(c, frame)
}

// SendText broadcasts a text message to every attached connection.
func (s *Session) SendText(msg []byte) {
	s.broadcast(wsframe.AppendData(nil, wsframe.OpText, msg))
}

// SendBinary broadcasts a binary message to every attached connection.
func (s *Session) SendBinary(msg []byte) {
	s.broadcast(wsframe.AppendData(nil, wsframe.OpBinary, msg))
}

// SendTextTo sends a text message to c.
func (s *Session) SendTextTo(c *conn.Conn, msg []byte) error {
	return s.writeTo(c, wsframe.AppendData(nil, wsframe.OpText, msg))
}

// SendBinaryTo sends a binary message to c.
func (s *Session) SendBinaryTo(c *conn.Conn, msg []byte) error {
	return s.writeTo(c, wsframe.AppendData(nil, wsframe.OpBinary, msg))
}

func (s *Session) broadcast(frame []byte) {
	for _, c := range s.Connections() {
		_ = s.writeTo(c, frame)
	}
}

// writeTo writes a frame. A failed write detaches the connection.
func (s *Session) writeTo(c *conn.Conn, frame []byte) error {
	if err := c.Write(frame); err != nil {
		s.logger.Warn("write failed", "conn_id", c.ID(), "error", err)
		s.remove(c, CloseInfo{Err: err})
		return err
	}
	return nil
}

// Close sends a close frame to every attached connection and detaches them.
func (s *Session) Close(status uint16, reason string) {
	s.logger.Info("closing all connections", "status", status, "reason", reason)
	for _, c := range s.Connections() {
		_ = s.CloseConn(c, status, reason)
	}
}

// CloseConn sends a close frame to c and detaches it.
func (s *Session) CloseConn(c *conn.Conn, status uint16, reason string) error {
	if _, ok := s.lookup(c); !ok {
		return ErrNotAttached
	}
	s.closeWith(c, status, reason, CloseInfo{Code: status, Reason: reason})
	return nil
}

// Shutdown permanently stops accepting connections and closes the attached
// ones.
func (s *Session) Shutdown(status uint16, reason string) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.Close(status, reason)
}

// fail closes c because of a protocol or transport error.
func (s *Session) fail(c *conn.Conn, status uint16, reason string, err error) {
	if err == nil {
		err = &ProtocolError{Code: status, Reason: reason}
	}
	s.closeWith(c, status, reason, CloseInfo{Code: status, Reason: reason, Err: err})
}

func (s *Session) closeWith(c *conn.Conn, status uint16, reason string, info CloseInfo) {
	if _, ok := s.lookup(c); !ok {
		return
	}
	s.logger.Debug("closing connection", "conn_id", c.ID(), "status", status, "reason", reason)

	if err := c.Write(wsframe.Close(status, reason)); err == nil {
		s.metrics.CloseSent(status)
		_ = c.SetReadDeadline(time.Now().Add(s.config.CloseTimeout))
	}
	s.remove(c, info)
}

// remove detaches c and drops the session's reference.
func (s *Session) remove(c *conn.Conn, info CloseInfo) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	n := len(s.conns)
	s.mu.Unlock()
	if !ok {
		return
	}

	s.metrics.SetSessionConnections(s.name, n)
	s.logger.Debug("connection removed", "conn_id", c.ID())
	if s.cb.OnClose != nil {
		s.cb.OnClose(c, info)
	}
	c.Release()
}
