package websocket

import (
	"errors"
	"fmt"

	"github.com/vango-dev/duplex/pkg/wsframe"
)

// Sentinel errors for session operations.
var (
	// ErrNotAttached is returned when a connection does not belong to the session.
	ErrNotAttached = errors.New("websocket: connection not attached to session")

	// ErrSessionShutdown is returned by operations on a shut down session.
	ErrSessionShutdown = errors.New("websocket: session shut down")
)

// ProtocolError describes a peer violation that ended a connection.
type ProtocolError struct {
	Code   uint16
	Reason string
}

// Error returns the close code and reason.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("websocket: protocol error %d: %s", e.Code, e.Reason)
}

// CloseInfo describes how a connection left a session.
type CloseInfo struct {
	// Code and Reason come from the peer's close frame when Remote is set,
	// otherwise from the close frame the session sent.
	Code   uint16
	Reason string
	Remote bool

	// Err is set when the connection was dropped because of a transport or
	// protocol error.
	Err error
}

func peerClose(payload []byte) CloseInfo {
	code, reason := wsframe.ParseClose(payload)
	return CloseInfo{Code: code, Reason: reason, Remote: true}
}
