package wsframe

// Opcode identifies the type of a frame.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0 // Continuation of a fragmented message
	OpText         Opcode = 0x1 // UTF-8 text data
	OpBinary       Opcode = 0x2 // Binary data
	OpClose        Opcode = 0x8 // Close handshake
	OpPing         Opcode = 0x9 // Ping
	OpPong         Opcode = 0xA // Pong
)

// String returns the string representation of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "Continuation"
	case OpText:
		return "Text"
	case OpBinary:
		return "Binary"
	case OpClose:
		return "Close"
	case OpPing:
		return "Ping"
	case OpPong:
		return "Pong"
	default:
		return "Unknown"
	}
}

// IsControl reports whether op is a control opcode (0x8-0xF).
func (op Opcode) IsControl() bool {
	return op&0x8 != 0
}

// Close status codes sent by the server.
const (
	CloseNormal           uint16 = 1000
	CloseGoingAway        uint16 = 1001
	CloseProtocolError    uint16 = 1002
	CloseUnsupportedData  uint16 = 1003
	CloseNoStatusReceived uint16 = 1005
)
