package wsframe

import "errors"

// Frame is a single decoded WebSocket frame. Payload is already unmasked.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Payload []byte
}

// MaxControlPayload is the largest payload a control frame may carry.
const MaxControlPayload = 125

// DefaultMaxPayload bounds the payload of an inbound frame when the parser
// has no explicit limit.
const DefaultMaxPayload = 16 << 20

// Frame errors.
var (
	ErrControlTooLarge = errors.New("wsframe: control frame payload exceeds 125 bytes")
	ErrNotControl      = errors.New("wsframe: opcode is not a control opcode")
)
