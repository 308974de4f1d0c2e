// Package wsframe implements the RFC 6455 frame layer used by the server side
// of a WebSocket connection.
//
// # Inbound
//
// Parser decodes client frames incrementally. Client frames must be masked and
// must not set any RSV bit; the payload is unmasked in place before the frame
// is emitted:
//
//	┌─┬───┬──────┬─┬───────────┬────────────────────┬──────────┬─────────┐
//	│F│RSV│opcode│M│ len (7)   │ ext len (0/16/64)  │ mask key │ payload │
//	│I│1-3│ (4)  │A│           │                    │ (32)     │         │
//	│N│   │      │S│           │                    │          │         │
//	└─┴───┴──────┴─┴───────────┴────────────────────┴──────────┴─────────┘
//
// # Outbound
//
// AppendData, Control and Close build unmasked server frames with FIN set.
// Mask is provided for clients and tests.
package wsframe
