package wsframe

import "encoding/binary"

// AppendData appends a single unmasked frame with FIN set to dst.
func AppendData(dst []byte, op Opcode, payload []byte) []byte {
	dst = appendHeader(dst, op, len(payload))
	return append(dst, payload...)
}

// Control builds a control frame. The payload may not exceed
// MaxControlPayload bytes.
func Control(op Opcode, payload []byte) ([]byte, error) {
	if !op.IsControl() {
		return nil, ErrNotControl
	}
	if len(payload) > MaxControlPayload {
		return nil, ErrControlTooLarge
	}
	return AppendData(make([]byte, 0, 2+len(payload)), op, payload), nil
}

// Close builds a close frame carrying status and reason. The reason is
// truncated so that the payload fits a control frame.
func Close(status uint16, reason string) []byte {
	if len(reason) > MaxControlPayload-2 {
		reason = reason[:MaxControlPayload-2]
	}
	payload := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(payload, status)
	payload = append(payload, reason...)
	return AppendData(make([]byte, 0, 2+len(payload)), OpClose, payload)
}

// ParseClose splits a close payload into status code and reason. A payload
// shorter than two bytes yields CloseNoStatusReceived.
func ParseClose(payload []byte) (uint16, string) {
	if len(payload) < 2 {
		return CloseNoStatusReceived, ""
	}
	return binary.BigEndian.Uint16(payload), string(payload[2:])
}

// Mask XORs payload in place with key. Applying it twice restores the input.
func Mask(payload []byte, key [4]byte) {
	for i := range payload {
		payload[i] ^= key[i%4]
	}
}

// AppendMasked appends a masked client frame to dst.
func AppendMasked(dst []byte, fin bool, op Opcode, payload []byte, key [4]byte) []byte {
	start := len(dst)
	dst = appendHeader(dst, op, len(payload))
	if !fin {
		dst[start] &^= 0x80
	}
	dst[start+1] |= 0x80
	dst = append(dst, key[:]...)
	off := len(dst)
	dst = append(dst, payload...)
	Mask(dst[off:], key)
	return dst
}

func appendHeader(dst []byte, op Opcode, n int) []byte {
	dst = append(dst, 0x80|byte(op&0x0f))
	switch {
	case n < 126:
		dst = append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 126)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, 127)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	return dst
}
