package wsframe

import "encoding/binary"

// Result is the outcome of a Parse call.
type Result uint8

const (
	// NeedMore means every byte was consumed and the frame is incomplete.
	NeedMore Result = iota
	// Accept means a complete frame was decoded.
	Accept
	// Reject means the input violates the frame format.
	Reject
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case NeedMore:
		return "NeedMore"
	case Accept:
		return "Accept"
	case Reject:
		return "Reject"
	default:
		return "Unknown"
	}
}

type parserState uint8

const (
	sFrameStart parserState = iota
	sLength
	sExtLength
	sMaskKey
	sPayload
	sFailed
)

// Parser decodes client frames one at a time.
//
// The zero value is ready to use. After Reject the parser stays failed.
type Parser struct {
	// MaxPayload bounds the declared payload length. Zero selects
	// DefaultMaxPayload and a negative value disables the check.
	MaxPayload int64

	state  parserState
	need   int // bytes still expected for the extended length or mask key
	ext    [8]byte
	extLen int
	key    [4]byte
	length uint64
}

// Parse feeds data into f.
//
// After NeedMore, f holds the partial frame and must be passed again with the
// next data. On Accept, f holds one complete frame and the returned count covers exactly
// that frame; the caller parses the remainder in a new cycle with a fresh
// Frame. The payload slice is owned by f.
func (p *Parser) Parse(f *Frame, data []byte) (Result, int) {
	i := 0
	for i < len(data) {
		switch p.state {
		case sFrameStart:
			b := data[i]
			i++
			if b&0x70 != 0 {
				return p.fail(i)
			}
			f.Fin = b&0x80 != 0
			f.Opcode = Opcode(b & 0x0f)
			f.Payload = nil
			p.state = sLength

		case sLength:
			b := data[i]
			i++
			if b&0x80 == 0 {
				return p.fail(i)
			}
			switch n := b & 0x7f; n {
			case 126:
				p.extLen, p.need = 2, 2
				p.state = sExtLength
			case 127:
				p.extLen, p.need = 8, 8
				p.state = sExtLength
			default:
				p.length = uint64(n)
				if !p.lengthOK() {
					return p.fail(i)
				}
				p.need = 4
				p.state = sMaskKey
			}

		case sExtLength:
			p.ext[p.extLen-p.need] = data[i]
			i++
			p.need--
			if p.need > 0 {
				continue
			}
			if p.extLen == 2 {
				p.length = uint64(binary.BigEndian.Uint16(p.ext[:2]))
			} else {
				p.length = binary.BigEndian.Uint64(p.ext[:8])
				if p.length>>63 != 0 {
					return p.fail(i)
				}
			}
			if !p.lengthOK() {
				return p.fail(i)
			}
			p.need = 4
			p.state = sMaskKey

		case sMaskKey:
			p.key[4-p.need] = data[i]
			i++
			p.need--
			if p.need > 0 {
				continue
			}
			if p.length == 0 {
				f.Payload = []byte{}
				p.state = sFrameStart
				return Accept, i
			}
			f.Payload = make([]byte, 0, initialCap(p.length))
			p.state = sPayload

		case sPayload:
			want := p.length - uint64(len(f.Payload))
			chunk := data[i:]
			if uint64(len(chunk)) > want {
				chunk = chunk[:want]
			}
			f.Payload = append(f.Payload, chunk...)
			i += len(chunk)
			if uint64(len(f.Payload)) == p.length {
				Mask(f.Payload, p.key)
				p.state = sFrameStart
				return Accept, i
			}

		default:
			return Reject, 0
		}
	}
	return NeedMore, i
}

func (p *Parser) fail(n int) (Result, int) {
	p.state = sFailed
	return Reject, n
}

func (p *Parser) lengthOK() bool {
	limit := p.MaxPayload
	if limit == 0 {
		limit = DefaultMaxPayload
	}
	return limit < 0 || p.length <= uint64(limit)
}

func initialCap(length uint64) int {
	const chunk = 64 << 10
	if length > chunk {
		return chunk
	}
	return int(length)
}
