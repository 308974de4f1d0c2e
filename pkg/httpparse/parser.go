package httpparse

import (
	"strings"

	"github.com/vango-dev/duplex/pkg/httpmsg"
)

// Result is the outcome of a Parse call.
type Result uint8

const (
	// NeedMore means every byte was consumed and the request is incomplete.
	NeedMore Result = iota
	// Accept means a complete request head was parsed.
	Accept
	// Reject means the byte at the reported position is malformed.
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
	sMethodStart parserState = iota
	sMethod
	sURI
	sVersionH
	sVersionT1
	sVersionT2
	sVersionP
	sVersionSlash
	sVersionMajorStart
	sVersionMajor
	sVersionMinorStart
	sVersionMinor
	sNewline1
	sHeaderLineStart
	sHeaderLWS
	sHeaderName
	sSpaceBeforeValue
	sHeaderValue
	sNewline2
	sNewline3
	sDone
	sFailed
)

// Parser is an incremental HTTP/1.x request head parser.
//
// It consumes bytes one at a time and may be fed a request split at any byte
// boundary. After Reject the parser stays failed until Reset.
type Parser struct {
	state   parserState
	uri     []byte
	name    []byte
	value   []byte
	folding bool
}

// NewParser returns a parser ready to read a request method.
func NewParser() *Parser {
	return &Parser{}
}

// Reset returns the parser to its initial state.
func (p *Parser) Reset() {
	p.state = sMethodStart
	p.uri = p.uri[:0]
	p.name = p.name[:0]
	p.value = p.value[:0]
	p.folding = false
}

// Parse feeds data into req.
//
// It returns Accept or Reject as soon as the outcome is known, together with
// the number of bytes consumed, including the deciding byte. NeedMore always
// consumes all of data.
func (p *Parser) Parse(req *httpmsg.Request, data []byte) (Result, int) {
	for i, c := range data {
		switch p.consume(req, c) {
		case Accept:
			return Accept, i + 1
		case Reject:
			return Reject, i + 1
		}
	}
	return NeedMore, len(data)
}

func (p *Parser) fail() Result {
	p.state = sFailed
	return Reject
}

func (p *Parser) consume(req *httpmsg.Request, c byte) Result {
	switch p.state {
	case sMethodStart:
		if !IsToken(c) {
			return p.fail()
		}
		req.Method = string(c)
		p.state = sMethod

	case sMethod:
		if c == ' ' {
			p.state = sURI
		} else if !IsToken(c) {
			return p.fail()
		} else {
			req.Method += string(c)
		}

	case sURI:
		if c == ' ' {
			uri, ok := URLDecode(string(p.uri))
			if !ok {
				return p.fail()
			}
			req.URI = uri
			p.state = sVersionH
		} else if IsCtl(c) {
			return p.fail()
		} else {
			p.uri = append(p.uri, c)
		}

	case sVersionH:
		return p.expect(c, 'H', sVersionT1)
	case sVersionT1:
		return p.expect(c, 'T', sVersionT2)
	case sVersionT2:
		return p.expect(c, 'T', sVersionP)
	case sVersionP:
		return p.expect(c, 'P', sVersionSlash)
	case sVersionSlash:
		if c != '/' {
			return p.fail()
		}
		req.VersionMajor = 0
		req.VersionMinor = 0
		p.state = sVersionMajorStart

	case sVersionMajorStart:
		if !IsDigit(c) {
			return p.fail()
		}
		req.VersionMajor = int(c - '0')
		p.state = sVersionMajor

	case sVersionMajor:
		if c == '.' {
			p.state = sVersionMinorStart
		} else if IsDigit(c) && req.VersionMajor < maxVersion {
			req.VersionMajor = req.VersionMajor*10 + int(c-'0')
		} else {
			return p.fail()
		}

	case sVersionMinorStart:
		if !IsDigit(c) {
			return p.fail()
		}
		req.VersionMinor = int(c - '0')
		p.state = sVersionMinor

	case sVersionMinor:
		if c == '\r' {
			p.state = sNewline1
		} else if IsDigit(c) && req.VersionMinor < maxVersion {
			req.VersionMinor = req.VersionMinor*10 + int(c-'0')
		} else {
			return p.fail()
		}

	case sNewline1:
		return p.expect(c, '\n', sHeaderLineStart)

	case sHeaderLineStart:
		switch {
		case c == '\r':
			p.state = sNewline3
		case req.Header.Len() > 0 && (c == ' ' || c == '\t'):
			p.folding = true
			p.value = p.value[:0]
			p.state = sHeaderLWS
		case !IsToken(c):
			return p.fail()
		default:
			p.folding = false
			p.name = append(p.name[:0], c)
			p.value = p.value[:0]
			p.state = sHeaderName
		}

	case sHeaderLWS:
		switch {
		case c == '\r':
			p.state = sNewline2
		case c == ' ' || c == '\t':
		case IsCtl(c):
			return p.fail()
		default:
			p.value = append(p.value, c)
			p.state = sHeaderValue
		}

	case sHeaderName:
		if c == ':' {
			p.state = sSpaceBeforeValue
		} else if !IsToken(c) {
			return p.fail()
		} else {
			p.name = append(p.name, c)
		}

	case sSpaceBeforeValue:
		return p.expect(c, ' ', sHeaderValue)

	case sHeaderValue:
		if c == '\r' {
			p.state = sNewline2
		} else if IsCtl(c) {
			return p.fail()
		} else {
			p.value = append(p.value, c)
		}

	case sNewline2:
		if c != '\n' {
			return p.fail()
		}
		p.finishHeader(req)
		p.state = sHeaderLineStart

	case sNewline3:
		if c != '\n' {
			return p.fail()
		}
		p.state = sDone
		return Accept

	default:
		return p.fail()
	}
	return NeedMore
}

// maxVersion bounds the version digits so the numbers cannot overflow.
const maxVersion = 1000

func (p *Parser) expect(c, want byte, next parserState) Result {
	if c != want {
		return p.fail()
	}
	p.state = next
	return NeedMore
}

// finishHeader stores the current line. A continuation line extends the value
// of the last stored header.
func (p *Parser) finishHeader(req *httpmsg.Request) {
	value := strings.TrimSpace(string(p.value))
	if p.folding {
		last := &req.Header[len(req.Header)-1]
		if value != "" {
			if last.Value == "" {
				last.Value = value
			} else {
				last.Value += " " + value
			}
		}
		return
	}
	req.Header.Add(strings.TrimSpace(string(p.name)), value)
}
