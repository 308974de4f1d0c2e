package httpparse

// IsChar reports whether c is a 7-bit ASCII character.
func IsChar(c byte) bool {
	return c <= 127
}

// IsCtl reports whether c is an ASCII control character.
func IsCtl(c byte) bool {
	return c <= 31 || c == 127
}

// IsTSpecial reports whether c is an HTTP separator.
func IsTSpecial(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '@',
		',', ';', ':', '\\', '"',
		'/', '[', ']', '?', '=',
		'{', '}', ' ', '\t':
		return true
	default:
		return false
	}
}

// IsDigit reports whether c is an ASCII decimal digit.
func IsDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsToken reports whether c may appear in an HTTP token (method, header name).
func IsToken(c byte) bool {
	return IsChar(c) && !IsCtl(c) && !IsTSpecial(c)
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// URLDecode percent-decodes s.
//
// "%XX" becomes the byte XX and "+" becomes a space. It reports false when an
// escape is truncated or not two hex digits, or when s holds a raw control
// character.
func URLDecode(s string) (string, bool) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '%':
			if i+2 >= len(s) {
				return "", false
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return "", false
			}
			out = append(out, hi<<4|lo)
			i += 2
		case '+':
			out = append(out, ' ')
		default:
			if IsCtl(c) {
				return "", false
			}
			out = append(out, c)
		}
	}
	return string(out), true
}
