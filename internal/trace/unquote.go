package trace

import (
	"errors"
	"strings"
)

var (
	errUnterminated = errors.New("unterminated string")
	errEscape       = errors.New("invalid escape sequence")
)

// Decodes the C-style string literal strace prints at the start of s.
//
// s must begin with a double quote. Returns the decoded value and the text
// following the closing quote. strace escapes quotes, backslashes and the
// usual control characters, and prints other non-printable bytes as octal
// (\NNN) or, with -x, hexadecimal (\xHH) escapes.
func unquote(s string) (string, string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", "", errUnterminated
	}

	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			return b.String(), s[i+1:], nil
		case '\\':
			n, consumed, err := unescape(s[i+1:])
			if err != nil {
				return "", "", err
			}
			b.WriteByte(n)
			i += consumed
		default:
			b.WriteByte(c)
		}
	}

	return "", "", errUnterminated
}

// Decodes one escape sequence, s being the text after the backslash.
//
// Returns the decoded byte and the number of bytes of s consumed.
func unescape(s string) (byte, int, error) {
	if s == "" {
		return 0, 0, errUnterminated
	}

	switch s[0] {
	case '"', '\\', '\'', '?':
		return s[0], 1, nil
	case 'a':
		return '\a', 1, nil
	case 'b':
		return '\b', 1, nil
	case 'f':
		return '\f', 1, nil
	case 'n':
		return '\n', 1, nil
	case 'r':
		return '\r', 1, nil
	case 't':
		return '\t', 1, nil
	case 'v':
		return '\v', 1, nil
	case 'x':
		var v int
		n := 0
		for n < 2 && 1+n < len(s) {
			d, ok := hexDigit(s[1+n])
			if !ok {
				break
			}
			v = v*16 + d
			n++
		}
		if n == 0 {
			return 0, 0, errEscape
		}
		return byte(v), 1 + n, nil
	}

	if s[0] >= '0' && s[0] <= '7' {
		v := 0
		n := 0
		for n < 3 && n < len(s) && s[n] >= '0' && s[n] <= '7' {
			v = v*8 + int(s[n]-'0')
			n++
		}
		if v > 0xff {
			return 0, 0, errEscape
		}
		return byte(v), n, nil
	}

	return 0, 0, errEscape
}

// Returns the value of a hexadecimal digit.
func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}
