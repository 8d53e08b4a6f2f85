// Package shellquote implements the single-argument shell-quoting
// contract used when seqpipe reconstructs command lines: for any
// string s, Encode(s) passed through `/bin/sh -c` yields exactly one
// argument whose bytes equal s.
package shellquote

import "strings"

// safeByte reports whether b never needs quoting when it appears in a
// shell word on its own.
func safeByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case strings.ContainsRune("_./=:@-", rune(b)):
		return true
	default:
		return false
	}
}

// Encode returns s quoted so that a POSIX shell sees it as one literal
// argument. The empty string encodes as '' rather than being omitted.
func Encode(s string) string {
	if s == "" {
		return "''"
	}

	plain := true

	for i := 0; i < len(s); i++ {
		if !safeByte(s[i]) {
			plain = false
			break
		}
	}

	if plain {
		return s
	}

	var b strings.Builder

	b.WriteByte('\'')

	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			b.WriteString(`'\''`)
		} else {
			b.WriteByte(s[i])
		}
	}

	b.WriteByte('\'')

	return b.String()
}
