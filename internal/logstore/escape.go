package logstore

import (
	"fmt"
	"strings"
)

// escaper replaces the delimiter characters. The backslash rule is listed first
// so that backslashes introduced by the other rules are never escaped twice.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	" ", `\s`,
	"\n", `\n`,
)

// Escape encodes s so that it contains no space or newline characters.
//
// Backslash becomes `\\`, space becomes `\s` and newline becomes `\n`.
// Unescape(Escape(s)) == s for every string s.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape.
//
// It decodes in a single left-to-right pass, so an escaped backslash followed by
// a literal "s" or "n" is never mistaken for an escaped space or newline. A
// dangling backslash or an unknown escape sequence is an error, which keeps the
// mapping a bijection between strings and their encodings.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape character at offset %d", i)
		}
		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 's':
			b.WriteByte(' ')
		case 'n':
			b.WriteByte('\n')
		default:
			return "", fmt.Errorf("unknown escape sequence %q at offset %d", s[i-1:i+1], i-1)
		}
	}
	return b.String(), nil
}
