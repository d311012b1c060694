// Package escape decodes and encodes HL7v2 in-band escape sequences.
package escape

import (
	"encoding/hex"
	"strings"

	"github.com/dgallion1/hl7gest/internal/delim"
)

// SegmentBreak is what the \.br\ escape decodes to.
const SegmentBreak = '\r'

// Decode replaces escape sequences in s with the characters they stand for,
// using the delimiters in d. Unknown escapes are kept as written, and an
// escape character without a closing partner leaves the rest of the string
// untouched.
func Decode(s string, d delim.Set) string {
	esc := d.Escape
	if esc == 0 || strings.IndexByte(s, esc) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		c := s[i]
		if c != esc {
			b.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(s[i+1:], esc)
		if end < 0 {
			b.WriteString(s[i:])
			break
		}
		code := s[i+1 : i+1+end]
		if !decodeCode(&b, code, d) {
			b.WriteByte(esc)
			b.WriteString(code)
			b.WriteByte(esc)
		}
		i += end + 2
	}
	return b.String()
}

// decodeCode writes the expansion of code and reports whether code was
// recognized.
func decodeCode(b *strings.Builder, code string, d delim.Set) bool {
	switch code {
	case "F":
		b.WriteByte(d.Field)
	case "S":
		b.WriteByte(d.Component)
	case "R":
		b.WriteByte(d.Repetition)
	case "T":
		b.WriteByte(d.Subcomponent)
	case "E":
		b.WriteByte(d.Escape)
	case ".br":
		b.WriteByte(SegmentBreak)
	case "H", "N":
		// Highlighting carries no text.
	default:
		if len(code) < 3 || code[0] != 'X' || (len(code)-1)%2 != 0 {
			return false
		}
		raw, err := hex.DecodeString(code[1:])
		if err != nil {
			return false
		}
		b.Write(raw)
	}
	return true
}

// Encode is the inverse of Decode for text that contains delimiters or line
// breaks: Decode(Encode(s, d), d) == s.
func Encode(s string, d delim.Set) string {
	if !needsEncoding(s, d) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case d.Escape:
			writeEscape(&b, d.Escape, "E")
		case d.Field:
			writeEscape(&b, d.Escape, "F")
		case d.Component:
			writeEscape(&b, d.Escape, "S")
		case d.Repetition:
			writeEscape(&b, d.Escape, "R")
		case d.Subcomponent:
			writeEscape(&b, d.Escape, "T")
		case '\r':
			writeEscape(&b, d.Escape, "X0D")
		case '\n':
			writeEscape(&b, d.Escape, "X0A")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func writeEscape(b *strings.Builder, esc byte, code string) {
	b.WriteByte(esc)
	b.WriteString(code)
	b.WriteByte(esc)
}

func needsEncoding(s string, d delim.Set) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case d.Escape, d.Field, d.Component, d.Repetition, d.Subcomponent, '\r', '\n':
			return true
		}
	}
	return false
}
