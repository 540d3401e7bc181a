// Package encoding provides text encoding utilities for STEP string literals.
package encoding

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// codePages maps the \P?\ directive letters to ISO-8859 parts 1 to 9.
var codePages = map[byte]*charmap.Charmap{
	'A': charmap.ISO8859_1,
	'B': charmap.ISO8859_2,
	'C': charmap.ISO8859_3,
	'D': charmap.ISO8859_4,
	'E': charmap.ISO8859_5,
	'F': charmap.ISO8859_6,
	'G': charmap.ISO8859_7,
	'H': charmap.ISO8859_8,
	'I': charmap.ISO8859_9,
}

// DefaultPage is the code page in effect before any \P?\ directive.
const DefaultPage = 'A'

// ValidPage reports whether page names a supported ISO-8859 part.
func ValidPage(page byte) bool {
	_, ok := codePages[page]
	return ok
}

// DecodeHigh decodes a \S\c escape: c with the high bit set, looked up in
// the given code page. Unknown pages fall back to ISO-8859-1.
func DecodeHigh(page byte, c byte) rune {
	cm, ok := codePages[page]
	if !ok {
		cm = charmap.ISO8859_1
	}
	return cm.DecodeByte(c | 0x80)
}

// LegacyToUTF8 converts raw 8-bit text to UTF-8. Some exporters write
// Windows-1252 bytes into string literals instead of escaping them.
// Valid UTF-8 input is returned unchanged.
func LegacyToUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		// Return as-is if decoding fails
		return string(data)
	}
	return string(result)
}
