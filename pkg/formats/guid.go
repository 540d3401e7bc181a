package formats

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidGlobalID is returned for strings that are not 22-character IFC GUIDs.
var ErrInvalidGlobalID = errors.New("invalid IFC GlobalId")

const guidAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_$"

// GlobalIDLength is the length of a compressed IFC GUID.
const GlobalIDLength = 22

// ParseGlobalID decodes the compressed base-64 GlobalId form into a UUID.
// The first character carries the top 2 bits; every following group of four
// characters carries three bytes.
func ParseGlobalID(s string) (uuid.UUID, error) {
	var id uuid.UUID
	if len(s) != GlobalIDLength {
		return id, ErrInvalidGlobalID
	}

	digits := make([]uint32, GlobalIDLength)
	for i := 0; i < GlobalIDLength; i++ {
		d := strings.IndexByte(guidAlphabet, s[i])
		if d < 0 {
			return id, ErrInvalidGlobalID
		}
		digits[i] = uint32(d)
	}
	if digits[0] > 3 {
		return id, ErrInvalidGlobalID
	}

	id[0] = byte(digits[0]<<6 | digits[1])
	for g := 0; g < 5; g++ {
		d := digits[2+g*4:]
		v := d[0]<<18 | d[1]<<12 | d[2]<<6 | d[3]
		id[1+g*3] = byte(v >> 16)
		id[2+g*3] = byte(v >> 8)
		id[3+g*3] = byte(v)
	}
	return id, nil
}

// FormatGlobalID encodes a UUID in the compressed IFC GlobalId form.
func FormatGlobalID(id uuid.UUID) string {
	var b [GlobalIDLength]byte
	b[0] = guidAlphabet[id[0]>>6]
	b[1] = guidAlphabet[id[0]&0x3F]
	for g := 0; g < 5; g++ {
		v := uint32(id[1+g*3])<<16 | uint32(id[2+g*3])<<8 | uint32(id[3+g*3])
		o := 2 + g*4
		b[o] = guidAlphabet[v>>18&0x3F]
		b[o+1] = guidAlphabet[v>>12&0x3F]
		b[o+2] = guidAlphabet[v>>6&0x3F]
		b[o+3] = guidAlphabet[v&0x3F]
	}
	return string(b[:])
}

// GlobalID returns the decoded GlobalId of a rooted entity, if present.
func (r *EntityRecord) GlobalID() (uuid.UUID, bool) {
	s, ok := r.Attr(ProductGlobalID).AsString()
	if !ok {
		return uuid.UUID{}, false
	}
	id, err := ParseGlobalID(s)
	return id, err == nil
}
