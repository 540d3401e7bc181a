package formats

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseGlobalID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uuid.UUID
		wantErr bool
	}{
		{"zero", "0000000000000000000000", uuid.Nil, false},
		{"max", "3$$$$$$$$$$$$$$$$$$$$$", uuid.Max, false},
		{"too short", "0000", uuid.Nil, true},
		{"bad char", "000000000000000000000!", uuid.Nil, true},
		{"first char overflow", "4000000000000000000000", uuid.Nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGlobalID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGlobalID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseGlobalID(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestGlobalID_RoundTrip(t *testing.T) {
	for _, s := range []string{"2O2Fr$t4X7Zf8NOew3FLOH", "0YvctVUKr0kugbFTf53O9L", "3kHUnNnSbDNQrI0ce4Fo9W"} {
		id, err := ParseGlobalID(s)
		if err != nil {
			t.Fatalf("ParseGlobalID(%q): %v", s, err)
		}
		if got := FormatGlobalID(id); got != s {
			t.Errorf("FormatGlobalID(ParseGlobalID(%q)) = %q", s, got)
		}
	}
}

func TestEntityRecord_GlobalID(t *testing.T) {
	doc, err := Decode(makeIFC(wallRecords...), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	wall, _ := doc.Entity(12)
	id, ok := wall.GlobalID()
	if !ok {
		t.Fatal("expected wall GlobalId to decode")
	}
	if FormatGlobalID(id) != "2O2Fr$t4X7Zf8NOew3FLOH" {
		t.Errorf("unexpected GlobalId %s", FormatGlobalID(id))
	}

	pt, _ := doc.Entity(1)
	if _, ok := pt.GlobalID(); ok {
		t.Error("points have no GlobalId")
	}
}
