package dstar

import (
	"testing"

	"pgregory.net/rapid"
)

func TestPropertyCallsignAlwaysPadsToEight(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prefix := rapid.StringMatching(`[A-Z][A-Z0-9][0-9]`).Draw(t, "prefix")
		suffixLen := rapid.IntRange(0, 5).Draw(t, "suffixLen")
		raw := prefix
		for i := 0; i < suffixLen; i++ {
			raw += "A"
		}
		if len(raw) < 4 || len(raw) > 8 {
			return
		}
		c, err := NewCallsign(raw)
		if err != nil {
			t.Fatalf("NewCallsign(%q) failed: %v", raw, err)
		}
		if len(c.String()) != 8 {
			t.Fatalf("len(String()) = %d, want 8", len(c.String()))
		}
	})
}

func TestPropertyHeaderRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		my := rapid.StringMatching(`[A-Z][A-Z][0-9][A-Z]{1,5}`).Draw(t, "my")
		flag3 := byte(rapid.IntRange(0, 7).Draw(t, "flag3"))

		myCall, err := NewCallsign(my)
		if err != nil {
			t.Skip("generated non-callsign")
		}
		cq, _ := NewCallsign("CQCQCQ")

		h := &DSTARHeader{
			Flag3:      flag3,
			Repeater1:  cq,
			Repeater2:  cq,
			UrCallsign: cq,
			MyCallsign: myCall,
		}
		data := h.Encode()
		decoded, err := DecodeHeader(data)
		if err != nil {
			t.Fatalf("DecodeHeader failed: %v", err)
		}
		if !decoded.CRCValid {
			t.Fatalf("freshly encoded header has invalid CRC")
		}
		if decoded.MyCallsign.String() != h.MyCallsign.String() {
			t.Fatalf("MyCallsign round-trip mismatch: got %q want %q", decoded.MyCallsign.String(), h.MyCallsign.String())
		}
	})
}
