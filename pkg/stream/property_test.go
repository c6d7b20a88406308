package stream

import (
	"testing"

	"pgregory.net/rapid"

	"dstar-toolkit/pkg/dstar"
)

func TestPropertyDVFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "id"))
		counter := rapid.IntRange(0, 1000).Draw(t, "counter")
		last := rapid.Bool().Draw(t, "last")
		var payload [9]byte
		for i := range payload {
			payload[i] = byte(rapid.IntRange(0, 255).Draw(t, "payload"))
		}

		f := &DVFramePacket{
			ID:       id,
			PacketID: NewFrameID(counter, last),
			Frame:    dstar.DSTARFrame{DVCodec: payload},
		}
		data := f.Encode()
		if len(data) != FramePacketSize {
			t.Fatalf("Encode produced %d bytes, want %d", len(data), FramePacketSize)
		}

		decoded, err := DecodeDVFrame(data)
		if err != nil {
			t.Fatalf("DecodeDVFrame failed: %v", err)
		}
		if decoded.ID != f.ID || decoded.PacketID != f.PacketID || decoded.Frame != f.Frame {
			t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, f)
		}
		if decoded.IsLast() != last {
			t.Fatalf("IsLast() = %v, want %v", decoded.IsLast(), last)
		}
		if int(decoded.Sequence()) != counter%packetIDCycle {
			t.Fatalf("Sequence() = %d, want %d", decoded.Sequence(), counter%packetIDCycle)
		}
	})
}
