package toolkit

import (
	"testing"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/stream"
)

// sampleStream builds a small but complete stream: a header and three
// frames, the last one carrying the "last" bit, all sharing one stream_id.
func sampleStream(t *testing.T) *dvtool.Stream {
	t.Helper()
	cq := mustCallsign(t, "CQCQCQ")
	my := mustCallsign(t, "SV9OAN")

	header := &stream.DVHeaderPacket{
		ID: 0x1234,
		Header: dstar.DSTARHeader{
			Repeater1:  cq,
			Repeater2:  cq,
			UrCallsign: cq,
			MyCallsign: my,
		},
	}

	frames := make([]*stream.DVFramePacket, 3)
	for i := range frames {
		last := i == len(frames)-1
		var payload [9]byte
		payload[0] = byte(i + 1)
		frames[i] = &stream.DVFramePacket{
			ID:       header.ID,
			PacketID: stream.NewFrameID(i, last),
			Frame:    dstar.DSTARFrame{DVCodec: payload},
		}
	}

	return &dvtool.Stream{Header: header, Frames: frames}
}
