package dvtool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/stream"
)

func sampleStream(t *testing.T) *Stream {
	t.Helper()
	cq, err := dstar.NewCallsign("CQCQCQ")
	require.NoError(t, err)
	my, err := dstar.NewCallsign("SV9OAN")
	require.NoError(t, err)

	h := &stream.DVHeaderPacket{
		ID: 0x1234,
		Header: dstar.DSTARHeader{
			Repeater1:  cq,
			Repeater2:  cq,
			UrCallsign: cq,
			MyCallsign: my,
		},
	}
	f0 := &stream.DVFramePacket{ID: 0x1234, PacketID: stream.NewFrameID(0, false)}
	f1 := &stream.DVFramePacket{ID: 0x1234, PacketID: stream.NewFrameID(1, false)}
	f2 := &stream.DVFramePacket{ID: 0x1234, PacketID: 0x42}

	return &Stream{Header: h, Frames: []*stream.DVFramePacket{f0, f1, f2}}
}

func TestS1DVToolRoundTrip(t *testing.T) {
	s := sampleStream(t)

	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, s))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, []byte("DVTOOL")))
	require.Equal(t, []byte{0x04, 0x00, 0x00, 0x00}, data[6:10])
	require.Equal(t, []byte{0x38, 0x00}, data[10:12])

	headerStart := 12
	frame0SizeOffset := headerStart + stream.HeaderPacketSize
	require.Equal(t, []byte{0x1B, 0x00}, data[frame0SizeOffset:frame0SizeOffset+2])

	decoded, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, s.Header.ID, decoded.Header.ID)
	require.Equal(t, s.Header.Header.MyCallsign, decoded.Header.Header.MyCallsign)
	require.Len(t, decoded.Frames, 3)
	for i, f := range s.Frames {
		require.Equal(t, f.PacketID, decoded.Frames[i].PacketID)
	}
}

func TestStreamContinuityExactlyOneLastFrame(t *testing.T) {
	s := sampleStream(t)
	lastCount := 0
	for _, f := range s.Frames {
		if f.IsLast() {
			lastCount++
		}
	}
	require.Equal(t, 1, lastCount)
	require.True(t, s.Frames[len(s.Frames)-1].IsLast())
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader([]byte("NOTDVTOOLXXXXXX")))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestReadRejectsWrongRecordSize(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("DVTOOL")
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00})
	buf.Write([]byte{0x05, 0x00}) // wrong size for a header record
	buf.Write(make([]byte, 5))

	_, err := ReadFrom(&buf)
	require.ErrorIs(t, err, ErrWrongSize)
}

func TestReadRejectsTruncatedRecord(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("DVTOOL")
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00})
	buf.Write([]byte{0x38, 0x00})
	buf.Write(make([]byte, 10)) // short of the declared 56 bytes

	_, err := ReadFrom(&buf)
	require.ErrorIs(t, err, ErrTruncatedRecord)
}

func TestWriteTruncatesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test.dvtool"

	big := sampleStream(t)
	big.Frames = append(big.Frames, big.Frames...)
	require.NoError(t, Write(path, big))

	small := sampleStream(t)
	small.Frames = small.Frames[:1]
	require.NoError(t, Write(path, small))

	decoded, err := Read(path)
	require.NoError(t, err)
	require.Len(t, decoded.Frames, 1)
}
