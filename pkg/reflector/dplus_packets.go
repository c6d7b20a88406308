package reflector

import (
	"bytes"
	"errors"
	"fmt"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/stream"
)

// D-Plus control-plane literals and sizes (C9).
var (
	dplusConnectLiteral    = []byte{0x05, 0x00, 0x18, 0x00, 0x01}
	dplusDisconnectLiteral = []byte{0x05, 0x00, 0x18, 0x00, 0x00}
	dplusKeepAliveLiteral  = []byte{0x03, 0x60, 0x00}
	dplusLoginMagic        = []byte{0x1C, 0xC0, 0x04, 0x00}
	dplusLoginReplyMagic   = []byte{0x08, 0xC0, 0x04, 0x00}

	dplusFrameHeaderPrefix = []byte{0x3A, 0x80}
	dplusFrameMidPrefix    = []byte{0x1D, 0x80}
	dplusFrameLastPrefix   = []byte{0x20, 0x80}

	// dplusTerminator is the opaque 15-byte trailer appended to a
	// FrameLast datagram in place of the final frame's voice payload.
	dplusTerminator = []byte{0x55, 0xC8, 0x7A, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x25, 0x1A, 0xC6}
)

const (
	dplusConnectSize     = 5
	dplusLoginSize       = 28
	dplusLoginReplySize  = 8
	dplusKeepAliveSize   = 3
	dplusFrameHeaderSize = 2 + stream.HeaderPacketSize
	dplusFrameMidSize    = 2 + stream.FramePacketSize
	// dplusFrameLastSize: 2-byte prefix + 15-byte truncated envelope + 15-byte terminator.
	dplusFrameLastSize = 2 + 15 + 15

	// dplusLastFrameForcedByte is the full-packet byte index D-Plus
	// overwrites to 0x81 to mark a FrameLast datagram.
	dplusLastFrameForcedByte = 8
)

var errDPlusBadLength = errors.New("reflector: dplus packet has wrong length")

const (
	dplusLoginOK = iota
	dplusLoginBusy
	dplusLoginFail
)

var dplusLoginReplyCodes = map[string]int{
	"OKRW": dplusLoginOK,
	"BUSY": dplusLoginBusy,
	"FAIL": dplusLoginFail,
}

// encodeDPlusLogin builds the 28-byte Login packet: magic, callsign, an
// empty zero field, and an empty (null-padded) serial.
func encodeDPlusLogin(callsign dstar.Callsign) []byte {
	data := make([]byte, dplusLoginSize)
	copy(data[0:4], dplusLoginMagic)
	copy(data[4:12], callsign.String())
	// data[12:20] zero field, data[20:28] empty serial: both already zero
	return data
}

type dplusLoginReply struct {
	Status int
}

func decodeDPlusLoginReply(data []byte) (*dplusLoginReply, error) {
	if len(data) != dplusLoginReplySize {
		return nil, fmt.Errorf("%w: got %d, want %d", errDPlusBadLength, len(data), dplusLoginReplySize)
	}
	if !bytes.Equal(data[0:4], dplusLoginReplyMagic) {
		return nil, fmt.Errorf("%w: bad login reply magic", errDPlusBadLength)
	}
	code, ok := dplusLoginReplyCodes[string(data[4:8])]
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized login reply %q", errDPlusBadLength, data[4:8])
	}
	return &dplusLoginReply{Status: code}, nil
}

// encodeDPlusFrameHeader wraps a DVHeaderPacket for D-Plus transport.
func encodeDPlusFrameHeader(h *stream.DVHeaderPacket) []byte {
	data := make([]byte, 0, dplusFrameHeaderSize)
	data = append(data, dplusFrameHeaderPrefix...)
	data = append(data, h.Encode()...)
	return data
}

func decodeDPlusFrameHeader(data []byte) (*stream.DVHeaderPacket, error) {
	if len(data) != dplusFrameHeaderSize {
		return nil, fmt.Errorf("%w: got %d, want %d", errDPlusBadLength, len(data), dplusFrameHeaderSize)
	}
	return stream.DecodeDVHeader(data[2:])
}

// encodeDPlusFrame wraps a DVFramePacket. Frames carrying the "last" bit
// are emitted as the 32-byte FrameLast shape (truncated envelope plus
// opaque terminator, byte 8 forced to 0x81); all others as the 29-byte
// FrameMid shape.
func encodeDPlusFrame(f *stream.DVFramePacket) []byte {
	encoded := f.Encode()
	if !f.IsLast() {
		data := make([]byte, 0, dplusFrameMidSize)
		data = append(data, dplusFrameMidPrefix...)
		data = append(data, encoded...)
		return data
	}

	data := make([]byte, 0, dplusFrameLastSize)
	data = append(data, dplusFrameLastPrefix...)
	data = append(data, encoded[:15]...)
	data = append(data, dplusTerminator...)
	data[dplusLastFrameForcedByte] = 0x81
	return data
}

// decodeDPlusFrame recovers a DVFramePacket from either shape. The
// FrameLast shape carries no voice payload: the trailing 12 bytes of the
// reconstructed frame are zero, and the "last" bit is forced on if the
// sender didn't already set it.
func decodeDPlusFrame(data []byte) (*stream.DVFramePacket, error) {
	switch len(data) {
	case dplusFrameMidSize:
		return stream.DecodeDVFrame(data[2:])

	case dplusFrameLastSize:
		envelope := make([]byte, stream.FramePacketSize)
		copy(envelope[:15], data[2:17])
		envelope[14] |= stream.PacketIDLastBit
		return stream.DecodeDVFrame(envelope)

	default:
		return nil, fmt.Errorf("%w: got %d, want %d or %d", errDPlusBadLength, len(data), dplusFrameMidSize, dplusFrameLastSize)
	}
}
