// Package stream implements the DSVT envelope shared by all three reflector
// protocols: DVHeaderPacket (56 bytes) and DVFramePacket (27 bytes).
package stream

import (
	"errors"
	"fmt"

	"dstar-toolkit/pkg/dstar"
)

const magic = "DSVT"

// Envelope type bytes.
const (
	typeHeader byte = 0x10
	typeFrame  byte = 0x20
)

// bandByte3 is the third of the three "band" bytes following the flag byte.
// Sources disagree on 0x01 vs 0x02 for this position; this implementation
// emits 0x02 and accepts either on ingest.
const (
	bandByte3Emit = 0x02
)

// HeaderPacketSize is the wire size of a DVHeaderPacket.
const HeaderPacketSize = 56

// frameSyncByte follows the stream_id on a DVHeaderPacket.
const frameSyncByte = 0x80

// FramePacketSize is the wire size of a DVFramePacket.
const FramePacketSize = 27

// PacketIDLastBit marks the final frame of a stream.
const PacketIDLastBit = 0x40

// packetIDCycle is the modulus the low 5 bits of packet_id cycle through.
const packetIDCycle = 21

var (
	// ErrBadMagic is returned when a buffer does not begin with "DSVT".
	ErrBadMagic = errors.New("stream: bad DSVT magic")
	// ErrBadLength is returned when a buffer is the wrong size for its
	// packet type.
	ErrBadLength = errors.New("stream: wrong packet length")
	// ErrBadType is returned when the envelope type byte is neither the
	// header nor frame marker.
	ErrBadType = errors.New("stream: unrecognized envelope type byte")
)

// Packet is satisfied by DVHeaderPacket and DVFramePacket.
type Packet interface {
	Encode() []byte
	StreamID() uint16
}

// DVHeaderPacket is the 56-byte DSVT envelope carrying a DSTARHeader.
type DVHeaderPacket struct {
	ID     uint16
	Header dstar.DSTARHeader
}

// StreamID returns the envelope's stream_id.
func (p *DVHeaderPacket) StreamID() uint16 { return p.ID }

// Encode serializes p to 56 bytes.
func (p *DVHeaderPacket) Encode() []byte {
	data := make([]byte, HeaderPacketSize)
	copy(data[0:4], magic)
	data[4] = typeHeader
	// bytes 5-7 reserved, left zero
	data[8] = 0x20
	data[9] = 0x00
	data[10] = 0x01
	data[11] = bandByte3Emit
	data[12] = byte(p.ID)
	data[13] = byte(p.ID >> 8)
	data[14] = frameSyncByte
	copy(data[15:56], p.Header.Encode())
	return data
}

// DecodeDVHeader parses a 56-byte buffer into a DVHeaderPacket.
func DecodeDVHeader(data []byte) (*DVHeaderPacket, error) {
	if len(data) != HeaderPacketSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadLength, len(data), HeaderPacketSize)
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, data[0:4])
	}
	if data[4] != typeHeader {
		return nil, fmt.Errorf("%w: %#x", ErrBadType, data[4])
	}
	if data[11] != 0x01 && data[11] != 0x02 {
		return nil, fmt.Errorf("%w: band byte 3 is %#x, want 0x01 or 0x02", ErrBadLength, data[11])
	}

	header, err := dstar.DecodeHeader(data[15:56])
	if err != nil {
		return nil, fmt.Errorf("stream: decoding header: %w", err)
	}

	return &DVHeaderPacket{
		ID:     uint16(data[12]) | uint16(data[13])<<8,
		Header: *header,
	}, nil
}

// DVFramePacket is the 27-byte DSVT envelope carrying a DSTARFrame.
type DVFramePacket struct {
	ID       uint16
	PacketID byte // low 5 bits: sequence 0..20; bit 6 (0x40): last frame
	Frame    dstar.DSTARFrame
}

// StreamID returns the envelope's stream_id.
func (p *DVFramePacket) StreamID() uint16 { return p.ID }

// IsLast reports whether this frame carries the stream-terminal marker.
func (p *DVFramePacket) IsLast() bool {
	return p.PacketID&PacketIDLastBit != 0
}

// Sequence returns the low-5-bit cycling sequence number (0..20).
func (p *DVFramePacket) Sequence() byte {
	return p.PacketID & 0x1F
}

// NewFrameID builds a packet_id byte from a cycling sequence counter and a
// last-frame flag, per the 0..20 modulus invariant.
func NewFrameID(counter int, last bool) byte {
	id := byte(counter % packetIDCycle)
	if last {
		id |= PacketIDLastBit
	}
	return id
}

// Encode serializes p to 27 bytes.
func (p *DVFramePacket) Encode() []byte {
	data := make([]byte, FramePacketSize)
	copy(data[0:4], magic)
	data[4] = typeFrame
	data[8] = 0x20
	data[9] = 0x00
	data[10] = 0x01
	data[11] = bandByte3Emit
	data[12] = byte(p.ID)
	data[13] = byte(p.ID >> 8)
	data[14] = p.PacketID
	copy(data[15:27], p.Frame.Encode())
	return data
}

// DecodeDVFrame parses a 27-byte buffer into a DVFramePacket.
func DecodeDVFrame(data []byte) (*DVFramePacket, error) {
	if len(data) != FramePacketSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadLength, len(data), FramePacketSize)
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, data[0:4])
	}
	if data[4] != typeFrame {
		return nil, fmt.Errorf("%w: %#x", ErrBadType, data[4])
	}

	frame, err := dstar.DecodeFrame(data[15:27])
	if err != nil {
		return nil, fmt.Errorf("stream: decoding frame: %w", err)
	}

	return &DVFramePacket{
		ID:       uint16(data[12]) | uint16(data[13])<<8,
		PacketID: data[14],
		Frame:    *frame,
	}, nil
}
