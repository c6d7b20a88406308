package dstar

import (
	"errors"
	"fmt"

	"dstar-toolkit/internal/crc16"
)

// HeaderSize is the wire size of a DSTARHeader, including its trailing
// CRC-16.
const HeaderSize = 41

// Flag3 bit masks. Flag3 is a project extension carrying a vocoder-version
// hint outside the standard D-STAR header fields.
const (
	Flag3Codec2   = 1 << 0 // set: Codec2 family, unset: AMBE family
	Flag3Mode2400 = 1 << 1 // set: Codec2 2400 bps mode
	Flag3FEC      = 1 << 2 // reserved: FEC on
)

// ErrShortHeader is returned when a buffer is too small to hold a
// DSTARHeader.
var ErrShortHeader = errors.New("dstar: header buffer too short")

// DSTARHeader is the 41-byte D-STAR radio header: three flag bytes, four
// callsign fields, a suffix, and a trailing CRC-16.
type DSTARHeader struct {
	Flag1, Flag2, Flag3 byte
	Repeater1           Callsign
	Repeater2           Callsign
	UrCallsign          Callsign
	MyCallsign          Callsign
	MySuffix            Suffix

	// CRCValid reports whether the CRC read from the wire matched the
	// computed checksum. Only meaningful after DecodeHeader; ignored by
	// Encode, which always emits a correct CRC.
	CRCValid bool
}

// Encode serializes h to 41 bytes with a freshly computed CRC-16 over the
// first 39 bytes.
func (h *DSTARHeader) Encode() []byte {
	data := make([]byte, HeaderSize)
	data[0] = h.Flag1
	data[1] = h.Flag2
	data[2] = h.Flag3
	// On the wire Repeater-2 precedes Repeater-1.
	copy(data[3:11], h.Repeater2.String())
	copy(data[11:19], h.Repeater1.String())
	copy(data[19:27], h.UrCallsign.String())
	copy(data[27:35], h.MyCallsign.String())
	copy(data[35:39], h.MySuffix.String())

	sum := crc16.Checksum(data[:39])
	data[39] = sum[0]
	data[40] = sum[1]
	return data
}

// DecodeHeader parses a 41-byte buffer into a DSTARHeader. A CRC mismatch is
// tolerated (some reflectors rewrite header fields in flight without
// recomputing the checksum): it is reported via CRCValid rather than as an
// error.
func DecodeHeader(data []byte) (*DSTARHeader, error) {
	if len(data) != HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrShortHeader, len(data), HeaderSize)
	}

	h := &DSTARHeader{
		Flag1: data[0],
		Flag2: data[1],
		Flag3: data[2],
	}

	var err error
	if h.Repeater2, err = NewCallsign(string(data[3:11])); err != nil {
		return nil, fmt.Errorf("repeater2: %w", err)
	}
	if h.Repeater1, err = NewCallsign(string(data[11:19])); err != nil {
		return nil, fmt.Errorf("repeater1: %w", err)
	}
	if h.UrCallsign, err = NewCallsign(string(data[19:27])); err != nil {
		return nil, fmt.Errorf("ur callsign: %w", err)
	}
	if h.MyCallsign, err = NewCallsign(string(data[27:35])); err != nil {
		return nil, fmt.Errorf("my callsign: %w", err)
	}
	if h.MySuffix, err = NewSuffix(string(data[35:39])); err != nil {
		return nil, fmt.Errorf("my suffix: %w", err)
	}

	sum := crc16.Checksum(data[:39])
	h.CRCValid = sum[0] == data[39] && sum[1] == data[40]

	return h, nil
}

// FrameSize is the wire size of a DSTARFrame.
const FrameSize = 12

// ErrShortFrame is returned when a buffer is too small to hold a
// DSTARFrame.
var ErrShortFrame = errors.New("dstar: frame buffer too short")

// DSTARFrame is a single 12-byte D-STAR voice frame: a 9-byte vocoder
// payload and a 3-byte slow-data field.
type DSTARFrame struct {
	DVCodec [9]byte
	DVData  [3]byte
}

// Encode serializes the frame to 12 bytes.
func (f *DSTARFrame) Encode() []byte {
	data := make([]byte, FrameSize)
	copy(data[0:9], f.DVCodec[:])
	copy(data[9:12], f.DVData[:])
	return data
}

// DecodeFrame parses a 12-byte buffer into a DSTARFrame.
func DecodeFrame(data []byte) (*DSTARFrame, error) {
	if len(data) != FrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrShortFrame, len(data), FrameSize)
	}
	f := &DSTARFrame{}
	copy(f.DVCodec[:], data[0:9])
	copy(f.DVData[:], data[9:12])
	return f, nil
}
