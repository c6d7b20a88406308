// Package ambed implements the client side of the AMBEd transcoder-service
// session protocol (C10): a control-plane open-stream handshake followed by
// a per-stream data-plane side channel.
package ambed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/network"
)

// CodecTag is a transcoder vocoder family bitfield.
type CodecTag byte

// Known codec tags.
const (
	CodecNone       CodecTag = 0
	CodecAMBEPlus   CodecTag = 1
	CodecAMBE2Plus  CodecTag = 2
	CodecCodec23200 CodecTag = 4
	CodecCodec22400 CodecTag = 8
)

// OutputsFor returns the fixed codecs_out set implied by a given codec_in,
// per the transcoder service's wiring policy.
func OutputsFor(in CodecTag) CodecTag {
	switch in {
	case CodecAMBEPlus:
		return CodecAMBE2Plus | CodecCodec23200
	case CodecAMBE2Plus:
		return CodecAMBEPlus | CodecCodec23200
	case CodecCodec23200:
		return CodecAMBEPlus | CodecAMBE2Plus
	case CodecCodec22400:
		return CodecAMBEPlus | CodecAMBE2Plus
	default:
		return CodecNone
	}
}

const (
	openStreamMagic        = "AMBEDOS"
	streamDescriptorMagic  = "AMBEDSTD"
	busyLiteral            = "AMBEDBUSY"
	closeStreamMagic       = "AMBEDCS"
	pingMagic              = "AMBEDPING"
	pongLiteral            = "AMBEDPONG"
	openStreamSize         = 17
	streamDescriptorSize   = 14
	busySize               = 9
	closeStreamSize        = 9
	pingSize               = 17
	pongSize               = 9
	frameInSize            = 11
	frameOutSize           = 21
)

// ErrBusy is returned when the transcoder service rejects an open-stream
// request because it has no capacity.
var ErrBusy = errors.New("ambed: server busy")

// ErrBadLength is returned when a datagram does not match any known AMBEd
// packet shape.
var ErrBadLength = errors.New("ambed: packet has wrong length")

func encodeOpenStream(callsign dstar.Callsign, codecIn, codecsOut CodecTag) []byte {
	data := make([]byte, openStreamSize)
	copy(data[0:7], openStreamMagic)
	copy(data[7:15], callsign.String())
	data[15] = byte(codecIn)
	data[16] = byte(codecsOut)
	return data
}

type streamDescriptor struct {
	StreamID uint16
	Port     uint16
	CodecIn  CodecTag
	CodecOut CodecTag
}

func decodeStreamDescriptor(data []byte) (*streamDescriptor, error) {
	if len(data) != streamDescriptorSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadLength, len(data), streamDescriptorSize)
	}
	if string(data[0:8]) != streamDescriptorMagic {
		return nil, fmt.Errorf("%w: bad stream descriptor magic", ErrBadLength)
	}
	return &streamDescriptor{
		StreamID: binary.LittleEndian.Uint16(data[8:10]),
		Port:     binary.LittleEndian.Uint16(data[10:12]),
		CodecIn:  CodecTag(data[12]),
		CodecOut: CodecTag(data[13]),
	}, nil
}

func isBusy(data []byte) bool {
	return len(data) == busySize && string(data) == busyLiteral
}

func encodeCloseStream(streamID uint16) []byte {
	data := make([]byte, closeStreamSize)
	copy(data[0:7], closeStreamMagic)
	binary.LittleEndian.PutUint16(data[7:9], streamID)
	return data
}

func encodePing(callsign dstar.Callsign) []byte {
	data := make([]byte, pingSize)
	copy(data[0:9], pingMagic)
	copy(data[9:17], callsign.String())
	return data
}

func isPong(data []byte) bool {
	return len(data) == pongSize && string(data) == pongLiteral
}

// FrameIn is a single voice frame pushed to the transcoder for conversion.
type FrameIn struct {
	Codec    CodecTag
	PacketID byte
	Payload  [9]byte
}

// Encode serializes f to 11 bytes.
func (f FrameIn) Encode() []byte {
	data := make([]byte, frameInSize)
	data[0] = byte(f.Codec)
	data[1] = f.PacketID
	copy(data[2:11], f.Payload[:])
	return data
}

// FrameOut is a transcoded voice frame carrying two parallel output
// codecs' payloads.
type FrameOut struct {
	Codec1   CodecTag
	Codec2   CodecTag
	PacketID byte
	Payload1 [9]byte
	Payload2 [9]byte
}

// Select returns the payload matching want, preferring Payload1 when its
// codec matches, per the wire-level pairing rule.
func (f FrameOut) Select(want CodecTag) [9]byte {
	if f.Codec1 == want {
		return f.Payload1
	}
	return f.Payload2
}

func decodeFrameOut(data []byte) (*FrameOut, error) {
	if len(data) != frameOutSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadLength, len(data), frameOutSize)
	}
	f := &FrameOut{Codec1: CodecTag(data[0]), Codec2: CodecTag(data[1]), PacketID: data[2]}
	copy(f.Payload1[:], data[3:12])
	copy(f.Payload2[:], data[12:21])
	return f, nil
}

// Client is the AMBEd control-plane connection: it runs the open-stream
// handshake and returns a Stream handle for the data plane.
type Client struct {
	ep      *network.Endpoint
	timeout time.Duration
	log     *logger.Logger
}

// NewClient resolves host:port (default 10100) as the AMBEd control plane.
func NewClient(host string, port int, timeout time.Duration, log *logger.Logger) (*Client, error) {
	if port == 0 {
		port = 10100
	}
	ep, err := network.NewEndpoint(host, port, nil)
	if err != nil {
		return nil, fmt.Errorf("ambed: %w", err)
	}
	if err := ep.Open(); err != nil {
		return nil, fmt.Errorf("ambed: %w", err)
	}
	return &Client{ep: ep, timeout: timeout, log: log}, nil
}

// Close releases the control-plane socket.
func (c *Client) Close() error {
	return c.ep.Close()
}

// OpenStream requests transcoding for codecIn, deriving codecs_out from the
// fixed policy map. On success it opens a second endpoint to the returned
// data-plane port and starts its receive worker.
func (c *Client) OpenStream(callsign dstar.Callsign, codecIn CodecTag, idleSleep time.Duration) (*Stream, error) {
	codecsOut := OutputsFor(codecIn)
	if err := c.writeAndWait(encodeOpenStream(callsign, codecIn, codecsOut)); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("ambed: open stream timed out")
		}
		data, err := c.ep.Read()
		if err != nil {
			return nil, fmt.Errorf("ambed: %w", err)
		}
		if data == nil {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if isBusy(data) {
			return nil, ErrBusy
		}
		desc, err := decodeStreamDescriptor(data)
		if err != nil {
			continue
		}

		dataEp, err := network.NewEndpoint(c.ep.RemoteAddr().IP.String(), int(desc.Port), nil)
		if err != nil {
			return nil, fmt.Errorf("ambed: %w", err)
		}
		if err := dataEp.Open(); err != nil {
			return nil, fmt.Errorf("ambed: %w", err)
		}

		s := &Stream{
			control:  c,
			ep:       dataEp,
			streamID: desc.StreamID,
			codecIn:  desc.CodecIn,
			codecOut: desc.CodecOut,
		}
		s.worker = network.NewWorker(dataEp, s.classify, idleSleep, 64, c.log)
		s.worker.Start()
		return s, nil
	}
}

func (c *Client) writeAndWait(data []byte) error {
	_, err := c.ep.Write(data)
	if err != nil {
		return fmt.Errorf("ambed: %w", err)
	}
	return nil
}

// Stream is a per-transcode data-plane side channel (a second UDP endpoint
// opened after a successful OpenStream).
type Stream struct {
	control  *Client
	ep       *network.Endpoint
	worker   *network.Worker
	streamID uint16
	codecIn  CodecTag
	codecOut CodecTag
}

// StreamID returns the server-assigned stream identifier.
func (s *Stream) StreamID() uint16 { return s.streamID }

func (s *Stream) classify(data []byte) (network.Classification, error) {
	out, err := decodeFrameOut(data)
	if err != nil {
		return network.Classification{}, err
	}
	return network.Classification{Packet: out}, nil
}

// WriteFrame sends one input frame to the transcoder.
func (s *Stream) WriteFrame(f FrameIn) error {
	_, err := s.ep.Write(f.Encode())
	if err != nil {
		return fmt.Errorf("ambed: %w", err)
	}
	return nil
}

// ReadFrame waits up to timeout for one transcoded output frame.
func (s *Stream) ReadFrame(timeout time.Duration) (*FrameOut, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("ambed: read frame timed out")
		}
		select {
		case v := <-s.worker.Queue():
			if out, ok := v.(*FrameOut); ok {
				return out, nil
			}
		case <-time.After(remaining):
			return nil, fmt.Errorf("ambed: read frame timed out")
		}
	}
}

// Close sends CloseStream on the control plane and releases the local
// data-plane socket.
func (s *Stream) Close() error {
	_ = s.control.writeAndWait(encodeCloseStream(s.streamID))
	s.worker.Stop()
	return s.ep.Close()
}
