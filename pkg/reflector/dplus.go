package reflector

import (
	"bytes"
	"fmt"
	"time"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/network"
	"dstar-toolkit/pkg/stream"
)

type dplusConnectEcho struct{}
type dplusDisconnectEcho struct{}

// DPlusProtocol implements the D-Plus reflector client protocol (C9): a
// two-phase connect (bare handshake, then callsign login) and frame
// wrapping with terminator padding on the final frame.
type DPlusProtocol struct {
	Callsign dstar.Callsign
}

// NewDPlus builds a D-Plus protocol (default port 20001).
func NewDPlus(callsign dstar.Callsign) *DPlusProtocol {
	return &DPlusProtocol{Callsign: callsign}
}

// DefaultPort returns the protocol's default UDP port.
func (p *DPlusProtocol) DefaultPort() int {
	return 20001
}

// EncodeDVHeader wraps h with D-Plus's 2-byte frame-header prefix.
func (p *DPlusProtocol) EncodeDVHeader(h *stream.DVHeaderPacket) []byte {
	return encodeDPlusFrameHeader(h)
}

// EncodeDVFrame wraps f as FrameMid, or FrameLast with the terminator
// trailer when f carries the stream-terminal marker.
func (p *DPlusProtocol) EncodeDVFrame(f *stream.DVFramePacket) []byte {
	return encodeDPlusFrame(f)
}

// Connect runs the two-phase handshake: a bare Connect awaiting its echo,
// then a Login awaiting LoginOK (LoginBusy/LoginFail fail the connect).
func (p *DPlusProtocol) Connect(c *Connection) error {
	if err := c.Write(dplusConnectLiteral); err != nil {
		return fmt.Errorf("reflector: dplus connect: %w", err)
	}
	if _, err := c.readAccept(c.timeout, func(v interface{}) bool {
		_, ok := v.(dplusConnectEcho)
		return ok
	}); err != nil {
		return err
	}

	if err := c.Write(encodeDPlusLogin(p.Callsign)); err != nil {
		return fmt.Errorf("reflector: dplus login: %w", err)
	}
	v, err := c.readAccept(c.timeout, func(v interface{}) bool {
		_, ok := v.(*dplusLoginReply)
		return ok
	})
	if err != nil {
		return err
	}

	switch v.(*dplusLoginReply).Status {
	case dplusLoginOK:
		return nil
	case dplusLoginBusy:
		return ErrLoginBusy
	default:
		return ErrLoginFailed
	}
}

// Disconnect sends a Disconnect and optionally waits briefly for its echo.
func (p *DPlusProtocol) Disconnect(c *Connection) {
	if err := c.Write(dplusDisconnectLiteral); err != nil {
		return
	}
	_, _ = c.readAccept(500*time.Millisecond, func(v interface{}) bool {
		_, ok := v.(dplusDisconnectEcho)
		return ok
	})
}

// Classify dispatches an inbound datagram by fixed leading literal/length.
func (p *DPlusProtocol) Classify(data []byte) (network.Classification, error) {
	switch len(data) {
	case dplusConnectSize:
		switch {
		case bytes.Equal(data, dplusConnectLiteral):
			return network.Classification{Packet: dplusConnectEcho{}}, nil
		case bytes.Equal(data, dplusDisconnectLiteral):
			return network.Classification{Packet: dplusDisconnectEcho{}}, nil
		default:
			return network.Classification{}, fmt.Errorf("%w: unrecognized 5-byte datagram", errDPlusBadLength)
		}

	case dplusLoginReplySize:
		reply, err := decodeDPlusLoginReply(data)
		if err != nil {
			return network.Classification{}, err
		}
		return network.Classification{Packet: reply}, nil

	case dplusKeepAliveSize:
		if !bytes.Equal(data, dplusKeepAliveLiteral) {
			return network.Classification{}, fmt.Errorf("%w: unrecognized 3-byte datagram", errDPlusBadLength)
		}
		return network.Classification{AutoReply: dplusKeepAliveLiteral}, nil

	case dplusFrameHeaderSize:
		if !bytes.Equal(data[0:2], dplusFrameHeaderPrefix) {
			return network.Classification{}, fmt.Errorf("%w: bad frame header prefix", errDPlusBadLength)
		}
		h, err := decodeDPlusFrameHeader(data)
		if err != nil {
			return network.Classification{}, err
		}
		return network.Classification{Packet: h}, nil

	case dplusFrameMidSize:
		if !bytes.Equal(data[0:2], dplusFrameMidPrefix) {
			return network.Classification{}, fmt.Errorf("%w: bad frame mid prefix", errDPlusBadLength)
		}
		f, err := decodeDPlusFrame(data)
		if err != nil {
			return network.Classification{}, err
		}
		return network.Classification{Packet: f}, nil

	case dplusFrameLastSize:
		if !bytes.Equal(data[0:2], dplusFrameLastPrefix) {
			return network.Classification{}, fmt.Errorf("%w: bad frame last prefix", errDPlusBadLength)
		}
		f, err := decodeDPlusFrame(data)
		if err != nil {
			return network.Classification{}, err
		}
		return network.Classification{Packet: f}, nil

	default:
		return network.Classification{}, fmt.Errorf("%w: unrecognized %d-byte datagram", errDPlusBadLength, len(data))
	}
}
