package reflector

import (
	"fmt"
	"time"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/network"
	"dstar-toolkit/pkg/stream"
)

// dextraDisconnectAck is the marker value enqueued/matched for the
// "DISCONNECTED" acknowledgement literal.
type dextraDisconnectAck struct{}

// DExtraProtocol implements the DExtra and DExtra-Open reflector client
// protocols (C8); they differ only in default port.
type DExtraProtocol struct {
	Callsign dstar.Callsign
	Module   dstar.Module // reflector module to join
	port     int
}

// NewDExtra builds a DExtra protocol (default port 30001).
func NewDExtra(callsign dstar.Callsign, module dstar.Module) *DExtraProtocol {
	return &DExtraProtocol{Callsign: callsign, Module: module, port: 30001}
}

// NewDExtraOpen builds a DExtra-Open protocol (default port 30201); the
// wire format is otherwise identical to DExtra.
func NewDExtraOpen(callsign dstar.Callsign, module dstar.Module) *DExtraProtocol {
	return &DExtraProtocol{Callsign: callsign, Module: module, port: 30201}
}

// DefaultPort returns the protocol's default UDP port.
func (p *DExtraProtocol) DefaultPort() int {
	return p.port
}

// EncodeDVHeader emits the DSVT envelope unchanged; DExtra carries no
// additional wrapping around voice packets.
func (p *DExtraProtocol) EncodeDVHeader(h *stream.DVHeaderPacket) []byte {
	return h.Encode()
}

// EncodeDVFrame emits the DSVT envelope unchanged.
func (p *DExtraProtocol) EncodeDVFrame(f *stream.DVFramePacket) []byte {
	return f.Encode()
}

// Connect sends a revision-1 Connect request and waits for ConnectAck (or
// fails on ConnectNack / timeout).
func (p *DExtraProtocol) Connect(c *Connection) error {
	pkt := dextraConnectPacket{
		MyCallsign: p.Callsign,
		MyModule:   dstar.ModuleNone,
		DestModule: p.Module,
		Trailer:    11, // revision 1, per this implementation's emit-only rule
	}
	if err := c.Write(pkt.Encode()); err != nil {
		return fmt.Errorf("reflector: dextra connect: %w", err)
	}

	v, err := c.readAccept(c.timeout, func(v interface{}) bool {
		_, ok := v.(*dextraConnectReplyPacket)
		return ok
	})
	if err != nil {
		return err
	}
	reply := v.(*dextraConnectReplyPacket)
	if !reply.Ack {
		return ErrConnectRejected
	}
	return nil
}

// Disconnect sends a Disconnect and waits briefly for the best-effort
// DisconnectAck; its absence does not fail the close.
func (p *DExtraProtocol) Disconnect(c *Connection) {
	pkt := dextraConnectPacket{
		MyCallsign: p.Callsign,
		MyModule:   dstar.ModuleNone,
		DestModule: dstar.ModuleNone,
		Trailer:    0,
	}
	if err := c.Write(pkt.Encode()); err != nil {
		return
	}
	_, _ = c.readAccept(500*time.Millisecond, func(v interface{}) bool {
		_, ok := v.(dextraDisconnectAck)
		return ok
	})
}

// Classify dispatches an inbound datagram by its fixed length and leading
// bytes, an O(1) decision among the known DExtra/DSVT packet shapes rather
// than trial-decoding each in turn.
func (p *DExtraProtocol) Classify(data []byte) (network.Classification, error) {
	switch len(data) {
	case stream.HeaderPacketSize:
		h, err := stream.DecodeDVHeader(data)
		if err != nil {
			return network.Classification{}, err
		}
		return network.Classification{Packet: h}, nil

	case stream.FramePacketSize:
		f, err := stream.DecodeDVFrame(data)
		if err != nil {
			return network.Classification{}, err
		}
		return network.Classification{Packet: f}, nil

	case dextraConnectAckSize:
		reply, err := decodeDExtraConnectReply(data)
		if err != nil {
			return network.Classification{}, err
		}
		return network.Classification{Packet: reply}, nil

	case dextraDisconnectAckSize:
		if !isDExtraDisconnectAck(data) {
			return network.Classification{}, fmt.Errorf("%w: unrecognized 12-byte datagram", errDExtraBadLength)
		}
		return network.Classification{Packet: dextraDisconnectAck{}}, nil

	case dextraKeepAliveSize:
		if _, err := decodeDExtraKeepAlive(data); err != nil {
			return network.Classification{}, err
		}
		reply := dextraKeepAlivePacket{MyCallsign: p.Callsign}
		return network.Classification{AutoReply: reply.Encode()}, nil

	case dextraConnectSize:
		// A bare Connect-shaped datagram arriving at the client can only be
		// the peer asking to end the session.
		if _, err := decodeDExtraConnect(data); err != nil {
			return network.Classification{}, err
		}
		return network.Classification{Disconnect: true}, nil

	default:
		return network.Classification{}, fmt.Errorf("%w: unrecognized %d-byte datagram", errDExtraBadLength, len(data))
	}
}
