package reflector

import (
	"errors"
	"fmt"

	"dstar-toolkit/pkg/dstar"
)

// DExtra/DExtra-Open control-plane packet sizes.
const (
	dextraConnectSize       = 11
	dextraConnectAckSize    = 14
	dextraDisconnectAckSize = 12
	dextraKeepAliveSize     = 9
)

// dextraConnectPacket is the shape shared by Connect and Disconnect: an 8
// byte callsign, a module byte, a destination module byte, and a trailer
// byte (revision on Connect, always 0 on Disconnect).
type dextraConnectPacket struct {
	MyCallsign dstar.Callsign
	MyModule   dstar.Module
	DestModule dstar.Module
	Trailer    byte
}

func (p dextraConnectPacket) Encode() []byte {
	data := make([]byte, dextraConnectSize)
	copy(data[0:8], p.MyCallsign.String())
	data[8] = p.MyModule.Byte()
	data[9] = p.DestModule.Byte()
	data[10] = p.Trailer
	return data
}

func decodeDExtraConnect(data []byte) (*dextraConnectPacket, error) {
	if len(data) != dextraConnectSize {
		return nil, fmt.Errorf("%w: got %d, want %d", errDExtraBadLength, len(data), dextraConnectSize)
	}
	my, err := dstar.NewCallsign(string(data[0:8]))
	if err != nil {
		return nil, err
	}
	myMod, err := dstar.NewModule(data[8])
	if err != nil {
		return nil, err
	}
	destMod, err := dstar.NewModule(data[9])
	if err != nil {
		return nil, err
	}
	return &dextraConnectPacket{MyCallsign: my, MyModule: myMod, DestModule: destMod, Trailer: data[10]}, nil
}

// dextraConnectReplyPacket is the 14-byte ACK/NACK shape.
type dextraConnectReplyPacket struct {
	MyCallsign dstar.Callsign
	MyModule   dstar.Module
	DestModule dstar.Module
	Ack        bool
}

const dextraAckLiteral = "ACK\x00"
const dextraNackLiteral = "NAK\x00"

func (p dextraConnectReplyPacket) Encode() []byte {
	data := make([]byte, dextraConnectAckSize)
	copy(data[0:8], p.MyCallsign.String())
	data[8] = p.MyModule.Byte()
	data[9] = p.DestModule.Byte()
	lit := dextraNackLiteral
	if p.Ack {
		lit = dextraAckLiteral
	}
	copy(data[10:14], lit)
	return data
}

func decodeDExtraConnectReply(data []byte) (*dextraConnectReplyPacket, error) {
	if len(data) != dextraConnectAckSize {
		return nil, fmt.Errorf("%w: got %d, want %d", errDExtraBadLength, len(data), dextraConnectAckSize)
	}
	trailer := string(data[10:14])
	var ack bool
	switch trailer {
	case dextraAckLiteral:
		ack = true
	case dextraNackLiteral:
		ack = false
	default:
		return nil, fmt.Errorf("%w: trailer %q is neither ACK nor NAK", errDExtraBadLength, trailer)
	}
	my, err := dstar.NewCallsign(string(data[0:8]))
	if err != nil {
		return nil, err
	}
	myMod, _ := dstar.NewModule(data[8])
	destMod, _ := dstar.NewModule(data[9])
	return &dextraConnectReplyPacket{MyCallsign: my, MyModule: myMod, DestModule: destMod, Ack: ack}, nil
}

const dextraDisconnectAckLiteral = "DISCONNECTED"

func encodeDExtraDisconnectAck() []byte {
	return []byte(dextraDisconnectAckLiteral)
}

func isDExtraDisconnectAck(data []byte) bool {
	return len(data) == dextraDisconnectAckSize && string(data) == dextraDisconnectAckLiteral
}

// dextraKeepAlivePacket carries only the sender's callsign.
type dextraKeepAlivePacket struct {
	MyCallsign dstar.Callsign
}

func (p dextraKeepAlivePacket) Encode() []byte {
	data := make([]byte, dextraKeepAliveSize)
	copy(data[0:8], p.MyCallsign.String())
	data[8] = 0
	return data
}

func decodeDExtraKeepAlive(data []byte) (*dextraKeepAlivePacket, error) {
	if len(data) != dextraKeepAliveSize {
		return nil, fmt.Errorf("%w: got %d, want %d", errDExtraBadLength, len(data), dextraKeepAliveSize)
	}
	my, err := dstar.NewCallsign(string(data[0:8]))
	if err != nil {
		return nil, err
	}
	return &dextraKeepAlivePacket{MyCallsign: my}, nil
}

var errDExtraBadLength = errors.New("reflector: dextra packet has wrong length")
