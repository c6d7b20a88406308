package toolkit

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/reflector"
	"dstar-toolkit/pkg/stream"
)

// TestS5RecorderCapturesFullStream drives the recorder end to end against
// a scripted DExtra peer: ack the connect, replay a header and a full
// 21-frame superframe, then disconnect. The recorder must leave behind a
// DVTool file named after the stream id holding all 22 records.
func TestS5RecorderCapturesFullStream(t *testing.T) {
	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer peer.Close()
	peerPort := peer.LocalAddr().(*net.UDPAddr).Port

	callsign := mustCallsign(t, "SV9OAN")
	module := mustModule(t, 'A')
	outDir := t.TempDir()

	scriptDone := make(chan error, 1)
	go func() {
		scriptDone <- runRecorderPeerScript(peer, callsign)
	}()

	conn, err := reflector.Open("127.0.0.1", reflector.NewDExtra(callsign, module), reflector.Options{
		Port:             peerPort,
		HandshakeTimeout: 2 * time.Second,
		WorkerIdleSleep:  2 * time.Millisecond,
		Log:              logger.New(logger.Config{Level: "error", Output: bytes.NewBuffer(nil)}),
	})
	require.NoError(t, err)
	defer conn.Close()

	rec := NewRecorder(conn, outDir, "XRF001", nil, logger.New(logger.Config{Level: "error", Output: bytes.NewBuffer(nil)}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rec.Run(ctx))
	require.NoError(t, <-scriptDone)

	got, err := dvtool.Read(filepath.Join(outDir, "7.dvtool"))
	require.NoError(t, err)
	require.Equal(t, uint16(7), got.Header.StreamID())
	require.Len(t, got.Frames, 21)
	require.True(t, got.Frames[20].IsLast())
	for _, f := range got.Frames[:20] {
		require.False(t, f.IsLast())
	}
}

// runRecorderPeerScript acks the first datagram as a DExtra connect, sends
// one complete voice stream, then a peer-initiated disconnect.
func runRecorderPeerScript(peer *net.UDPConn, callsign dstar.Callsign) error {
	if err := peer.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return err
	}
	buf := make([]byte, 64)
	_, addr, err := peer.ReadFromUDP(buf)
	if err != nil {
		return err
	}

	ack := make([]byte, 0, 14)
	ack = append(ack, callsign.String()...)
	ack = append(ack, ' ', 'A')
	ack = append(ack, "ACK\x00"...)
	if _, err := peer.WriteToUDP(ack, addr); err != nil {
		return err
	}

	header := &stream.DVHeaderPacket{
		ID: 7,
		Header: dstar.DSTARHeader{
			Repeater1:  callsign,
			Repeater2:  callsign,
			UrCallsign: dstar.MustCallsign("CQCQCQ"),
			MyCallsign: callsign,
		},
	}
	if _, err := peer.WriteToUDP(header.Encode(), addr); err != nil {
		return err
	}

	for i := 0; i < 21; i++ {
		frame := &stream.DVFramePacket{
			ID:       7,
			PacketID: stream.NewFrameID(i, i == 20),
		}
		frame.Frame.DVCodec[0] = byte(i)
		if _, err := peer.WriteToUDP(frame.Encode(), addr); err != nil {
			return err
		}
	}

	// Give the recorder a moment to flush, then end the session with a
	// connect-shaped (11-byte) datagram, which a client reads as a
	// peer-initiated disconnect.
	time.Sleep(200 * time.Millisecond)
	disconnect := make([]byte, 0, 11)
	disconnect = append(disconnect, callsign.String()...)
	disconnect = append(disconnect, ' ', ' ', 0)
	_, err = peer.WriteToUDP(disconnect, addr)
	return err
}
