package ambed

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/logger"
)

// mockServer is a bare UDP peer standing in for the AMBEd control plane
// (and, on a second socket, a per-stream data plane).
type mockServer struct {
	conn *net.UDPConn
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &mockServer{conn: conn}
}

func (m *mockServer) port() int {
	return m.conn.LocalAddr().(*net.UDPAddr).Port
}

func (m *mockServer) recv(t *testing.T, timeout time.Duration) ([]byte, *net.UDPAddr) {
	t.Helper()
	require.NoError(t, m.conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 4096)
	n, addr, err := m.conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n], addr
}

func (m *mockServer) send(t *testing.T, addr *net.UDPAddr, data []byte) {
	t.Helper()
	_, err := m.conn.WriteToUDP(data, addr)
	require.NoError(t, err)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: bytes.NewBuffer(nil)})
}

func TestS6OpenAndCloseStream(t *testing.T) {
	control := newMockServer(t)
	data := newMockServer(t)
	callsign := dstar.MustCallsign("SV9OAN")

	client, err := NewClient("127.0.0.1", control.port(), 2*time.Second, testLogger())
	require.NoError(t, err)
	defer client.Close()

	done := make(chan *net.UDPAddr, 1)
	go func() {
		req, addr := control.recv(t, 2*time.Second)

		want := make([]byte, openStreamSize)
		copy(want[0:7], openStreamMagic)
		copy(want[7:15], "SV9OAN  ")
		want[15] = byte(CodecAMBEPlus)
		want[16] = byte(CodecAMBE2Plus | CodecCodec23200)
		if !bytes.Equal(req, want) {
			t.Errorf("open stream request = % x, want % x", req, want)
		}

		desc := make([]byte, streamDescriptorSize)
		copy(desc[0:8], streamDescriptorMagic)
		binary.LittleEndian.PutUint16(desc[8:10], 1)
		binary.LittleEndian.PutUint16(desc[10:12], uint16(data.port()))
		desc[12] = byte(CodecAMBEPlus)
		desc[13] = byte(CodecAMBE2Plus | CodecCodec23200)
		control.send(t, addr, desc)
		done <- addr
	}()

	strm, err := client.OpenStream(callsign, CodecAMBEPlus, 2*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, uint16(1), strm.StreamID())
	<-done

	// A written frame must arrive on the data-plane socket.
	var payload [9]byte
	payload[0] = 0xAB
	require.NoError(t, strm.WriteFrame(FrameIn{Codec: CodecAMBEPlus, PacketID: 3, Payload: payload}))

	frame, _ := data.recv(t, 2*time.Second)
	require.Len(t, frame, frameInSize)
	require.Equal(t, byte(CodecAMBEPlus), frame[0])
	require.Equal(t, byte(3), frame[1])
	require.Equal(t, byte(0xAB), frame[2])

	// Close must announce the stream id on the control plane.
	require.NoError(t, strm.Close())
	cs, _ := control.recv(t, 2*time.Second)
	require.Len(t, cs, closeStreamSize)
	require.Equal(t, closeStreamMagic, string(cs[0:7]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(cs[7:9]))
}

func TestOpenStreamBusy(t *testing.T) {
	control := newMockServer(t)
	callsign := dstar.MustCallsign("SV9OAN")

	client, err := NewClient("127.0.0.1", control.port(), 2*time.Second, testLogger())
	require.NoError(t, err)
	defer client.Close()

	go func() {
		_, addr := control.recv(t, 2*time.Second)
		control.send(t, addr, []byte(busyLiteral))
	}()

	_, err = client.OpenStream(callsign, CodecCodec23200, 2*time.Millisecond)
	require.ErrorIs(t, err, ErrBusy)
}

func TestStreamReadFrameSelectsPayload(t *testing.T) {
	control := newMockServer(t)
	data := newMockServer(t)
	callsign := dstar.MustCallsign("SV9OAN")

	client, err := NewClient("127.0.0.1", control.port(), 2*time.Second, testLogger())
	require.NoError(t, err)
	defer client.Close()

	go func() {
		_, addr := control.recv(t, 2*time.Second)
		desc := make([]byte, streamDescriptorSize)
		copy(desc[0:8], streamDescriptorMagic)
		binary.LittleEndian.PutUint16(desc[8:10], 7)
		binary.LittleEndian.PutUint16(desc[10:12], uint16(data.port()))
		desc[12] = byte(CodecAMBE2Plus)
		desc[13] = byte(CodecAMBEPlus | CodecCodec23200)
		control.send(t, addr, desc)
	}()

	strm, err := client.OpenStream(callsign, CodecAMBE2Plus, 2*time.Millisecond)
	require.NoError(t, err)
	defer strm.Close()

	// Learn the client's data-plane address from an outbound frame, then
	// answer with a transcoded pair.
	require.NoError(t, strm.WriteFrame(FrameIn{Codec: CodecAMBE2Plus, PacketID: 0}))
	_, clientAddr := data.recv(t, 2*time.Second)

	out := make([]byte, frameOutSize)
	out[0] = byte(CodecAMBEPlus)
	out[1] = byte(CodecCodec23200)
	out[2] = 5
	out[3] = 0x11  // payload1 first byte
	out[12] = 0x22 // payload2 first byte
	data.send(t, clientAddr, out)

	frame, err := strm.ReadFrame(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, byte(5), frame.PacketID)
	require.Equal(t, byte(0x11), frame.Select(CodecAMBEPlus)[0])
	require.Equal(t, byte(0x22), frame.Select(CodecCodec23200)[0])
}

func TestOutputsForPolicyMap(t *testing.T) {
	require.Equal(t, CodecAMBE2Plus|CodecCodec23200, OutputsFor(CodecAMBEPlus))
	require.Equal(t, CodecAMBEPlus|CodecCodec23200, OutputsFor(CodecAMBE2Plus))
	require.Equal(t, CodecAMBEPlus|CodecAMBE2Plus, OutputsFor(CodecCodec23200))
	require.Equal(t, CodecAMBEPlus|CodecAMBE2Plus, OutputsFor(CodecCodec22400))
	require.Equal(t, CodecNone, OutputsFor(CodecNone))
}
