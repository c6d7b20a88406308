package network

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dstar-toolkit/pkg/logger"
)

// mockPeer is a UDP socket standing in for the remote reflector/AMBEd
// service under test. It hands back each datagram it receives on request
// and lets a test script canned replies.
type mockPeer struct {
	conn *net.UDPConn
}

func newMockPeer(t *testing.T) *mockPeer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &mockPeer{conn: conn}
}

func (p *mockPeer) port(t *testing.T) int {
	return p.conn.LocalAddr().(*net.UDPAddr).Port
}

func (p *mockPeer) receive(t *testing.T, timeout time.Duration) ([]byte, *net.UDPAddr) {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 4096)
	n, addr, err := p.conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n], addr
}

func (p *mockPeer) sendTo(t *testing.T, addr *net.UDPAddr, data []byte) {
	t.Helper()
	_, err := p.conn.WriteToUDP(data, addr)
	require.NoError(t, err)
}

func newTestEndpoint(t *testing.T, peerPort int) *Endpoint {
	t.Helper()
	ep, err := NewEndpoint("127.0.0.1", peerPort, nil)
	require.NoError(t, err)
	require.NoError(t, ep.Open())
	t.Cleanup(func() { ep.Close() })
	return ep
}

func TestEndpointWriteAndRead(t *testing.T) {
	peer := newMockPeer(t)
	ep := newTestEndpoint(t, peer.port(t))

	_, err := ep.Write([]byte("hello"))
	require.NoError(t, err)

	data, addr := peer.receive(t, time.Second)
	require.Equal(t, "hello", string(data))

	peer.sendTo(t, addr, []byte("world"))

	deadline := time.Now().Add(time.Second)
	var got []byte
	for time.Now().Before(deadline) {
		got, err = ep.Read()
		require.NoError(t, err)
		if got != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, "world", string(got))
}

// TestPropertyPeerFilterDropsWrongHost exercises invariant 9: a datagram
// from a different source IP than the configured remote is never returned.
func TestPropertyPeerFilterDropsWrongHost(t *testing.T) {
	peer := newMockPeer(t)
	ep := newTestEndpoint(t, peer.port(t))

	// The endpoint's remote is 127.0.0.1 and only the IP is compared, so the
	// intruder must send from another loopback address.
	other, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 2), Port: 0})
	require.NoError(t, err)
	defer other.Close()

	localAddr := ep.LocalAddr().(*net.UDPAddr)
	_, err = other.WriteToUDP([]byte("intruder"), &net.UDPAddr{IP: localAddr.IP, Port: localAddr.Port})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	got, err := ep.Read()
	require.NoError(t, err)
	require.Nil(t, got, "datagram from an unconfigured source must be dropped")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: bytes.NewBuffer(nil)})
}

// TestPropertyKeepAliveAutomation exercises invariant 7: classifying a
// keepalive datagram produces exactly one auto-reply write and nothing
// enqueued.
func TestPropertyKeepAliveAutomation(t *testing.T) {
	peer := newMockPeer(t)
	ep := newTestEndpoint(t, peer.port(t))

	reply := []byte("PONG")
	process := func(data []byte) (Classification, error) {
		if string(data) == "PING" {
			return Classification{AutoReply: reply}, nil
		}
		return Classification{}, errUnrecognized
	}

	w := NewWorker(ep, process, 5*time.Millisecond, 8, testLogger())
	w.Start()
	defer w.Stop()

	peer.sendTo(t, ep.conn.LocalAddr().(*net.UDPAddr), []byte("PING"))

	got, _ := peer.receive(t, time.Second)
	require.Equal(t, reply, got)

	select {
	case v := <-w.Queue():
		t.Fatalf("expected nothing enqueued for a keepalive, got %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorkerEnqueuesClassifiedPackets(t *testing.T) {
	peer := newMockPeer(t)
	ep := newTestEndpoint(t, peer.port(t))

	process := func(data []byte) (Classification, error) {
		return Classification{Packet: string(data)}, nil
	}

	w := NewWorker(ep, process, 5*time.Millisecond, 8, testLogger())
	w.Start()
	defer w.Stop()

	peer.sendTo(t, ep.conn.LocalAddr().(*net.UDPAddr), []byte("VOICE"))

	select {
	case v := <-w.Queue():
		require.Equal(t, "VOICE", v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for enqueued packet")
	}
}

func TestWorkerConvertsDisconnectToSentinel(t *testing.T) {
	peer := newMockPeer(t)
	ep := newTestEndpoint(t, peer.port(t))

	process := func(data []byte) (Classification, error) {
		return Classification{Disconnect: true}, nil
	}

	w := NewWorker(ep, process, 5*time.Millisecond, 8, testLogger())
	w.Start()
	defer w.Stop()

	peer.sendTo(t, ep.conn.LocalAddr().(*net.UDPAddr), []byte("BYE"))

	select {
	case v := <-w.Queue():
		require.Nil(t, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disconnect sentinel")
	}
}

var errUnrecognized = &unrecognizedError{}

type unrecognizedError struct{}

func (*unrecognizedError) Error() string { return "unrecognized datagram" }
