// Package network implements the UDP transport shared by every reflector
// and AMBEd connection: a single-peer, non-blocking endpoint (Endpoint) and
// a background receive worker (Worker) that classifies and dispatches
// datagrams for the owning connection.
package network

import (
	"fmt"
	"net"
	"time"
)

// Endpoint is a single-peer UDP socket: reads ignore any datagram whose
// source IP does not match the configured remote host, and writes always
// target that remote.
type Endpoint struct {
	remote *net.UDPAddr
	local  *net.UDPAddr
	conn   *net.UDPConn
}

// NewEndpoint resolves host:port as the remote peer. local may be nil to
// bind an ephemeral port on all interfaces.
func NewEndpoint(host string, port int, local *net.UDPAddr) (*Endpoint, error) {
	remote, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("network: resolve %s:%d: %w", host, port, err)
	}
	return &Endpoint{remote: remote, local: local}, nil
}

// Open binds the local UDP socket.
func (e *Endpoint) Open() error {
	bind := e.local
	if bind == nil {
		bind = &net.UDPAddr{IP: net.IPv4zero, Port: 0}
	}
	conn, err := net.ListenUDP("udp4", bind)
	if err != nil {
		return fmt.Errorf("network: listen %s: %w", bind, err)
	}
	e.conn = conn
	return nil
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}

// RemoteAddr returns the configured remote peer address.
func (e *Endpoint) RemoteAddr() *net.UDPAddr {
	return e.remote
}

// LocalAddr returns the bound local address, valid after Open.
func (e *Endpoint) LocalAddr() net.Addr {
	if e.conn == nil {
		return nil
	}
	return e.conn.LocalAddr()
}

// Write sends data to the configured remote peer.
func (e *Endpoint) Write(data []byte) (int, error) {
	n, err := e.conn.WriteToUDP(data, e.remote)
	if err != nil {
		return n, fmt.Errorf("network: write to %s: %w", e.remote, err)
	}
	return n, nil
}

// Read returns one immediately available datagram, or (nil, nil) if none is
// waiting. It never blocks the caller: the read deadline is set to "now",
// so the kernel read returns at once either way. Datagrams from a source IP
// other than the configured remote host are silently dropped and do not
// count as "no data": Read keeps polling the socket for the remainder of
// this call only if doing so still can't block, i.e. it drains anything
// already queued from the wrong host before giving up.
func (e *Endpoint) Read() ([]byte, error) {
	buf := make([]byte, 4096)
	for {
		if err := e.conn.SetReadDeadline(time.Now()); err != nil {
			return nil, fmt.Errorf("network: set read deadline: %w", err)
		}
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil, nil
			}
			return nil, fmt.Errorf("network: read: %w", err)
		}
		if !addr.IP.Equal(e.remote.IP) {
			continue
		}
		out := make([]byte, n)
		copy(out, buf[:n])
		return out, nil
	}
}
