// Package reflector implements the DExtra, DExtra-Open, and D-Plus
// reflector client protocols on top of a shared stream-connection state
// machine.
package reflector

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/network"
	"dstar-toolkit/pkg/stream"
)

// State is a Connection's lifecycle state.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var (
	// ErrDisconnected is returned from Read once the peer has signalled
	// disconnection. Write does not check for it.
	ErrDisconnected = errors.New("reflector: connection disconnected")
	// ErrTimeout is returned when a handshake or read does not complete
	// within its budget.
	ErrTimeout = errors.New("reflector: timed out waiting for reply")
	// ErrConnectRejected is returned when a reflector NACKs a connect
	// request.
	ErrConnectRejected = errors.New("reflector: connect rejected")
	// ErrLoginBusy is returned when a D-Plus login fails because the
	// reflector is full.
	ErrLoginBusy = errors.New("reflector: login busy")
	// ErrLoginFailed is returned when a D-Plus login is rejected.
	ErrLoginFailed = errors.New("reflector: login failed")
)

// Protocol is implemented once per wire protocol (DExtra, DExtra-Open,
// D-Plus). Connect and Disconnect run the protocol's handshake using the
// Connection's write/readAccept primitives; Classify is handed to the
// receive worker to decode and dispatch every inbound datagram.
// EncodeDVHeader/EncodeDVFrame wrap a decoded voice packet back into the
// protocol's own wire shape (D-Plus prefixes and terminator-pads; DExtra
// emits the DSVT envelope unchanged), so orchestration code can write
// voice packets without caring which protocol it is driving.
type Protocol interface {
	DefaultPort() int
	Connect(c *Connection) error
	Disconnect(c *Connection)
	Classify(data []byte) (network.Classification, error)
	EncodeDVHeader(h *stream.DVHeaderPacket) []byte
	EncodeDVFrame(f *stream.DVFramePacket) []byte
}

// Connection is the stream-connection base shared by all three reflector
// protocols (C7): lifecycle management, a bounded-timeout queue reader,
// and disconnect signaling, parametrized by a Protocol.
type Connection struct {
	proto   Protocol
	ep      *network.Endpoint
	worker  *network.Worker
	log     *logger.Logger
	timeout time.Duration

	mu    sync.RWMutex
	state State
}

// Options configures a Connection's timing and local bind address.
type Options struct {
	Port             int // overrides proto.DefaultPort() when non-zero
	LocalBind        *net.UDPAddr
	HandshakeTimeout time.Duration
	WorkerIdleSleep  time.Duration
	QueueSize        int
	Log              *logger.Logger
}

// Open resolves host, binds a local endpoint, starts the receive worker,
// and runs the protocol's connect handshake. On any failure it rolls back
// to StateClosed.
func Open(host string, proto Protocol, opts Options) (*Connection, error) {
	port := opts.Port
	if port == 0 {
		port = proto.DefaultPort()
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 3 * time.Second
	}
	if opts.WorkerIdleSleep == 0 {
		opts.WorkerIdleSleep = 10 * time.Millisecond
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = 64
	}
	if opts.Log == nil {
		opts.Log = logger.New(logger.Config{Level: "error"})
	}

	ep, err := network.NewEndpoint(host, port, opts.LocalBind)
	if err != nil {
		return nil, fmt.Errorf("reflector: %w", err)
	}

	c := &Connection{
		proto:   proto,
		ep:      ep,
		log:     opts.Log.WithComponent("reflector"),
		timeout: opts.HandshakeTimeout,
		state:   StateOpening,
	}

	if err := ep.Open(); err != nil {
		c.setState(StateClosed)
		return nil, fmt.Errorf("reflector: %w", err)
	}

	c.worker = network.NewWorker(ep, proto.Classify, opts.WorkerIdleSleep, opts.QueueSize, opts.Log)
	c.worker.Start()

	if err := proto.Connect(c); err != nil {
		c.worker.Stop()
		ep.Close()
		c.setState(StateClosed)
		return nil, err
	}

	c.setState(StateOpen)
	return c, nil
}

// Close drains pending packets, runs the protocol's disconnect handshake
// (unless the peer already disconnected us), stops the worker, and closes
// the socket. Idempotent.
func (c *Connection) Close() error {
	prev := c.getState()
	if prev == StateClosed {
		return nil
	}
	c.setState(StateClosing)

	// Drain packets still queued; a disconnect sentinel among them means the
	// peer already ended the session.
	for drained := false; !drained; {
		select {
		case v := <-c.worker.Queue():
			if v == nil {
				prev = StateDisconnected
			}
		default:
			drained = true
		}
	}

	if prev != StateDisconnected {
		c.proto.Disconnect(c)
	}

	c.worker.Stop()
	err := c.ep.Close()
	c.setState(StateClosed)
	return err
}

// Write serializes and sends a packet.
func (c *Connection) Write(data []byte) error {
	_, err := c.ep.Write(data)
	return err
}

// WriteDVHeader wraps h in this connection's protocol shape and sends it.
func (c *Connection) WriteDVHeader(h *stream.DVHeaderPacket) error {
	return c.Write(c.proto.EncodeDVHeader(h))
}

// WriteDVFrame wraps f in this connection's protocol shape and sends it.
func (c *Connection) WriteDVFrame(f *stream.DVFramePacket) error {
	return c.Write(c.proto.EncodeDVFrame(f))
}

// Read waits up to timeout for the next user-visible packet. It returns
// ErrTimeout when the budget elapses with nothing queued, and
// ErrDisconnected once the worker has signalled the peer went away.
func (c *Connection) Read(timeout time.Duration) (interface{}, error) {
	return c.readAccept(timeout, func(interface{}) bool { return true })
}

// readAccept drains queued packets until one matches accept or the
// deadline (a wall-clock budget, not per-iteration) elapses. Non-matching
// packets are discarded. A nil sentinel is interpreted as DISCONNECTED.
func (c *Connection) readAccept(timeout time.Duration, accept func(interface{}) bool) (interface{}, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		select {
		case v, ok := <-c.worker.Queue():
			if !ok {
				return nil, ErrDisconnected
			}
			if v == nil {
				c.setState(StateDisconnected)
				return nil, ErrDisconnected
			}
			if accept(v) {
				return v, nil
			}
		case <-time.After(remaining):
			return nil, ErrTimeout
		}
	}
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	return c.getState()
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) getState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
