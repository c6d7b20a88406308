package network

import (
	"sync"
	"sync/atomic"
	"time"

	"dstar-toolkit/pkg/logger"
)

// Classification is the result of inspecting one received datagram: at
// most one of Packet/AutoReply/Disconnect is meaningful.
type Classification struct {
	// Packet is the decoded value to enqueue for the foreground, or nil if
	// the datagram carried no user-visible packet.
	Packet interface{}
	// AutoReply, if non-nil, is written back to the peer immediately from
	// the worker goroutine and never enqueued.
	AutoReply []byte
	// Disconnect marks that the peer has signalled it is going away; the
	// worker enqueues a nil sentinel the connection reads as DISCONNECTED.
	Disconnect bool
}

// ProcessFunc classifies one raw datagram. An error means the datagram was
// unrecognized by every known decoder; it is logged and dropped.
type ProcessFunc func(data []byte) (Classification, error)

// Worker is the per-connection background receive task (C6): it drains the
// endpoint, classifies each datagram, answers keepalives inline, and
// enqueues everything else onto a bounded single-producer/single-consumer
// FIFO for the owning connection to read.
type Worker struct {
	endpoint  *Endpoint
	process   ProcessFunc
	idleSleep time.Duration
	log       *logger.Logger

	queue   chan interface{}
	stopped int32
	done    chan struct{}
	once    sync.Once
}

// NewWorker builds a Worker over endpoint. queueSize bounds the FIFO;
// idleSleep is the pause between empty polls.
func NewWorker(endpoint *Endpoint, process ProcessFunc, idleSleep time.Duration, queueSize int, log *logger.Logger) *Worker {
	return &Worker{
		endpoint:  endpoint,
		process:   process,
		idleSleep: idleSleep,
		log:       log,
		queue:     make(chan interface{}, queueSize),
		done:      make(chan struct{}),
	}
}

// Queue is the channel the owning connection reads classified packets and
// the disconnect sentinel (nil) from.
func (w *Worker) Queue() <-chan interface{} {
	return w.queue
}

// Start spawns the receive loop. It must be called at most once.
func (w *Worker) Start() {
	go w.run()
}

// Stop sets the cooperative stop flag and blocks until the loop has
// exited. Idempotent.
func (w *Worker) Stop() {
	atomic.StoreInt32(&w.stopped, 1)
	<-w.done
}

func (w *Worker) run() {
	defer w.once.Do(func() { close(w.done) })

	for atomic.LoadInt32(&w.stopped) == 0 {
		data, err := w.endpoint.Read()
		if err != nil {
			w.log.Error("worker read failed", logger.Error(err))
			return
		}
		if data == nil {
			time.Sleep(w.idleSleep)
			continue
		}

		class, err := w.process(data)
		if err != nil {
			w.log.Debug("dropping unrecognized datagram", logger.Error(err), logger.Int("bytes", len(data)))
			continue
		}

		switch {
		case class.AutoReply != nil:
			if _, err := w.endpoint.Write(class.AutoReply); err != nil {
				w.log.Error("auto-reply send failed", logger.Error(err))
			}
		case class.Disconnect:
			w.enqueue(nil)
		case class.Packet != nil:
			w.enqueue(class.Packet)
		}
	}
}

func (w *Worker) enqueue(v interface{}) {
	select {
	case w.queue <- v:
	default:
		w.log.Warn("receive queue full, dropping packet")
	}
}
