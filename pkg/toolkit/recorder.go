package toolkit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/recordingdb"
	"dstar-toolkit/pkg/reflector"
	"dstar-toolkit/pkg/stream"
)

// Recorder implements the recorder flow (C11): it reads packets from an
// open reflector connection, demultiplexes by stream_id, and flushes every
// completed stream (the frame carrying the "last" bit) to its own DVTool
// file. Frames whose stream_id doesn't match the in-progress stream are
// ignored.
type Recorder struct {
	conn            *reflector.Connection
	outDir          string
	db              *recordingdb.DB // optional; nil disables the recordings index
	reflectorName   string
	readTimeout     time.Duration
	log             *logger.Logger
}

// NewRecorder builds a Recorder writing completed streams under outDir. db
// may be nil to skip indexing.
func NewRecorder(conn *reflector.Connection, outDir, reflectorName string, db *recordingdb.DB, log *logger.Logger) *Recorder {
	return &Recorder{
		conn:          conn,
		outDir:        outDir,
		db:            db,
		reflectorName: reflectorName,
		readTimeout:   1 * time.Second,
		log:           log,
	}
}

// Run reads and demultiplexes packets until ctx is cancelled or the
// reflector signals disconnection. It returns nil on either a clean
// cancellation or a peer disconnect; any in-progress (not yet terminated)
// stream at that point is discarded rather than flushed.
func (r *Recorder) Run(ctx context.Context) error {
	var current *dvtool.Stream
	var currentID uint16

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pkt, err := r.conn.Read(r.readTimeout)
		if err != nil {
			if errors.Is(err, reflector.ErrTimeout) {
				continue
			}
			if errors.Is(err, reflector.ErrDisconnected) {
				return nil
			}
			return fmt.Errorf("toolkit: recorder read: %w", err)
		}

		switch p := pkt.(type) {
		case *stream.DVHeaderPacket:
			current = &dvtool.Stream{Header: p}
			currentID = p.StreamID()

		case *stream.DVFramePacket:
			if current == nil || p.StreamID() != currentID {
				continue
			}
			current.Frames = append(current.Frames, p)
			if p.IsLast() {
				if err := r.flush(current); err != nil {
					r.log.Error("failed to flush recorded stream", logger.Error(err), logger.Uint32("stream_id", uint32(currentID)))
				}
				current = nil
			}
		}
	}
}

func (r *Recorder) flush(s *dvtool.Stream) error {
	path := filepath.Join(r.outDir, fmt.Sprintf("%d.dvtool", s.Header.StreamID()))
	if err := dvtool.Write(path, s); err != nil {
		return fmt.Errorf("toolkit: write %s: %w", path, err)
	}
	r.log.Info("recorded stream",
		logger.Uint32("stream_id", uint32(s.Header.StreamID())),
		logger.String("path", path),
		logger.Int("frames", len(s.Frames)))

	if r.db == nil {
		return nil
	}
	rec := &recordingdb.Recording{
		StreamID:        s.Header.StreamID(),
		SourceReflector: r.reflectorName,
		PeerCallsign:    s.Header.Header.MyCallsign.String(),
		FilePath:        path,
		FrameCount:      len(s.Frames) + 1,
		RecordedAt:      time.Now(),
	}
	if err := r.db.Record(rec); err != nil {
		return fmt.Errorf("toolkit: index recording: %w", err)
	}
	return nil
}
