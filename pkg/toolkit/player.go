package toolkit

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/reflector"
	"dstar-toolkit/pkg/stream"
)

// Player implements the player flow (C11): it rewrites a loaded DVTool
// stream's header fields for the target reflector and module, assigns a
// fresh stream_id, and writes the stream back out at 20ms frame pacing.
type Player struct {
	conn   *reflector.Connection
	pacing time.Duration
	log    *logger.Logger
}

// NewPlayer builds a Player over an already-open reflector connection.
func NewPlayer(conn *reflector.Connection, pacing time.Duration, log *logger.Logger) *Player {
	if pacing <= 0 {
		pacing = 20 * time.Millisecond
	}
	return &Player{conn: conn, pacing: pacing, log: log}
}

// Rewrite rebuilds s's header for playback against reflectorCallsign/module
// under myCallsign: suffix blanked, UR set to CQCQCQ, and
// the repeater callsigns derived from the reflector callsign plus module.
// It does not mutate s; it returns a new Stream sharing s's frames with a
// freshly assigned stream_id.
func Rewrite(s *dvtool.Stream, myCallsign dstar.Callsign, reflectorCallsign string, module dstar.Module) (*dvtool.Stream, error) {
	ur, err := dstar.NewCallsign("CQCQCQ")
	if err != nil {
		return nil, fmt.Errorf("toolkit: %w", err)
	}
	suffix, err := dstar.NewSuffix("    ")
	if err != nil {
		return nil, fmt.Errorf("toolkit: %w", err)
	}
	rep1, err := repeaterCallsign(reflectorCallsign, module.Byte())
	if err != nil {
		return nil, fmt.Errorf("toolkit: repeater-1 callsign: %w", err)
	}
	rep2, err := repeaterCallsign(reflectorCallsign, 'G')
	if err != nil {
		return nil, fmt.Errorf("toolkit: repeater-2 callsign: %w", err)
	}

	newHeader := s.Header.Header
	newHeader.MyCallsign = myCallsign
	newHeader.MySuffix = suffix
	newHeader.UrCallsign = ur
	newHeader.Repeater1 = rep1
	newHeader.Repeater2 = rep2

	streamID := uint16(rand.Intn(1 << 16))

	frames := make([]*stream.DVFramePacket, len(s.Frames))
	for i, f := range s.Frames {
		nf := *f
		nf.ID = streamID
		frames[i] = &nf
	}

	return &dvtool.Stream{
		Header: &stream.DVHeaderPacket{ID: streamID, Header: newHeader},
		Frames: frames,
	}, nil
}

// repeaterCallsign derives an 8-character repeater callsign from a
// reflector callsign's first 7 characters (space-padded or truncated) plus
// a trailing module byte.
func repeaterCallsign(reflectorCallsign string, module byte) (dstar.Callsign, error) {
	base := strings.ToUpper(strings.TrimSpace(reflectorCallsign))
	if len(base) > 7 {
		base = base[:7]
	}
	for len(base) < 7 {
		base += " "
	}
	return dstar.NewCallsign(base + string(module))
}

// Play writes s's header followed by all its frames, pacing frame writes
// at p.pacing. It stops early if ctx is cancelled.
func (p *Player) Play(ctx context.Context, s *dvtool.Stream) error {
	if err := p.conn.WriteDVHeader(s.Header); err != nil {
		return fmt.Errorf("toolkit: write header: %w", err)
	}

	for _, f := range s.Frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := p.conn.WriteDVFrame(f); err != nil {
			return fmt.Errorf("toolkit: write frame: %w", err)
		}
		time.Sleep(p.pacing)
	}

	p.log.Info("played stream", logger.Uint32("stream_id", uint32(s.Header.StreamID())), logger.Int("frames", len(s.Frames)))
	return nil
}
