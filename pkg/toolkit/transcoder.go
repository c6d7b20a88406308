package toolkit

import (
	"errors"
	"fmt"
	"time"

	"dstar-toolkit/pkg/ambed"
	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/stream"
)

// ErrUnsupportedVocoder is returned when a header's flag_3 hint does not
// map to a codec this transcoder knows how to convert.
var ErrUnsupportedVocoder = errors.New("toolkit: unsupported vocoder")

// Transcoder implements the transcoder flow (C11): it detects a captured
// stream's source vocoder from its header's flag_3 hint, opens an AMBEd
// stream for the implied conversion, bursts the captured frames through
// it, and rebuilds a DVTool stream from the transcoded output.
type Transcoder struct {
	client      *ambed.Client
	framePacing time.Duration
	idleSleep   time.Duration
	readTimeout time.Duration
	log         *logger.Logger
}

// NewTranscoder wraps an already-open AMBEd control-plane client.
func NewTranscoder(client *ambed.Client, framePacing, idleSleep time.Duration, log *logger.Logger) *Transcoder {
	if framePacing <= 0 {
		framePacing = 20 * time.Millisecond
	}
	return &Transcoder{client: client, framePacing: framePacing, idleSleep: idleSleep, readTimeout: 3 * time.Second, log: log}
}

// detectCodec maps a header's flag_3 vocoder-version hint to the
// AMBEd codec tag describing the stream's current encoding. The standard
// field carries no AMBE-family sub-variant, so an AMBE-family hint (bit 0
// unset) is read as AMBE2PLUS, the vocoder currently deployed on D-STAR
// reflectors, rather than the older AMBEPLUS.
func detectCodec(flag3 byte) ambed.CodecTag {
	if flag3&dstar.Flag3Codec2 == 0 {
		return ambed.CodecAMBE2Plus
	}
	if flag3&dstar.Flag3Mode2400 != 0 {
		return ambed.CodecCodec22400
	}
	return ambed.CodecCodec23200
}

// targetCodec picks the single output family this transcoder converts to,
// given the detected input family: AMBE-family sources convert to
// Codec2-3200 and Codec2-family sources convert to AMBE2PLUS. The CLI
// surface offers no explicit target selection, so this fixed
// pairing is the transcoder's whole policy.
func targetCodec(in ambed.CodecTag) ambed.CodecTag {
	switch in {
	case ambed.CodecAMBEPlus, ambed.CodecAMBE2Plus:
		return ambed.CodecCodec23200
	case ambed.CodecCodec23200, ambed.CodecCodec22400:
		return ambed.CodecAMBE2Plus
	default:
		return ambed.CodecNone
	}
}

// flag3For builds the flag_3 hint for a freshly produced output vocoder.
func flag3For(codec ambed.CodecTag) byte {
	switch codec {
	case ambed.CodecCodec23200:
		return dstar.Flag3Codec2
	case ambed.CodecCodec22400:
		return dstar.Flag3Codec2 | dstar.Flag3Mode2400
	default:
		return 0
	}
}

// Transcode converts every frame of s to the implied target vocoder and
// returns a new Stream with flag_3 rewritten accordingly. s is not
// mutated.
func (tc *Transcoder) Transcode(callsign dstar.Callsign, s *dvtool.Stream) (*dvtool.Stream, error) {
	in := detectCodec(s.Header.Header.Flag3)
	out := targetCodec(in)
	if out == ambed.CodecNone {
		return nil, fmt.Errorf("%w: flag_3=%#x", ErrUnsupportedVocoder, s.Header.Header.Flag3)
	}

	strm, err := tc.client.OpenStream(callsign, in, tc.idleSleep)
	if err != nil {
		return nil, fmt.Errorf("toolkit: open transcoder stream: %w", err)
	}
	defer strm.Close()

	// Burst every input frame first, pacing at one per 20ms: the
	// transcoder needs several pending inputs before it starts producing
	// outputs.
	for i, f := range s.Frames {
		in := ambed.FrameIn{Codec: in, PacketID: byte(i), Payload: f.Frame.DVCodec}
		if err := strm.WriteFrame(in); err != nil {
			return nil, fmt.Errorf("toolkit: write transcoder frame %d: %w", i, err)
		}
		time.Sleep(tc.framePacing)
	}

	// Then drain the transcoded outputs in order.
	outFrames := make([]*stream.DVFramePacket, len(s.Frames))
	for i, f := range s.Frames {
		fo, err := strm.ReadFrame(tc.readTimeout)
		if err != nil {
			return nil, fmt.Errorf("toolkit: read transcoder frame %d: %w", i, err)
		}
		nf := *f
		nf.Frame.DVCodec = fo.Select(out)
		outFrames[i] = &nf
	}

	newHeader := s.Header.Header
	newHeader.Flag3 = flag3For(out)

	tc.log.Info("transcoded stream",
		logger.Uint32("stream_id", uint32(s.Header.StreamID())),
		logger.Int("frames", len(outFrames)))

	return &dvtool.Stream{
		Header: &stream.DVHeaderPacket{ID: s.Header.StreamID(), Header: newHeader},
		Frames: outFrames,
	}, nil
}
