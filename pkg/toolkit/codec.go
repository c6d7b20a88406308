package toolkit

import (
	"errors"
	"fmt"
	"io"

	"dstar-toolkit/internal/golay"
	"dstar-toolkit/internal/vocoder"
	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/stream"
)

// slowDataSync is the 3-byte slow-data synchronization pattern carried on
// the first frame of every 21-frame superframe.
var slowDataSync = [3]byte{0x55, 0x2D, 0x16}

// FrameSource yields successive 160-sample PCM frames, ending with io.EOF.
// wavio.Reader satisfies it.
type FrameSource interface {
	ReadFrame() ([vocoder.SamplesPerFrame]int16, error)
}

// FrameSink consumes decoded 160-sample PCM frames. wavio.Writer
// satisfies it.
type FrameSink interface {
	WriteFrame([vocoder.SamplesPerFrame]int16) error
}

// encodeFlag3 maps a Codec2 mode to the flag_3 vocoder hint stamped on
// encoded streams.
func encodeFlag3(mode int) (byte, error) {
	switch mode {
	case vocoder.Codec2Mode3200:
		return dstar.Flag3Codec2, nil
	case vocoder.Codec2Mode2400:
		return dstar.Flag3Codec2 | dstar.Flag3Mode2400, nil
	default:
		return 0, fmt.Errorf("%w: codec2 mode %d", ErrUnsupportedVocoder, mode)
	}
}

// EncodeStream runs every PCM frame of src through enc and assembles the
// result into a DVTool-ready stream: a header stamped with the vocoder
// hint for mode, then one voice frame per PCM frame, sequence numbers
// cycling 0..20, slow-data sync on every superframe boundary, and the
// final frame carrying the stream-terminal marker. For Codec2-2400 the
// 6-byte vocoder output is extended with Golay(23,12) parity over its
// first 24 bits to fill the 9-byte payload.
func EncodeStream(src FrameSource, enc vocoder.Encoder, mode int) (*dvtool.Stream, error) {
	flag3, err := encodeFlag3(mode)
	if err != nil {
		return nil, err
	}

	nocall := dstar.MustCallsign("NOCALL")
	blank, err := dstar.NewSuffix("    ")
	if err != nil {
		return nil, fmt.Errorf("toolkit: %w", err)
	}

	header := &stream.DVHeaderPacket{
		Header: dstar.DSTARHeader{
			Flag3:      flag3,
			Repeater1:  nocall,
			Repeater2:  nocall,
			UrCallsign: nocall,
			MyCallsign: nocall,
			MySuffix:   blank,
		},
	}

	var frames []*stream.DVFramePacket
	for seq := 0; ; seq++ {
		samples, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("toolkit: read samples: %w", err)
		}

		payload, err := enc.Encode(samples)
		if err != nil {
			return nil, fmt.Errorf("toolkit: encode frame %d: %w", seq, err)
		}

		var dvcodec [9]byte
		if mode == vocoder.Codec2Mode2400 {
			if len(payload) < 6 {
				return nil, fmt.Errorf("toolkit: codec2-2400 frame %d is %d bytes, want 6", seq, len(payload))
			}
			var in [6]byte
			copy(in[:], payload)
			dvcodec = fecEncode(in)
		} else {
			copy(dvcodec[:], payload)
		}

		frame := &stream.DVFramePacket{
			PacketID: stream.NewFrameID(seq, false),
			Frame:    dstar.DSTARFrame{DVCodec: dvcodec},
		}
		if frame.Sequence() == 0 {
			frame.Frame.DVData = slowDataSync
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("toolkit: input shorter than one voice frame")
	}
	frames[len(frames)-1].PacketID |= stream.PacketIDLastBit

	return &dvtool.Stream{Header: header, Frames: frames}, nil
}

// DecodeStream runs every voice frame of s through dec and writes the PCM
// frames to sink. The payload handed to dec is sliced by the header's
// vocoder hint: 9 bytes for AMBE, 8 for Codec2-3200, and the 6
// FEC-corrected bytes for Codec2-2400.
func DecodeStream(s *dvtool.Stream, dec vocoder.Decoder, sink FrameSink) error {
	flag3 := s.Header.Header.Flag3
	if flag3&^(dstar.Flag3Codec2|dstar.Flag3Mode2400|dstar.Flag3FEC) != 0 {
		return fmt.Errorf("%w: flag_3=%#x", ErrUnsupportedVocoder, flag3)
	}

	for i, f := range s.Frames {
		var payload []byte
		switch {
		case flag3&dstar.Flag3Codec2 == 0:
			payload = f.Frame.DVCodec[:]
		case flag3&dstar.Flag3Mode2400 != 0:
			corrected, _ := fecDecode(f.Frame.DVCodec)
			payload = corrected[:]
		default:
			payload = f.Frame.DVCodec[:8]
		}

		samples, err := dec.Decode(payload)
		if err != nil {
			return fmt.Errorf("toolkit: decode frame %d: %w", i, err)
		}
		if err := sink.WriteFrame(samples); err != nil {
			return fmt.Errorf("toolkit: write samples: %w", err)
		}
	}
	return nil
}

// fecEncode extends a 6-byte Codec2-2400 frame to the 9-byte voice payload
// by appending Golay(23,12) parity over its first 24 bits: two codewords,
// each covering 12 data bits, their 11-bit parity tails packed
// back-to-back into the trailing 3 bytes (the last 2 bits are unused).
func fecEncode(in [6]byte) [9]byte {
	var out [9]byte
	copy(out[:6], in[:])

	cw1 := golay.Encode(uint16(in[0])<<4 | uint16(in[1])>>4)
	cw2 := golay.Encode((uint16(in[1])&0x0F)<<8 | uint16(in[2]))

	out[6] = byte(cw1 >> 3)
	out[7] = byte(cw1&0x07)<<5 | byte(cw2>>6)&0x1F
	out[8] = byte(cw2&0x3F) << 2
	return out
}

// fecDecode reverses fecEncode, correcting up to 3 bit errors per
// codeword in the protected first 3 bytes. errs is the total number of
// corrected bits, or -1 if golay.Decode reports -1 for either codeword; the
// data bits golay.Decode returned are used either way.
func fecDecode(in [9]byte) ([6]byte, int) {
	var out [6]byte
	copy(out[:], in[:6])

	parity1 := uint32(in[6])<<3 | uint32(in[7])>>5
	parity2 := (uint32(in[7])&0x1F)<<6 | uint32(in[8])>>2

	cw1 := uint32(in[0])<<15 | uint32(in[1])>>4<<11 | parity1
	cw2 := (uint32(in[1])&0x0F)<<19 | uint32(in[2])<<11 | parity2

	data1, errs1 := golay.Decode(cw1)
	data2, errs2 := golay.Decode(cw2)

	out[0] = byte(data1 >> 4)
	out[1] = byte(data1&0x0F)<<4 | byte(data2>>8)
	out[2] = byte(data2)

	if errs1 < 0 || errs2 < 0 {
		return out, -1
	}
	return out, errs1 + errs2
}
