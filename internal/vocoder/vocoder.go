// Package vocoder defines the external-collaborator interfaces this
// toolkit consumes but does not implement: audio encode/decode bindings to
// vocoder libraries are linked in separately, so every caller here depends
// only on these opaque frame-in/frame-out shapes.
package vocoder

// SamplesPerFrame is the fixed PCM frame size every encoder/decoder call
// operates on: 20ms of 8kHz audio.
const SamplesPerFrame = 160

// Encoder turns one 160-sample PCM frame into a vocoder payload (8 bytes
// for Codec2-3200, 6 for Codec2-2400 before FEC framing, 9 for AMBE). An
// Encoder carries its own vocoder-library state across calls; this toolkit
// never inspects it.
type Encoder interface {
	Encode(samples [SamplesPerFrame]int16) ([]byte, error)
}

// Decoder turns one vocoder payload back into a 160-sample PCM frame.
type Decoder interface {
	Decode(payload []byte) ([SamplesPerFrame]int16, error)
}

// FEC describes the Golay(23,12) forward error correction contract of the
// Codec2-2400 framing layer. internal/golay's package-level Encode and
// Decode have these signatures; no type in this module implements the
// interface, and pkg/toolkit calls internal/golay directly.
type FEC interface {
	Encode(data uint16) uint32
	Decode(code uint32) (data uint16, errs int)
}
