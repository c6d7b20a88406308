package vocoder

import "errors"

// Codec2 operating modes this toolkit drives.
const (
	Codec2Mode3200 = 3200
	Codec2Mode2400 = 2400
)

// ErrUnavailable is returned when a CLI tool needs a vocoder binding that
// was not linked into the build.
var ErrUnavailable = errors.New("vocoder: no binding linked into this build")

// Factory hooks. A binding package (cgo wrapper around libcodec2/mbelib)
// registers itself from init(); the encoder and decoder tools resolve
// their vocoder through these and fail with ErrUnavailable otherwise.
var (
	Codec2Binding func(mode int) (Encoder, Decoder, error)
	AMBEBinding   func() (Decoder, error)
)

// NewCodec2 resolves a Codec2 encoder/decoder pair for mode (3200 or
// 2400) through the registered binding.
func NewCodec2(mode int) (Encoder, Decoder, error) {
	if Codec2Binding == nil {
		return nil, nil, ErrUnavailable
	}
	return Codec2Binding(mode)
}

// NewAMBE resolves an AMBE decoder through the registered binding.
func NewAMBE() (Decoder, error) {
	if AMBEBinding == nil {
		return nil, ErrUnavailable
	}
	return AMBEBinding()
}
