// Package dvtool implements the DVTool file container: a simple
// magic-prefixed, count-prefixed sequence of size-prefixed DSVT packet
// records, used to capture and replay a single D-STAR voice stream.
package dvtool

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"dstar-toolkit/pkg/stream"
)

const magic = "DVTOOL"

var (
	// ErrBadMagic is returned when a file does not begin with "DVTOOL".
	ErrBadMagic = errors.New("dvtool: bad magic")
	// ErrTruncatedRecord is returned when a record's declared size bytes
	// are not fully present.
	ErrTruncatedRecord = errors.New("dvtool: truncated record")
	// ErrWrongSize is returned when a record's declared size does not
	// match the expected size for its position.
	ErrWrongSize = errors.New("dvtool: wrong record size")
)

// Stream is an ordered capture of one D-STAR voice transmission: a header
// followed by its frames, all sharing one stream_id.
type Stream struct {
	Header *stream.DVHeaderPacket
	Frames []*stream.DVFramePacket
}

// Write truncates path and emits s as a DVTool container. Writing is
// all-or-nothing from the caller's perspective: a failure partway through
// leaves a truncated, unusable file, by design of the underlying format.
func Write(path string, s *Stream) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dvtool: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteTo(w, s); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("dvtool: flush %s: %w", path, err)
	}
	return nil
}

// WriteTo writes s in DVTool container format to w.
func WriteTo(w io.Writer, s *Stream) error {
	count := uint32(0)
	if s.Header != nil {
		count = 1
	}
	count += uint32(len(s.Frames))

	if _, err := io.WriteString(w, magic); err != nil {
		return fmt.Errorf("dvtool: write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return fmt.Errorf("dvtool: write count: %w", err)
	}

	if s.Header != nil {
		if err := writeRecord(w, stream.HeaderPacketSize, s.Header.Encode()); err != nil {
			return err
		}
	}
	for _, frame := range s.Frames {
		if err := writeRecord(w, stream.FramePacketSize, frame.Encode()); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, size int, payload []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(size)); err != nil {
		return fmt.Errorf("dvtool: write record size: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("dvtool: write record payload: %w", err)
	}
	return nil
}

// Read loads a DVTool container from path.
func Read(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dvtool: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadFrom(bufio.NewReader(f))
}

// ReadFrom parses a DVTool container from r.
func ReadFrom(r io.Reader) (*Stream, error) {
	header := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("dvtool: read container header: %w", err)
	}
	if string(header[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, header[:len(magic)])
	}
	count := binary.LittleEndian.Uint32(header[len(magic):])

	s := &Stream{}
	for i := uint32(0); i < count; i++ {
		wantSize := stream.FramePacketSize
		if i == 0 {
			wantSize = stream.HeaderPacketSize
		}

		sizeBuf := make([]byte, 2)
		if _, err := io.ReadFull(r, sizeBuf); err != nil {
			return nil, fmt.Errorf("%w: record %d size: %v", ErrTruncatedRecord, i, err)
		}
		size := int(binary.LittleEndian.Uint16(sizeBuf))
		if size != wantSize {
			return nil, fmt.Errorf("%w: record %d is %d bytes, want %d", ErrWrongSize, i, size, wantSize)
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: record %d payload: %v", ErrTruncatedRecord, i, err)
		}

		if i == 0 {
			h, err := stream.DecodeDVHeader(payload)
			if err != nil {
				return nil, fmt.Errorf("dvtool: decoding header record: %w", err)
			}
			s.Header = h
			continue
		}
		frame, err := stream.DecodeDVFrame(payload)
		if err != nil {
			return nil, fmt.Errorf("dvtool: decoding frame record %d: %w", i, err)
		}
		s.Frames = append(s.Frames, frame)
	}
	return s, nil
}
