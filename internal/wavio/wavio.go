// Package wavio reads and writes the one WAV shape the encoder and
// decoder tools exchange with their vocoders: mono, 16-bit signed
// little-endian PCM at 8000 samples/sec.
package wavio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"dstar-toolkit/internal/vocoder"
)

// SampleRate is the only sample rate the vocoders operate at.
const SampleRate = 8000

// ErrBadFormat is returned when an input file is not mono 16-bit 8kHz PCM.
var ErrBadFormat = errors.New("wavio: input must be mono, 16-bit PCM, 8000 samples/sec")

// Reader yields successive 160-sample PCM frames from a WAV file. A final
// partial frame is discarded, matching the vocoders' fixed frame size.
type Reader struct {
	f         *os.File
	r         *bufio.Reader
	remaining uint32 // data chunk bytes left
}

// Open validates path's RIFF/fmt headers and positions the reader at the
// start of the data chunk.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: open %s: %w", path, err)
	}

	r := bufio.NewReader(f)
	rd := &Reader{f: f, r: r}
	if err := rd.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return rd, nil
}

func (rd *Reader) readHeader() error {
	riff := make([]byte, 12)
	if _, err := io.ReadFull(rd.r, riff); err != nil {
		return fmt.Errorf("wavio: read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return fmt.Errorf("wavio: not a WAV file")
	}

	// Walk chunks until "data", validating "fmt " along the way.
	sawFmt := false
	for {
		chunk := make([]byte, 8)
		if _, err := io.ReadFull(rd.r, chunk); err != nil {
			return fmt.Errorf("wavio: read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(rd.r, body); err != nil {
				return fmt.Errorf("wavio: read fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels := binary.LittleEndian.Uint16(body[2:4])
			rate := binary.LittleEndian.Uint32(body[4:8])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || channels != 1 || rate != SampleRate || bits != 16 {
				return ErrBadFormat
			}
			sawFmt = true

		case "data":
			if !sawFmt {
				return fmt.Errorf("wavio: data chunk before fmt chunk")
			}
			rd.remaining = size
			return nil

		default:
			if _, err := io.CopyN(io.Discard, rd.r, int64(size)); err != nil {
				return fmt.Errorf("wavio: skip %q chunk: %w", id, err)
			}
		}
	}
}

// ReadFrame returns the next full 160-sample frame, or io.EOF when fewer
// than 160 samples remain.
func (rd *Reader) ReadFrame() ([vocoder.SamplesPerFrame]int16, error) {
	var samples [vocoder.SamplesPerFrame]int16
	const frameBytes = vocoder.SamplesPerFrame * 2

	if rd.remaining < frameBytes {
		return samples, io.EOF
	}
	buf := make([]byte, frameBytes)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return samples, fmt.Errorf("wavio: read frame: %w", err)
	}
	rd.remaining -= frameBytes

	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples, nil
}

// Close releases the underlying file.
func (rd *Reader) Close() error {
	return rd.f.Close()
}

// Writer emits 160-sample PCM frames into a WAV file, patching the RIFF
// and data chunk sizes on Close.
type Writer struct {
	f         *os.File
	w         *bufio.Writer
	dataBytes uint32
}

// Create truncates path and writes a WAV header with placeholder sizes.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: create %s: %w", path, err)
	}
	w := &Writer{f: f, w: bufio.NewWriter(f)}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(dataBytes uint32) error {
	buf := make([]byte, 44)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 36+dataBytes)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], SampleRate*2) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)            // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)           // bits/sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataBytes)

	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("wavio: write header: %w", err)
	}
	return nil
}

// WriteFrame appends one 160-sample frame.
func (w *Writer) WriteFrame(samples [vocoder.SamplesPerFrame]int16) error {
	buf := make([]byte, vocoder.SamplesPerFrame*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(s))
	}
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("wavio: write frame: %w", err)
	}
	w.dataBytes += uint32(len(buf))
	return nil
}

// Close flushes buffered samples, rewrites the header with the final
// sizes, and closes the file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wavio: flush: %w", err)
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wavio: seek: %w", err)
	}
	w.w.Reset(w.f)
	if err := w.writeHeader(w.dataBytes); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wavio: flush header: %w", err)
	}
	return w.f.Close()
}
