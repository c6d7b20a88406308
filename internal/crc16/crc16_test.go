package crc16

import "testing"

func TestChecksumRoundTrip(t *testing.T) {
	data := []byte("123456789")
	sum := Checksum(data)

	h := New()
	h.Update(data)
	if !h.Verify(sum) {
		t.Fatalf("Verify failed for freshly computed checksum")
	}
}

func TestChecksumIncrementalMatchesOneShot(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	oneShot := Checksum(data)

	h := New()
	h.Update(data[:3])
	h.Update(data[3:])
	if h.Digest() != oneShot {
		t.Fatalf("incremental digest %v != one-shot %v", h.Digest(), oneShot)
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	sum := Checksum(data)

	corrupted := append([]byte(nil), data...)
	corrupted[1] ^= 0x01

	h := New()
	h.Update(corrupted)
	if h.Verify(sum) {
		t.Fatalf("Verify should fail after corruption")
	}
}
