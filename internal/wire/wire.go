// Package wire implements the length-prefixed framing primitives and the
// canonical record encoding used by all ironpigeon envelopes.
//
// Two primitives appear everywhere on the wire:
//
//   - size-and-buffer: a 4-byte little-endian unsigned length followed by
//     exactly that many bytes. Declared lengths are checked against a
//     ceiling before any allocation happens.
//   - record: a versioned, fixed-field-order binary encoding of the typed
//     records exchanged between peers. The layout is deterministic so that
//     independently produced encodings of the same value are byte-identical.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultFrameCeiling is the maximum declared size-and-buffer length
// accepted by readers unless a caller configures a different bound.
const DefaultFrameCeiling = 16 << 20 // 16 MiB

// Sentinel errors for errors.Is() checks.
var (
	// ErrFrameTooLarge is returned when a declared length exceeds the
	// reader's ceiling. The oversized buffer is never allocated.
	ErrFrameTooLarge = errors.New("declared frame length exceeds ceiling")

	// ErrTruncated is returned when the stream ends before the declared
	// number of bytes could be read.
	ErrTruncated = errors.New("truncated frame")
)

// WriteSizeAndBuffer writes b as a 4-byte little-endian length followed by
// the buffer bytes.
func WriteSizeAndBuffer(w io.Writer, b []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadSizeAndBuffer reads one size-and-buffer frame from r.
// The declared length is validated against ceiling before allocation;
// a ceiling of 0 means DefaultFrameCeiling.
func ReadSizeAndBuffer(r io.Reader, ceiling int) ([]byte, error) {
	if ceiling <= 0 {
		ceiling = DefaultFrameCeiling
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint32(hdr[:])
	if uint64(length) > uint64(ceiling) {
		return nil, fmt.Errorf("%w: declared %d, ceiling %d", ErrFrameTooLarge, length, ceiling)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrTruncated
	}
	return buf, nil
}

// WriteInt64 writes v as 8 little-endian bytes.
func WriteInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

// ReadInt64 reads an 8-byte little-endian signed integer.
func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// writeString writes s as a size-and-buffer of its UTF-8 bytes.
func writeString(w io.Writer, s string) error {
	return WriteSizeAndBuffer(w, []byte(s))
}

// readString reads a size-and-buffer and returns it as a string.
func readString(r io.Reader, ceiling int) (string, error) {
	b, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
