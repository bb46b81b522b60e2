// Package wire implements the on-the-wire packet schema: a tagged union of
// packet variants plus the primitives used to encode and decode them.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by every Read* method when the buffer runs out
// before the requested field is fully available.
var ErrShortBuffer = errors.New("wire: buffer too short")

// Writer appends fields to a growing byte buffer, big-endian.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the buffer written so far.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) { w.buf = append(w.buf, b) }

// WriteUint16 appends v, big-endian.
func (w *Writer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteUint32 appends v, big-endian.
func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteBytes appends a length-prefixed byte slice.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader consumes fields from a byte buffer, big-endian, tracking an offset.
type Reader struct {
	buf    []byte
	offset int
}

// NewReader wraps data for sequential reads.
func NewReader(data []byte) *Reader { return &Reader{buf: data} }

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.offset >= len(r.buf) {
		return 0, ErrShortBuffer
	}
	b := r.buf[r.offset]
	r.offset++
	return b, nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if r.offset+2 > len(r.buf) {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint16(r.buf[r.offset:])
	r.offset += 2
	return v, nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.offset+4 > len(r.buf) {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(r.buf[r.offset:])
	r.offset += 4
	return v, nil
}

// ReadBytes reads a length-prefixed byte slice.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if r.offset+int(n) > len(r.buf) {
		return nil, ErrShortBuffer
	}
	b := make([]byte, n)
	copy(b, r.buf[r.offset:r.offset+int(n)])
	r.offset += int(n)
	return b, nil
}
