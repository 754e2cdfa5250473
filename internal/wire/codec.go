package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/arcfabric/storecore/internal/errs"
)

// Writer accumulates operation payloads into a single body buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) AppendU32(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) AppendU64(v uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// AppendN appends a length-prefixed (u64) byte slice.
func (w *Writer) AppendN(p []byte) *Writer {
	w.AppendU64(uint64(len(p)))
	w.buf = append(w.buf, p...)
	return w
}

// AppendString appends a length-prefixed UTF-8 string.
func (w *Writer) AppendString(s string) *Writer {
	return w.AppendN([]byte(s))
}

func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes a body buffer sequentially, mirroring the original
// get_4/get_8/get_n accessors.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) GetU32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, fmt.Errorf("wire: short read for u32: %w", errs.Protocol)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *Reader) GetU64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, fmt.Errorf("wire: short read for u64: %w", errs.Protocol)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *Reader) GetN(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("wire: short read for %d bytes: %w", n, errs.Protocol)
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

// GetBytes reads a length-prefixed (u64) byte slice.
func (r *Reader) GetBytes() ([]byte, error) {
	n, err := r.GetU64()
	if err != nil {
		return nil, err
	}
	return r.GetN(int(n))
}

func (r *Reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
