package bitreader

import (
	"encoding/binary"
	"math"
)

// Writer is the inverse of Reader. It is used to build demo fixtures and
// synthetic recordings.
type Writer struct {
	buf  []byte
	bits int
}

// WriteBits appends the low n bits of v, least significant first.
func (w *Writer) WriteBits(v uint64, n int) {
	for i := 0; i < n; i++ {
		if w.bits&7 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>i&1 == 1 {
			w.buf[w.bits>>3] |= 1 << (w.bits & 7)
		}
		w.bits++
	}
}

// WriteBit appends a single bit.
func (w *Writer) WriteBit(b bool) {
	var v uint64
	if b {
		v = 1
	}
	w.WriteBits(v, 1)
}

// WriteByte appends eight bits. It never fails.
func (w *Writer) WriteByte(b byte) error {
	w.WriteBits(uint64(b), 8)
	return nil
}

// WriteBytes appends p.
func (w *Writer) WriteBytes(p []byte) {
	if w.bits&7 == 0 {
		w.buf = append(w.buf, p...)
		w.bits += len(p) * 8
		return
	}
	for _, b := range p {
		_ = w.WriteByte(b)
	}
}

// WriteString appends s followed by a null terminator.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
	_ = w.WriteByte(0)
}

// WriteInt32LE appends a little-endian 32-bit integer.
func (w *Writer) WriteInt32LE(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.WriteBytes(b[:])
}

// WriteFloat32 appends a little-endian IEEE 754 float.
func (w *Writer) WriteFloat32(f float32) {
	w.WriteBits(uint64(math.Float32bits(f)), 32)
}

// WriteVarUint32 appends v as a base-128 varint.
func (w *Writer) WriteVarUint32(v uint32) {
	w.WriteBytes(AppendVarUint32(nil, v))
}

// WriteVarInt32 appends v zig-zag encoded.
func (w *Writer) WriteVarInt32(v int32) {
	w.WriteVarUint32(ZigZagEncode32(v))
}

// Bytes returns the written buffer. A trailing partial byte is zero padded.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// LenBits returns the number of bits written.
func (w *Writer) LenBits() int {
	return w.bits
}

// AppendVarUint32 appends the varint encoding of v to dst.
func AppendVarUint32(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// AppendVarInt32 appends the zig-zag varint encoding of v to dst.
func AppendVarInt32(dst []byte, v int32) []byte {
	return AppendVarUint32(dst, ZigZagEncode32(v))
}
