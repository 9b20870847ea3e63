// Package bitreader provides a bit-granular cursor over a byte buffer and the
// variable-length integer encoding shared by demo framing and data tables.
//
// Bits are consumed least-significant first within each byte, matching the
// wire format written by the Source engine.
package bitreader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// MaxVarint32Bytes is the longest encoding of a 32-bit varint.
	MaxVarint32Bytes = 5
	// MaxVarint64Bytes is the longest encoding of a 64-bit varint.
	MaxVarint64Bytes = 10
)

var (
	// ErrOutOfRange is returned when a read would run past the end of the buffer.
	ErrOutOfRange = errors.New("bitreader: read past end of buffer")
	// ErrBitWidth is returned for reads wider than 64 bits.
	ErrBitWidth = errors.New("bitreader: invalid bit width")
)

// Reader is a cursor over a byte slice addressed in bits.
type Reader struct {
	data []byte
	pos  int
}

// New returns a Reader positioned at the first bit of data.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

// PosBits returns the cursor position in bits.
func (r *Reader) PosBits() int {
	return r.pos
}

// PosBytes returns the cursor position in whole bytes.
func (r *Reader) PosBytes() int {
	return r.pos / 8
}

// LenBits returns the size of the underlying buffer in bits.
func (r *Reader) LenBits() int {
	return len(r.data) * 8
}

// RemainingBits returns how many bits are left to read.
func (r *Reader) RemainingBits() int {
	return r.LenBits() - r.pos
}

// Skip advances the cursor by n bits.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.pos+n > r.LenBits() {
		return ErrOutOfRange
	}
	r.pos += n
	return nil
}

// SkipBytes advances the cursor by n bytes.
func (r *Reader) SkipBytes(n int) error {
	return r.Skip(n * 8)
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// ReadBits reads n bits (0 <= n <= 64) as an unsigned little-endian value.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("%w: %d", ErrBitWidth, n)
	}
	if r.pos+n > r.LenBits() {
		return 0, ErrOutOfRange
	}

	var v uint64
	for i := 0; i < n; {
		off := r.pos & 7
		take := 8 - off
		if take > n-i {
			take = n - i
		}
		chunk := (uint64(r.data[r.pos>>3]) >> off) & ((1 << take) - 1)
		v |= chunk << i
		i += take
		r.pos += take
	}
	return v, nil
}

// ReadUint32 reads n bits (n <= 32) as an unsigned value.
func (r *Reader) ReadUint32(n int) (uint32, error) {
	if n > 32 {
		return 0, fmt.Errorf("%w: %d", ErrBitWidth, n)
	}
	v, err := r.ReadBits(n)
	return uint32(v), err
}

// ReadSigned reads n bits (n <= 32) and sign-extends the result.
func (r *Reader) ReadSigned(n int) (int32, error) {
	if n == 0 {
		return 0, nil
	}
	v, err := r.ReadUint32(n)
	if err != nil {
		return 0, err
	}
	shift := 32 - n
	return int32(v<<shift) >> shift, nil
}

// ReadByte reads eight bits.
func (r *Reader) ReadByte() (byte, error) {
	v, err := r.ReadBits(8)
	return byte(v), err
}

// ReadBytes reads n bytes. When the cursor is byte aligned the returned slice
// aliases the underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n*8 > r.LenBits() {
		return nil, ErrOutOfRange
	}
	if r.pos&7 == 0 {
		start := r.pos >> 3
		r.pos += n * 8
		return r.data[start : start+n : start+n], nil
	}

	out := make([]byte, n)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// ReadString reads a null-terminated string. The terminator is consumed but
// not returned.
func (r *Reader) ReadString() (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

// ReadInt32LE reads a little-endian 32-bit integer.
func (r *Reader) ReadInt32LE() (int32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// ReadFloat32 reads a little-endian IEEE 754 float.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32(32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadVarUint32 reads a base-128 varint of at most five bytes. Each byte
// contributes seven data bits, least significant group first; the high bit
// flags a continuation.
func (r *Reader) ReadVarUint32() (uint32, error) {
	var result uint32
	for count := 0; count < MaxVarint32Bytes; count++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << (7 * count)
		if b&0x80 == 0 {
			break
		}
	}
	return result, nil
}

// ReadVarInt32 reads a zig-zag encoded signed varint.
func (r *Reader) ReadVarInt32() (int32, error) {
	u, err := r.ReadVarUint32()
	if err != nil {
		return 0, err
	}
	return ZigZagDecode32(u), nil
}

// ReadVarUint64 reads a base-128 varint of at most ten bytes.
func (r *Reader) ReadVarUint64() (uint64, error) {
	var result uint64
	for count := 0; count < MaxVarint64Bytes; count++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << (7 * count)
		if b&0x80 == 0 {
			break
		}
	}
	return result, nil
}

// ReadVarInt64 reads a zig-zag encoded signed 64-bit varint.
func (r *Reader) ReadVarInt64() (int64, error) {
	u, err := r.ReadVarUint64()
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

// ReadUBitVar reads the compact 6-bit prefixed integer used by entity
// property indices: four low bits plus a two bit selector for 4, 8 or 28
// additional high bits.
func (r *Reader) ReadUBitVar() (uint32, error) {
	head, err := r.ReadUint32(6)
	if err != nil {
		return 0, err
	}

	var extra int
	switch head & 0x30 {
	case 0x10:
		extra = 4
	case 0x20:
		extra = 8
	case 0x30:
		extra = 28
	default:
		return head & 0xf, nil
	}

	high, err := r.ReadUint32(extra)
	if err != nil {
		return 0, err
	}
	return head&0xf | high<<4, nil
}

// ZigZagDecode32 maps an unsigned zig-zag value back to its signed form.
func ZigZagDecode32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

// ZigZagEncode32 maps a signed value onto the unsigned zig-zag domain.
func ZigZagEncode32(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}
