// Package wire implements the rsync binary protocol's low-level encodings:
// varints, the NDX delta codec, length-prefixed byte strings, and the
// post-handshake multiplex framing.
package wire

import (
	"io"

	"github.com/pkg/errors"
)

// maxVarintBytes bounds the length of an encoded varint. 10 bytes is enough
// to hold a full 64-bit value with 7 bits of payload per byte; anything
// longer indicates a corrupt stream.
const maxVarintBytes = 10

// ErrVarintTooLong is returned when a varint's continuation bit stays set
// for longer than maxVarintBytes bytes.
var ErrVarintTooLong = errors.New("varint exceeds maximum encoded length")

// WriteVarint writes v using 7-bit little-endian continuation encoding: each
// byte carries 7 bits of payload in its low bits, with the high bit (0x80)
// set on every byte except the last.
func WriteVarint(w io.ByteWriter, v uint64) error {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			if err := w.WriteByte(b | 0x80); err != nil {
				return errors.Wrap(err, "unable to write varint byte")
			}
		} else {
			if err := w.WriteByte(b); err != nil {
				return errors.Wrap(err, "unable to write final varint byte")
			}
			return nil
		}
	}
}

// ReadVarint reads a varint encoded by WriteVarint.
func ReadVarint(r io.ByteReader) (uint64, error) {
	var result uint64
	for i := 0; ; i++ {
		if i >= maxVarintBytes {
			return 0, ErrVarintTooLong
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "unable to read varint byte")
		}
		result |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

// zigzagEncode maps a signed value onto the unsigned range so that small
// magnitude values (positive or negative) encode to small varints.
func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// zigzagDecode reverses zigzagEncode.
func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// WriteSignedVarint writes v using zigzag encoding over WriteVarint.
func WriteSignedVarint(w io.ByteWriter, v int64) error {
	return WriteVarint(w, zigzagEncode(v))
}

// ReadSignedVarint reads a value written by WriteSignedVarint.
func ReadSignedVarint(r io.ByteReader) (int64, error) {
	u, err := ReadVarint(r)
	if err != nil {
		return 0, err
	}
	return zigzagDecode(u), nil
}
