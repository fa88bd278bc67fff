package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// NDX sentinel values, per spec.md 6/GLOSSARY.
const (
	NdxDone     int32 = -1
	NdxFlistEOF int32 = -2
)

// ndx delta-encoding byte-size markers, used on protocol >= 30. Plain
// single-byte deltas are biased by ndxSmallBias and occupy the range
// [0, ndxMediumMarker), leaving the top two byte values free to serve
// unambiguously as the medium/large markers.
const (
	ndxSmallBias    = 127
	ndxMediumMarker = 0xfe
	ndxLargeMarker  = 0xff
)

// NdxCodec encodes/decodes NDX values for one direction of a session. NDX
// encoding is protocol-version-aware and, for protocol >= 30, stateful: each
// value is delta-encoded against the previously transmitted value in that
// direction. Use one codec per direction (read codec, write codec); they
// must not be shared between a reader and a writer.
type NdxCodec struct {
	protocol uint8
	previous int32
	first    bool
}

// NewNdxCodec creates an NDX codec for the given negotiated protocol
// version. The codec starts with no previous value; the first NDX
// transmitted in either direction is always encoded as an absolute delta
// from zero.
func NewNdxCodec(protocol uint8) *NdxCodec {
	return &NdxCodec{protocol: protocol, first: true}
}

// Write encodes an NDX value.
func (c *NdxCodec) Write(w Writer, value int32) error {
	if c.protocol < 30 {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(value))
		_, err := w.Write(buf[:])
		return errors.Wrap(err, "unable to write fixed-width NDX")
	}

	delta := c.delta(value)
	c.previous = value
	c.first = false

	abs := delta
	if abs < 0 {
		abs = -abs
	}
	switch {
	case delta >= -ndxSmallBias && delta < ndxMediumMarker-ndxSmallBias:
		return w.WriteByte(byte(delta + ndxSmallBias))
	case abs < 1<<15:
		if err := w.WriteByte(ndxMediumMarker); err != nil {
			return errors.Wrap(err, "unable to write NDX medium marker")
		}
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(int16(delta)))
		_, err := w.Write(buf[:])
		return errors.Wrap(err, "unable to write NDX medium delta")
	default:
		if err := w.WriteByte(ndxLargeMarker); err != nil {
			return errors.Wrap(err, "unable to write NDX large marker")
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(value))
		_, err := w.Write(buf[:])
		return errors.Wrap(err, "unable to write NDX absolute value")
	}
}

// delta computes the signed delta to encode for value, treating the absent
// "previous" state (before the first NDX of the session) as zero.
func (c *NdxCodec) delta(value int32) int32 {
	if c.first {
		return value
	}
	return value - c.previous
}

// Read decodes an NDX value written by Write.
func (c *NdxCodec) Read(r Reader) (int32, error) {
	if c.protocol < 30 {
		var buf [4]byte
		if _, err := ioReadFull(r, buf[:]); err != nil {
			return 0, errors.Wrap(err, "unable to read fixed-width NDX")
		}
		return int32(binary.LittleEndian.Uint32(buf[:])), nil
	}

	marker, err := r.ReadByte()
	if err != nil {
		return 0, errors.Wrap(err, "unable to read NDX marker")
	}

	var value int32
	switch marker {
	case ndxMediumMarker:
		var buf [2]byte
		if _, err := ioReadFull(r, buf[:]); err != nil {
			return 0, errors.Wrap(err, "unable to read NDX medium delta")
		}
		delta := int32(int16(binary.LittleEndian.Uint16(buf[:])))
		value = c.resolve(delta)
	case ndxLargeMarker:
		var buf [4]byte
		if _, err := ioReadFull(r, buf[:]); err != nil {
			return 0, errors.Wrap(err, "unable to read NDX absolute value")
		}
		value = int32(binary.LittleEndian.Uint32(buf[:]))
	default:
		delta := int32(marker) - ndxSmallBias
		value = c.resolve(delta)
	}

	c.previous = value
	c.first = false
	return value, nil
}

// resolve turns a decoded delta back into an absolute value, honoring the
// same "previous defaults to zero before the first NDX" rule as delta.
func (c *NdxCodec) resolve(delta int32) int32 {
	if c.first {
		return delta
	}
	return c.previous + delta
}

// ioReadFull is a tiny local alias to avoid importing io just for ReadFull
// in two call sites above while keeping the dependency list for this file
// minimal and explicit.
func ioReadFull(r Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
