package wire

import (
	"github.com/pkg/errors"
)

// maxByteStringLength guards against a corrupt or hostile peer claiming an
// absurd length prefix and causing an unbounded allocation.
const maxByteStringLength = 1 << 30

// WriteBytes writes a varint-prefixed length followed by the payload, the
// generic length-prefixed encoding used throughout the file-list and
// handshake wire formats.
func WriteBytes(w Writer, data []byte) error {
	if err := WriteVarint(w, uint64(len(data))); err != nil {
		return errors.Wrap(err, "unable to write byte string length")
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return errors.Wrap(err, "unable to write byte string payload")
}

// ReadBytes reads a byte string written by WriteBytes.
func ReadBytes(r Reader) ([]byte, error) {
	length, err := ReadVarint(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read byte string length")
	}
	if length > maxByteStringLength {
		return nil, errors.Errorf("byte string length %d exceeds maximum %d", length, maxByteStringLength)
	}
	if length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if _, err := ioReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "unable to read byte string payload")
	}
	return buf, nil
}
