package checksum

import (
	"encoding/binary"
	"io"
)

// GenerateSeed produces a fresh checksum seed using the supplied entropy
// source. The sender generates one seed per session and transmits it to the
// receiver once during the handshake (spec.md "ChecksumSeed"); both sides
// then mix it into every strong-hash computation for the life of the
// session.
//
// Upstream rsync seeds this value from the current time by default (or
// accepts an explicit --checksum-seed for reproducible testing); callers
// that want that behavior should pass a time-derived reader, while tests
// typically pass a fixed-byte reader for determinism.
func GenerateSeed(entropy io.Reader) (Seed, error) {
	var buf [4]byte
	if _, err := io.ReadFull(entropy, buf[:]); err != nil {
		return 0, err
	}
	return Seed(binary.LittleEndian.Uint32(buf[:])), nil
}

// FixedSeed wraps a constant value as an io.Reader suitable for
// GenerateSeed, used by --checksum-seed and by tests that need
// reproducible signatures.
type FixedSeed uint32

// Read implements io.Reader, always returning the fixed seed's bytes.
func (f FixedSeed) Read(p []byte) (int, error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(f))
	return copy(p, buf[:]), nil
}
