package checksum

import (
	"crypto/md5"
	"encoding/binary"
	"hash"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/md4"
)

// Algorithm identifies a strong-hash family negotiated between peers. The
// numeric values are internal to this implementation; they are never placed
// on the wire directly (the wire carries algorithm names during negotiation,
// per the protocol handshake).
type Algorithm uint8

// Supported strong-hash algorithms, selected per protocol version as
// described in spec.md 4.1.
const (
	MD4 Algorithm = iota
	MD5
	XXH3
	XXH128
)

// String renders the algorithm name used during negotiation.
func (a Algorithm) String() string {
	switch a {
	case MD4:
		return "md4"
	case MD5:
		return "md5"
	case XXH3:
		return "xxh3"
	case XXH128:
		return "xxh128"
	default:
		return "unknown"
	}
}

// DigestSize returns the native digest size, in bytes, produced by the
// algorithm before any signature-length truncation is applied.
func (a Algorithm) DigestSize() int {
	switch a {
	case MD4:
		return md4.Size
	case MD5:
		return md5.Size
	case XXH3:
		return 8
	case XXH128:
		return 16
	default:
		return 0
	}
}

// ForProtocol picks the default strong-hash algorithm for a negotiated
// protocol version, per spec.md 4.1: MD4 below 30, MD5 for 30-31, XXH3 at 32
// and above.
func ForProtocol(version uint8) Algorithm {
	switch {
	case version < 30:
		return MD4
	case version < 32:
		return MD5
	default:
		return XXH3
	}
}

// NegotiateStrongLength resolves the open question recorded in spec.md 9 and
// SPEC_FULL.md 5: when both peers advertise XXH3 and XXH128 at protocol 32,
// the longer (XXH128) digest is used.
func NegotiateStrongLength(localSupportsXXH128, remoteSupportsXXH128 bool) Algorithm {
	if localSupportsXXH128 && remoteSupportsXXH128 {
		return XXH128
	}
	return XXH3
}

// xxh128 is a minimal hash.Hash wrapper that derives a 128-bit digest from
// two independently-seeded XXH64 instances. The corpus available for this
// implementation does not carry a native XXH3/XXH128 library (the real
// upstream xxhash.h implementation is templated C that has no equivalent
// import among the retrieved examples), so this combines two differently
// seeded github.com/cespare/xxhash/v2 digests to fill the 16-byte slot that
// the wire format reserves for XXH128. It is internally consistent (it
// round-trips through Signature/Deltafy/Patch) but is not bit-exact with
// upstream's xxhash XXH3_128bits; see DESIGN.md.
type xxh128 struct {
	lo, hi *xxhash.Digest
}

func newXXH3() hash.Hash {
	return xxhash.New()
}

func newXXH128() hash.Hash {
	lo := xxhash.New()
	hi := xxhash.NewWithSeed(0x9e3779b97f4a7c15)
	return &xxh128{lo: lo, hi: hi}
}

func (x *xxh128) Write(p []byte) (int, error) {
	x.lo.Write(p)
	return x.hi.Write(p)
}

func (x *xxh128) Sum(b []byte) []byte {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], x.lo.Sum64())
	binary.LittleEndian.PutUint64(buf[8:16], x.hi.Sum64())
	return append(b, buf[:]...)
}

func (x *xxh128) Reset() {
	x.lo.Reset()
	x.hi.Reset()
}

func (x *xxh128) Size() int      { return 16 }
func (x *xxh128) BlockSize() int { return x.lo.BlockSize() }

// NewHasher constructs a fresh hash.Hash for the given algorithm.
func NewHasher(a Algorithm) (hash.Hash, error) {
	switch a {
	case MD4:
		return md4.New(), nil
	case MD5:
		return md5.New(), nil
	case XXH3:
		return newXXH3(), nil
	case XXH128:
		return newXXH128(), nil
	default:
		return nil, errors.Errorf("unsupported strong hash algorithm %d", a)
	}
}

// Seed is the session-scoped checksum seed exchanged during the handshake
// (spec.md "ChecksumSeed"), mixed into every strong-hash computation to
// prevent pre-computation attacks against the cheap rolling checksum.
type Seed uint32

// Bytes returns the little-endian encoding of the seed, as it is mixed into
// strong-hash input per spec.md 4.1.
func (s Seed) Bytes() []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(s))
	return buf[:]
}

// StrongHasher bundles an algorithm selection, a seed, and a truncation
// length (2-16 bytes) into a reusable block-hashing helper. It is the
// building block both signature generation (pkg/delta) and whole-file
// verification use.
type StrongHasher struct {
	algorithm Algorithm
	seed      Seed
	// legacySeedMixing selects the pre-FIX_CHECKSUM_SEED variant, which
	// leaves the seed out of the strong-hash input. The rolling checksum
	// is not seeded in this mode either, so no checksum carries the seed.
	legacySeedMixing bool
	hasher           hash.Hash
}

// NewStrongHasher builds a StrongHasher for the given algorithm and seed.
func NewStrongHasher(algorithm Algorithm, seed Seed, legacySeedMixing bool) (*StrongHasher, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return nil, err
	}
	return &StrongHasher{algorithm: algorithm, seed: seed, legacySeedMixing: legacySeedMixing, hasher: h}, nil
}

// Sum computes H(seed || block) (or just H(block) under legacy seed mixing)
// and truncates the result to strongLen bytes, as block signatures require.
func (h *StrongHasher) Sum(block []byte, strongLen int) []byte {
	h.hasher.Reset()
	if !h.legacySeedMixing {
		h.hasher.Write(h.seed.Bytes())
	}
	h.hasher.Write(block)
	digest := h.hasher.Sum(nil)
	if strongLen <= 0 || strongLen >= len(digest) {
		return digest
	}
	return digest[:strongLen]
}

// WholeFileDigest computes the full (untruncated) strong hash of an entire
// stream's bytes for the end-of-transfer whole-file verification described
// in spec.md 4.5/4.6. Callers stream Write calls and finish with
// Finalize(-1) for the full digest.
func (h *StrongHasher) WholeFileDigest() *StrongHasher {
	clone := *h
	clone.hasher.Reset()
	if !clone.legacySeedMixing {
		clone.hasher.Write(clone.seed.Bytes())
	}
	return &clone
}

// Write feeds data into the in-progress whole-file digest.
func (h *StrongHasher) Write(p []byte) (int, error) {
	return h.hasher.Write(p)
}

// Finalize returns the accumulated digest, truncated to strongLen if
// positive.
func (h *StrongHasher) Finalize(strongLen int) []byte {
	digest := h.hasher.Sum(nil)
	if strongLen <= 0 || strongLen >= len(digest) {
		return digest
	}
	return digest[:strongLen]
}
