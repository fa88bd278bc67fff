// Package delta implements the rolling-checksum delta engine (spec.md
// 4.5): basis signature generation, a weak-hash index for O(1) average
// lookup, the rolling-window delta search, and token application against a
// basis to reconstitute a target.
package delta

import (
	"io"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/checksum"
)

// Block-size bounds and selection heuristic, per spec.md 4.5.
const (
	BlockSizeMin = 512
	BlockSizeMax = 131072
)

// BlockSizeForBasisLength computes the block size for a basis of the given
// length, following spec.md 4.5: below 2*BlockSizeMin, use BlockSizeMin;
// otherwise the integer square root of the length, clamped to
// [BlockSizeMin, BlockSizeMax].
func BlockSizeForBasisLength(basisLength uint64) uint64 {
	if basisLength < 2*BlockSizeMin {
		return BlockSizeMin
	}
	size := isqrt(basisLength)
	if size < BlockSizeMin {
		size = BlockSizeMin
	} else if size > BlockSizeMax {
		size = BlockSizeMax
	}
	return size
}

// isqrt computes the integer square root of n via Newton's method.
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// BlockSignature is one basis block's weak and strong checksums, keyed by
// its index into the basis (spec.md 4.5's per-block record).
type BlockSignature struct {
	Index  uint64
	Weak   uint32
	Strong []byte
}

// SignatureSet is the full signature of a basis stream (spec.md 4.5's
// "SignatureSet { block_size, count, remainder, strong_len, blocks }").
type SignatureSet struct {
	BlockSize uint64
	Count     uint64
	Remainder uint64
	StrongLen int
	Blocks    []BlockSignature
}

// IsEmpty reports whether the basis this set was generated from was empty
// (no signatures at all, so delta generation must emit a single literal
// span covering the entire target).
func (s *SignatureSet) IsEmpty() bool {
	return s == nil || s.BlockSize == 0 || len(s.Blocks) == 0
}

// GenerateSignature partitions basis into consecutive blocks of blockSize
// (the last may be short) and computes a weak/strong checksum pair for
// each, per spec.md 4.5. Pass blockSize == 0 to have the basis length
// (read via io.ReadAll) drive BlockSizeForBasisLength automatically; for
// streaming basis sources that can't be re-read, callers should compute
// the block size themselves from a known length and pass it explicitly.
func GenerateSignature(basis io.Reader, blockSize uint64, algorithm checksum.Algorithm, seed checksum.Seed, strongLen int) (*SignatureSet, error) {
	data, err := io.ReadAll(basis)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read basis")
	}
	if len(data) == 0 {
		return &SignatureSet{StrongLen: strongLen}, nil
	}
	if blockSize == 0 {
		blockSize = BlockSizeForBasisLength(uint64(len(data)))
	}

	hasher, err := checksum.NewStrongHasher(algorithm, seed, false)
	if err != nil {
		return nil, errors.Wrap(err, "unable to construct strong hasher")
	}

	set := &SignatureSet{
		BlockSize: blockSize,
		StrongLen: strongLen,
	}

	for offset := 0; offset < len(data); offset += int(blockSize) {
		end := offset + int(blockSize)
		if end > len(data) {
			end = len(data)
		}
		block := data[offset:end]

		weak := checksum.ComputeWindow(block)
		strong := hasher.Sum(block, strongLen)
		strongCopy := make([]byte, len(strong))
		copy(strongCopy, strong)

		set.Blocks = append(set.Blocks, BlockSignature{
			Index:  uint64(len(set.Blocks)),
			Weak:   weak,
			Strong: strongCopy,
		})
	}

	set.Count = uint64(len(set.Blocks))
	set.Remainder = uint64(len(data)) % blockSize
	if set.Remainder == 0 {
		set.Remainder = blockSize
	}
	return set, nil
}
