package delta

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/checksum"
)

// copyChunkSize bounds each read performed while copying a basis block, so
// a large block size doesn't force one huge allocation (spec.md 4.5's
// "bounded-size buffered reads").
const copyChunkSize = 64 * 1024

// Applier applies a token stream against a basis to reconstitute a target
// into destination (spec.md 4.5's "Delta application"), caching the
// basis's current read position to avoid redundant seeks and collapsing
// runs of zero bytes in the output into sparse holes.
type Applier struct {
	basis       io.ReadSeeker
	destination io.WriteSeeker

	blockSize     uint64
	lastBlockSize uint64
	blockCount    uint64

	basisPos      int64
	basisPosValid bool

	pendingHole int64
	hasher      *checksum.StrongHasher
}

// NewApplier constructs an Applier for a basis described by set.
func NewApplier(basis io.ReadSeeker, destination io.WriteSeeker, set *SignatureSet, algorithm checksum.Algorithm, seed checksum.Seed) (*Applier, error) {
	hasher, err := checksum.NewStrongHasher(algorithm, seed, false)
	if err != nil {
		return nil, errors.Wrap(err, "unable to construct strong hasher")
	}
	lastBlockSize := set.BlockSize
	if set.Remainder != 0 {
		lastBlockSize = set.Remainder
	}
	return &Applier{
		basis:         basis,
		destination:   destination,
		blockSize:     set.BlockSize,
		lastBlockSize: lastBlockSize,
		blockCount:    set.Count,
		hasher:        hasher.WholeFileDigest(),
	}, nil
}

// Apply processes one token. Callers should stop after a TokenEnd and call
// Finish to verify the whole-file checksum.
func (a *Applier) Apply(t Token) error {
	switch t.Kind {
	case TokenLiteral:
		return a.writeOutput(t.Literal)
	case TokenCopy:
		return a.copyBlock(t.BlockIndex)
	case TokenEnd:
		return nil
	default:
		return errors.Errorf("unknown token kind %d", t.Kind)
	}
}

// copyBlock copies basis block index to the destination, seeking only if
// the cached basis position doesn't already sit at the block's start.
func (a *Applier) copyBlock(index uint64) error {
	length := a.blockSize
	if a.blockCount > 0 && index == a.blockCount-1 {
		length = a.lastBlockSize
	}

	offset := int64(index) * int64(a.blockSize)
	if !a.basisPosValid || a.basisPos != offset {
		if _, err := a.basis.Seek(offset, io.SeekStart); err != nil {
			return errors.Wrap(err, "unable to seek basis")
		}
	}

	remaining := length
	for remaining > 0 {
		chunkLen := remaining
		if chunkLen > copyChunkSize {
			chunkLen = copyChunkSize
		}
		buf := make([]byte, chunkLen)
		if _, err := io.ReadFull(a.basis, buf); err != nil {
			return errors.Wrap(err, "unable to read basis block")
		}
		if err := a.writeOutput(buf); err != nil {
			return err
		}
		remaining -= chunkLen
	}

	a.basisPos = offset + int64(length)
	a.basisPosValid = true
	return nil
}

// writeOutput feeds data into the running whole-file digest and writes it
// to the destination, collapsing runs of zero bytes into seek-only holes.
func (a *Applier) writeOutput(data []byte) error {
	if _, err := a.hasher.Write(data); err != nil {
		return errors.Wrap(err, "unable to update whole-file digest")
	}

	for i := 0; i < len(data); {
		if data[i] == 0 {
			j := i
			for j < len(data) && data[j] == 0 {
				j++
			}
			a.pendingHole += int64(j - i)
			i = j
			continue
		}
		j := i + 1
		for j < len(data) && data[j] != 0 {
			j++
		}
		if err := a.writeLiteralSpan(data[i:j]); err != nil {
			return err
		}
		i = j
	}
	return nil
}

// writeLiteralSpan materializes any pending hole, then writes a non-zero
// byte span directly.
func (a *Applier) writeLiteralSpan(data []byte) error {
	if err := a.materializeHole(); err != nil {
		return err
	}
	if _, err := a.destination.Write(data); err != nil {
		return errors.Wrap(err, "unable to write destination data")
	}
	return nil
}

// materializeHole advances the destination past any accumulated zero run
// with a single seek, maintaining the single-seek-per-run invariant.
func (a *Applier) materializeHole() error {
	if a.pendingHole == 0 {
		return nil
	}
	if _, err := a.destination.Seek(a.pendingHole, io.SeekCurrent); err != nil {
		return errors.Wrap(err, "unable to seek past hole")
	}
	a.pendingHole = 0
	return nil
}

// Finish settles any trailing hole (setting the final file size via a
// seek-and-write-one-byte when the file ends on a hole, per spec.md 4.5)
// and verifies the accumulated whole-file digest against expected,
// returning an error that should trigger a redo on mismatch.
func (a *Applier) Finish(expected []byte, strongLen int) error {
	if a.pendingHole > 0 {
		if _, err := a.destination.Seek(a.pendingHole-1, io.SeekCurrent); err != nil {
			return errors.Wrap(err, "unable to seek to final hole byte")
		}
		if _, err := a.destination.Write([]byte{0}); err != nil {
			return errors.Wrap(err, "unable to set final file size")
		}
		a.pendingHole = 0
	}

	actual := a.hasher.Finalize(strongLen)
	if !bytes.Equal(actual, expected) {
		return errors.New("whole-file checksum mismatch")
	}
	return nil
}

// WholeFileChecksum computes H(seed || ...whole file...) truncated to
// strongLen, for callers on the sending side that need to compute the
// value an Applier.Finish will later be asked to verify. It exists so
// senders and receivers share one code path for the digest's seed-mixing
// convention, rather than each re-deriving it ad hoc.
func WholeFileChecksum(data io.Reader, algorithm checksum.Algorithm, seed checksum.Seed, strongLen int) ([]byte, error) {
	hasher, err := checksum.NewStrongHasher(algorithm, seed, false)
	if err != nil {
		return nil, errors.Wrap(err, "unable to construct strong hasher")
	}
	digest := hasher.WholeFileDigest()

	buf := make([]byte, copyChunkSize)
	for {
		n, err := data.Read(buf)
		if n > 0 {
			if _, werr := digest.Write(buf[:n]); werr != nil {
				return nil, errors.Wrap(werr, "unable to update whole-file digest")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "unable to read whole file")
		}
	}
	return digest.Finalize(strongLen), nil
}
