package pipeline

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/delta"
	"github.com/synctree/rsyncd/pkg/wire"
)

// Instruction is what the generator hands to the sender for one file: its
// NDX and, for a delta transfer, the basis signature to diff against. A
// nil Signature means ActionWhole: send the file with no basis at all.
type Instruction struct {
	Index     int32
	Signature *delta.SignatureSet
}

// GeneratorSide emits instructions on behalf of the generator role, which
// spec.md 4.6 places alongside the receiver: it walks the destination
// side of the transfer, decides an action per file via QuickCheck, builds
// a basis signature when one is needed, and writes the result to the
// sender over the shared multiplexed connection.
type GeneratorSide struct {
	ndx *wire.NdxCodec
}

// NewGeneratorSide constructs a GeneratorSide for the given protocol
// version's NDX encoding.
func NewGeneratorSide(protocolVersion uint8) *GeneratorSide {
	return &GeneratorSide{ndx: wire.NewNdxCodec(protocolVersion)}
}

// SendInstruction writes one file's NDX followed by its signature (empty
// for a whole-file transfer) to w.
func (g *GeneratorSide) SendInstruction(w wire.Writer, instr Instruction) error {
	if err := g.ndx.Write(w, instr.Index); err != nil {
		return errors.Wrap(err, "unable to write instruction ndx")
	}
	if err := delta.WriteSignatureSet(w, instr.Signature); err != nil {
		return errors.Wrap(err, "unable to write instruction signature")
	}
	return wire.TryFlush(w)
}

// SendDone writes the NDX_DONE sentinel that closes the generator/sender
// phase: there are no more files this run.
func (g *GeneratorSide) SendDone(w wire.Writer) error {
	if err := g.ndx.Write(w, wire.NdxDone); err != nil {
		return errors.Wrap(err, "unable to write ndx done")
	}
	return wire.TryFlush(w)
}

// SenderSide produces a token stream for each instruction it receives
// from the generator, reading the target file's current content and
// diffing it against the basis signature with pkg/delta.
type SenderSide struct {
	ndx            *wire.NdxCodec
	algorithm      checksum.Algorithm
	seed           checksum.Seed
	strongLen      int
	literalCeiling int
}

// NewSenderSide constructs a SenderSide. A non-positive literalCeiling
// falls back to delta.DefaultLiteralCeiling.
func NewSenderSide(protocolVersion uint8, algorithm checksum.Algorithm, seed checksum.Seed, strongLen, literalCeiling int) *SenderSide {
	return &SenderSide{
		ndx:            wire.NewNdxCodec(protocolVersion),
		algorithm:      algorithm,
		seed:           seed,
		strongLen:      strongLen,
		literalCeiling: literalCeiling,
	}
}

// ReceiveInstruction reads the next instruction from the generator. done
// is true once the NDX_DONE sentinel arrives, at which point index and
// sig are meaningless.
func (s *SenderSide) ReceiveInstruction(r wire.Reader) (index int32, sig *delta.SignatureSet, done bool, err error) {
	index, err = s.ndx.Read(r)
	if err != nil {
		return 0, nil, false, errors.Wrap(err, "unable to read instruction ndx")
	}
	if index == wire.NdxDone {
		return 0, nil, true, nil
	}
	sig, err = delta.ReadSignatureSet(r)
	if err != nil {
		return 0, nil, false, errors.Wrap(err, "unable to read instruction signature")
	}
	return index, sig, false, nil
}

// SendFile reads target fully, diffs it against sig, and writes the
// resulting token stream followed by the whole-file checksum to w,
// recording literal/sent byte counts into stats when non-nil. A nil or
// empty sig produces an all-literal stream (ActionWhole).
func (s *SenderSide) SendFile(w wire.Writer, target io.Reader, sig *delta.SignatureSet, stats *Stats) error {
	data, err := io.ReadAll(target)
	if err != nil {
		return errors.Wrap(err, "unable to read target for sending")
	}

	idx := delta.NewIndex(sig)
	var sent int64
	emit := func(tok delta.Token) error {
		if err := delta.WriteToken(w, tok); err != nil {
			return err
		}
		if tok.Kind == delta.TokenLiteral {
			sent += int64(len(tok.Literal))
		}
		return nil
	}
	if err := delta.GenerateDelta(bytes.NewReader(data), idx, sig, s.algorithm, s.seed, s.literalCeiling, emit); err != nil {
		return errors.Wrap(err, "unable to generate delta")
	}

	sum, err := delta.WholeFileChecksum(bytes.NewReader(data), s.algorithm, s.seed, s.strongLen)
	if err != nil {
		return errors.Wrap(err, "unable to compute whole-file checksum")
	}
	if err := wire.WriteBytes(w, sum); err != nil {
		return errors.Wrap(err, "unable to write whole-file checksum")
	}
	if err := wire.TryFlush(w); err != nil {
		return err
	}

	if stats != nil {
		stats.AddLiteral(sent)
		stats.AddSent(sent + int64(len(sum)))
	}
	return nil
}

// ReceiverSide applies a token stream read from the sender against a
// basis, verifying the trailing whole-file checksum.
type ReceiverSide struct {
	algorithm checksum.Algorithm
	seed      checksum.Seed
	strongLen int
}

// NewReceiverSide constructs a ReceiverSide.
func NewReceiverSide(algorithm checksum.Algorithm, seed checksum.Seed, strongLen int) *ReceiverSide {
	return &ReceiverSide{algorithm: algorithm, seed: seed, strongLen: strongLen}
}

// ErrBasisChanged is returned by Coordinator.RunFile when the caller has
// flagged that the chosen basis changed after its signature was built,
// short-circuiting before any token is applied so the file can be
// redone against a freshly signatured basis instead.
var ErrBasisChanged = errors.New("pipeline: basis changed since signature generation")

// ApplyFile reads a token stream (and trailing checksum) from r and
// applies it to destination against basis via a delta.Applier. A
// checksum mismatch returns an error wrapping delta's verification
// failure; callers should treat that as RedoChecksumMismatch.
func (rs *ReceiverSide) ApplyFile(r wire.Reader, basis io.ReadSeeker, destination io.WriteSeeker, sig *delta.SignatureSet, stats *Stats) error {
	applier, err := delta.NewApplier(basis, destination, sig, rs.algorithm, rs.seed)
	if err != nil {
		return errors.Wrap(err, "unable to construct applier")
	}

	var received int64
	for {
		tok, err := delta.ReadToken(r)
		if err != nil {
			return errors.Wrap(err, "unable to read token")
		}
		if tok.Kind == delta.TokenEnd {
			break
		}
		if err := applier.Apply(tok); err != nil {
			return errors.Wrap(err, "unable to apply token")
		}
		if tok.Kind == delta.TokenLiteral {
			received += int64(len(tok.Literal))
		}
	}

	expected, err := wire.ReadBytes(r)
	if err != nil {
		return errors.Wrap(err, "unable to read whole-file checksum")
	}
	if err := applier.Finish(expected, rs.strongLen); err != nil {
		return errors.Wrap(err, "checksum verification failed")
	}

	if stats != nil {
		stats.AddReceived(received + int64(len(expected)))
	}
	return nil
}
