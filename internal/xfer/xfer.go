// Package xfer drives pkg/pipeline's generator/sender/receiver roles
// against an actual filesystem and an actual (Read, Write) pair: a real
// network connection's multiplex streams, or a batch file's raw byte
// stream. cmd/rsync and cmd/rsyncd both need the same destination-side
// decide-and-apply logic and the same source-side respond-to-instruction
// logic, so it lives here rather than in either binary.
package xfer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/metadata"
	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/delta"
	"github.com/synctree/rsyncd/pkg/flist"
	"github.com/synctree/rsyncd/pkg/pipeline"
	"github.com/synctree/rsyncd/pkg/wire"
)

// FileListSegmentSize bounds how many entries pkg/flist.SegmentWriter
// packs into one wire segment (spec.md 4.4's incremental-recursion
// framing): small enough that a segment boundary arrives regularly
// rather than only at the very end of a large tree.
const FileListSegmentSize = 1024

// WriteFileList streams list over w as a sequence of SegmentWriter
// segments rather than one flat run of entries, matching the wire shape
// a live rsync peer expects (and pkg/flist/segment.go's own design).
// list must already be fully walked: flist's hardlink tracker resolves a
// hard-linked file against the index of the first file it matched, which
// can be arbitrarily far back in the walk, so the generator that builds
// list still needs the whole tree in memory even though the wire
// transmission itself is chunked.
func WriteFileList(w wire.Writer, protocolVersion uint8, entryOpts flist.Options, list *flist.List) error {
	sw := flist.NewSegmentWriter(protocolVersion, entryOpts)
	remaining := list.Entries
	for {
		end := len(remaining)
		if end > FileListSegmentSize {
			end = FileListSegmentSize
		}
		if _, err := sw.WriteSegment(w, remaining[:end]); err != nil {
			return errors.Wrap(err, "unable to write file list segment")
		}
		remaining = remaining[end:]
		if len(remaining) == 0 {
			break
		}
		if err := sw.WriteSegmentBoundary(w); err != nil {
			return errors.Wrap(err, "unable to write file list segment boundary")
		}
	}
	return sw.WriteListEnd(w)
}

// ReadFileList reads a file list written by WriteFileList.
func ReadFileList(r wire.Reader, protocolVersion uint8, entryOpts flist.Options) (*flist.List, error) {
	sr := flist.NewSegmentReader(protocolVersion, entryOpts)
	var list flist.List
	for {
		entries, err := sr.ReadSegment(r)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read file list segment")
		}
		for _, e := range entries {
			list.Append(e.Entry)
		}
		done, err := sr.ReadBoundary(r)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read file list segment boundary")
		}
		if done {
			break
		}
	}
	return &list, nil
}

// SessionParams pins the checksum/protocol parameters a generator,
// sender, or receiver needs, whether sourced from a live handshake
// (protocol.Session) or a replayed batch header.
type SessionParams struct {
	ProtocolVersion uint8
	Algorithm       checksum.Algorithm
	Seed            checksum.Seed
	StrongLen       int
	LiteralCeiling  int
}

// DestinationConfig configures RunDestination.
type DestinationConfig struct {
	SessionParams
	Root          string
	DryRun        bool
	PreserveLinks bool
	ForceChecksum bool
	Metadata      metadata.Options
}

// RunDestination drives the generator+receiver role against list: for
// every regular-file entry it decides an action via pkg/pipeline.
// QuickCheck, sends the resulting Instruction to w, then applies the
// token stream the peer sender writes back to r. Directories and
// symlinks are applied directly, with no instruction exchange, since
// there is no content to diff. The caller's w/r must be the same pair
// used for the file-list exchange that produced list, so NDX values
// (the entry's own index into list) line up on both ends.
func RunDestination(list *flist.List, cfg DestinationConfig, w wire.Writer, r wire.Reader) (*pipeline.Stats, error) {
	stats := &pipeline.Stats{}

	generator := pipeline.NewGeneratorSide(cfg.ProtocolVersion)
	receiver := pipeline.NewReceiverSide(cfg.Algorithm, cfg.Seed, cfg.StrongLen)

	for i := 0; i < list.Len(); i++ {
		entry := *list.At(i)
		destPath := filepath.Join(cfg.Root, filepath.FromSlash(entry.Path))

		switch entry.Kind {
		case flist.KindDirectory:
			if cfg.DryRun {
				continue
			}
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return stats, errors.Wrapf(err, "unable to create directory %q", entry.Path)
			}
			continue
		case flist.KindSymlink:
			if !cfg.PreserveLinks || cfg.DryRun {
				continue
			}
			if err := applySymlink(entry, destPath); err != nil {
				return stats, err
			}
			continue
		case flist.KindDeviceChar, flist.KindDeviceBlock, flist.KindFIFO, flist.KindSocket:
			continue
		}

		action, sig, err := Decide(destPath, entry, cfg.Algorithm, cfg.Seed, cfg.StrongLen, cfg.ForceChecksum)
		if err != nil {
			return stats, errors.Wrapf(err, "unable to decide action for %q", entry.Path)
		}
		if action == pipeline.ActionSkip {
			stats.RecordSkip()
			continue
		}
		if cfg.DryRun {
			stats.RecordTransfer()
			continue
		}

		if err := generator.SendInstruction(w, pipeline.Instruction{Index: int32(i), Signature: sig}); err != nil {
			return stats, errors.Wrapf(err, "unable to send instruction for %q", entry.Path)
		}
		if err := Apply(receiver, r, destPath, sig, stats); err != nil {
			return stats, errors.Wrapf(err, "unable to apply %q", entry.Path)
		}
		stats.RecordTransfer()

		if err := metadata.Apply(destPath, entry, cfg.Metadata); err != nil {
			return stats, errors.Wrapf(err, "unable to apply metadata to %q", entry.Path)
		}
	}

	if err := generator.SendDone(w); err != nil {
		return stats, errors.Wrap(err, "unable to send instruction-phase done marker")
	}
	return stats, nil
}

// SourceConfig configures RunSource.
type SourceConfig struct {
	SessionParams
	Root string
}

// RunSource drives the sender role: it reads instructions from r until
// the NDX_DONE sentinel, and for each one opens the corresponding
// list entry's file under cfg.Root and streams the resulting token
// sequence to w. If tee is non-nil, both the instruction (re-encoded
// with its own NDX sequence) and the token stream are additionally
// written to it, letting a --write-batch recording capture a complete,
// self-contained replay of what crossed the real connection.
func RunSource(list *flist.List, cfg SourceConfig, w wire.Writer, r wire.Reader, tee wire.Writer) (*pipeline.Stats, error) {
	stats := &pipeline.Stats{}
	sender := pipeline.NewSenderSide(cfg.ProtocolVersion, cfg.Algorithm, cfg.Seed, cfg.StrongLen, cfg.LiteralCeiling)

	var teeGenerator *pipeline.GeneratorSide
	if tee != nil {
		teeGenerator = pipeline.NewGeneratorSide(cfg.ProtocolVersion)
	}

	for {
		index, sig, done, err := sender.ReceiveInstruction(r)
		if err != nil {
			return stats, errors.Wrap(err, "unable to receive instruction")
		}
		if done {
			break
		}
		if teeGenerator != nil {
			if err := teeGenerator.SendInstruction(tee, pipeline.Instruction{Index: index, Signature: sig}); err != nil {
				return stats, errors.Wrap(err, "unable to record instruction to batch file")
			}
		}

		entry := list.At(int(index))
		if entry == nil {
			return stats, errors.Errorf("instruction referenced out-of-range index %d", index)
		}
		sourcePath := filepath.Join(cfg.Root, filepath.FromSlash(entry.Path))

		if err := sendOne(sender, w, tee, sourcePath, sig, stats); err != nil {
			return stats, errors.Wrapf(err, "unable to send %q", entry.Path)
		}
	}

	if teeGenerator != nil {
		if err := teeGenerator.SendDone(tee); err != nil {
			return stats, errors.Wrap(err, "unable to record instruction-phase done marker to batch file")
		}
	}
	return stats, nil
}

// sendOne generates target's token stream once into an in-memory buffer
// and copies the encoded bytes to both w and (if set) tee, rather than
// re-diffing the file a second time for the batch recording.
func sendOne(sender *pipeline.SenderSide, w, tee wire.Writer, sourcePath string, sig *delta.SignatureSet, stats *pipeline.Stats) error {
	file, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrap(err, "unable to open source file")
	}
	defer file.Close()

	var buf bytes.Buffer
	if err := sender.SendFile(&buf, file, sig, stats); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "unable to write token stream")
	}
	if err := wire.TryFlush(w); err != nil {
		return err
	}
	if tee != nil {
		if _, err := tee.Write(buf.Bytes()); err != nil {
			return errors.Wrap(err, "unable to record token stream to batch file")
		}
	}
	return nil
}

// Decide inspects destPath against entry and returns the action
// pkg/pipeline.QuickCheck assigns it and, for a delta transfer against
// an existing file, the basis signature the sender should diff
// against. A nil signature means ActionWhole: no basis exists yet.
func Decide(destPath string, entry flist.Entry, algorithm checksum.Algorithm, seed checksum.Seed, strongLen int, forceChecksum bool) (pipeline.Action, *delta.SignatureSet, error) {
	destInfo, statErr := os.Stat(destPath)
	destExists := statErr == nil

	action := pipeline.QuickCheck(pipeline.QuickCheckInput{
		DestExists:          destExists,
		SourceSize:          int64(entry.Size),
		DestSize:            sizeOf(destInfo),
		SourceModTime:       entry.ModTimeSeconds,
		DestModTime:         modTimeOf(destInfo),
		ModifyWindowSeconds: 0,
		ChecksumMode:        forceChecksum,
	})
	if action != pipeline.ActionDelta || !destExists {
		return action, nil, nil
	}

	basis, err := os.Open(destPath)
	if err != nil {
		return action, nil, errors.Wrap(err, "unable to open basis file")
	}
	defer basis.Close()

	blockSize := delta.BlockSizeForBasisLength(uint64(sizeOf(destInfo)))
	sig, err := delta.GenerateSignature(basis, blockSize, algorithm, seed, strongLen)
	if err != nil {
		return action, nil, errors.Wrap(err, "unable to generate basis signature")
	}
	return action, sig, nil
}

// Apply reconstructs destPath from a token stream read from r, using
// destPath's current content as basis (if sig calls for one) and a
// temp file swapped into place on success.
func Apply(receiver *pipeline.ReceiverSide, r wire.Reader, destPath string, sig *delta.SignatureSet, stats *pipeline.Stats) error {
	tempFile, tempPath, err := metadata.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath), "")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary output file")
	}

	var basis io.ReadSeeker = emptyReadSeeker{}
	if !sig.IsEmpty() {
		if basisFile, openErr := os.Open(destPath); openErr == nil {
			defer basisFile.Close()
			basis = basisFile
		}
	}

	if err := receiver.ApplyFile(r, basis, tempFile, sig, stats); err != nil {
		metadata.RemoveTemp(tempPath)
		return err
	}
	return metadata.Commit(tempFile, tempPath, destPath)
}

func applySymlink(entry flist.Entry, destPath string) error {
	os.Remove(destPath)
	if err := os.Symlink(entry.SymlinkTarget, destPath); err != nil {
		return errors.Wrapf(err, "unable to create symlink %q", destPath)
	}
	return nil
}

func sizeOf(info os.FileInfo) int64 {
	if info == nil {
		return 0
	}
	return info.Size()
}

func modTimeOf(info os.FileInfo) int64 {
	if info == nil {
		return 0
	}
	return info.ModTime().Unix()
}

type emptyReadSeeker struct{}

func (emptyReadSeeker) Read([]byte) (int, error)       { return 0, io.EOF }
func (emptyReadSeeker) Seek(int64, int) (int64, error) { return 0, nil }
