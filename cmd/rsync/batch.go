package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/batch"
	"github.com/synctree/rsyncd/internal/cliopts"
	"github.com/synctree/rsyncd/internal/logging"
	"github.com/synctree/rsyncd/internal/metadata"
	"github.com/synctree/rsyncd/internal/xfer"
	"github.com/synctree/rsyncd/pkg/flist"
	"github.com/synctree/rsyncd/pkg/pipeline"
)

// destinationMetadata is what a --write-batch recording's destination
// side (internal/rsyncd.ServeDestination, which negotiates no per-
// connection options) always applies; --read-batch must mimic exactly
// that, not the local replaying client's own flags, for the replayed
// destination to match the one the live push actually produced.
var destinationMetadata = metadata.Options{
	PreserveModTime:   true,
	PreserveMode:      true,
	PreserveOwnership: true,
}

// runReadBatch replays a --write-batch recording in place of dialing a
// live peer: the header supplies the session parameters a handshake
// would otherwise have negotiated, the file list that follows is read
// with the same segmented pkg/flist codec a live connection uses, and
// the recorded instruction/token stream is applied exactly as
// pkg/pipeline.ReceiverSide would apply it off a real connection.
// Directories and symlinks, which never cross the wire as instructions,
// are created directly from the file list in the same order Walk
// produced them, matching xfer.RunDestination's handling on the
// destination side of a live transfer.
func runReadBatch(opts cliopts.Options, destRoot string, log *logging.Logger) (*pipeline.Stats, error) {
	reader, err := batch.Open(opts.ReadBatch)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	entryOpts := flist.Options{Protocol: reader.Header.Version}
	list, err := xfer.ReadFileList(reader.Stream, reader.Header.Version, entryOpts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read batch file list")
	}

	stats := &pipeline.Stats{}

	if !opts.DryRun {
		if err := applyStructuralEntries(list, destRoot); err != nil {
			return nil, err
		}
	}

	sender := pipeline.NewSenderSide(reader.Header.Version, reader.Header.ChecksumAlgo, reader.Header.Seed, reader.Header.StrongLen, 0)
	receiver := pipeline.NewReceiverSide(reader.Header.ChecksumAlgo, reader.Header.Seed, reader.Header.StrongLen)

	for {
		index, sig, done, err := sender.ReceiveInstruction(reader.Stream)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read batch instruction")
		}
		if done {
			break
		}
		entry := list.At(int(index))
		if entry == nil {
			return nil, errors.Errorf("batch instruction referenced out-of-range index %d", index)
		}
		if opts.DryRun {
			stats.RecordTransfer()
			continue
		}

		destPath := filepath.Join(destRoot, filepath.FromSlash(entry.Path))
		if err := xfer.Apply(receiver, reader.Stream, destPath, sig, stats); err != nil {
			return nil, errors.Wrapf(err, "unable to apply %q", entry.Path)
		}
		stats.RecordTransfer()

		if err := metadata.Apply(destPath, *entry, destinationMetadata); err != nil {
			log.Warn(errors.Wrapf(err, "unable to apply metadata to %q", entry.Path))
		}
	}

	snapshot := stats.Snapshot()
	log.Info("replayed batch %s: %d entries, %d transferred into %s (protocol %d, checksum %s)",
		opts.ReadBatch, list.Len(), snapshot.FilesTransferred, destRoot, reader.Header.Version, reader.Header.ChecksumAlgo)
	return stats, nil
}

// applyStructuralEntries creates every directory and symlink entry in
// list under destRoot, in list order, so parent directories exist
// before any child path is touched.
func applyStructuralEntries(list *flist.List, destRoot string) error {
	for i := 0; i < list.Len(); i++ {
		entry := list.At(i)
		destPath := filepath.Join(destRoot, filepath.FromSlash(entry.Path))
		switch entry.Kind {
		case flist.KindDirectory:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return errors.Wrapf(err, "unable to create directory %q", entry.Path)
			}
		case flist.KindSymlink:
			os.Remove(destPath)
			if err := os.Symlink(entry.SymlinkTarget, destPath); err != nil {
				return errors.Wrapf(err, "unable to create symlink %q", destPath)
			}
		}
	}
	return nil
}
