package main

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/cliopts"
	"github.com/synctree/rsyncd/internal/filter"
	"github.com/synctree/rsyncd/internal/fsutil"
	"github.com/synctree/rsyncd/internal/logging"
	"github.com/synctree/rsyncd/internal/metadata"
	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/flist"
	"github.com/synctree/rsyncd/pkg/pipeline"
	"github.com/synctree/rsyncd/pkg/protocol"
)

// defaultLocalProtocolVersion is the version a purely local transfer
// (no peer to negotiate with) behaves as, chosen at the newest
// supported version since there's no interop constraint to honor.
const defaultLocalProtocolVersion = protocol.MaxVersion

// runLocal synchronizes sourceRoot into destRoot entirely on this
// machine: walk, decide, transfer, and apply metadata per entry,
// reusing exactly the components a networked transfer would (filter
// evaluator, pipeline.Coordinator, internal/metadata) over an
// in-process pipe instead of a real connection.
func runLocal(sourceRoot, destRoot string, opts cliopts.Options, log *logging.Logger) (*pipeline.Stats, error) {
	evaluator, err := buildFilterEvaluator(opts, log)
	if err != nil {
		return nil, err
	}

	var list flist.List
	if err := flist.Walk(fsutil.OSStatSource{Root: sourceRoot}, evaluator, &list); err != nil {
		return nil, errors.Wrap(err, "unable to walk source tree")
	}

	algorithm := checksum.ForProtocol(defaultLocalProtocolVersion)
	if opts.ChecksumAlgorithm != 0 {
		algorithm = opts.ChecksumAlgorithm
	}
	seed, err := checksum.GenerateSeed(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate checksum seed")
	}

	coordinator := pipeline.NewCoordinator(algorithm, seed, algorithm.DigestSize(), defaultLocalProtocolVersion, 3)

	for i := 0; i < list.Len(); i++ {
		entry := list.At(i)
		destPath := filepath.Join(destRoot, filepath.FromSlash(entry.Path))

		switch entry.Kind {
		case flist.KindDirectory:
			if opts.DryRun {
				continue
			}
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return nil, errors.Wrapf(err, "unable to create directory %q", entry.Path)
			}
			continue
		case flist.KindSymlink:
			if !opts.PreserveLinks {
				continue
			}
			if opts.DryRun {
				continue
			}
			if err := applySymlink(entry, destPath); err != nil {
				return nil, err
			}
			continue
		case flist.KindDeviceChar, flist.KindDeviceBlock, flist.KindFIFO, flist.KindSocket:
			continue
		}

		sourcePath := filepath.Join(sourceRoot, filepath.FromSlash(entry.Path))
		if err := transferRegularFile(coordinator, *entry, sourcePath, destPath, opts, log); err != nil {
			return nil, errors.Wrapf(err, "unable to transfer %q", entry.Path)
		}

		if !opts.DryRun {
			applyOpts := metadataOptionsFor(opts)
			if err := metadata.Apply(destPath, *entry, applyOpts); err != nil {
				log.Warn(errors.Wrapf(err, "unable to apply metadata to %q", entry.Path))
			}
		}
	}

	return coordinator.Stats, nil
}

func metadataOptionsFor(opts cliopts.Options) metadata.Options {
	return metadata.Options{
		PreserveModTime:   opts.PreserveTimes,
		PreserveMode:      opts.PreservePerms,
		PreserveOwnership: opts.PreserveOwner || opts.PreserveGroup,
	}
}

func applySymlink(entry *flist.Entry, destPath string) error {
	os.Remove(destPath)
	if err := os.Symlink(entry.SymlinkTarget, destPath); err != nil {
		return errors.Wrapf(err, "unable to create symlink %q", destPath)
	}
	return nil
}

// transferRegularFile decides an action via pipeline.QuickCheck against
// any existing destination file and, unless skipped, runs it through
// the coordinator's in-process generator/sender/receiver pipeline.
func transferRegularFile(coordinator *pipeline.Coordinator, entry flist.Entry, sourcePath, destPath string, opts cliopts.Options, log *logging.Logger) error {
	destInfo, statErr := os.Stat(destPath)
	destExists := statErr == nil

	action := pipeline.QuickCheck(pipeline.QuickCheckInput{
		DestExists:          destExists,
		SourceSize:          int64(entry.Size),
		DestSize:            sizeOf(destInfo),
		SourceModTime:       entry.ModTimeSeconds,
		DestModTime:         modTimeOf(destInfo),
		ModifyWindowSeconds: 0,
		ChecksumMode:        opts.Checksum,
	})

	if action == pipeline.ActionSkip {
		coordinator.Stats.RecordSkip()
		return nil
	}
	if opts.DryRun {
		log.Info("would transfer %s (%s)", entry.Path, action)
		coordinator.Stats.RecordTransfer()
		return nil
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrap(err, "unable to open source file")
	}
	defer source.Close()

	tempDir := filepath.Dir(destPath)
	tempFile, tempPath, err := metadata.CreateTemp(tempDir, filepath.Base(destPath), "")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary output file")
	}

	var basis io.ReadSeeker = emptyReadSeeker{}
	if action == pipeline.ActionDelta && destExists {
		basisFile, err := os.Open(destPath)
		if err != nil {
			return errors.Wrap(err, "unable to open basis file")
		}
		defer basisFile.Close()
		basis = basisFile
	}

	ft := pipeline.FileTransfer{
		Index:  int32(0),
		Action: action,
		Source: source,
		Basis:  basis,
		Output: tempFile,
	}
	if err := coordinator.RunFile(ft); err != nil {
		metadata.RemoveTemp(tempPath)
		return err
	}

	return metadata.Commit(tempFile, tempPath, destPath)
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

func buildFilterEvaluator(opts cliopts.Options, log *logging.Logger) (flist.FilterEvaluator, error) {
	var lines []string
	lines = append(lines, opts.FilterRules...)
	if opts.FilterFile != "" {
		data, err := os.ReadFile(opts.FilterFile)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read filter file")
		}
		lines = append(lines, splitLines(string(data))...)
	}
	if len(lines) == 0 {
		return flist.AcceptAllFilter{}, nil
	}

	base, err := filter.NewRuleSet(lines)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse filter rules")
	}
	return filter.NewEvaluator(base, nil, filter.DefaultMergeFilename, log), nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

type emptyReadSeeker struct{}

func (emptyReadSeeker) Read([]byte) (int, error)       { return 0, io.EOF }
func (emptyReadSeeker) Seek(int64, int) (int64, error) { return 0, nil }
