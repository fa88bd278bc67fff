package main

import (
	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/cliopts"
	"github.com/synctree/rsyncd/internal/logging"
	"github.com/synctree/rsyncd/pkg/pipeline"
)

// Run resolves sources/dest into targets and dispatches to the local
// or remote transfer path. Only one non-local endpoint is supported
// per invocation (matching real rsync: exactly one side of a transfer
// may be remote).
func Run(sources []string, dest string, opts cliopts.Options, log *logging.Logger) (*pipeline.Stats, error) {
	if opts.ReadBatch != "" {
		return runReadBatch(opts, dest, log)
	}

	destTarget := parseTarget(dest)

	combined := &pipeline.Stats{}
	for _, source := range sources {
		sourceTarget := parseTarget(source)

		var stats *pipeline.Stats
		var err error
		switch {
		case sourceTarget.Kind == targetLocal && destTarget.Kind == targetLocal:
			stats, err = runLocal(sourceTarget.RawLocal, destTarget.RawLocal, opts, log)
		case sourceTarget.Kind != targetLocal && destTarget.Kind == targetLocal:
			stats, err = runRemotePull(sourceTarget, destTarget.RawLocal, opts, log)
		case sourceTarget.Kind == targetLocal && destTarget.Kind != targetLocal:
			stats, err = runRemotePush(sourceTarget.RawLocal, destTarget, opts, log)
		default:
			err = errors.New("only one side of a transfer may be remote")
		}
		if err != nil {
			return nil, err
		}
		mergeStats(combined, stats)
	}

	return combined, nil
}

func mergeStats(into, from *pipeline.Stats) {
	if from == nil {
		return
	}
	s := from.Snapshot()
	into.FilesConsidered += s.FilesConsidered
	into.FilesSkipped += s.FilesSkipped
	into.FilesTransferred += s.FilesTransferred
	into.LiteralBytes += s.LiteralBytes
	into.MatchedBytes += s.MatchedBytes
	into.BytesSent += s.BytesSent
	into.BytesReceived += s.BytesReceived
	into.Redos += s.Redos
	into.RedoExhaustions += s.RedoExhaustions
}
