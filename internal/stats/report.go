// Package stats renders pkg/pipeline.Stats into the human-readable
// transfer summary rsync prints at the end of a run (its traditional
// "sent/received/total size, speedup is N.NN" trailer).
package stats

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/synctree/rsyncd/pkg/pipeline"
)

// Report renders a snapshot of stats in rsync's familiar multi-line
// summary format, grounded on the teacher's cmd/mutagen stats
// rendering (humanize.Bytes for every byte count, one labeled line
// per figure) adapted from mutagen's staging-progress numbers to
// rsync's own sent/received/literal/matched/speedup vocabulary.
func Report(stats pipeline.Stats) string {
	s := stats.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Number of files transferred: %d\n", s.FilesTransferred)
	if s.FilesSkipped > 0 {
		fmt.Fprintf(&b, "Number of files skipped: %d\n", s.FilesSkipped)
	}
	fmt.Fprintf(&b, "Literal data: %s\n", humanize.Bytes(uint64(s.LiteralBytes)))
	fmt.Fprintf(&b, "Matched data: %s\n", humanize.Bytes(uint64(s.MatchedBytes)))
	fmt.Fprintf(&b, "Total bytes sent: %s\n", humanize.Bytes(uint64(s.BytesSent)))
	fmt.Fprintf(&b, "Total bytes received: %s\n", humanize.Bytes(uint64(s.BytesReceived)))
	if s.Redos > 0 {
		fmt.Fprintf(&b, "Redo attempts: %d (%d exhausted)\n", s.Redos, s.RedoExhaustions)
	}
	fmt.Fprintf(&b, "Speedup is %.2f\n", s.SpeedupRatio())

	return b.String()
}

// OneLine renders a compact single-line summary suitable for
// --info=progress-style output during a transfer rather than a final
// report.
func OneLine(stats pipeline.Stats) string {
	s := stats.Snapshot()
	return fmt.Sprintf("%d files, %s sent, %s received, speedup %.2f",
		s.FilesTransferred,
		humanize.Bytes(uint64(s.BytesSent)),
		humanize.Bytes(uint64(s.BytesReceived)),
		s.SpeedupRatio())
}
