// Package cliopts binds command-line flags into an Options struct and
// does nothing else: no validation beyond what pflag itself performs,
// no session orchestration. Per spec.md 1, argument grammar lives
// entirely outside the core; this is the narrow seam between the two.
package cliopts

import (
	"github.com/spf13/pflag"

	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/protocol"
)

// Options collects every flag the core's entry points consume,
// mirroring the subset of real rsync's command-line surface this
// implementation drives: transfer direction/paths are resolved by the
// caller (cmd/rsync) from positional arguments, not here.
type Options struct {
	// Archive enables the conventional -a bundle: recurse, preserve
	// links/perms/times/group/owner/devices.
	Archive bool
	// Recursive descends into directories.
	Recursive bool
	// PreserveLinks, PreservePerms, PreserveTimes, PreserveOwner, and
	// PreserveGroup each gate one stage of internal/metadata.Apply.
	PreserveLinks bool
	PreservePerms bool
	PreserveTimes bool
	PreserveOwner bool
	PreserveGroup bool
	// Delete removes destination-only entries to mirror the source.
	Delete bool
	// DryRun reports planned actions without changing the destination.
	DryRun bool
	// Compress requests compression negotiation.
	Compress bool
	// Checksum forces whole-file checksum comparison rather than
	// quick mtime/size comparison when deciding what needs transfer.
	Checksum bool

	// BandwidthLimit caps transfer throughput in bytes/second; zero
	// means unlimited (internal/bwlimit.Unlimited).
	BandwidthLimit int

	// Port is the daemon TCP port for an rsync:// target; zero means
	// the default (transport.DefaultDaemonPort).
	Port uint16
	// RemoteShell overrides the command used to invoke a remote
	// shell transport (rsync's -e), e.g. "ssh -i key.pem".
	RemoteShell string

	// FilterRules are raw include/exclude rule lines (rsync's
	// --filter/--include/--exclude), applied in command-line order.
	FilterRules []string
	// FilterFile, if set, is a file of newline-delimited filter rules
	// (rsync's --filter-file / merge directive equivalent).
	FilterFile string
	// CVSExclude enables the built-in CVS-style default exclusions.
	CVSExclude bool

	// WriteBatch and ReadBatch name a batch file to record to or
	// replay from, per internal/batch.
	WriteBatch string
	ReadBatch  string

	// ChecksumAlgorithm and CompressionAlgorithm pin a specific
	// algorithm rather than negotiating the default preference order;
	// empty/zero means "let negotiation choose".
	ChecksumAlgorithm   checksum.Algorithm
	CompressionAlgorithm protocol.CompressionAlgorithm

	// Verbose and Quiet control internal/logging's verbosity level.
	Verbose bool
	Quiet   bool
}

// Bind registers every Options flag against flags, in the style of
// the teacher's cmd/flag.go helpers: one call per command wires the
// whole flag surface without repeating flag names at each call site.
func Bind(flags *pflag.FlagSet, opts *Options) {
	flags.BoolVarP(&opts.Archive, "archive", "a", false, "Archive mode (preserve links, perms, times, group, owner)")
	flags.BoolVarP(&opts.Recursive, "recursive", "r", false, "Recurse into directories")
	flags.BoolVarP(&opts.PreserveLinks, "links", "l", false, "Preserve symlinks")
	flags.BoolVarP(&opts.PreservePerms, "perms", "p", false, "Preserve permissions")
	flags.BoolVarP(&opts.PreserveTimes, "times", "t", false, "Preserve modification times")
	flags.BoolVarP(&opts.PreserveOwner, "owner", "o", false, "Preserve owner")
	flags.BoolVarP(&opts.PreserveGroup, "group", "g", false, "Preserve group")
	flags.BoolVar(&opts.Delete, "delete", false, "Delete destination files not present in source")
	flags.BoolVarP(&opts.DryRun, "dry-run", "n", false, "Show what would be transferred without transferring")
	flags.BoolVarP(&opts.Compress, "compress", "z", false, "Compress transferred data")
	flags.BoolVarP(&opts.Checksum, "checksum", "c", false, "Compare by checksum rather than mtime/size")

	flags.IntVar(&opts.BandwidthLimit, "bwlimit", 0, "Bandwidth limit in bytes/second (0 disables)")
	flags.Uint16Var(&opts.Port, "port", 0, "Daemon port (default 873)")
	flags.StringVarP(&opts.RemoteShell, "rsh", "e", "", "Remote shell command")

	flags.StringArrayVar(&opts.FilterRules, "filter", nil, "Add a filter rule")
	flags.StringArrayVar(&opts.FilterRules, "include", nil, "Add an include rule")
	flags.StringArrayVar(&opts.FilterRules, "exclude", nil, "Add an exclude rule")
	flags.StringVar(&opts.FilterFile, "filter-file", "", "Read filter rules from a file")
	flags.BoolVar(&opts.CVSExclude, "cvs-exclude", false, "Apply CVS-style default exclusions")

	flags.StringVar(&opts.WriteBatch, "write-batch", "", "Record a transfer to a batch file")
	flags.StringVar(&opts.ReadBatch, "read-batch", "", "Replay a transfer from a batch file")

	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Increase logging verbosity")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "Suppress non-error output")
}

// ApplyArchive expands Archive into its constituent preserve flags,
// matching real rsync's -a = -rlptgoD shorthand (device preservation
// is handled unconditionally by pkg/flist and so has no flag here).
func (o *Options) ApplyArchive() {
	if !o.Archive {
		return
	}
	o.Recursive = true
	o.PreserveLinks = true
	o.PreservePerms = true
	o.PreserveTimes = true
	o.PreserveOwner = true
	o.PreserveGroup = true
}
