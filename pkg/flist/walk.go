package flist

// FilterDecision is the external filter evaluator's verdict for one
// candidate path, consulted by Walk before admitting an entry (spec.md
// 4.4's "Filter integration").
type FilterDecision int

// Filter decisions.
const (
	// FilterInclude admits the entry.
	FilterInclude FilterDecision = iota
	// FilterExclude skips the entry (and, for a directory, its entire
	// subtree).
	FilterExclude
)

// FilterEvaluator is the narrow external collaborator interface the walker
// consults per spec.md 4.4: "queries an external filter evaluator with
// (relative_path, is_dir)". A dir-merge-aware implementation additionally
// observes directory entry/exit to push/pop its per-directory rule stack;
// that bookkeeping is entirely the evaluator's concern, not the walker's.
type FilterEvaluator interface {
	Evaluate(relativePath string, isDir bool) FilterDecision
	EnterDirectory(relativePath string)
	ExitDirectory(relativePath string)
}

// AcceptAllFilter is a FilterEvaluator that admits everything; useful as a
// default when no filter rules are configured.
type AcceptAllFilter struct{}

// Evaluate implements FilterEvaluator.
func (AcceptAllFilter) Evaluate(string, bool) FilterDecision { return FilterInclude }

// EnterDirectory implements FilterEvaluator.
func (AcceptAllFilter) EnterDirectory(string) {}

// ExitDirectory implements FilterEvaluator.
func (AcceptAllFilter) ExitDirectory(string) {}

// StatSource abstracts the filesystem (or a test fixture) the walker reads
// from, keeping pkg/flist free of a direct os/filepath dependency so it can
// be exercised against synthetic trees in tests.
type StatSource interface {
	// ReadDir lists the immediate children of relativePath ("" for the
	// root), sorted lexicographically ascending by name.
	ReadDir(relativePath string) ([]DirEntry, error)
}

// DirEntry is one child discovered by StatSource.ReadDir.
type DirEntry struct {
	Name          string
	Kind          Kind
	Size          uint64
	ModTime       int64
	ModTimeNanos  int32
	Mode          uint32
	UID, GID      uint32
	SymlinkTarget string
	DeviceMajor   uint32
	DeviceMinor   uint32
	Device, Inode uint64
}

// Walk performs a deterministic, filter-integrated, hard-link-tracking
// traversal rooted at "", visiting directories depth-first in
// lexicographic order and appending one Entry per admitted path to list.
// list is mutated in place; only an error is returned.
func Walk(source StatSource, filter FilterEvaluator, list *List) error {
	if filter == nil {
		filter = AcceptAllFilter{}
	}
	tracker := NewHardlinkTracker()
	return walkDir(source, filter, list, tracker, "")
}

func walkDir(source StatSource, filter FilterEvaluator, list *List, tracker *HardlinkTracker, relativePath string) error {
	filter.EnterDirectory(relativePath)
	defer filter.ExitDirectory(relativePath)

	children, err := source.ReadDir(relativePath)
	if err != nil {
		return err
	}

	for _, child := range children {
		childPath := child.Name
		if relativePath != "" {
			childPath = relativePath + "/" + child.Name
		}

		isDir := child.Kind == KindDirectory
		if filter.Evaluate(childPath, isDir) == FilterExclude {
			continue
		}

		entry := Entry{
			Path:           childPath,
			Kind:           child.Kind,
			Size:           child.Size,
			ModTimeSeconds: child.ModTime,
			ModTimeNanos:   child.ModTimeNanos,
			Mode:           child.Mode,
			UID:            child.UID,
			GID:            child.GID,
			SymlinkTarget:  child.SymlinkTarget,
			DeviceMajor:    child.DeviceMajor,
			DeviceMinor:    child.DeviceMinor,
			HardlinkGroup:  -1,
		}

		index := list.Append(entry)

		if child.Kind == KindRegular {
			first, hardlinked := tracker.Observe(child.Device, child.Inode, index)
			if hardlinked {
				list.Entries[index].HardlinkGroup = int32(first)
			}
		}

		if isDir {
			if err := walkDir(source, filter, list, tracker, childPath); err != nil {
				return err
			}
		}
	}

	return nil
}
