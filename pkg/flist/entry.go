// Package flist implements the file-list codec: the metadata record for one
// transferred path, the delta-compressed wire encoding that exploits
// redundancy between consecutive entries, incremental-recursion segment
// framing, and hard-link detection during traversal.
package flist

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies the type of filesystem object an entry describes.
type Kind uint8

// Entry kinds, per spec.md 3's FileEntry field list.
const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
	KindDeviceChar
	KindDeviceBlock
	KindFIFO
	KindSocket
)

// String renders a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindDeviceChar:
		return "device-char"
	case KindDeviceBlock:
		return "device-block"
	case KindFIFO:
		return "fifo"
	case KindSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// isDevice reports whether the kind carries a major/minor device number.
func (k Kind) isDevice() bool {
	return k == KindDeviceChar || k == KindDeviceBlock
}

// Entry is one record in a FileList: spec.md 3's FileEntry.
type Entry struct {
	// Path is the entry's relative path, '/'-separated, never absolute.
	Path string
	Kind Kind
	Size uint64

	// ModTimeSeconds and ModTimeNanos encode mtime; nanoseconds are only
	// meaningful (and only transmitted) on protocol >= 31.
	ModTimeSeconds int64
	ModTimeNanos   int32

	Mode uint32
	UID  uint32
	GID  uint32

	// Uname/Gname are optional textual owner/group names, transmitted
	// when both sides request numeric-to-name mapping.
	Uname string
	Gname string

	// SymlinkTarget is set for KindSymlink entries.
	SymlinkTarget string

	// DeviceMajor/DeviceMinor are set for device-node entries.
	DeviceMajor uint32
	DeviceMinor uint32

	// HardlinkGroup is the index of the first entry sharing this entry's
	// (device, inode) pair, or -1 if this entry is not hardlinked (or is
	// itself the first member of its group).
	HardlinkGroup int32
}

// EnsureValid validates the invariants spec.md 3 places on FileEntry: a
// normalized, non-empty, non-absolute path with no embedded NUL or ".."
// component.
func (e *Entry) EnsureValid() error {
	if e == nil {
		return errors.New("nil entry")
	}
	if e.Path == "" {
		return errors.New("empty path")
	}
	if strings.HasPrefix(e.Path, "/") {
		return errors.Errorf("absolute path %q", e.Path)
	}
	if strings.IndexByte(e.Path, 0) != -1 {
		return errors.Errorf("path %q contains an embedded NUL", e.Path)
	}
	for _, component := range strings.Split(e.Path, "/") {
		if component == ".." {
			return errors.Errorf("path %q contains a \"..\" component", e.Path)
		}
	}
	if e.Kind == KindSymlink && e.SymlinkTarget == "" {
		return errors.Errorf("symlink %q has an empty target", e.Path)
	}
	if e.Kind.isDevice() == false && (e.DeviceMajor != 0 || e.DeviceMinor != 0) {
		return errors.Errorf("non-device entry %q carries a device number", e.Path)
	}
	return nil
}

// IsHardlinked reports whether this entry shares a (device, inode) group
// with an earlier entry in the list.
func (e *Entry) IsHardlinked() bool {
	return e.HardlinkGroup >= 0
}

// List is an ordered, index-stable sequence of Entry: spec.md 3's FileList.
// NDX values on the wire reference indices into this slice, so entries must
// never be reordered or removed once assigned an index.
type List struct {
	Entries []Entry
}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.Entries) }

// Append adds entry to the end of the list and returns its assigned index.
func (l *List) Append(entry Entry) int {
	l.Entries = append(l.Entries, entry)
	return len(l.Entries) - 1
}

// At returns a pointer to the entry at index, or nil if out of range.
func (l *List) At(index int) *Entry {
	if index < 0 || index >= len(l.Entries) {
		return nil
	}
	return &l.Entries[index]
}

// EnsureValid validates every entry and the list-wide invariant that no two
// entries share a path.
func (l *List) EnsureValid() error {
	seen := make(map[string]bool, len(l.Entries))
	for i := range l.Entries {
		if err := l.Entries[i].EnsureValid(); err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
		if seen[l.Entries[i].Path] {
			return errors.Errorf("duplicate path %q", l.Entries[i].Path)
		}
		seen[l.Entries[i].Path] = true
	}
	return nil
}
