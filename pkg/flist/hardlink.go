package flist

// deviceInode identifies a filesystem object for hard-link detection.
type deviceInode struct {
	device uint64
	inode  uint64
}

// HardlinkTracker maintains the sender-side "(device, inode) -> first_index"
// map described in spec.md 4.4: the second and subsequent paths sharing an
// inode are marked hardlinked and reference the first index.
type HardlinkTracker struct {
	seen map[deviceInode]int
}

// NewHardlinkTracker constructs an empty tracker.
func NewHardlinkTracker() *HardlinkTracker {
	return &HardlinkTracker{seen: make(map[deviceInode]int)}
}

// Observe records that index refers to the given (device, inode) pair and
// returns the group's first index and whether this is a repeat observation
// (i.e. whether the caller should mark the entry as hardlinked). The first
// observation of a given pair returns (index, false); every later
// observation of the same pair returns (firstIndex, true).
func (t *HardlinkTracker) Observe(device, inode uint64, index int) (firstIndex int, hardlinked bool) {
	if inode == 0 {
		// Some filesystems/APIs report a zero inode for objects that do
		// not support hard-link detection (e.g. certain network
		// filesystems); never group these.
		return index, false
	}
	key := deviceInode{device: device, inode: inode}
	if first, ok := t.seen[key]; ok {
		return first, true
	}
	t.seen[key] = index
	return index, false
}
