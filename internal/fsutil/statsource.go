package fsutil

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/flist"
)

// OSStatSource is a flist.StatSource rooted at a real directory on
// disk, the only StatSource implementation pkg/flist's tests don't
// already supply themselves (they exercise Walk against synthetic
// fixtures; this is what cmd/rsync hands it in production).
type OSStatSource struct {
	Root string
}

// ReadDir implements flist.StatSource.
func (s OSStatSource) ReadDir(relativePath string) ([]flist.DirEntry, error) {
	dir := filepath.Join(s.Root, filepath.FromSlash(relativePath))
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read directory %q", relativePath)
	}

	names := make([]string, len(children))
	for i, child := range children {
		names[i] = child.Name()
	}
	sort.Strings(names)

	entries := make([]flist.DirEntry, 0, len(names))
	for _, name := range names {
		childPath := filepath.Join(dir, name)
		entry, err := statDirEntry(name, childPath)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func statDirEntry(name, path string) (flist.DirEntry, error) {
	info, raw, err := lstat(path)
	if err != nil {
		return flist.DirEntry{}, err
	}

	entry := flist.DirEntry{
		Name:         name,
		Size:         uint64(info.Size()),
		ModTime:      info.ModTime().Unix(),
		ModTimeNanos: int32(info.ModTime().Nanosecond()),
		Mode:         uint32(info.Mode().Perm()),
		Device:       raw.Device,
		Inode:        raw.Inode,
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		entry.Kind = flist.KindSymlink
		target, err := os.Readlink(path)
		if err != nil {
			return flist.DirEntry{}, errors.Wrapf(err, "unable to read symlink %q", path)
		}
		entry.SymlinkTarget = target
	case info.IsDir():
		entry.Kind = flist.KindDirectory
	case info.Mode()&os.ModeCharDevice != 0:
		entry.Kind = flist.KindDeviceChar
		entry.DeviceMajor, entry.DeviceMinor = raw.DeviceMajor, raw.DeviceMinor
	case info.Mode()&os.ModeDevice != 0:
		entry.Kind = flist.KindDeviceBlock
		entry.DeviceMajor, entry.DeviceMinor = raw.DeviceMajor, raw.DeviceMinor
	case info.Mode()&os.ModeNamedPipe != 0:
		entry.Kind = flist.KindFIFO
	case info.Mode()&os.ModeSocket != 0:
		entry.Kind = flist.KindSocket
	default:
		entry.Kind = flist.KindRegular
	}

	return entry, nil
}
