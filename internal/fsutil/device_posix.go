//go:build !windows

package fsutil

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// statInfo is the subset of a raw stat result the walker and metadata
// applicator need beyond what os.FileInfo already exposes: the
// device/inode pair for hard-link detection, and a regular file's own
// device-number decomposition when it's actually a device node.
type statInfo struct {
	Device      uint64
	Inode       uint64
	DeviceMajor uint32
	DeviceMinor uint32
}

// lstat performs a non-link-following stat and extracts the raw
// syscall fields, grounded on the teacher's pkg/filesystem/
// device_posix.go DeviceID (same os.Lstat-then-syscall.Stat_t cast),
// extended here with rdev decomposition via golang.org/x/sys/unix for
// device-node entries (char/block specials), which the teacher's
// synchronization engine never needed to transmit.
func lstat(path string) (os.FileInfo, statInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, statInfo{}, errors.Wrap(err, "unable to stat path")
	}
	raw, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info, statInfo{}, errors.New("unable to extract raw filesystem information")
	}
	major := unix.Major(uint64(raw.Rdev))
	minor := unix.Minor(uint64(raw.Rdev))
	return info, statInfo{
		Device:      uint64(raw.Dev),
		Inode:       uint64(raw.Ino),
		DeviceMajor: major,
		DeviceMinor: minor,
	}, nil
}

// Makedev composes a raw device number from its major/minor parts,
// the inverse of the decomposition lstat performs; used when
// recreating a device-special file from a received FileEntry.
func Makedev(major, minor uint32) uint64 {
	return unix.Mkdev(major, minor)
}
