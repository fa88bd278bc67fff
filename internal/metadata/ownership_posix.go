//go:build !windows
// +build !windows

package metadata

import (
	"os"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/flist"
)

// applyOwnership restores entry's uid/gid via os.Lchown (which, unlike
// os.Chown, does not follow a symlink target — required for symlink
// entries, harmless for everything else). Grounded on the teacher's
// pkg/filesystem/ownership_posix.go SetOwnership, which makes the same
// choice for the same reason.
func applyOwnership(path string, entry flist.Entry) error {
	if err := os.Lchown(path, int(entry.UID), int(entry.GID)); err != nil {
		return errors.Wrap(err, "unable to set ownership")
	}
	return nil
}
