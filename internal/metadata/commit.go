package metadata

import (
	"os"

	"github.com/pkg/errors"
)

// Commit finishes writing file, syncs it to stable storage, and renames
// tempPath to finalPath — spec.md 6's "on successful commit, sync and
// rename". file must be the still-open handle CreateTemp returned for
// tempPath; Commit closes it. On any failure the temporary file is
// removed before the error is returned, so a caller never needs its own
// cleanup path for the temp file (though it does for entry.Path's
// data, which this function never touches).
//
// Grounded on the teacher's pkg/filesystem/atomic.go WriteFileAtomic,
// generalized from "write the whole payload in one os.CreateTemp call"
// to "accept an already-written, already-open temporary file" since the
// receiver streams delta-applied data into the temp file incrementally
// rather than assembling it in memory first.
func Commit(file *os.File, tempPath, finalPath string) error {
	if err := file.Sync(); err != nil {
		file.Close()
		RemoveTemp(tempPath)
		return errors.Wrap(err, "unable to sync temporary file")
	}
	if err := file.Close(); err != nil {
		RemoveTemp(tempPath)
		return errors.Wrap(err, "unable to close temporary file")
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		RemoveTemp(tempPath)
		return errors.Wrap(err, "unable to rename temporary file into place")
	}
	return nil
}
