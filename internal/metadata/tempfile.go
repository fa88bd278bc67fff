package metadata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// defaultTempSuffix is appended to the process ID to form the default
// temporary-file pattern spec.md 6 specifies: ".<name>.<pid>.~tmp~".
const defaultTempSuffix = "~tmp~"

// TempPath returns the temporary path the receiver writes to while
// assembling name inside dir, before it is renamed into place. suffix
// overrides the trailing "~tmp~" component (spec.md 6's "or a
// user-specified suffix"); an empty suffix uses the default.
func TempPath(dir, name, suffix string) string {
	if suffix == "" {
		suffix = defaultTempSuffix
	}
	return filepath.Join(dir, fmt.Sprintf(".%s.%d.%s", name, os.Getpid(), suffix))
}

// CreateTemp opens the temporary file at TempPath(dir, name, suffix)
// for writing, creating it if necessary and truncating any stale
// leftover from a prior, interrupted attempt with the same pid (which
// can only happen across a pid wraparound, but os.O_TRUNC makes that
// case safe rather than merely unlikely).
func CreateTemp(dir, name, suffix string) (*os.File, string, error) {
	path := TempPath(dir, name, suffix)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to create temporary file")
	}
	return file, path, nil
}

// RemoveTemp cleans up a temporary file left behind by a failed
// transfer (spec.md 6's "failure paths remove the temp file via scoped
// cleanup"). Errors are swallowed since this is itself cleanup code run
// on another error path; a leftover temp file is a cosmetic problem,
// not a correctness one, since TempPath is deterministic and the next
// attempt will truncate it again.
func RemoveTemp(path string) {
	_ = os.Remove(path)
}
