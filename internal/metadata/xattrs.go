package metadata

import "github.com/synctree/rsyncd/pkg/flist"

// applyXattrs is a placeholder for ACL/xattr restoration. flist.Entry
// carries none of the fields spec.md 3's FileEntry list would need to
// transmit extended attributes or ACLs (no xattr name/value payload is
// part of the wire entry), so there is nothing for this stage to apply
// yet; it exists so Options.PreserveXattrs has a stage to flip on once
// FileEntry grows that payload, without disturbing metadata.Apply's
// fixed ordering.
func applyXattrs(path string, entry flist.Entry) error {
	return nil
}
