package flist

// POSIX mode file-type bits (S_IFMT and its values), used because spec.md 3
// packs file-kind information into FileEntry.Mode ("u32 POSIX bits +
// file-type bits") rather than carrying a separate wire field for Kind.
const (
	modeTypeMask  uint32 = 0o170000
	modeTypeFIFO  uint32 = 0o010000
	modeTypeChar  uint32 = 0o020000
	modeTypeDir   uint32 = 0o040000
	modeTypeBlock uint32 = 0o060000
	modeTypeFile  uint32 = 0o100000
	modeTypeLink  uint32 = 0o120000
	modeTypeSock  uint32 = 0o140000
)

// kindToModeBits returns the S_IFMT bits corresponding to kind.
func kindToModeBits(kind Kind) uint32 {
	switch kind {
	case KindDirectory:
		return modeTypeDir
	case KindSymlink:
		return modeTypeLink
	case KindDeviceChar:
		return modeTypeChar
	case KindDeviceBlock:
		return modeTypeBlock
	case KindFIFO:
		return modeTypeFIFO
	case KindSocket:
		return modeTypeSock
	default:
		return modeTypeFile
	}
}

// modeBitsToKind recovers Kind from the S_IFMT bits of a mode value.
func modeBitsToKind(mode uint32) Kind {
	switch mode & modeTypeMask {
	case modeTypeDir:
		return KindDirectory
	case modeTypeLink:
		return KindSymlink
	case modeTypeChar:
		return KindDeviceChar
	case modeTypeBlock:
		return KindDeviceBlock
	case modeTypeFIFO:
		return KindFIFO
	case modeTypeSock:
		return KindSocket
	default:
		return KindRegular
	}
}

// EncodedMode returns e.Mode with the file-type bits forced to match
// e.Kind, so callers that construct entries directly (rather than through a
// filesystem stat) don't have to compute S_IFMT bits by hand.
func (e *Entry) EncodedMode() uint32 {
	return (e.Mode &^ modeTypeMask) | kindToModeBits(e.Kind)
}
