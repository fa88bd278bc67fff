package pipeline

// BasisKind identifies which candidate a SelectBasis call settled on,
// mirroring spec.md 4.6's fixed priority order.
type BasisKind int

const (
	// BasisNone means no usable basis was found; the generator must
	// fall back to ActionWhole regardless of what QuickCheck said.
	BasisNone BasisKind = iota
	// BasisExact is the destination file itself, in place.
	BasisExact
	// BasisLinkDest is a file from a --link-dest candidate directory.
	BasisLinkDest
	// BasisCopyDest is a file from a --copy-dest candidate directory.
	BasisCopyDest
	// BasisCompareDest is a file from a --compare-dest candidate
	// directory (read-only: never used as a hard-link or copy source).
	BasisCompareDest
	// BasisFuzzy is a same-directory file chosen by fuzzy name
	// matching when no exact-path basis exists.
	BasisFuzzy
	// BasisPartial is a leftover fragment from a prior interrupted
	// transfer (--partial-dir).
	BasisPartial
)

// String renders the basis kind name for logging.
func (k BasisKind) String() string {
	switch k {
	case BasisNone:
		return "none"
	case BasisExact:
		return "exact"
	case BasisLinkDest:
		return "link-dest"
	case BasisCopyDest:
		return "copy-dest"
	case BasisCompareDest:
		return "compare-dest"
	case BasisFuzzy:
		return "fuzzy"
	case BasisPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// BasisCandidate names one directory to probe for a given relative path,
// in priority order.
type BasisCandidate struct {
	Kind BasisKind
	Dir  string
}

// Prober reports whether a basis candidate exists at a given directory
// and relative path. Implementations wrap a real filesystem; pipeline
// never touches one directly so it can be driven by fakes in tests.
type Prober interface {
	Exists(dir, relativePath string) bool
}

// BasisSelection is the result of walking the candidate list: which kind
// won, and the resolved directory it came from (empty for BasisNone).
type BasisSelection struct {
	Kind BasisKind
	Dir  string
}

// SelectBasis walks candidates in the fixed priority order spec.md 4.6
// specifies — exact destination, then --link-dest, --copy-dest,
// --compare-dest, a fuzzy match, and finally a --partial fragment —
// returning the first one the prober confirms exists. fuzzyDir and
// partialDir are empty strings when the corresponding feature is
// disabled or found nothing to offer.
func SelectBasis(prober Prober, relativePath string, destDir string, linkDest, copyDest, compareDest []string, fuzzyDir, partialDir string) BasisSelection {
	if destDir != "" && prober.Exists(destDir, relativePath) {
		return BasisSelection{Kind: BasisExact, Dir: destDir}
	}
	for _, dir := range linkDest {
		if prober.Exists(dir, relativePath) {
			return BasisSelection{Kind: BasisLinkDest, Dir: dir}
		}
	}
	for _, dir := range copyDest {
		if prober.Exists(dir, relativePath) {
			return BasisSelection{Kind: BasisCopyDest, Dir: dir}
		}
	}
	for _, dir := range compareDest {
		if prober.Exists(dir, relativePath) {
			return BasisSelection{Kind: BasisCompareDest, Dir: dir}
		}
	}
	if fuzzyDir != "" && prober.Exists(fuzzyDir, relativePath) {
		return BasisSelection{Kind: BasisFuzzy, Dir: fuzzyDir}
	}
	if partialDir != "" && prober.Exists(partialDir, relativePath) {
		return BasisSelection{Kind: BasisPartial, Dir: partialDir}
	}
	return BasisSelection{Kind: BasisNone}
}

// ReadOnly reports whether files found at this basis kind must never be
// used as a hard-link or in-place-update source, only read for delta
// generation (spec.md 4.6: --compare-dest is strictly read-only, unlike
// --link-dest and --copy-dest).
func (k BasisKind) ReadOnly() bool {
	return k == BasisCompareDest
}
