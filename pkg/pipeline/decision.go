package pipeline

// Action is the generator's verdict for a single file: whether to leave
// the destination alone, send it whole, or delta it against a basis
// (spec.md 4.6's "Decision rules (quick check)").
type Action int

const (
	// ActionSkip leaves the destination file untouched.
	ActionSkip Action = iota
	// ActionWhole transfers the file with no basis to diff against.
	ActionWhole
	// ActionDelta transfers the file as a token stream against a basis.
	ActionDelta
)

// String renders the action name for logging.
func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionWhole:
		return "whole"
	case ActionDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// QuickCheckInput bundles the facts the quick-check decision rule needs.
// It deliberately carries no filesystem dependency: callers gather these
// values however their basis/destination abstraction works.
type QuickCheckInput struct {
	// DestExists reports whether a destination file exists at all. When
	// false the only possible action is ActionWhole: there is no basis.
	DestExists bool

	SourceSize int64
	DestSize   int64

	// SourceModTime and DestModTime are Unix seconds.
	SourceModTime int64
	DestModTime   int64

	// ModifyWindowSeconds is the maximum mtime difference still treated
	// as "unchanged" (rsync's --modify-window).
	ModifyWindowSeconds int64

	// ChecksumMode forces a strong-checksum comparison even when size
	// and mtime already agree (rsync's --checksum).
	ChecksumMode bool

	// SourceChecksum and DestChecksum are only consulted when
	// ChecksumMode is set and both are non-nil.
	SourceChecksum []byte
	DestChecksum   []byte

	// AlwaysDelta forces ActionDelta instead of ActionSkip whenever a
	// basis exists, even if quick-check would otherwise skip (rsync's
	// --ignore-times combined with a non-identical-path basis such as
	// --compare-dest, where the quick check alone cannot prove the
	// destination and basis share content).
	AlwaysDelta bool
}

// QuickCheck applies spec.md 4.6's decision rule: no destination means a
// whole-file send; matching size and mtime (within the modify window)
// means skip, unless checksum mode demands a stronger comparison or the
// caller has forced a delta; anything else means delta against the
// existing basis.
func QuickCheck(in QuickCheckInput) Action {
	if !in.DestExists {
		return ActionWhole
	}

	sizeMatches := in.SourceSize == in.DestSize
	window := in.ModifyWindowSeconds
	if window < 0 {
		window = 0
	}
	diff := in.SourceModTime - in.DestModTime
	if diff < 0 {
		diff = -diff
	}
	timeMatches := diff <= window

	if sizeMatches && timeMatches {
		if in.AlwaysDelta {
			return ActionDelta
		}
		if !in.ChecksumMode {
			return ActionSkip
		}
		if in.SourceChecksum != nil && in.DestChecksum != nil {
			if bytesEqual(in.SourceChecksum, in.DestChecksum) {
				return ActionSkip
			}
		}
		return ActionDelta
	}

	return ActionDelta
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
