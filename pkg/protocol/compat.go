package protocol

import (
	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/pkg/wire"
)

// CompatFlag is one bit of the compatibility-flag set exchanged after
// version negotiation (spec.md 3/4.3).
type CompatFlag uint32

// Compatibility flags, matching upstream rsync's CF_* bit assignments.
const (
	CompatIncRecurse CompatFlag = 1 << iota
	CompatSymlinkTimes
	CompatSymlinkIconv
	CompatSafeFlist
	CompatAvoidXattrOptim
	CompatFixChecksumSeed
	CompatInplacePartialDir
)

// CompatibilityFlags is the bit set each side computes for itself and
// exchanges; the session's effective set is the intersection (spec.md 3's
// invariant).
type CompatibilityFlags uint32

// Has reports whether flag is set.
func (f CompatibilityFlags) Has(flag CompatFlag) bool {
	return f&CompatibilityFlags(flag) != 0
}

// DefaultDesired returns the flag set this implementation always wants,
// gated by the negotiated protocol version: INC_RECURSE, SAFE_FLIST,
// SYMLINK_TIMES and AVOID_XATTR_OPTIM are requested at every version,
// protocols 28 and 29 included, and INPLACE_PARTIAL_DIR is added from
// protocol 31.
func DefaultDesired(version uint8) CompatibilityFlags {
	flags := CompatibilityFlags(CompatIncRecurse | CompatSafeFlist | CompatSymlinkTimes | CompatAvoidXattrOptim)
	if version >= VersionNanosecondTimes {
		flags |= CompatibilityFlags(CompatInplacePartialDir)
	}
	return flags
}

// ExchangeCompatFlags sends this side's desired flags and reads the peer's,
// returning the intersection as the effective session set. Protocol < 30
// uses a single flag byte; later protocols reserve the high bit of each
// byte as a continuation marker, so the set may span several bytes, matching
// upstream's extensible compat-flag encoding.
func ExchangeCompatFlags(r wire.Reader, w wire.Writer, version uint8, desired CompatibilityFlags) (CompatibilityFlags, error) {
	if version < VersionVarint {
		if err := w.WriteByte(byte(desired)); err != nil {
			return 0, wrapCompatErr("write", err)
		}
		if err := wire.TryFlush(w); err != nil {
			return 0, wrapCompatErr("flush", err)
		}
		remote, err := r.ReadByte()
		if err != nil {
			return 0, wrapCompatErr("read", err)
		}
		return desired & CompatibilityFlags(remote), nil
	}

	if err := writeExtendedFlags(w, desired); err != nil {
		return 0, wrapCompatErr("write", err)
	}
	if err := wire.TryFlush(w); err != nil {
		return 0, wrapCompatErr("flush", err)
	}
	remote, err := readExtendedFlags(r)
	if err != nil {
		return 0, wrapCompatErr("read", err)
	}
	return desired & remote, nil
}

// writeExtendedFlags encodes flags across as many 7-bit-payload bytes as
// needed, each byte's high bit signaling another byte follows.
func writeExtendedFlags(w wire.Writer, flags CompatibilityFlags) error {
	value := uint32(flags)
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if value == 0 {
			return nil
		}
	}
}

// readExtendedFlags decodes a flag set written by writeExtendedFlags.
func readExtendedFlags(r wire.Reader) (CompatibilityFlags, error) {
	var value uint32
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return CompatibilityFlags(value), nil
		}
		shift += 7
		if shift > 28 {
			return 0, errors.New("compatibility flag sequence too long")
		}
	}
}

func wrapCompatErr(step string, err error) error {
	return errkind.New(errkind.KindProtocol, errkind.RoleClient, "compat-flags-"+step,
		errors.Wrap(err, "unable to exchange compatibility flags"))
}
