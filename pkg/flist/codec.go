package flist

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/wire"
)

// Entry flag bits, per spec.md 4.4's per-entry format.
const (
	flagSameMode uint16 = 1 << iota
	flagSameUID
	flagSameGID
	flagSameTime
	flagSameName
	flagLongName
	flagSameRdevMajor
	flagHlinked
	flagHlinkFirst
	flagIOErrorEndlist
	flagModNsec
)

// maxSharedPrefix bounds the one-byte shared-prefix length field.
const maxSharedPrefix = 255

// Options configures entry encode/decode: which optional fields are active
// for this session, mirroring negotiated transfer options external to the
// core (preserve-links, preserve-devices, preserve-hardlinks, numeric-ids).
type Options struct {
	Protocol          uint8
	PreserveUID       bool
	PreserveGID       bool
	PreserveLinks     bool
	PreserveDevices   bool
	PreserveHardlinks bool
}

// Codec encodes/decodes a stream of Entry records for one direction of a
// session, tracking the previous entry to exploit same-as-previous
// compression the way spec.md 4.4 describes.
type Codec struct {
	opts     Options
	previous Entry
	hasPrev  bool
}

// NewCodec constructs a Codec for the given session options.
func NewCodec(opts Options) *Codec {
	return &Codec{opts: opts}
}

// WriteEntry encodes one entry, diffing it against the previously written
// entry to set SAME_* flags.
func (c *Codec) WriteEntry(w wire.Writer, e Entry) error {
	e.Mode = e.EncodedMode()

	flags, sharedPrefixLen := c.computeFlags(e)
	// A zero flags field is the segment end marker, so an entry that
	// earns no flag bits carries flagLongName, which ReadEntry ignores.
	if flags == 0 {
		flags = flagLongName
	}

	if err := writeFlags(w, flags); err != nil {
		return errors.Wrap(err, "unable to write entry flags")
	}

	suffix := e.Path
	if flags&flagSameName != 0 {
		if err := w.WriteByte(byte(sharedPrefixLen)); err != nil {
			return errors.Wrap(err, "unable to write shared prefix length")
		}
		suffix = e.Path[sharedPrefixLen:]
	}
	if err := wire.WriteBytes(w, []byte(suffix)); err != nil {
		return errors.Wrap(err, "unable to write path suffix")
	}

	if err := wire.WriteVarint(w, e.Size); err != nil {
		return errors.Wrap(err, "unable to write size")
	}

	if flags&flagSameTime == 0 {
		if err := wire.WriteSignedVarint(w, e.ModTimeSeconds); err != nil {
			return errors.Wrap(err, "unable to write mtime")
		}
		if flags&flagModNsec != 0 {
			if err := wire.WriteVarint(w, uint64(e.ModTimeNanos)); err != nil {
				return errors.Wrap(err, "unable to write mtime nanoseconds")
			}
		}
	}

	if flags&flagSameMode == 0 {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], e.Mode)
		if _, err := w.Write(buf[:]); err != nil {
			return errors.Wrap(err, "unable to write mode")
		}
	}

	if c.opts.PreserveUID && flags&flagSameUID == 0 {
		if err := wire.WriteVarint(w, uint64(e.UID)); err != nil {
			return errors.Wrap(err, "unable to write uid")
		}
	}
	if c.opts.PreserveGID && flags&flagSameGID == 0 {
		if err := wire.WriteVarint(w, uint64(e.GID)); err != nil {
			return errors.Wrap(err, "unable to write gid")
		}
	}

	if c.opts.PreserveLinks && e.Kind == KindSymlink {
		if err := wire.WriteBytes(w, []byte(e.SymlinkTarget)); err != nil {
			return errors.Wrap(err, "unable to write symlink target")
		}
	}

	if c.opts.PreserveDevices && e.Kind.isDevice() {
		if flags&flagSameRdevMajor == 0 {
			if err := wire.WriteVarint(w, uint64(e.DeviceMajor)); err != nil {
				return errors.Wrap(err, "unable to write device major")
			}
		}
		if err := wire.WriteVarint(w, uint64(e.DeviceMinor)); err != nil {
			return errors.Wrap(err, "unable to write device minor")
		}
	}

	if c.opts.PreserveHardlinks && flags&flagHlinked != 0 {
		if err := wire.WriteVarint(w, uint64(e.HardlinkGroup)); err != nil {
			return errors.Wrap(err, "unable to write hardlink group")
		}
	}

	c.previous = e
	c.hasPrev = true
	return nil
}

// WriteEndMarker writes the zero flags byte that terminates a segment
// (spec.md 4.4's "End marker").
func (c *Codec) WriteEndMarker(w wire.Writer) error {
	return writeFlags(w, 0)
}

// computeFlags diffs e (already mode-encoded) against the previously
// written entry to determine which SAME_* bits apply, and the shared-path-
// prefix length when SAME_NAME applies.
func (c *Codec) computeFlags(e Entry) (flags uint16, sharedPrefixLen int) {
	if !c.hasPrev {
		if e.ModTimeNanos != 0 && c.opts.Protocol >= 31 {
			flags |= flagModNsec
		}
		return flags, 0
	}
	prev := c.previous

	if e.Mode == prev.Mode {
		flags |= flagSameMode
	}
	if e.UID == prev.UID {
		flags |= flagSameUID
	}
	if e.GID == prev.GID {
		flags |= flagSameGID
	}
	if e.ModTimeSeconds == prev.ModTimeSeconds && e.ModTimeNanos == prev.ModTimeNanos {
		flags |= flagSameTime
	}
	if e.ModTimeNanos != 0 && c.opts.Protocol >= 31 {
		flags |= flagModNsec
	}
	if c.opts.PreserveDevices && e.Kind.isDevice() && prev.Kind.isDevice() && e.DeviceMajor == prev.DeviceMajor {
		flags |= flagSameRdevMajor
	}
	if c.opts.PreserveHardlinks && e.IsHardlinked() {
		flags |= flagHlinked
	}

	sharedPrefixLen = commonPrefixLen(prev.Path, e.Path)
	if sharedPrefixLen > maxSharedPrefix {
		sharedPrefixLen = maxSharedPrefix
	}
	if sharedPrefixLen > 0 {
		flags |= flagSameName
	}
	if len(e.Path)-sharedPrefixLen > 255 {
		flags |= flagLongName
	}

	return flags, sharedPrefixLen
}

// commonPrefixLen returns the length of the longest common byte prefix of
// a and b.
func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// writeFlags writes the flags field, extending to a second byte if any bit
// above the first 7 is set (the first byte's high bit signals "a second
// byte follows", per spec.md 4.4 item 1).
func writeFlags(w wire.Writer, flags uint16) error {
	low := byte(flags & 0x7f)
	high := byte((flags >> 7) & 0xff)
	if high != 0 {
		low |= 0x80
		if err := w.WriteByte(low); err != nil {
			return err
		}
		return w.WriteByte(high)
	}
	return w.WriteByte(low)
}

// readFlags reads a flags field written by writeFlags.
func readFlags(r wire.Reader) (uint16, error) {
	low, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if low&0x80 == 0 {
		return uint16(low), nil
	}
	high, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return uint16(low&0x7f) | uint16(high)<<7, nil
}

// ReadEntry decodes one entry written by WriteEntry. ok is false (with a
// nil error) when the zero flags byte (end marker) is read instead.
func (c *Codec) ReadEntry(r wire.Reader) (entry Entry, ok bool, err error) {
	flags, err := readFlags(r)
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "unable to read entry flags")
	}
	if flags == 0 {
		return Entry{}, false, nil
	}

	var path string
	if flags&flagSameName != 0 {
		prefixLen, err := r.ReadByte()
		if err != nil {
			return Entry{}, false, errors.Wrap(err, "unable to read shared prefix length")
		}
		if int(prefixLen) > len(c.previous.Path) {
			return Entry{}, false, errors.New("shared prefix length exceeds previous path")
		}
		suffix, err := wire.ReadBytes(r)
		if err != nil {
			return Entry{}, false, errors.Wrap(err, "unable to read path suffix")
		}
		path = c.previous.Path[:prefixLen] + string(suffix)
	} else {
		suffix, err := wire.ReadBytes(r)
		if err != nil {
			return Entry{}, false, errors.Wrap(err, "unable to read path")
		}
		path = string(suffix)
	}

	size, err := wire.ReadVarint(r)
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "unable to read size")
	}

	e := Entry{Path: path, Size: size, HardlinkGroup: -1}

	if flags&flagSameTime != 0 {
		e.ModTimeSeconds = c.previous.ModTimeSeconds
		e.ModTimeNanos = c.previous.ModTimeNanos
	} else {
		seconds, err := wire.ReadSignedVarint(r)
		if err != nil {
			return Entry{}, false, errors.Wrap(err, "unable to read mtime")
		}
		e.ModTimeSeconds = seconds
		if flags&flagModNsec != 0 {
			nanos, err := wire.ReadVarint(r)
			if err != nil {
				return Entry{}, false, errors.Wrap(err, "unable to read mtime nanoseconds")
			}
			e.ModTimeNanos = int32(nanos)
		}
	}

	if flags&flagSameMode != 0 {
		e.Mode = c.previous.Mode
	} else {
		var buf [4]byte
		if err := readFull(r, buf[:]); err != nil {
			return Entry{}, false, errors.Wrap(err, "unable to read mode")
		}
		e.Mode = binary.LittleEndian.Uint32(buf[:])
	}
	e.Kind = modeBitsToKind(e.Mode)

	if c.opts.PreserveUID {
		if flags&flagSameUID != 0 {
			e.UID = c.previous.UID
		} else {
			uid, err := wire.ReadVarint(r)
			if err != nil {
				return Entry{}, false, errors.Wrap(err, "unable to read uid")
			}
			e.UID = uint32(uid)
		}
	}
	if c.opts.PreserveGID {
		if flags&flagSameGID != 0 {
			e.GID = c.previous.GID
		} else {
			gid, err := wire.ReadVarint(r)
			if err != nil {
				return Entry{}, false, errors.Wrap(err, "unable to read gid")
			}
			e.GID = uint32(gid)
		}
	}

	if c.opts.PreserveLinks && e.Kind == KindSymlink {
		target, err := wire.ReadBytes(r)
		if err != nil {
			return Entry{}, false, errors.Wrap(err, "unable to read symlink target")
		}
		e.SymlinkTarget = string(target)
	}

	if c.opts.PreserveDevices && e.Kind.isDevice() {
		major := c.previous.DeviceMajor
		if flags&flagSameRdevMajor == 0 {
			m, err := wire.ReadVarint(r)
			if err != nil {
				return Entry{}, false, errors.Wrap(err, "unable to read device major")
			}
			major = uint32(m)
		}
		minor, err := wire.ReadVarint(r)
		if err != nil {
			return Entry{}, false, errors.Wrap(err, "unable to read device minor")
		}
		e.DeviceMajor = major
		e.DeviceMinor = uint32(minor)
	}

	if c.opts.PreserveHardlinks && flags&flagHlinked != 0 {
		group, err := wire.ReadVarint(r)
		if err != nil {
			return Entry{}, false, errors.Wrap(err, "unable to read hardlink group")
		}
		e.HardlinkGroup = int32(group)
	}

	c.previous = e
	return e, true, nil
}

func readFull(r wire.Reader, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return err
		}
	}
	return nil
}
