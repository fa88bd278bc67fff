// Package protocol implements the handshake that produces a session
// context: negotiated version, compatibility flags, checksum seed, and
// algorithm selections, consumed by every later component of the pipeline.
package protocol

import (
	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/pkg/wire"
)

// MinVersion and MaxVersion bound the protocol versions this implementation
// negotiates, matching upstream rsync 3.0.x-3.4.x interoperability.
const (
	MinVersion uint8 = 28
	MaxVersion uint8 = 32
)

// Gating version thresholds referenced throughout the core.
const (
	// VersionVarint is the first version that uses varint/NDX-delta
	// encoding rather than fixed-width fields.
	VersionVarint uint8 = 30
	// VersionNanosecondTimes is the first version that transmits mtime
	// nanoseconds alongside seconds.
	VersionNanosecondTimes uint8 = 31
	// VersionAlgorithmNegotiation is the first version that exchanges
	// explicit checksum/compression algorithm preference lists.
	VersionAlgorithmNegotiation uint8 = 31
	// VersionXXH3 is the first version whose default strong hash is XXH3.
	VersionXXH3 uint8 = 32
)

// NegotiateVersion exchanges each side's maximum supported version over w/r
// and returns the effective session version: min(local, remote), clamped to
// [MinVersion, MaxVersion]. Per spec.md 4.3 step 1, a result below
// MinVersion is a failure.
func NegotiateVersion(r wire.Reader, w wire.Writer, localMax uint8) (uint8, error) {
	if err := w.WriteByte(localMax); err != nil {
		return 0, errkind.New(errkind.KindProtocol, errkind.RoleClient, "version-exchange",
			errors.Wrap(err, "unable to write local version"))
	}
	if err := wire.TryFlush(w); err != nil {
		return 0, errkind.New(errkind.KindProtocol, errkind.RoleClient, "version-exchange",
			errors.Wrap(err, "unable to flush local version"))
	}
	remoteByte, err := r.ReadByte()
	if err != nil {
		return 0, errkind.New(errkind.KindProtocol, errkind.RoleClient, "version-exchange",
			errors.Wrap(err, "unable to read remote version"))
	}
	remoteMax := remoteByte

	negotiated := localMax
	if remoteMax < negotiated {
		negotiated = remoteMax
	}
	if negotiated > MaxVersion {
		negotiated = MaxVersion
	}
	if negotiated < MinVersion {
		return 0, errkind.New(errkind.KindProtocol, errkind.RoleClient, "version-exchange",
			errors.Errorf("negotiated protocol version %d below minimum %d", negotiated, MinVersion))
	}
	return negotiated, nil
}

// SupportsVarint reports whether version uses varint/NDX-delta wire
// encoding rather than fixed-width fields.
func SupportsVarint(version uint8) bool { return version >= VersionVarint }

// SupportsNanosecondTimes reports whether version transmits mtime
// nanoseconds.
func SupportsNanosecondTimes(version uint8) bool { return version >= VersionNanosecondTimes }

// SupportsAlgorithmNegotiation reports whether version exchanges explicit
// checksum/compression algorithm preference lists.
func SupportsAlgorithmNegotiation(version uint8) bool {
	return version >= VersionAlgorithmNegotiation
}
