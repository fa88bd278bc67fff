package protocol

import (
	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/wire"
)

// CompressionAlgorithm identifies a negotiated compression codec.
type CompressionAlgorithm uint8

// Compression algorithms.
const (
	CompressionNone CompressionAlgorithm = iota
	CompressionDeflate
)

// String renders a human-readable algorithm name.
func (c CompressionAlgorithm) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionDeflate:
		return "deflate"
	default:
		return "unknown"
	}
}

// writeAlgorithmList writes a preference-ordered list of algorithm codes as
// a varint count followed by one byte per entry.
func writeAlgorithmList(w wire.Writer, codes []uint8) error {
	if err := wire.WriteVarint(w, uint64(len(codes))); err != nil {
		return err
	}
	for _, c := range codes {
		if err := w.WriteByte(c); err != nil {
			return err
		}
	}
	return nil
}

// readAlgorithmList reads a list written by writeAlgorithmList.
func readAlgorithmList(r wire.Reader) ([]uint8, error) {
	count, err := wire.ReadVarint(r)
	if err != nil {
		return nil, err
	}
	codes := make([]uint8, count)
	for i := range codes {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		codes[i] = b
	}
	return codes, nil
}

// firstMutual returns the first entry of preferred that also appears in
// remote, or ok=false if no entry is shared.
func firstMutual(preferred, remote []uint8) (uint8, bool) {
	remoteSet := make(map[uint8]bool, len(remote))
	for _, c := range remote {
		remoteSet[c] = true
	}
	for _, c := range preferred {
		if remoteSet[c] {
			return c, true
		}
	}
	return 0, false
}

// NegotiateChecksumAlgorithm performs the spec.md 4.3 step-4 exchange
// (protocol >= 31 only): each side sends its preference-ordered list of
// checksum algorithm codes, and the negotiated algorithm is the first entry
// of the local list that also appears in the remote list.
func NegotiateChecksumAlgorithm(r wire.Reader, w wire.Writer, version uint8, preferred []checksum.Algorithm) (checksum.Algorithm, error) {
	if !SupportsAlgorithmNegotiation(version) {
		return checksum.ForProtocol(version), nil
	}

	codes := make([]uint8, len(preferred))
	for i, a := range preferred {
		codes[i] = uint8(a)
	}
	if err := writeAlgorithmList(w, codes); err != nil {
		return 0, wrapNegotiateErr("checksum-algorithm", err)
	}
	if err := wire.TryFlush(w); err != nil {
		return 0, wrapNegotiateErr("checksum-algorithm", err)
	}
	remote, err := readAlgorithmList(r)
	if err != nil {
		return 0, wrapNegotiateErr("checksum-algorithm", err)
	}
	chosen, ok := firstMutual(codes, remote)
	if !ok {
		return 0, errkind.New(errkind.KindUnsupportedFeature, errkind.RoleClient, "checksum-algorithm",
			errors.New("no mutually supported checksum algorithm"))
	}
	return checksum.Algorithm(chosen), nil
}

// NegotiateCompressionAlgorithm performs the spec.md 4.3 step-5 exchange
// (protocol >= 31 and compression requested only).
func NegotiateCompressionAlgorithm(r wire.Reader, w wire.Writer, version uint8, requested bool, preferred []CompressionAlgorithm) (CompressionAlgorithm, error) {
	if !requested || !SupportsAlgorithmNegotiation(version) {
		return CompressionNone, nil
	}

	codes := make([]uint8, len(preferred))
	for i, a := range preferred {
		codes[i] = uint8(a)
	}
	if err := writeAlgorithmList(w, codes); err != nil {
		return 0, wrapNegotiateErr("compression-algorithm", err)
	}
	if err := wire.TryFlush(w); err != nil {
		return 0, wrapNegotiateErr("compression-algorithm", err)
	}
	remote, err := readAlgorithmList(r)
	if err != nil {
		return 0, wrapNegotiateErr("compression-algorithm", err)
	}
	chosen, ok := firstMutual(codes, remote)
	if !ok {
		return CompressionNone, nil
	}
	return CompressionAlgorithm(chosen), nil
}

func wrapNegotiateErr(step string, err error) error {
	return errkind.New(errkind.KindProtocol, errkind.RoleClient, step,
		errors.Wrap(err, "unable to negotiate algorithm"))
}
