package protocol

import (
	"bufio"
	"crypto/rand"
	"io"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/pkg/checksum"
	"github.com/synctree/rsyncd/pkg/wire"
)

// Session is the context produced by a completed handshake and consumed by
// every later component: negotiated version, effective compatibility
// flags, checksum seed, and algorithm selections.
type Session struct {
	Version          uint8
	CompatFlags      CompatibilityFlags
	Seed             checksum.Seed
	ChecksumAlgo     checksum.Algorithm
	CompressionAlgo  CompressionAlgorithm
	StrongLen        int
	MultiplexReader  *wire.Reader
	MultiplexWriter  *wire.Writer
}

// Options configures a handshake invocation.
type Options struct {
	// LocalMaxVersion is the highest protocol version this side offers.
	LocalMaxVersion uint8
	// IsSender indicates whether this side generates the checksum seed
	// (sender per spec.md 4.3 step 2) or receives it.
	IsSender bool
	// PreferredChecksums is the preference-ordered checksum algorithm
	// list offered during negotiation on protocol >= 31.
	PreferredChecksums []checksum.Algorithm
	// CompressionRequested indicates whether this side wants to
	// negotiate compression (spec.md 4.3 step 5).
	CompressionRequested bool
	// PreferredCompression is the preference-ordered compression
	// algorithm list offered when CompressionRequested is true.
	PreferredCompression []CompressionAlgorithm
	// EntropySeed, if non-nil, generates the checksum seed
	// deterministically (test fixtures); if nil, a real entropy source
	// is used.
	EntropySeed io.Reader
	// Sink receives out-of-band multiplex frames once activated.
	Sink wire.LogSink
	// Role tags errors raised during the handshake.
	Role errkind.Role
}

// Run executes the full spec.md 4.3 handshake sequence over r/w (which must
// be buffered: *bufio.Reader / *bufio.Writer satisfy wire.Reader/Writer) and
// returns the resulting Session. On success, r and w must not be used
// directly again; all further I/O goes through Session.MultiplexReader/
// MultiplexWriter.
func Run(r *bufio.Reader, w *bufio.Writer, opts Options) (*Session, error) {
	role := opts.Role
	if role == "" {
		role = errkind.RoleClient
	}

	version, err := NegotiateVersion(r, w, opts.LocalMaxVersion)
	if err != nil {
		return nil, err
	}

	seed, err := exchangeSeed(r, w, opts, role)
	if err != nil {
		return nil, err
	}

	desired := DefaultDesired(version)
	compatFlags, err := ExchangeCompatFlags(r, w, version, desired)
	if err != nil {
		return nil, err
	}

	preferredChecksums := opts.PreferredChecksums
	if len(preferredChecksums) == 0 {
		preferredChecksums = []checksum.Algorithm{checksum.XXH3, checksum.XXH128, checksum.MD5, checksum.MD4}
	}
	checksumAlgo, err := NegotiateChecksumAlgorithm(r, w, version, preferredChecksums)
	if err != nil {
		return nil, err
	}

	compressionAlgo, err := NegotiateCompressionAlgorithm(r, w, version, opts.CompressionRequested, opts.PreferredCompression)
	if err != nil {
		return nil, err
	}

	strongLen := checksumAlgo.DigestSize()

	// Activate multiplex framing. Per spec.md 4.2's invariant, any bytes
	// buffered on either side must be drained into the stream before
	// wrapping, and both directions activate together. Draining the
	// bufio.Writer flushes pending handshake bytes through the raw
	// stream; the bufio.Reader has no equivalent "drain" operation since
	// it only buffers bytes already read off the wire, so wrapping it
	// directly is safe as long as no handshake bytes remain unread,
	// which the sequential exchanges above guarantee.
	if err := w.Flush(); err != nil {
		return nil, errkind.New(errkind.KindTransport, role, "multiplex-activation",
			errors.Wrap(err, "unable to flush handshake writer"))
	}

	return &Session{
		Version:         version,
		CompatFlags:     compatFlags,
		Seed:            seed,
		ChecksumAlgo:    checksumAlgo,
		CompressionAlgo: compressionAlgo,
		StrongLen:       strongLen,
		MultiplexReader: wire.NewReader(r, opts.Sink),
		MultiplexWriter: wire.NewWriter(w),
	}, nil
}

func exchangeSeed(r *bufio.Reader, w *bufio.Writer, opts Options, role errkind.Role) (checksum.Seed, error) {
	if opts.IsSender {
		entropy := opts.EntropySeed
		if entropy == nil {
			entropy = rand.Reader
		}
		seed, err := checksum.GenerateSeed(entropy)
		if err != nil {
			return 0, errkind.New(errkind.KindProtocol, role, "seed-exchange", err)
		}
		if err := SendSeed(w, seed); err != nil {
			return 0, err
		}
		return seed, nil
	}
	return ReceiveSeed(r)
}
