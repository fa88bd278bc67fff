// Package compression implements the wire-level compression codecs
// negotiated during the protocol handshake (spec.md 4.3 step 5):
// algorithm "none" (a passthrough) and "deflate" (DEFLATE via
// klauspost/compress/flate). The negotiated algorithm identifier itself
// lives in pkg/protocol; this package turns that identifier into a
// live compressor/decompressor wrapped around the transport stream.
package compression

import (
	"io"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/protocol"
	"github.com/synctree/rsyncd/pkg/stream"
)

// WriteFlushCloser is a compressor: writes are buffered and transformed
// before reaching the underlying stream, Flush forces any buffered
// output out without ending the compressed stream, and Close ends the
// compressed stream (without closing the underlying writer).
type WriteFlushCloser interface {
	io.Writer
	stream.Flusher
	io.Closer
}

// NewCompressor wraps compressed with a compressor for algorithm. The
// Flush and Close methods operate only on the compressor; the
// underlying stream should be flushed and/or closed separately by the
// caller.
func NewCompressor(algorithm protocol.CompressionAlgorithm, compressed io.Writer) (WriteFlushCloser, error) {
	switch algorithm {
	case protocol.CompressionNone:
		return newNoneCompressor(compressed), nil
	case protocol.CompressionDeflate:
		return newDeflateCompressor(compressed)
	default:
		return nil, errors.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// NewDecompressor wraps compressed with a decompressor for algorithm.
// Closing the returned reader releases decompression resources; it has
// no effect on the underlying stream.
func NewDecompressor(algorithm protocol.CompressionAlgorithm, compressed io.Reader) (io.ReadCloser, error) {
	switch algorithm {
	case protocol.CompressionNone:
		return newNoneDecompressor(compressed), nil
	case protocol.CompressionDeflate:
		return newDeflateDecompressor(compressed), nil
	default:
		return nil, errors.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}
