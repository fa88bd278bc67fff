package compression

import (
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/pkg/errors"
)

// deflateLevel is the DEFLATE compression level used for transfers. It
// matches flate.DefaultCompression rather than trading CPU for ratio,
// since the delta engine has already stripped out matched blocks by the
// time data reaches this layer.
const deflateLevel = flate.DefaultCompression

func newDeflateCompressor(compressed io.Writer) (WriteFlushCloser, error) {
	compressor, err := flate.NewWriter(compressed, deflateLevel)
	if err != nil {
		return nil, errors.Wrap(err, "unable to construct DEFLATE compressor")
	}
	return compressor, nil
}

func newDeflateDecompressor(compressed io.Reader) io.ReadCloser {
	return flate.NewReader(compressed)
}
