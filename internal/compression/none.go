package compression

import "io"

// noneCompressor is the identity WriteFlushCloser used when compression
// is negotiated off.
type noneCompressor struct {
	io.Writer
}

// Flush implements stream.Flusher.Flush.
func (c *noneCompressor) Flush() error {
	return nil
}

// Close implements io.Closer.Close.
func (c *noneCompressor) Close() error {
	return nil
}

func newNoneCompressor(compressed io.Writer) WriteFlushCloser {
	return &noneCompressor{compressed}
}

func newNoneDecompressor(compressed io.Reader) io.ReadCloser {
	return io.NopCloser(compressed)
}
