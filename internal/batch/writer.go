package batch

import (
	"bufio"
	"os"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/wire"
)

// Writer is an open --write-batch destination file. After construction,
// callers stream the file list (pkg/flist) and delta token streams
// (pkg/delta, pkg/pipeline) through Stream() exactly as they would onto
// a live transport.
type Writer struct {
	file   *os.File
	buf    *bufio.Writer
	Stream wire.Writer
}

// Create opens path for --write-batch, truncating any existing file,
// and writes header immediately so Stream is ready for the file list.
func Create(path string, header Header) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create batch file")
	}
	buf := bufio.NewWriter(file)
	if err := WriteHeader(buf, header); err != nil {
		file.Close()
		return nil, err
	}
	return &Writer{file: file, buf: buf, Stream: buf}, nil
}

// Close flushes any buffered output and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return errors.Wrap(err, "unable to flush batch file")
	}
	return w.file.Close()
}
