package batch

import (
	"bufio"
	"os"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/wire"
)

// Reader is an open --read-batch source file. After construction,
// Header holds the replayed session's parameters and Stream yields the
// file list and delta token streams that follow it.
type Reader struct {
	file   *os.File
	Header Header
	Stream wire.Reader
}

// Open opens path for --read-batch, validating the magic and decoding
// the header before returning.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open batch file")
	}
	buf := bufio.NewReader(file)
	header, err := ReadHeader(buf)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &Reader{file: file, Header: header, Stream: buf}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
