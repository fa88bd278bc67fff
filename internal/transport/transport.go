// Package transport implements the opaque bidirectional byte-stream
// abstraction the protocol handshake (C3) runs over: an SSH/shell
// subprocess collaborator for remote-shell transport and a raw TCP
// collaborator for daemon-mode ("rsync://") connections. Both
// implementations present the same io.ReadWriteCloser surface so the
// rest of the pipeline never needs to know which carried a given
// session.
package transport

import "io"

// Stream is an opaque, bidirectional, ordered byte stream connecting
// this process to a peer rsync endpoint. Close terminates the
// connection (and, for a subprocess transport, the underlying process)
// and unblocks any pending Read/Write.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}
