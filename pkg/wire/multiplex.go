package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Tag identifies the kind of payload carried by a multiplex frame. Values
// match upstream rsync's MSG_* constants (spec.md 6).
type Tag uint8

// Multiplex frame tags.
const (
	TagErrorXfer Tag = 1
	TagInfo      Tag = 2
	TagError     Tag = 3
	TagWarning   Tag = 4
	TagLog       Tag = 6
	TagData      Tag = 7
	TagFlist     Tag = 20
	TagFlistEOF  Tag = 21
	TagIOError   Tag = 22
	TagDeleted   Tag = 101
	TagNoSend    Tag = 102
	TagSuccess   Tag = 100
	TagNoop      Tag = 42
	TagRedo      Tag = 9
)

// MaxFramePayload is the 24-bit frame-size ceiling described in spec.md 4.2
// and 6: 16 MiB minus 1 byte.
const MaxFramePayload = 1<<24 - 1

// DefaultFlushThreshold resolves the open question recorded in spec.md 9 and
// SPEC_FULL.md 5: the conservative default size at which the multiplex
// writer flushes preemptively to avoid deadlocking against a small socket
// buffer.
const DefaultFlushThreshold = 4096

// isOutOfBand reports the tags that are dispatched to the log sink by Reader.Read rather than
// being surfaced to the byte-stream caller. TagError is handled specially:
// it becomes a fatal error on the next Read rather than being merely logged.
func isOutOfBand(tag Tag) bool {
	switch tag {
	case TagInfo, TagWarning, TagLog:
		return true
	default:
		return false
	}
}

// LogSink receives out-of-band multiplex frames (INFO/WARNING/LOG) as they
// arrive, interleaved with DATA frames. Implementations must not block for
// long, since they are invoked synchronously from Reader.Read.
type LogSink interface {
	LogFrame(tag Tag, payload []byte)
}

// DiscardSink is a LogSink that drops every frame; useful for directions
// (e.g. the sender's inbound stream) that do not expect out-of-band
// messages in a given role.
type DiscardSink struct{}

// LogFrame implements LogSink.
func (DiscardSink) LogFrame(Tag, []byte) {}

// writeFrameHeader encodes a 4-byte multiplex frame header: tag in the top
// byte, a 24-bit little-endian payload length in the remaining three.
func writeFrameHeader(w io.Writer, tag Tag, length int) error {
	if length > MaxFramePayload || length < 0 {
		return errors.Errorf("frame payload length %d exceeds ceiling %d", length, MaxFramePayload)
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(tag)<<24|uint32(length))
	_, err := w.Write(header[:])
	return errors.Wrap(err, "unable to write frame header")
}

// readFrameHeader decodes a header written by writeFrameHeader.
func readFrameHeader(r io.Reader) (Tag, int, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, err
	}
	word := binary.LittleEndian.Uint32(header[:])
	tag := Tag(word >> 24)
	length := int(word & MaxFramePayload)
	return tag, length, nil
}

// Writer wraps an underlying byte-stream writer with multiplex framing.
// Until activated (i.e. constructed), all writes it performs are
// frame-tagged; handshake code is responsible for ensuring any bytes
// buffered from before activation are flushed through the raw stream first,
// per spec.md 4.2's atomicity requirement.
type Writer struct {
	w              io.Writer
	flushThreshold int
	flusher        interface{ Flush() error }
}

// NewWriter constructs a multiplex frame writer. If the underlying writer
// also implements an interface with a Flush() error method (as
// *bufio.Writer does), WriteFrame flushes it right after any single frame
// whose payload is at least flushThreshold bytes, avoiding deadlock against
// a small socket buffer (spec.md 9). Smaller frames stay buffered until a
// large frame or an explicit Flush.
func NewWriter(w io.Writer) *Writer {
	mw := &Writer{w: w, flushThreshold: DefaultFlushThreshold}
	if f, ok := w.(interface{ Flush() error }); ok {
		mw.flusher = f
	}
	return mw
}

// WriteFrame writes a single tagged frame, splitting payload across
// multiple frames if it exceeds MaxFramePayload.
func (mw *Writer) WriteFrame(tag Tag, payload []byte) error {
	if len(payload) == 0 {
		return writeFrameHeader(mw.w, tag, 0)
	}
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > MaxFramePayload {
			chunk = chunk[:MaxFramePayload]
		}
		if err := writeFrameHeader(mw.w, tag, len(chunk)); err != nil {
			return err
		}
		if len(chunk) > 0 {
			if _, err := mw.w.Write(chunk); err != nil {
				return errors.Wrap(err, "unable to write frame payload")
			}
		}
		payload = payload[len(chunk):]
		if mw.flusher != nil && len(chunk) >= mw.flushThreshold {
			if err := mw.flusher.Flush(); err != nil {
				return errors.Wrap(err, "unable to flush multiplex writer")
			}
		}
	}
	return nil
}

// Write implements io.Writer by emitting DATA-tagged frames.
func (mw *Writer) Write(p []byte) (int, error) {
	if err := mw.WriteFrame(TagData, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush flushes any buffered output on the underlying writer, if it
// supports flushing.
func (mw *Writer) Flush() error {
	if mw.flusher == nil {
		return nil
	}
	return mw.flusher.Flush()
}

// Reader wraps an underlying byte-stream reader with multiplex framing. It
// dispatches out-of-band frames (INFO/WARNING/LOG) to sink and transparently
// exposes DATA frame payloads as a byte stream through Read. ERROR frames
// cause the next Read to return that error.
type Reader struct {
	r        io.Reader
	sink     LogSink
	current  []byte
	fatal    error
	// finished latches a clean upstream EOF (the peer closed the
	// connection between frames) so repeat Read calls return io.EOF
	// directly instead of re-attempting a frame header read against a
	// now-closed stream.
	finished bool
}

// NewReader constructs a multiplex frame reader. If sink is nil, out-of-band
// frames are silently discarded.
func NewReader(r io.Reader, sink LogSink) *Reader {
	if sink == nil {
		sink = DiscardSink{}
	}
	return &Reader{r: r, sink: sink}
}

// ReadFrame reads one frame off the wire without any tag dispatch, for
// callers (notably the file-list phase) that need to see FLIST/FLIST_EOF
// frames directly rather than through the DATA-only Read method.
func (mr *Reader) ReadFrame() (Tag, []byte, error) {
	tag, length, err := readFrameHeader(mr.r)
	if err != nil {
		return 0, nil, errors.Wrap(err, "unable to read frame header")
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(mr.r, payload); err != nil {
			return 0, nil, errors.Wrap(err, "unable to read frame payload")
		}
	}
	return tag, payload, nil
}

// Read implements io.Reader over the DATA-tagged frame sequence, consuming
// and dispatching any out-of-band frames encountered along the way.
func (mr *Reader) Read(p []byte) (int, error) {
	for len(mr.current) == 0 {
		if mr.fatal != nil {
			err := mr.fatal
			mr.fatal = nil
			return 0, err
		}
		if mr.finished {
			return 0, io.EOF
		}
		tag, payload, err := mr.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				mr.finished = true
				return 0, io.EOF
			}
			return 0, err
		}
		switch {
		case tag == TagData:
			mr.current = payload
		case tag == TagError || tag == TagErrorXfer:
			// Surface immediately if there's nothing buffered yet, otherwise
			// defer until the buffered data has been drained.
			if len(payload) == 0 {
				return 0, errors.New("remote reported an error with no message")
			}
			mr.fatal = errors.New(string(payload))
			return 0, mr.consumeFatal()
		case isOutOfBand(tag):
			mr.sink.LogFrame(tag, payload)
		default:
			mr.sink.LogFrame(tag, payload)
		}
	}
	n := copy(p, mr.current)
	mr.current = mr.current[n:]
	return n, nil
}

// consumeFatal returns and clears a pending fatal error; used so that a
// fatal frame encountered while current is still non-empty doesn't get
// lost, but one discovered with nothing buffered surfaces immediately.
func (mr *Reader) consumeFatal() error {
	err := mr.fatal
	mr.fatal = nil
	return err
}
