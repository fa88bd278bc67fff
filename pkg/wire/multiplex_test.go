package wire

import (
	"bufio"
	"bytes"
	"testing"
)

type recordingSink struct {
	frames []struct {
		tag     Tag
		payload string
	}
}

func (s *recordingSink) LogFrame(tag Tag, payload []byte) {
	s.frames = append(s.frames, struct {
		tag     Tag
		payload string
	}{tag, string(payload)})
}

func TestFrameHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrameHeader(&buf, TagData, 12345); err != nil {
		t.Fatal(err)
	}
	tag, length, err := readFrameHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if tag != TagData || length != 12345 {
		t.Fatalf("got tag=%d length=%d", tag, length)
	}
}

func TestWriterReaderDataRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))
	payload := bytes.Repeat([]byte("x"), 5000)
	if err := w.WriteFrame(TagData, payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf, nil)
	got := make([]byte, len(payload))
	if _, err := readFullBuf(r, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch across multiplex round trip")
	}
}

func TestWriterReaderOutOfBandDispatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))
	if err := w.WriteFrame(TagInfo, []byte("connected")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(TagData, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	w.Flush()

	sink := &recordingSink{}
	r := NewReader(&buf, sink)
	got := make([]byte, len("payload"))
	if _, err := readFullBuf(r, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("unexpected data payload: %q", got)
	}
	if len(sink.frames) != 1 || sink.frames[0].tag != TagInfo || sink.frames[0].payload != "connected" {
		t.Fatalf("expected one dispatched INFO frame, got %+v", sink.frames)
	}
}

func TestReaderSurfacesErrorFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))
	if err := w.WriteFrame(TagError, []byte("remote blew up")); err != nil {
		t.Fatal(err)
	}
	w.Flush()

	r := NewReader(&buf, nil)
	_, err := r.Read(make([]byte, 16))
	if err == nil {
		t.Fatal("expected an error surfaced from an ERROR frame")
	}
}

func TestWriteFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteFrame(TagFlistEOF, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 4 {
		t.Fatalf("expected a bare 4-byte header for an empty frame, got %d bytes", buf.Len())
	}
	tag, length, err := readFrameHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if tag != TagFlistEOF || length != 0 {
		t.Fatalf("got tag=%d length=%d", tag, length)
	}
}

func readFullBuf(r *Reader, p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := r.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
