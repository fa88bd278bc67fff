package wire

import (
	"bufio"
	"bytes"
	"testing"
)

// TestNdxRoundTripModernProtocol exercises the delta encoding crossing the
// medium/large marker boundaries, per spec.md 8.
func TestNdxRoundTripModernProtocol(t *testing.T) {
	sequence := []int32{0, 1, 2, 300, 301, -5, 100000, 100001, NdxDone, NdxFlistEOF, 0, 5}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	writeCodec := NewNdxCodec(31)
	for _, v := range sequence {
		if err := writeCodec.Write(w, v); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
	}
	w.Flush()

	r := bufio.NewReader(&buf)
	readCodec := NewNdxCodec(31)
	for _, want := range sequence {
		got, err := readCodec.Read(r)
		if err != nil {
			t.Fatalf("read (want %d): %v", want, err)
		}
		if got != want {
			t.Fatalf("ndx round trip mismatch: wrote %d, read %d", want, got)
		}
	}
}

func TestNdxLegacyFixedWidth(t *testing.T) {
	sequence := []int32{0, 1, -1, 1 << 20, -1 << 20}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	writeCodec := NewNdxCodec(28)
	for _, v := range sequence {
		if err := writeCodec.Write(w, v); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
	}
	w.Flush()

	if buf.Len() != 4*len(sequence) {
		t.Fatalf("expected fixed 4-byte encoding, got %d bytes for %d values", buf.Len(), len(sequence))
	}

	r := bufio.NewReader(&buf)
	readCodec := NewNdxCodec(28)
	for _, want := range sequence {
		got, err := readCodec.Read(r)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != want {
			t.Fatalf("legacy ndx mismatch: wrote %d, read %d", want, got)
		}
	}
}

func TestNdxSmallDeltaIsOneByte(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	codec := NewNdxCodec(31)
	if err := codec.Write(w, 10); err != nil {
		t.Fatal(err)
	}
	if err := codec.Write(w, 11); err != nil {
		t.Fatal(err)
	}
	w.Flush()
	if buf.Len() != 2 {
		t.Fatalf("expected two single-byte deltas, got %d bytes", buf.Len())
	}
}
