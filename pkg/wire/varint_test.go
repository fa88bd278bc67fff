package wire

import (
	"bufio"
	"bytes"
	"math"
	"math/rand"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 129, 16383, 16384, math.MaxUint32, math.MaxUint64}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 256; i++ {
		values = append(values, rng.Uint64())
	}

	for _, v := range values {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		if err := WriteVarint(w, v); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
		w.Flush()

		got, err := ReadVarint(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("read %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: wrote %d, read %d", v, got)
		}
	}
}

func TestVarintTooLong(t *testing.T) {
	// 11 continuation bytes followed by a terminator exceed the 10-byte limit.
	raw := bytes.Repeat([]byte{0x80}, 11)
	raw = append(raw, 0x01)
	_, err := ReadVarint(bufio.NewReader(bytes.NewReader(raw)))
	if err != ErrVarintTooLong {
		t.Fatalf("expected ErrVarintTooLong, got %v", err)
	}
}

func TestSignedVarintRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 127, -127, 128, -128, math.MaxInt64, math.MinInt64}
	for _, v := range values {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		if err := WriteSignedVarint(w, v); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
		w.Flush()

		got, err := ReadSignedVarint(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("read %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("signed round trip mismatch: wrote %d, read %d", v, got)
		}
	}
}
