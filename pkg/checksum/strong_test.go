package checksum

import (
	"bytes"
	"testing"
)

func TestForProtocolSelection(t *testing.T) {
	cases := []struct {
		version uint8
		want    Algorithm
	}{
		{28, MD4},
		{29, MD4},
		{30, MD5},
		{31, MD5},
		{32, XXH3},
		{33, XXH3},
	}
	for _, c := range cases {
		if got := ForProtocol(c.version); got != c.want {
			t.Errorf("ForProtocol(%d) = %v, want %v", c.version, got, c.want)
		}
	}
}

func TestNegotiateStrongLengthPrefersLongerDigest(t *testing.T) {
	if got := NegotiateStrongLength(true, true); got != XXH128 {
		t.Errorf("both advertise XXH128: got %v, want XXH128", got)
	}
	if got := NegotiateStrongLength(true, false); got != XXH3 {
		t.Errorf("only local advertises XXH128: got %v, want XXH3", got)
	}
	if got := NegotiateStrongLength(false, false); got != XXH3 {
		t.Errorf("neither advertises XXH128: got %v, want XXH3", got)
	}
}

func TestStrongHasherDeterministic(t *testing.T) {
	block := []byte("a block of data to hash for a signature entry")
	h1, err := NewStrongHasher(XXH3, Seed(0xdeadbeef), false)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := NewStrongHasher(XXH3, Seed(0xdeadbeef), false)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(h1.Sum(block, 8), h2.Sum(block, 8)) {
		t.Fatal("same seed/algorithm/block produced different digests")
	}

	h3, err := NewStrongHasher(XXH3, Seed(0x1), false)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(h1.Sum(block, 8), h3.Sum(block, 8)) {
		t.Fatal("different seeds produced identical digests")
	}
}

func TestStrongHasherTruncation(t *testing.T) {
	h, err := NewStrongHasher(MD5, Seed(1), false)
	if err != nil {
		t.Fatal(err)
	}
	full := h.Sum([]byte("data"), -1)
	if len(full) != MD5.DigestSize() {
		t.Fatalf("expected full digest size %d, got %d", MD5.DigestSize(), len(full))
	}
	short := h.Sum([]byte("data"), 4)
	if len(short) != 4 {
		t.Fatalf("expected truncated digest of length 4, got %d", len(short))
	}
	if !bytes.Equal(full[:4], short) {
		t.Fatal("truncated digest is not a prefix of the full digest")
	}
}

func TestXXH128DigestSize(t *testing.T) {
	h, err := NewHasher(XXH128)
	if err != nil {
		t.Fatal(err)
	}
	h.Write([]byte("payload"))
	if got := len(h.Sum(nil)); got != 16 {
		t.Fatalf("xxh128 digest size = %d, want 16", got)
	}
}
