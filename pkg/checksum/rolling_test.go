package checksum

import (
	"math/rand"
	"testing"
)

// TestRollingSlideEquivalence exercises the invariant from spec.md 8: for any
// byte string D of length >= n+1, computing fresh over D[1:n+1] must equal
// computing over D[0:n] and then rolling by one byte.
func TestRollingSlideEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(256)
		data := make([]byte, n+1+rng.Intn(64))
		rng.Read(data)

		var fresh Rolling
		want := fresh.Compute(data[1 : n+1])

		var rolled Rolling
		rolled.Compute(data[0:n])
		got := rolled.Roll(data[0], data[n])

		if got != want {
			t.Fatalf("trial %d: roll mismatch: got %d want %d (n=%d)", trial, got, want, n)
		}
	}
}

func TestRollingRollManyMatchesRepeatedRoll(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	n := 32
	data := make([]byte, 512)
	rng.Read(data)

	var a, b Rolling
	a.Compute(data[:n])
	b.Compute(data[:n])

	old := data[0 : len(data)-n]
	in := data[n:]

	var lastA uint32
	for i := range old {
		lastA = a.Roll(old[i], in[i])
	}
	lastB := b.RollMany(old, in)

	if lastA != lastB {
		t.Fatalf("RollMany diverged from repeated Roll: %d vs %d", lastB, lastA)
	}
}

func TestComputeWindowMatchesStruct(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	var r Rolling
	want := r.Compute(data)
	got := ComputeWindow(data)
	if got != want {
		t.Fatalf("ComputeWindow = %d, want %d", got, want)
	}
}
