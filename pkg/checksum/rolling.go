// Package checksum implements the rolling and strong hash primitives used to
// build and search rsync block signatures.
package checksum

// Rolling is a 32-bit rolling checksum over a sliding window of bytes,
// computed the way the rsync technical report describes: two 16-bit
// accumulators s1/s2 that can be updated in O(1) as the window slides by one
// byte, without re-summing the whole window.
//
// The zero value is not meaningful; use Compute to initialize one over an
// initial window.
type Rolling struct {
	s1, s2 uint32
	n      uint32
}

// Compute initializes a Rolling checksum over data, treating data as the
// initial window. It returns the digest.
func (r *Rolling) Compute(data []byte) uint32 {
	var s1, s2 uint32
	n := uint32(len(data))
	for i, b := range data {
		s1 += uint32(b)
		s2 += (n - uint32(i)) * uint32(b)
	}
	r.s1, r.s2, r.n = s1, s2, n
	return r.Digest()
}

// Roll slides the window forward by one byte, dropping old (the byte leaving
// the window) and adding in (the byte entering it). The window length is
// unchanged. It returns the new digest.
func (r *Rolling) Roll(old, in byte) uint32 {
	r.s1 = r.s1 - uint32(old) + uint32(in)
	r.s2 = r.s2 - r.n*uint32(old) + r.s1
	return r.Digest()
}

// RollMany applies a batch of slides in sequence, producing the same result
// as calling Roll once per pair. It exists so that a SIMD back-end can
// aggregate the arithmetic for the accumulation step; this reference
// implementation is scalar but must agree bit-for-bit with repeated Roll
// calls, which is exercised by the round-trip tests.
func (r *Rolling) RollMany(old, in []byte) uint32 {
	for i := range old {
		r.Roll(old[i], in[i])
	}
	return r.Digest()
}

// Digest returns the current 32-bit checksum value without altering state.
func (r *Rolling) Digest() uint32 {
	return r.s1&0xffff | r.s2<<16
}

// Reset clears the rolling checksum back to its zero window so it can be
// reused for a new window without allocating.
func (r *Rolling) Reset() {
	r.s1, r.s2, r.n = 0, 0, 0
}

// ComputeWindow is a convenience function for one-shot callers (signature
// generation) that don't need to retain rolling state between windows.
func ComputeWindow(data []byte) uint32 {
	var r Rolling
	return r.Compute(data)
}
