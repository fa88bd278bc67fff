package delta

// Index is a hash table mapping weak checksums to the basis blocks that
// share them, giving the rolling search O(1) average lookup (spec.md
// 4.5's "Index"). Collisions chain naturally via the slice value.
type Index struct {
	table map[uint32][]BlockSignature
	// shortTail holds the final block's signature separately, keyed under
	// its own actual (possibly short) length, when that length differs
	// from BlockSize — spec.md 4.5's "also indexing the short block under
	// its actual length" for the tail-match special case.
	shortTail *BlockSignature
}

// NewIndex builds an Index from a SignatureSet.
func NewIndex(set *SignatureSet) *Index {
	idx := &Index{table: make(map[uint32][]BlockSignature, len(set.Blocks))}
	if set.IsEmpty() {
		return idx
	}
	for _, b := range set.Blocks {
		idx.table[b.Weak] = append(idx.table[b.Weak], b)
	}
	if set.Remainder != set.BlockSize && len(set.Blocks) > 0 {
		tail := set.Blocks[len(set.Blocks)-1]
		idx.shortTail = &tail
	}
	return idx
}

// Lookup returns the candidate blocks sharing the given weak checksum, or
// nil if there are none.
func (idx *Index) Lookup(weak uint32) []BlockSignature {
	return idx.table[weak]
}

// ShortTail returns the basis's short final block signature and true, or
// (zero, false) if the basis's last block is a full block.
func (idx *Index) ShortTail() (BlockSignature, bool) {
	if idx.shortTail == nil {
		return BlockSignature{}, false
	}
	return *idx.shortTail, true
}
