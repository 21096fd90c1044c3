package block

import "github.com/rawblock/utxo-node/internal/hashutil"

// Block is a header paired with a body and its sealed MAST digest
// (§3 "Block"). The digest is computed once, at construction, and
// never recomputed implicitly (§9 "Cyclic references": "the cache is
// never consulted before being set and never drifts from the
// fields"). NewBlock is the constructor that seals it.
type Block struct {
	Header Header
	Body   Body

	mastHash    Digest
	mastHashSet bool
}

// NewBlock seals a fresh block's MAST hash at construction time.
func NewBlock(header Header, body Body) *Block {
	b := &Block{Header: header, Body: body}
	b.seal()
	return b
}

func (b *Block) seal() {
	fields := b.Header.encode()
	fields = append(fields, b.Body.encode()...)
	b.mastHash = hashutil.HashFields(fields)
	b.mastHashSet = true
}

// MastHash returns the block's sealed digest. It panics if called on a
// zero-value Block that bypassed NewBlock — every code path that
// constructs a Block in this module goes through it.
func (b *Block) MastHash() Digest {
	if !b.mastHashSet {
		panic("block: MastHash() called before seal")
	}
	return b.mastHash
}
