package block

import (
	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mmr"
	"github.com/rawblock/utxo-node/internal/mutatorset"
	"github.com/rawblock/utxo-node/internal/txkernel"
)

// Body is the block body (§3 "Block body").
type Body struct {
	Transaction txkernel.Transaction

	// MutatorSetAccumulator is the mutator set after applying
	// Transaction's removals then additions to the parent's
	// accumulator (§4.3 clause 7).
	MutatorSetAccumulator *mutatorset.Accumulator

	// LockFreeMMR is reserved for a future lock-free UTXO extension;
	// it is carried through hashing and persistence but nothing in this
	// module's validated operation set writes to it (§3 "Block body").
	LockFreeMMR *mmr.Mmr

	// BlockMMR accumulates prior block digests, giving later blocks an
	// O(log n) proof of inclusion of any ancestor (§3 "Block body").
	BlockMMR *mmr.Mmr

	// UncleDigests are blocks that lost the race for this height but
	// are still credited toward proof-of-work family accumulation when
	// UnclesEnabled is set (§4.3 clause 6, §9 open question).
	UncleDigests []Digest
}

// NewBody returns an empty body over freshly initialized accumulators,
// the shape a genesis block's body takes.
func NewBody(tx txkernel.Transaction) Body {
	return Body{
		Transaction:           tx,
		MutatorSetAccumulator: mutatorset.NewAccumulator(),
		LockFreeMMR:           mmr.New(),
		BlockMMR:              mmr.New(),
	}
}

// encode flattens the body into the field sequence the block MAST
// hash commits to, following Header.encode (§6 "Block wire format":
// "followed by body fields").
func (b Body) encode() []hashutil.FieldElement {
	fields := hashutil.EncodeDigest(b.Transaction.Kernel.MastHash())
	fields = append(fields, hashutil.EncodeDigest(b.MutatorSetAccumulator.Hash())...)
	fields = append(fields, hashutil.EncodeDigest(b.LockFreeMMR.BagPeaks())...)
	fields = append(fields, hashutil.EncodeDigest(b.BlockMMR.BagPeaks())...)
	fields = append(fields, hashutil.EncodeUint64(uint64(len(b.UncleDigests)))...)
	for _, u := range b.UncleDigests {
		fields = append(fields, hashutil.EncodeDigest(u)...)
	}
	return fields
}
