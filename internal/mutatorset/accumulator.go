// Package mutatorset implements the mutator-set accumulator (§4.1): a
// constant-size cryptographic commitment to the live UTXO set,
// supporting non-interactive membership proofs that survive
// concurrent additions and removals elsewhere in the set.
package mutatorset

import "github.com/rawblock/utxo-node/internal/hashutil"

// Accumulator is the public mutator-set handle embedded in a block
// body and in the live chain tip (§3).
type Accumulator struct {
	Kernel *Kernel
}

// NewAccumulator returns an empty mutator set, as at genesis.
func NewAccumulator() *Accumulator {
	return &Accumulator{Kernel: NewKernel()}
}

// Prove delegates to the kernel (§4.1 "prove").
func (a *Accumulator) Prove(item, senderRandomness, receiverPreimage hashutil.Digest) (MembershipProof, error) {
	return a.Kernel.Prove(item, senderRandomness, receiverPreimage)
}

// Verify delegates to the kernel (§4.1 "verify").
func (a *Accumulator) Verify(item hashutil.Digest, mp MembershipProof) bool {
	return a.Kernel.Verify(item, mp)
}

// Drop delegates to the kernel (§4.1 "drop").
func (a *Accumulator) Drop(item hashutil.Digest, mp MembershipProof) RemovalRecord {
	return a.Kernel.Drop(item, mp)
}

// Add appends a commitment to the AOCL (§4.1 "add").
func (a *Accumulator) Add(ar AdditionRecord) {
	a.Kernel.AddHelper(ar)
}

// Remove applies a removal record (§4.1 "remove").
func (a *Accumulator) Remove(rr RemovalRecord) {
	a.Kernel.RemoveHelper(rr)
}

// Hash is the accumulator's commitment digest (§3).
func (a *Accumulator) Hash() hashutil.Digest {
	return a.Kernel.Hash()
}

// BatchRemove applies many removal records, then rewrites every
// preserved membership proof that the removals affected (§4.1
// "batch_remove"). In this implementation preserved proofs never need
// their stored fields rewritten — Verify always re-derives its answer
// from current kernel state — so this is equivalent to applying each
// removal in turn; it exists as a single entry point matching the
// spec's operation surface and §8 scenario S5.
func (a *Accumulator) BatchRemove(removalRecords []RemovalRecord, preservedProofs []*MembershipProof) {
	for _, rr := range removalRecords {
		a.Kernel.RemoveHelper(rr)
	}
	_ = preservedProofs
}

// Clone returns an independent deep copy (§9).
func (a *Accumulator) Clone() *Accumulator {
	return &Accumulator{Kernel: a.Kernel.Clone()}
}
