package txkernel

import (
	"github.com/rawblock/utxo-node/internal/mutatorset"
)

// Witness is implemented by the two transaction-witness variants (§9
// "Dynamic dispatch"): a tagged sum type with one capability, Verify,
// rather than an inheritance hierarchy. Witnesses never travel over the
// wire with the kernel — only the kernel's MastHash does (§3
// "Transaction").
type Witness interface {
	Verify(k Kernel) bool
	isWitness()
}

// UtxoPreimage is the explicit opening of one removal or addition
// record a PrimitiveWitness carries: the item itself, its lock script
// (for outputs) or the unlock script satisfying it (for inputs), and
// (for inputs) the membership proof spent against.
type UtxoPreimage struct {
	Item             Digest
	SenderRandomness Digest
	ReceiverPreimage Digest
	LockScript       []byte
	UnlockScript     []byte
}

// PrimitiveWitness is the explicit, non-succinct witness variant: every
// UTXO preimage and membership proof in the clear, checked directly
// against the mutator set the kernel claims to have been built against
// (§3 "Transaction", §9).
type PrimitiveWitness struct {
	InputPreimages  []UtxoPreimage
	InputProofs     []mutatorset.MembershipProof
	OutputPreimages []UtxoPreimage
	MutatorSet      *mutatorset.Accumulator
}

func (PrimitiveWitness) isWitness() {}

// Verify checks that every input preimage, combined with its cached
// membership proof, currently verifies against the witness's mutator
// set snapshot, and that every removal/addition record in the kernel
// corresponds to one of the witnessed preimages in order.
func (w PrimitiveWitness) Verify(k Kernel) bool {
	if len(w.InputPreimages) != len(k.Inputs) || len(w.InputProofs) != len(k.Inputs) {
		return false
	}
	if len(w.OutputPreimages) != len(k.Outputs) {
		return false
	}
	if w.MutatorSet == nil {
		return false
	}
	mastHash := k.MastHash()
	for i, pre := range w.InputPreimages {
		if !w.MutatorSet.Verify(pre.Item, w.InputProofs[i]) {
			return false
		}
		rr := w.MutatorSet.Drop(pre.Item, w.InputProofs[i])
		if rr.ItemCommitment != k.Inputs[i].ItemCommitment {
			return false
		}
		if !VerifyLockUnlock(pre.LockScript, pre.UnlockScript, mastHash) {
			return false
		}
	}
	for i, pre := range w.OutputPreimages {
		receiverDigest := mutatorset.ReceiverDigest(pre.ReceiverPreimage)
		commitment := mutatorset.Commit(pre.Item, pre.SenderRandomness, receiverDigest)
		if commitment != k.Outputs[i].Commitment {
			return false
		}
	}
	return true
}

// ValidationLogic is the succinct witness variant: an opaque proof
// object produced by the external STARK prover (out of scope, §1) and
// checked with its matching opaque verifier. Verify is the only seam
// this module owns; the prover/verifier pair behind it is a
// collaborator contract, supplied by the caller.
type ValidationLogic struct {
	Proof    []byte
	VerifyFn func(kernelMastHash Digest, proof []byte) bool
}

func (ValidationLogic) isWitness() {}

func (v ValidationLogic) Verify(k Kernel) bool {
	if v.VerifyFn == nil {
		return false
	}
	return v.VerifyFn(k.MastHash(), v.Proof)
}

// Transaction is a kernel paired with the witness that attests to it
// (§3 "Transaction"). The witness is stripped before transport hashing
// — only kernel.MastHash() travels with a TransferBlock (§6).
type Transaction struct {
	Kernel  Kernel
	Witness Witness
}

// IsValid checks the witness against this transaction's own kernel.
func (t Transaction) IsValid() bool {
	if t.Witness == nil {
		return false
	}
	return t.Witness.Verify(t.Kernel)
}
