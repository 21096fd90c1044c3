package mutatorset

import (
	"encoding/binary"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mmr"
)

// Digest is re-exported for callers that only need the mutator set's
// vocabulary without reaching into hashutil directly.
type Digest = hashutil.Digest

// AdditionRecord is the canonical commitment published when a new
// output is added to the set (§3).
type AdditionRecord struct {
	Commitment Digest
}

// ReceiverDigest derives the receiver digest from a receiver preimage,
// the second argument commit() expects (§3 "addition record").
func ReceiverDigest(receiverPreimage Digest) Digest {
	return hashutil.HashFields(hashutil.EncodeDigest(receiverPreimage))
}

// Commit computes commit(item, sender_randomness, receiver_digest),
// the addition record's commitment digest (§3).
func Commit(item, senderRandomness, receiverDigest Digest) Digest {
	fields := hashutil.EncodeDigest(item)
	fields = append(fields, hashutil.EncodeDigest(senderRandomness)...)
	fields = append(fields, hashutil.EncodeDigest(receiverDigest)...)
	return hashutil.HashFields(fields)
}

// computeAbsoluteIndices derives the NumTrials Bloom-filter indices an
// item occupies once it is added at aoclLeafIndex. Each trial samples
// within [0, WindowSize-ChunkSize) and offsets by aoclLeafIndex; since
// aoclLeafIndex is less than ChunkSize past the window offset when the
// item is proved, an item's indices start in the active window and
// age out of it — eventually falling into archived territory — as the
// AOCL grows (§4.1 "prove").
func computeAbsoluteIndices(item, senderRandomness, receiverPreimage Digest, aoclLeafIndex uint64) []uint64 {
	indices := make([]uint64, NumTrials)
	for trial := uint64(0); trial < NumTrials; trial++ {
		fields := hashutil.EncodeDigest(item)
		fields = append(fields, hashutil.EncodeDigest(senderRandomness)...)
		fields = append(fields, hashutil.EncodeDigest(receiverPreimage)...)
		fields = append(fields, hashutil.EncodeUint64(aoclLeafIndex)...)
		fields = append(fields, hashutil.EncodeUint64(trial)...)
		d := hashutil.HashFields(fields)
		sample := binary.BigEndian.Uint64(d[:8]) % (WindowSize - ChunkSize)
		indices[trial] = aoclLeafIndex + sample
	}
	return indices
}

// MembershipProof is everything needed to prove an item currently
// belongs to the mutator set (§3). It additionally retains the sender
// randomness used at commitment time: commit() cannot be recomputed
// during verify() without it, and the wallet needs it to restore
// proofs after a reorg (§4.4 "Fork handling"). The original spec's
// field list names the receiver preimage but not the sender
// randomness; this is read as non-exhaustive rather than excluding
// it, since recomputing the commitment is otherwise impossible.
type MembershipProof struct {
	AOCLLeafIndex    uint64
	AOCLAuthPath     mmr.AuthPath
	SenderRandomness Digest
	ReceiverPreimage Digest
	CachedIndices    []uint64
}

// Clone returns a deep copy, safe to mutate independently of the
// original (membership proofs are stored per monitored UTXO per block
// digest, §3 "Monitored UTXO").
func (mp MembershipProof) Clone() MembershipProof {
	cp := mp
	cp.AOCLAuthPath.Siblings = append([]Digest(nil), mp.AOCLAuthPath.Siblings...)
	cp.CachedIndices = append([]uint64(nil), mp.CachedIndices...)
	return cp
}

// RemovalRecord is everything needed to spend an item: the Bloom
// indices to set, plus enough of the AOCL membership to validate that
// the record really does correspond to a once-live AOCL leaf (§3).
// ItemCommitment is the item's addition-record commitment — already
// public since it was broadcast when the item was added — included so
// that RemovalRecord.Validate is self-contained.
type RemovalRecord struct {
	AbsoluteIndices []uint64
	AOCLLeafIndex   uint64
	AOCLAuthPath    mmr.AuthPath
	ItemCommitment  Digest
}

// Validate checks the removal record's AOCL membership against a
// kernel's current AOCL peaks (§4.1 "Failure": InconsistentRemoval).
func (rr RemovalRecord) Validate(k *Kernel) bool {
	return k.aocl.VerifyAuthPath(rr.ItemCommitment, mmr.AuthPath{
		LeafIndex: rr.AOCLLeafIndex,
		Siblings:  rr.AOCLAuthPath.Siblings,
	})
}
