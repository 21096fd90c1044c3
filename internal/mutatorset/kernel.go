package mutatorset

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mmr"
)

// Kernel is the invariant container described in §3: the AOCL, the
// archived SWBF history, and the active SWBF window. It is embedded
// directly in both the block body and the live chain tip — there is
// no separate "archival" structure to keep in sync (§9).
type Kernel struct {
	aocl          *mmr.Mmr
	swbfInactive  *mmr.Mmr
	archived      []*bitset.BitSet // raw bits for each swbfInactive leaf, same index
	active        *ActiveWindow
}

// NewKernel returns an empty mutator-set kernel.
func NewKernel() *Kernel {
	return &Kernel{
		aocl:         mmr.New(),
		swbfInactive: mmr.New(),
		active:       NewActiveWindow(),
	}
}

// Hash computes the accumulator's commitment digest (§3):
// H(H(aocl_peaks), H(H(swbf_inactive_peaks), H(swbf_active))).
func (k *Kernel) Hash() hashutil.Digest {
	aoclBag := k.aocl.BagPeaks()
	inactiveBag := k.swbfInactive.BagPeaks()
	activeHash := k.active.Hash()
	return hashutil.HashPair(aoclBag, hashutil.HashPair(inactiveBag, activeHash))
}

// AOCLLeafCount exposes the AOCL's size, used by Prove to assign a
// prospective leaf index and by the wallet to detect stale proofs.
func (k *Kernel) AOCLLeafCount() uint64 {
	return k.aocl.LeafCount()
}

// Prove returns a membership proof for an item about to be added at
// the kernel's current AOCL length (§4.1 "prove"). It does not mutate
// the kernel; the caller applies AddHelper separately with the
// matching addition record.
func (k *Kernel) Prove(item, senderRandomness, receiverPreimage hashutil.Digest) (MembershipProof, error) {
	receiverDigest := ReceiverDigest(receiverPreimage)
	commitment := Commit(item, senderRandomness, receiverDigest)
	leafIndex := k.aocl.LeafCount()
	ap, err := k.aocl.ProspectiveAuthPath(commitment)
	if err != nil {
		return MembershipProof{}, err
	}
	indices := computeAbsoluteIndices(item, senderRandomness, receiverPreimage, leafIndex)
	return MembershipProof{
		AOCLLeafIndex:    leafIndex,
		AOCLAuthPath:     ap,
		SenderRandomness: senderRandomness,
		ReceiverPreimage: receiverPreimage,
		CachedIndices:    indices,
	}, nil
}

// Verify checks that item, via mp, is present in the set and has not
// been removed (§4.1 "verify"). It never raises; failure is always a
// plain false.
func (k *Kernel) Verify(item hashutil.Digest, mp MembershipProof) bool {
	receiverDigest := ReceiverDigest(mp.ReceiverPreimage)
	commitment := Commit(item, mp.SenderRandomness, receiverDigest)
	if !k.aocl.VerifyAuthPath(commitment, mp.AOCLAuthPath) {
		return false
	}
	for _, idx := range mp.CachedIndices {
		if k.isSet(idx) {
			return false
		}
	}
	return true
}

// Drop builds a removal record from mp's cached indices and AOCL
// membership (§4.1 "drop").
func (k *Kernel) Drop(item hashutil.Digest, mp MembershipProof) RemovalRecord {
	receiverDigest := ReceiverDigest(mp.ReceiverPreimage)
	commitment := Commit(item, mp.SenderRandomness, receiverDigest)
	return RemovalRecord{
		AbsoluteIndices: append([]uint64(nil), mp.CachedIndices...),
		AOCLLeafIndex:   mp.AOCLLeafIndex,
		AOCLAuthPath:    mp.AOCLAuthPath,
		ItemCommitment:  commitment,
	}
}

// isSet reports whether absoluteIndex is currently a set bit anywhere
// in the SWBF, active or archived.
func (k *Kernel) isSet(absoluteIndex uint64) bool {
	if k.active.Contains(absoluteIndex) {
		return k.active.Test(absoluteIndex)
	}
	chunkIdx := absoluteIndex / ChunkSize
	if chunkIdx >= uint64(len(k.archived)) {
		// Below the active window but not yet archived: cannot have
		// been set. Defensive only — every index below the window
		// offset has necessarily already been archived.
		return false
	}
	return k.archived[chunkIdx].Test(uint(absoluteIndex % ChunkSize))
}

// AddHelper appends a commitment to the AOCL, archiving the oldest
// active-window chunk whenever the AOCL crosses a chunk boundary
// (§4.1 "add").
func (k *Kernel) AddHelper(ar AdditionRecord) {
	newCount := k.aocl.Append(ar.Commitment) + 1
	if newCount%ChunkSize == 0 {
		k.archiveOldestChunk()
	}
}

func (k *Kernel) archiveOldestChunk() {
	raw := k.active.SlideAndArchive()
	digest := hashutil.HashVarlen(raw)
	k.swbfInactive.Append(digest)
	k.archived = append(k.archived, unpackChunk(raw))
}

// RemoveHelper sets every bit named by rr, mutating the active window
// directly or, for archived bits, updating the corresponding chunk and
// rewriting its swbf_inactive leaf (§4.1 "remove").
func (k *Kernel) RemoveHelper(rr RemovalRecord) {
	touchedChunks := map[uint64]bool{}
	for _, idx := range rr.AbsoluteIndices {
		if k.active.Contains(idx) {
			k.active.Set(idx)
			continue
		}
		chunkIdx := idx / ChunkSize
		if chunkIdx >= uint64(len(k.archived)) {
			continue
		}
		k.archived[chunkIdx].Set(uint(idx % ChunkSize))
		touchedChunks[chunkIdx] = true
	}
	for chunkIdx := range touchedChunks {
		raw := packBits(k.archived[chunkIdx], 0, ChunkSize)
		k.swbfInactive.MutateLeaf(chunkIdx, hashutil.HashVarlen(raw))
	}
}

// Clone returns a deep copy of the kernel, used when a block template
// or a fork-recovery walk needs an independent snapshot (§9).
func (k *Kernel) Clone() *Kernel {
	cp := &Kernel{
		aocl:         mmr.NewFromLeaves(k.aocl.Leaves()),
		swbfInactive: mmr.NewFromLeaves(k.swbfInactive.Leaves()),
		active:       k.active.Clone(),
	}
	cp.archived = make([]*bitset.BitSet, len(k.archived))
	for i, b := range k.archived {
		nb := bitset.New(ChunkSize)
		nb.InPlaceUnion(b)
		cp.archived[i] = nb
	}
	return cp
}
