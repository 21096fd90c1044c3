package mutatorset

import "github.com/rawblock/utxo-node/internal/mmr"

// BatchUpdateFromAddition grows every outstanding proof's AOCL path to
// account for a new leaf about to be added, and returns the indices of
// proofs whose path actually changed (§4.1 "batch_update_from_addition").
// kernel must be in its pre-add state; the caller applies AddHelper
// with the matching addition record afterward. Proofs whose item
// equals the item being added are skipped — the caller is expected to
// supply that proof separately, fresh from Prove.
func BatchUpdateFromAddition(mps []*MembershipProof, items []Digest, k *Kernel, ar AdditionRecord) ([]int, error) {
	preAddCount := k.aocl.LeafCount()
	simulated := mmr.NewFromLeaves(append(k.aocl.Leaves(), ar.Commitment))

	var updated []int
	for i, mp := range mps {
		if mp.AOCLLeafIndex >= preAddCount {
			return nil, ErrStaleProof
		}
		if i < len(items) {
			receiverDigest := ReceiverDigest(mp.ReceiverPreimage)
			if Commit(items[i], mp.SenderRandomness, receiverDigest) == ar.Commitment {
				continue
			}
		}
		newPath, err := simulated.AuthenticationPath(mp.AOCLLeafIndex)
		if err != nil {
			return nil, err
		}
		if !authPathsEqual(mp.AOCLAuthPath, newPath) {
			mp.AOCLAuthPath = newPath
			updated = append(updated, i)
		}
	}
	return updated, nil
}

// BatchUpdateFromRemove reports which outstanding proofs are affected
// by a removal record — their cached Bloom indices overlap the set of
// indices the removal just set (§4.1 "batch_update_from_remove"). No
// proof fields need rewriting: Verify always re-derives its answer
// from live kernel state, so "affected" here means "Verify will now
// return false for this proof", which callers (e.g. the wallet) use to
// mark a monitored UTXO spent.
func BatchUpdateFromRemove(mps []*MembershipProof, rr RemovalRecord) ([]int, error) {
	touched := make(map[uint64]bool, len(rr.AbsoluteIndices))
	for _, idx := range rr.AbsoluteIndices {
		touched[idx] = true
	}

	var affected []int
	for i, mp := range mps {
		for _, idx := range mp.CachedIndices {
			if touched[idx] {
				affected = append(affected, i)
				break
			}
		}
	}
	return affected, nil
}

func authPathsEqual(a, b mmr.AuthPath) bool {
	if a.LeafIndex != b.LeafIndex || len(a.Siblings) != len(b.Siblings) {
		return false
	}
	for i := range a.Siblings {
		if a.Siblings[i] != b.Siblings[i] {
			return false
		}
	}
	return true
}
