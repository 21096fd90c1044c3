package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/utxo-node/internal/block"
	"github.com/rawblock/utxo-node/internal/mutatorset"
)

// OwnedOutputHint names one output in a block's transaction as
// belonging to this wallet, along with everything needed to prove its
// membership. Decrypting a transaction's announcements to discover
// owned outputs is a collaborator concern this module treats as
// opaque (§1 "external collaborators"); Sync takes the result of that
// scan as an explicit argument instead of performing it.
type OwnedOutputHint struct {
	OutputIndex      int
	Item             Digest
	SenderRandomness Digest
	ReceiverPreimage Digest
	Amount           btcutil.Amount
	LockScript       []byte
}

// ErrSyncMismatch is raised when the wallet's locally replayed
// accumulator hash disagrees with the block's own (§4.4 step 4); it
// signals the wallet has desynchronized and must rebuild from its
// nearest retained block (§7 "StaleProof ... rebuild from the nearest
// retained block").
var ErrSyncMismatch = fmt.Errorf("wallet: replayed accumulator hash does not match block")

func indicesEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uint64]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
	}
	for _, count := range seen {
		if count != 0 {
			return false
		}
	}
	return true
}

// Sync advances the wallet by one block (§4.4 "Algorithm"). parentSet
// must be the mutator-set accumulator the wallet believes the parent
// block left behind (normally db's own last-synced copy).
func (db *Database) Sync(b *block.Block, parentSet *mutatorset.Accumulator, ownedOutputs []OwnedOutputHint) error {
	kernel := b.Body.Transaction.Kernel
	parentDigest := b.Header.PrevBlockDigest

	type entry struct {
		utxo *MonitoredUTXO
		mp   *mutatorset.MembershipProof
	}

	// Step 1: collect every outstanding proof recorded at the parent.
	var collected []entry
	for _, u := range db.UTXOs {
		if mp, ok := u.ProofsByBlock[parentDigest]; ok {
			cp := mp.Clone()
			collected = append(collected, entry{utxo: u, mp: &cp})
		}
	}
	mps := make([]*mutatorset.MembershipProof, len(collected))
	items := make([]Digest, len(collected))
	for i, e := range collected {
		mps[i] = e.mp
		items[i] = e.utxo.Item
	}

	byOutputIndex := make(map[int]OwnedOutputHint, len(ownedOutputs))
	for _, h := range ownedOutputs {
		byOutputIndex[h.OutputIndex] = h
	}

	replay := parentSet.Clone()

	// Step 2: apply additions in order.
	for i, ar := range kernel.Outputs {
		hint, isOurs := byOutputIndex[i]
		var newUTXO *MonitoredUTXO
		var newMP mutatorset.MembershipProof
		if isOurs {
			mp, err := replay.Prove(hint.Item, hint.SenderRandomness, hint.ReceiverPreimage)
			if err != nil {
				return fmt.Errorf("wallet: prove owned output %d: %w", i, err)
			}
			newMP = mp
			newUTXO = &MonitoredUTXO{
				Item:             hint.Item,
				SenderRandomness: hint.SenderRandomness,
				ReceiverPreimage: hint.ReceiverPreimage,
				Amount:           hint.Amount,
				LockScript:       hint.LockScript,
				ConfirmedInBlock: &BlockPointer{Digest: b.MastHash(), TimestampMs: b.Header.TimestampMs, Height: b.Header.Height},
			}
		}

		if _, err := mutatorset.BatchUpdateFromAddition(mps, items, replay.Kernel, ar); err != nil {
			return fmt.Errorf("wallet: batch_update_from_addition: %w", err)
		}
		replay.Add(ar)

		if isOurs {
			db.UTXOs = append(db.UTXOs, newUTXO)
			collected = append(collected, entry{utxo: newUTXO, mp: &newMP})
			mps = append(mps, &newMP)
			items = append(items, hint.Item)
		}
	}

	// Step 3: apply removals in order.
	for _, rr := range kernel.Inputs {
		if _, err := mutatorset.BatchUpdateFromRemove(mps, rr); err != nil {
			return fmt.Errorf("wallet: batch_update_from_remove: %w", err)
		}
		replay.Remove(rr)
		for _, e := range collected {
			if e.utxo.SpentInBlock != nil {
				continue
			}
			if indicesEqual(e.mp.CachedIndices, rr.AbsoluteIndices) {
				e.utxo.SpentInBlock = &BlockPointer{Digest: b.MastHash(), TimestampMs: b.Header.TimestampMs, Height: b.Header.Height}
			}
		}
	}

	// Step 4: consistency assertion.
	if replay.Hash() != b.Body.MutatorSetAccumulator.Hash() {
		return ErrSyncMismatch
	}

	// Step 5: record advanced proofs; eviction happens inside recordProof.
	for _, e := range collected {
		e.utxo.recordProof(b.MastHash(), *e.mp)
	}

	// Step 6: advance the sync label.
	db.SyncLabel = b.MastHash()
	return nil
}

// RevertTo walks the wallet back to ancestorDigest (§4.4 "Fork
// handling"): for each monitored UTXO, the retained proof at that
// digest becomes current, and confirmation status is cleared when no
// retained proof survives on the reverted-to branch.
func (db *Database) RevertTo(ancestorDigest Digest) {
	for _, u := range db.UTXOs {
		if _, ok := u.ProofsByBlock[ancestorDigest]; !ok {
			u.ConfirmedInBlock = nil
			u.SpentInBlock = nil
			continue
		}
		if u.ConfirmedInBlock != nil {
			if _, stillThere := u.ProofsByBlock[u.ConfirmedInBlock.Digest]; !stillThere {
				u.ConfirmedInBlock = nil
			}
		}
		if u.SpentInBlock != nil {
			if _, stillThere := u.ProofsByBlock[u.SpentInBlock.Digest]; !stillThere {
				u.SpentInBlock = nil
			}
		}
	}
	db.SyncLabel = ancestorDigest
}
