package mutatorset

import (
	"math/rand"
	"testing"

	"github.com/rawblock/utxo-node/internal/hashutil"
)

func randomDigest(r *rand.Rand) Digest {
	var d Digest
	for i := range d {
		d[i] = byte(r.Intn(256))
	}
	return d
}

func makeItemAndRandomness(r *rand.Rand) (item, senderRandomness, receiverPreimage Digest) {
	return randomDigest(r), randomDigest(r), randomDigest(r)
}

// TestProveThenVerify is §8 property 1: prove immediately followed by
// verify must return true.
func TestProveThenVerify(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	acc := NewAccumulator()

	for i := 0; i < 25; i++ {
		item, sr, rp := makeItemAndRandomness(r)
		mp, err := acc.Prove(item, sr, rp)
		if err != nil {
			t.Fatalf("Prove: %v", err)
		}
		acc.Add(AdditionRecord{Commitment: Commit(item, sr, ReceiverDigest(rp))})
		if !acc.Verify(item, mp) {
			t.Fatalf("Verify() = false immediately after Prove()+Add() at iteration %d", i)
		}
	}
}

// TestVerifyFalseAfterRemoval is §8 property 2 restricted to a single
// add/remove interleaving: verify(item, mp) must flip to false exactly
// once the item is removed.
func TestVerifyFalseAfterRemoval(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	acc := NewAccumulator()

	item, sr, rp := makeItemAndRandomness(r)
	mp, err := acc.Prove(item, sr, rp)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	acc.Add(AdditionRecord{Commitment: Commit(item, sr, ReceiverDigest(rp))})
	if !acc.Verify(item, mp) {
		t.Fatal("Verify() = false before removal")
	}

	rr := acc.Drop(item, mp)
	if !rr.Validate(acc.Kernel) {
		t.Fatal("Validate() = false for a freshly dropped removal record")
	}
	acc.Remove(rr)
	if acc.Verify(item, mp) {
		t.Fatal("Verify() = true after removal")
	}
}

// TestAccumulatorHashChangesOnMutation is §8 property 3's
// spirit restricted to the accumulator alone: hash changes on every
// mutation and is a pure function of state.
func TestAccumulatorHashChangesOnMutation(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	acc := NewAccumulator()
	last := acc.Hash()

	for i := 0; i < 10; i++ {
		item, sr, rp := makeItemAndRandomness(r)
		acc.Add(AdditionRecord{Commitment: Commit(item, sr, ReceiverDigest(rp))})
		next := acc.Hash()
		if next == last {
			t.Fatalf("Hash() unchanged after addition %d", i)
		}
		last = next
	}
}

// TestBatchRemoveMatchesSequentialRemove is §8 scenario S5: add 44
// items, mark about half for removal, batch_remove once, and compare
// against removing the same records one at a time on an independent
// accumulator.
func TestBatchRemoveMatchesSequentialRemove(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	const numAdditions = 44

	accBatch := NewAccumulator()
	accSeq := NewAccumulator()

	type entry struct {
		item Digest
		mp   MembershipProof
	}
	entries := make([]entry, 0, numAdditions)

	for i := 0; i < numAdditions; i++ {
		item, sr, rp := makeItemAndRandomness(r)
		mpBatch, err := accBatch.Prove(item, sr, rp)
		if err != nil {
			t.Fatalf("Prove (batch): %v", err)
		}
		mpSeq, err := accSeq.Prove(item, sr, rp)
		if err != nil {
			t.Fatalf("Prove (seq): %v", err)
		}
		ar := AdditionRecord{Commitment: Commit(item, sr, ReceiverDigest(rp))}
		accBatch.Add(ar)
		accSeq.Add(ar)
		entries = append(entries, entry{item: item, mp: mpBatch})
		_ = mpSeq
	}

	skipped := make([]bool, numAdditions)
	var removalRecords []RemovalRecord
	for i, e := range entries {
		skip := r.Float64() < 0.5
		skipped[i] = skip
		if !skip {
			removalRecords = append(removalRecords, accBatch.Drop(e.item, e.mp))
		}
	}

	for i, e := range entries {
		if !accBatch.Verify(e.item, e.mp) {
			t.Fatalf("entry %d failed to verify before batch_remove", i)
		}
	}

	preserved := make([]*MembershipProof, len(entries))
	for i := range entries {
		preserved[i] = &entries[i].mp
	}
	accBatch.BatchRemove(removalRecords, preserved)

	for i, e := range entries {
		got := accBatch.Verify(e.item, e.mp)
		if got != skipped[i] {
			t.Errorf("entry %d: Verify() = %v, want %v (skipped=%v)", i, got, skipped[i], skipped[i])
		}
	}

	// Sequential removal on the independent accumulator must produce
	// the same final accumulator hash.
	for i, e := range entries {
		if skipped[i] {
			continue
		}
		mpForSeq := e.mp // same cached indices/auth path; acc state parallel
		rr := accSeq.Drop(e.item, mpForSeq)
		accSeq.Remove(rr)
	}
	if accBatch.Hash() != accSeq.Hash() {
		t.Fatal("batch_remove and sequential remove produced different accumulator hashes")
	}
}

// TestMutatorSetAccumulatorPBT is §8 property 2 in full generality:
// for randomized interleavings of add/remove against a live set of
// outstanding proofs, verify(item, mp) tracks exactly whether item has
// been removed yet.
func TestMutatorSetAccumulatorPBT(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	acc := NewAccumulator()

	type tracked struct {
		item Digest
		mp   MembershipProof
	}
	var live []tracked

	const iterations = 100
	for i := 0; i < iterations; i++ {
		if len(live) == 0 || r.Intn(2) == 0 {
			item, sr, rp := makeItemAndRandomness(r)
			mp, err := acc.Prove(item, sr, rp)
			if err != nil {
				t.Fatalf("Prove at iteration %d: %v", i, err)
			}
			acc.Add(AdditionRecord{Commitment: Commit(item, sr, ReceiverDigest(rp))})
			live = append(live, tracked{item: item, mp: mp})
		} else {
			idx := r.Intn(len(live))
			entry := live[idx]
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]

			if !acc.Verify(entry.item, entry.mp) {
				t.Fatalf("iteration %d: live entry failed to verify before its own removal", i)
			}
			rr := acc.Drop(entry.item, entry.mp)
			acc.Remove(rr)
			if acc.Verify(entry.item, entry.mp) {
				t.Fatalf("iteration %d: entry still verifies after its own removal", i)
			}
		}

		for _, e := range live {
			if !acc.Verify(e.item, e.mp) {
				t.Fatalf("iteration %d: live (non-removed) entry failed to verify", i)
			}
		}
	}
}

func TestVerifyRejectsForgedItem(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	acc := NewAccumulator()
	item, sr, rp := makeItemAndRandomness(r)
	mp, _ := acc.Prove(item, sr, rp)
	acc.Add(AdditionRecord{Commitment: Commit(item, sr, ReceiverDigest(rp))})

	forged := randomDigest(r)
	if acc.Verify(forged, mp) {
		t.Fatal("Verify() accepted a forged item digest")
	}
}

func TestActiveWindowArchivesAcrossChunkBoundary(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	acc := NewAccumulator()

	// Push enough additions to force at least one chunk archival and
	// confirm proofs made before the boundary still verify afterward.
	item, sr, rp := makeItemAndRandomness(r)
	mp, err := acc.Prove(item, sr, rp)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	acc.Add(AdditionRecord{Commitment: Commit(item, sr, ReceiverDigest(rp))})

	for i := 0; i < ChunkSize+10; i++ {
		it, s, rp2 := makeItemAndRandomness(r)
		acc.Add(AdditionRecord{Commitment: Commit(it, s, ReceiverDigest(rp2))})
	}

	if acc.Kernel.swbfInactive.LeafCount() == 0 {
		t.Fatal("expected at least one chunk to have been archived")
	}
	if !acc.Verify(item, mp) {
		t.Fatal("Verify() = false for an item that was never removed, after a chunk archival")
	}
}

func TestAccumulatorCloneIsIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	acc := NewAccumulator()
	item, sr, rp := makeItemAndRandomness(r)
	acc.Add(AdditionRecord{Commitment: Commit(item, sr, ReceiverDigest(rp))})

	clone := acc.Clone()
	item2, sr2, rp2 := makeItemAndRandomness(r)
	clone.Add(AdditionRecord{Commitment: Commit(item2, sr2, ReceiverDigest(rp2))})

	if acc.Hash() == clone.Hash() {
		t.Fatal("mutating a clone affected the original accumulator")
	}
	_ = hashutil.ZeroDigest
}
