package wallet

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/utxo-node/internal/block"
	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mmr"
	"github.com/rawblock/utxo-node/internal/mutatorset"
	"github.com/rawblock/utxo-node/internal/txkernel"
)

// TestSenderRandomnessInjective is §8 property 8: sender_randomness is
// injective in counter.
func TestSenderRandomnessInjective(t *testing.T) {
	db := NewDatabase(Secret{CommitmentSeed: hashutil.Digest{1, 2, 3}})
	seen := make(map[Digest]uint64)
	for i := uint64(0); i < 200; i++ {
		r := db.NextSenderRandomness()
		if prior, ok := seen[r]; ok {
			t.Fatalf("counter %d produced the same sender randomness as counter %d", i, prior)
		}
		seen[r] = i
	}
}

func TestAllocateSufficientInputFunds(t *testing.T) {
	db := NewDatabase(Secret{})
	db.UTXOs = []*MonitoredUTXO{
		{Amount: 10, ConfirmedInBlock: &BlockPointer{}},
		{Amount: 5, ConfirmedInBlock: &BlockPointer{}},
		{Amount: 20, ConfirmedInBlock: &BlockPointer{}},
	}

	selected, err := db.AllocateSufficientInputFunds(12)
	if err != nil {
		t.Fatalf("AllocateSufficientInputFunds: %v", err)
	}
	var sum btcutil.Amount
	for _, u := range selected {
		sum += u.Amount
	}
	if sum < 12 {
		t.Fatalf("selected sum %d below requested 12", sum)
	}
	if len(selected) != 2 {
		t.Fatalf("expected the first two UTXOs in insertion order, got %d", len(selected))
	}
}

func TestAllocateSufficientInputFundsInsufficient(t *testing.T) {
	db := NewDatabase(Secret{})
	db.UTXOs = []*MonitoredUTXO{{Amount: 1, ConfirmedInBlock: &BlockPointer{}}}
	if _, err := db.AllocateSufficientInputFunds(100); err != ErrInsufficientFunds {
		t.Fatalf("AllocateSufficientInputFunds() error = %v, want ErrInsufficientFunds", err)
	}
}

func TestAllocateSufficientInputFundsSkipsUnconfirmedAndSpent(t *testing.T) {
	spent := &BlockPointer{}
	db := NewDatabase(Secret{})
	db.UTXOs = []*MonitoredUTXO{
		{Amount: 50}, // unconfirmed
		{Amount: 50, ConfirmedInBlock: &BlockPointer{}, SpentInBlock: spent},
		{Amount: 50, ConfirmedInBlock: &BlockPointer{}},
	}
	selected, err := db.AllocateSufficientInputFunds(10)
	if err != nil {
		t.Fatalf("AllocateSufficientInputFunds: %v", err)
	}
	if len(selected) != 1 || selected[0].Amount != 50 {
		t.Fatalf("expected only the third (confirmed, unspent) UTXO selected, got %+v", selected)
	}
}

func genesisBlock() *block.Block {
	acc := mutatorset.NewAccumulator()
	kernel := txkernel.Kernel{MutatorSetHash: acc.Hash()}
	tx := txkernel.Transaction{Kernel: kernel, Witness: txkernel.PrimitiveWitness{MutatorSet: acc}}
	header := block.Header{Height: 0, TimestampMs: 1000, Difficulty: 1}
	return block.NewBlock(header, block.NewBody(tx))
}

// TestSyncDetectsOwnedOutput exercises §4.4 step 2: a block whose
// single output belongs to the wallet produces a new, spendable
// monitored UTXO, and the wallet's replayed accumulator hash matches
// the block's.
func TestSyncDetectsOwnedOutput(t *testing.T) {
	g := genesisBlock()
	db := NewDatabase(Secret{CommitmentSeed: hashutil.Digest{9}})

	item := hashutil.Digest{1, 1, 1}
	sr := db.NextSenderRandomness()
	rp := hashutil.Digest{2, 2, 2}
	receiverDigest := mutatorset.ReceiverDigest(rp)
	commitment := mutatorset.Commit(item, sr, receiverDigest)

	parentSet := g.Body.MutatorSetAccumulator
	wantSet := parentSet.Clone()
	wantSet.Add(mutatorset.AdditionRecord{Commitment: commitment})

	kernel := txkernel.Kernel{
		Outputs:        []mutatorset.AdditionRecord{{Commitment: commitment}},
		MutatorSetHash: parentSet.Hash(),
	}
	tx := txkernel.Transaction{Kernel: kernel, Witness: txkernel.PrimitiveWitness{
		OutputPreimages: []txkernel.UtxoPreimage{{Item: item, SenderRandomness: sr, ReceiverPreimage: rp}},
		MutatorSet:      parentSet.Clone(),
	}}
	header := block.Header{
		Height:          1,
		PrevBlockDigest: g.MastHash(),
		TimestampMs:     g.Header.TimestampMs + 1,
		Difficulty:      1,
	}
	body := block.Body{
		Transaction:           tx,
		MutatorSetAccumulator: wantSet,
		LockFreeMMR:           mmr.New(),
		BlockMMR:              mmr.New(),
	}
	b := block.NewBlock(header, body)

	hint := OwnedOutputHint{OutputIndex: 0, Item: item, SenderRandomness: sr, ReceiverPreimage: rp, Amount: 5}
	if err := db.Sync(b, parentSet, []OwnedOutputHint{hint}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(db.UTXOs) != 1 {
		t.Fatalf("expected 1 monitored UTXO, got %d", len(db.UTXOs))
	}
	if !db.UTXOs[0].IsSpendable() {
		t.Fatal("newly detected owned output is not spendable")
	}
	if db.SyncLabel != b.MastHash() {
		t.Fatal("sync label not advanced to the new block's digest")
	}
	if _, ok := db.UTXOs[0].ProofsByBlock[b.MastHash()]; !ok {
		t.Fatal("no membership proof recorded under the new block's digest")
	}
}

func TestSyncRejectsMismatchedAccumulator(t *testing.T) {
	g := genesisBlock()
	db := NewDatabase(Secret{})

	parentSet := g.Body.MutatorSetAccumulator
	kernel := txkernel.Kernel{MutatorSetHash: parentSet.Hash()}
	tx := txkernel.Transaction{Kernel: kernel, Witness: txkernel.PrimitiveWitness{MutatorSet: parentSet.Clone()}}
	header := block.Header{Height: 1, PrevBlockDigest: g.MastHash(), TimestampMs: g.Header.TimestampMs + 1, Difficulty: 1}
	// Body's accumulator is deliberately wrong (not a clone of parent).
	body := block.Body{
		Transaction:           tx,
		MutatorSetAccumulator: mutatorset.NewAccumulator(),
		LockFreeMMR:           mmr.New(),
		BlockMMR:              mmr.New(),
	}
	body.MutatorSetAccumulator.Add(mutatorset.AdditionRecord{Commitment: hashutil.Digest{1}})
	b := block.NewBlock(header, body)

	if err := db.Sync(b, parentSet, nil); err != ErrSyncMismatch {
		t.Fatalf("Sync() error = %v, want ErrSyncMismatch", err)
	}
}

// TestBuildSpend exercises §4.4 "Input selection" end to end: a
// wallet with one spendable, proven UTXO builds a transaction paying
// part of it out, with change returned to the wallet's own next
// output index.
func TestBuildSpend(t *testing.T) {
	spendingKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	db := NewDatabase(Secret{SpendingKey: spendingKey, CommitmentSeed: hashutil.Digest{7}})

	acc := mutatorset.NewAccumulator()
	item := hashutil.Digest{1, 1, 1}
	sr := db.NextSenderRandomness()
	rp := hashutil.Digest{2, 2, 2}
	receiverDigest := mutatorset.ReceiverDigest(rp)
	mp, err := acc.Prove(item, sr, rp)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	acc.Add(mutatorset.AdditionRecord{Commitment: mutatorset.Commit(item, sr, receiverDigest)})

	tip := hashutil.Digest{9, 9, 9}
	db.UTXOs = []*MonitoredUTXO{{
		Item:             item,
		SenderRandomness: sr,
		ReceiverPreimage: rp,
		Amount:           100,
		ConfirmedInBlock: &BlockPointer{Digest: tip},
		ProofsByBlock:    map[Digest]mutatorset.MembershipProof{tip: mp},
	}}

	payeeKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	tx, err := db.BuildSpend(acc, tip, 60, 5, payeeKey.PubKey(), 1000)
	if err != nil {
		t.Fatalf("BuildSpend: %v", err)
	}
	if len(tx.Kernel.Inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(tx.Kernel.Inputs))
	}
	if len(tx.Kernel.Outputs) != 2 {
		t.Fatalf("expected a payment output plus change, got %d", len(tx.Kernel.Outputs))
	}
	if tx.Kernel.Fee != 5 {
		t.Fatalf("Fee = %d, want 5", tx.Kernel.Fee)
	}
	if tx.Kernel.MutatorSetHash != acc.Hash() {
		t.Fatal("kernel's mutator set hash does not match the accumulator it was built against")
	}
}

func TestBuildSpendMissingMembershipProof(t *testing.T) {
	db := NewDatabase(Secret{})
	acc := mutatorset.NewAccumulator()
	db.UTXOs = []*MonitoredUTXO{{
		Amount:           100,
		ConfirmedInBlock: &BlockPointer{},
		ProofsByBlock:    map[Digest]mutatorset.MembershipProof{},
	}}

	payeeKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	_, err = db.BuildSpend(acc, hashutil.Digest{1}, 10, 1, payeeKey.PubKey(), 1000)
	if !errors.Is(err, ErrMissingMembershipProof) {
		t.Fatalf("BuildSpend() error = %v, want ErrMissingMembershipProof", err)
	}
}

func TestRevertToClearsConfirmationWithoutRetainedProof(t *testing.T) {
	u := &MonitoredUTXO{
		ConfirmedInBlock: &BlockPointer{Digest: hashutil.Digest{2}},
		ProofsByBlock:    map[Digest]mutatorset.MembershipProof{},
	}
	db := &Database{UTXOs: []*MonitoredUTXO{u}}
	db.RevertTo(hashutil.Digest{1})
	if u.ConfirmedInBlock != nil {
		t.Fatal("ConfirmedInBlock not cleared after reverting past its only retained proof")
	}
}
