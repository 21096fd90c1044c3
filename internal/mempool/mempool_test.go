package mempool

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/txkernel"
)

func tx(fee btcutil.Amount, tag byte) txkernel.Transaction {
	return txkernel.Transaction{Kernel: txkernel.Kernel{
		Fee:            fee,
		MutatorSetHash: hashutil.Digest{tag},
	}}
}

func TestPriorityViewOrdersByFeeRate(t *testing.T) {
	m := New()
	m.Insert(tx(10, 1), 100) // fee rate 0.1
	m.Insert(tx(50, 2), 100) // fee rate 0.5
	m.Insert(tx(20, 3), 100) // fee rate 0.2

	view := m.PriorityView(1000)
	if len(view) != 3 {
		t.Fatalf("expected all 3 entries to fit, got %d", len(view))
	}
	if view[0].Transaction.Kernel.Fee != 50 || view[1].Transaction.Kernel.Fee != 20 || view[2].Transaction.Kernel.Fee != 10 {
		t.Fatalf("entries not ordered by fee rate descending: %+v", view)
	}
}

func TestPriorityViewRespectsByteBudget(t *testing.T) {
	m := New()
	m.Insert(tx(100, 1), 600)
	m.Insert(tx(90, 2), 600)
	m.Insert(tx(80, 3), 600)

	view := m.PriorityView(1000)
	var used uint64
	for _, e := range view {
		used += e.SizeBytes
	}
	if used > 1000 {
		t.Fatalf("selected entries exceed byte budget: used %d", used)
	}
	if len(view) != 1 {
		t.Fatalf("expected exactly 1 entry to fit a 1000-byte budget with 600-byte entries, got %d", len(view))
	}
	if view[0].Transaction.Kernel.Fee != 100 {
		t.Fatalf("expected the highest fee-rate entry to be selected, got fee %d", view[0].Transaction.Kernel.Fee)
	}
}

func TestPriorityViewDeterministicTieBreak(t *testing.T) {
	m := New()
	m.Insert(tx(10, 1), 100)
	m.Insert(tx(10, 2), 100)

	first := m.PriorityView(1000)
	second := m.PriorityView(1000)
	for i := range first {
		if first[i].Transaction.Kernel.MutatorSetHash != second[i].Transaction.Kernel.MutatorSetHash {
			t.Fatal("PriorityView ordering is not deterministic across calls for tied fee rates")
		}
	}
}

func TestRemove(t *testing.T) {
	m := New()
	txn := tx(10, 1)
	m.Insert(txn, 50)
	if m.Len() != 1 {
		t.Fatalf("expected 1 entry after insert, got %d", m.Len())
	}
	m.Remove(txn.Kernel.MastHash())
	if m.Len() != 0 {
		t.Fatalf("expected 0 entries after remove, got %d", m.Len())
	}
}

func TestTotalFees(t *testing.T) {
	entries := []Entry{{Transaction: tx(10, 1)}, {Transaction: tx(20, 2)}}
	if got := TotalFees(entries); got != 30 {
		t.Fatalf("TotalFees() = %d, want 30", got)
	}
}
