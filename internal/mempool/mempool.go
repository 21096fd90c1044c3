// Package mempool implements the priority-view contract §2 item 7
// treats as a collaborator: the best-fee transactions that fit a byte
// budget, for the mining loop's template construction (§4.5).
package mempool

import (
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/utxo-node/internal/txkernel"
)

// Entry is one mempool-resident transaction plus its serialized size,
// the two facts the priority view needs to rank and pack it.
type Entry struct {
	Transaction txkernel.Transaction
	SizeBytes   uint64
}

func (e Entry) feeRate() float64 {
	if e.SizeBytes == 0 {
		return 0
	}
	return float64(e.Transaction.Kernel.Fee) / float64(e.SizeBytes)
}

// Mempool is a thread-safe set of candidate transactions, keyed by
// kernel mast hash so the same transaction is never stored twice.
type Mempool struct {
	mu      sync.RWMutex
	entries map[txkernel.Digest]Entry
}

// New returns an empty mempool.
func New() *Mempool {
	return &Mempool{entries: make(map[txkernel.Digest]Entry)}
}

// Insert adds or replaces a candidate transaction.
func (m *Mempool) Insert(tx txkernel.Transaction, sizeBytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tx.Kernel.MastHash()] = Entry{Transaction: tx, SizeBytes: sizeBytes}
}

// Remove evicts a transaction, used once its inputs are spent by a
// block that included it (or a conflicting transaction).
func (m *Mempool) Remove(mastHash txkernel.Digest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, mastHash)
}

// Len reports the number of candidate transactions currently held.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// PriorityView returns the best-fee-rate transactions that fit within
// maxBytes, highest fee rate first (§2 item 7, §4.5 template
// construction step 2: "draw transactions from the mempool up to 20
// MB").
func (m *Mempool) PriorityView(maxBytes uint64) []Entry {
	m.mu.RLock()
	all := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].feeRate() != all[j].feeRate() {
			return all[i].feeRate() > all[j].feeRate()
		}
		// Stable tie-break: lower mast hash first, so PriorityView is
		// deterministic across runs for equal fee rates.
		return all[i].Transaction.Kernel.MastHash().Less(all[j].Transaction.Kernel.MastHash())
	})

	var selected []Entry
	var used uint64
	for _, e := range all {
		if used+e.SizeBytes > maxBytes {
			continue
		}
		selected = append(selected, e)
		used += e.SizeBytes
	}
	return selected
}

// TotalFees sums the fee of every entry in a priority view, the
// Σ fees term the coinbase reward budget is built from (§4.5 step 3).
func TotalFees(entries []Entry) btcutil.Amount {
	var total btcutil.Amount
	for _, e := range entries {
		total += e.Transaction.Kernel.Fee
	}
	return total
}
