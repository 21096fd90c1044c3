// Package wallet implements monitored UTXOs, the wallet database, and
// the fork-tolerant synchronization algorithm of §4.4.
package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mutatorset"
)

type Digest = hashutil.Digest

// BlockPointer names a block by digest, timestamp, and height — the
// triple a monitored UTXO's confirmed/spent markers carry (§3
// "Monitored UTXO").
type BlockPointer struct {
	Digest      Digest
	TimestampMs int64
	Height      uint64
}

// MonitoredUTXO is a wallet-owned output together with its fork
// history of membership proofs (§3 "Monitored UTXO").
type MonitoredUTXO struct {
	Item             Digest
	SenderRandomness Digest
	ReceiverPreimage Digest
	Amount           btcutil.Amount
	LockScript       []byte

	// ProofsByBlock maps a block digest to the membership proof valid
	// against that block's accumulator — the fork history (§3).
	ProofsByBlock map[Digest]mutatorset.MembershipProof

	ConfirmedInBlock *BlockPointer
	SpentInBlock     *BlockPointer

	// RetainedProofCount bounds how many entries ProofsByBlock keeps;
	// recordProof prunes down to this count after each sync step (§3, §9
	// "retention depth ... recommend bounded to the maximum reorg
	// depth").
	RetainedProofCount int
	proofOrder         []Digest // insertion order, oldest first
}

// IsSpendable reports whether this output is confirmed and not yet spent.
func (m *MonitoredUTXO) IsSpendable() bool {
	return m.ConfirmedInBlock != nil && m.SpentInBlock == nil
}

// recordProof stores mp under blockDigest, enforcing the retention
// bound by evicting the oldest entry first.
func (m *MonitoredUTXO) recordProof(blockDigest Digest, mp mutatorset.MembershipProof) {
	if m.ProofsByBlock == nil {
		m.ProofsByBlock = make(map[Digest]mutatorset.MembershipProof)
	}
	if _, exists := m.ProofsByBlock[blockDigest]; !exists {
		m.proofOrder = append(m.proofOrder, blockDigest)
	}
	m.ProofsByBlock[blockDigest] = mp.Clone()

	bound := m.RetainedProofCount
	if bound <= 0 {
		bound = DefaultRetentionDepth
	}
	for len(m.proofOrder) > bound {
		oldest := m.proofOrder[0]
		m.proofOrder = m.proofOrder[1:]
		delete(m.ProofsByBlock, oldest)
		if m.ConfirmedInBlock != nil && m.ConfirmedInBlock.Digest == oldest {
			if _, stillRetained := m.ProofsByBlock[m.ConfirmedInBlock.Digest]; !stillRetained {
				m.ConfirmedInBlock = nil
			}
		}
	}
}

// DefaultRetentionDepth is the fallback retention bound when a
// MonitoredUTXO doesn't set its own (§9 "recommend bounded to the
// maximum reorg depth").
const DefaultRetentionDepth = 144

// ErrInsufficientFunds is the user-input error for a send whose
// requested amount exceeds the synced unspent balance (§7).
var ErrInsufficientFunds = fmt.Errorf("wallet: insufficient funds")

// Database is the wallet's persisted state (§3 "Wallet database",
// §6 "Wallet schema"): the monitored-UTXO vector, the sync label, and
// the output counter used to derive sender randomness.
type Database struct {
	Secret        Secret
	UTXOs         []*MonitoredUTXO
	SyncLabel     Digest
	OutputCounter uint64
}

// NewDatabase returns an empty wallet database for a freshly derived secret.
func NewDatabase(secret Secret) *Database {
	return &Database{Secret: secret}
}

// NextSenderRandomness derives and consumes the next counter value
// (§4.4 "Sender-randomness derivation"): H(counter_digest,
// H(wallet_secret.commitment_seed)). Two outputs never share
// randomness because the counter strictly increases.
func (db *Database) NextSenderRandomness() Digest {
	counter := db.OutputCounter
	db.OutputCounter++
	counterDigest := hashutil.HashFields(hashutil.EncodeUint64(counter))
	seedDigest := hashutil.HashFields(hashutil.EncodeDigest(db.Secret.CommitmentSeed))
	return hashutil.HashPair(counterDigest, seedDigest)
}

// SyncedUnspentAmount sums every monitored UTXO confirmed and not yet
// spent, the balance `amount_leq_synced_balance` checks against (§6).
func (db *Database) SyncedUnspentAmount() btcutil.Amount {
	var total btcutil.Amount
	for _, u := range db.UTXOs {
		if u.IsSpendable() {
			total += u.Amount
		}
	}
	return total
}

// AllocateSufficientInputFunds selects unspent UTXOs, in insertion
// order, until their sum reaches amount (§4.4 "Input selection").
func (db *Database) AllocateSufficientInputFunds(amount btcutil.Amount) ([]*MonitoredUTXO, error) {
	if db.SyncedUnspentAmount() < amount {
		return nil, ErrInsufficientFunds
	}
	var selected []*MonitoredUTXO
	var sum btcutil.Amount
	for _, u := range db.UTXOs {
		if sum >= amount {
			break
		}
		if !u.IsSpendable() {
			continue
		}
		selected = append(selected, u)
		sum += u.Amount
	}
	return selected, nil
}
