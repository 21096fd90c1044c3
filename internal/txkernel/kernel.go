// Package txkernel implements the transaction kernel and its MAST hash
// (§3, §4.2): the seven fields every transaction commits to, Merkle-
// hashed individually so a party can disclose one field (e.g. the fee)
// without revealing the rest.
package txkernel

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mutatorset"
)

type Digest = hashutil.Digest

// Announcement is a `(script_hash, input_bytes)` public announcement
// attached to a transaction (§3 "Transaction kernel").
type Announcement struct {
	ScriptHash Digest
	InputBytes []byte
}

// Kernel is the transaction kernel (§3): the part of a transaction
// every validator must agree on, independent of which witness proves
// it. Field order here is the order MAST hashing commits to — it must
// never change without also changing every stored mast hash.
type Kernel struct {
	Inputs         []mutatorset.RemovalRecord
	Outputs        []mutatorset.AdditionRecord
	Announcements  []Announcement
	Fee            btcutil.Amount
	Coinbase       *btcutil.Amount // nil unless this is a miner transaction
	TimestampMs    int64
	MutatorSetHash Digest
}

// IsCoinbase reports whether this kernel carries a miner reward and no
// removal records, the defining shape of a coinbase transaction (§3
// "Coinbase").
func (k Kernel) IsCoinbase() bool {
	return k.Coinbase != nil && len(k.Inputs) == 0
}

// fieldLeaves returns the seven per-field digests MAST hashing folds
// over, in the fixed declared order (§4.2).
func (k Kernel) fieldLeaves() [7]Digest {
	return [7]Digest{
		hashInputs(k.Inputs),
		hashOutputs(k.Outputs),
		hashAnnouncements(k.Announcements),
		hashutil.HashFields(hashutil.EncodeUint64(uint64(k.Fee))),
		hashCoinbase(k.Coinbase),
		hashutil.HashFields(hashutil.EncodeUint64(uint64(k.TimestampMs))),
		hashutil.HashFields(hashutil.EncodeDigest(k.MutatorSetHash)),
	}
}

// MastHash is the kernel's canonical commitment (§3, §4.2): the Merkle
// root over the seven field leaves, padded to the next power of two
// (eight) with the zero digest.
func (k Kernel) MastHash() Digest {
	leaves := k.fieldLeaves()
	padded := make([]Digest, 8)
	copy(padded[:7], leaves[:])
	padded[7] = hashutil.ZeroDigest
	return merkleRoot(padded)
}

func merkleRoot(leaves []Digest) Digest {
	if len(leaves) == 1 {
		return leaves[0]
	}
	half := len(leaves) / 2
	return hashutil.HashPair(merkleRoot(leaves[:half]), merkleRoot(leaves[half:]))
}

func hashInputs(inputs []mutatorset.RemovalRecord) Digest {
	fields := hashutil.EncodeUint64(uint64(len(inputs)))
	for _, rr := range inputs {
		fields = append(fields, hashutil.EncodeDigest(rr.ItemCommitment)...)
		fields = append(fields, hashutil.EncodeUint64(rr.AOCLLeafIndex)...)
		fields = append(fields, hashutil.EncodeUint64(uint64(len(rr.AbsoluteIndices)))...)
		for _, idx := range rr.AbsoluteIndices {
			fields = append(fields, hashutil.EncodeUint64(idx)...)
		}
	}
	return hashutil.HashFields(fields)
}

func hashOutputs(outputs []mutatorset.AdditionRecord) Digest {
	fields := hashutil.EncodeUint64(uint64(len(outputs)))
	for _, ar := range outputs {
		fields = append(fields, hashutil.EncodeDigest(ar.Commitment)...)
	}
	return hashutil.HashFields(fields)
}

func hashAnnouncements(anns []Announcement) Digest {
	fields := hashutil.EncodeUint64(uint64(len(anns)))
	for _, a := range anns {
		fields = append(fields, hashutil.EncodeDigest(a.ScriptHash)...)
		fields = append(fields, hashutil.EncodeDigest(hashutil.HashVarlen(a.InputBytes))...)
	}
	return hashutil.HashFields(fields)
}

func hashCoinbase(c *btcutil.Amount) Digest {
	if c == nil {
		return hashutil.HashFields(hashutil.EncodeUint64(0))
	}
	fields := hashutil.EncodeUint64(1)
	fields = append(fields, hashutil.EncodeUint64(uint64(*c))...)
	return hashutil.HashFields(fields)
}
