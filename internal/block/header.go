// Package block implements the block header, block body, the MAST
// block digest, difficulty control, and the nine-clause validation
// predicate of §4.3.
package block

import (
	"math/big"

	"github.com/rawblock/utxo-node/internal/hashutil"
)

type Digest = hashutil.Digest

// Nonce is the block header's three-field nonce (§3 "Block header").
// Three independent field elements give the nonce search worker more
// entropy per sample than a single 64-bit counter without needing a
// wider integer type.
type Nonce [3]hashutil.FieldElement

// Header is the block header (§3).
type Header struct {
	Version           uint32
	Height            uint64
	PrevBlockDigest   Digest
	TimestampMs       int64
	Nonce             Nonce
	MaxBlockSize      uint64
	ProofOfWorkLine   uint64
	ProofOfWorkFamily uint64
	Difficulty        uint64
}

// encode flattens the header into the field-element sequence H hashes
// over, in declared order (§6 "Block wire format": "header fields in
// declared order").
func (h Header) encode() []hashutil.FieldElement {
	fields := hashutil.EncodeUint64(uint64(h.Version))
	fields = append(fields, hashutil.EncodeUint64(h.Height)...)
	fields = append(fields, hashutil.EncodeDigest(h.PrevBlockDigest)...)
	fields = append(fields, hashutil.EncodeUint64(uint64(h.TimestampMs))...)
	fields = append(fields, h.Nonce[:]...)
	fields = append(fields, hashutil.EncodeUint64(h.MaxBlockSize)...)
	fields = append(fields, hashutil.EncodeUint64(h.ProofOfWorkLine)...)
	fields = append(fields, hashutil.EncodeUint64(h.ProofOfWorkFamily)...)
	fields = append(fields, hashutil.EncodeUint64(h.Difficulty)...)
	return fields
}

// Hash is H(header), the digest the proof-of-work threshold check
// compares against (§4.3 clause 4).
func (h Header) Hash() Digest {
	return hashutil.HashFields(h.encode())
}

// digestToBigInt interprets a digest as a big-endian unsigned integer,
// the representation difficulty thresholds and header hashes are
// compared in (§4.3 clause 4, §8 property 7).
func digestToBigInt(d Digest) *big.Int {
	return new(big.Int).SetBytes(d[:])
}
