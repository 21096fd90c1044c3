// Package hashutil provides the algebraic primitives the rest of the
// node builds on: a fixed-size digest type, a field-element sequence
// encoding, and the variable-length sequence hash H. The real
// algebraic-hash library (Tip5-style, arithmetized for a STARK) is an
// external collaborator; this package is a typed stand-in for it.
package hashutil

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Digest is the fixed-size output of H. It reuses chainhash.Hash's
// 32-byte layout so addition records, membership proofs, and block
// digests can be compared, ordered, and serialized the same way the
// teacher's transaction hashes are.
type Digest chainhash.Hash

// ZeroDigest is the all-zero digest used to pad MAST field sequences
// to a power of two (§4.2).
var ZeroDigest Digest

// String renders the digest as lowercase hex, big-endian (unlike
// chainhash.Hash.String, which reverses bytes for historical Bitcoin
// display reasons — a digest here is not a block hash users type in).
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Less gives Digest a total order, used for deterministic ordering of
// leaves and for tie-breaking in tests.
func (d Digest) Less(other Digest) bool {
	for i := range d {
		if d[i] != other[i] {
			return d[i] < other[i]
		}
	}
	return false
}

func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

// FieldElement is the unit of the sequence encoding MAST hashes fold
// over. A real algebraic hasher arithmetizes a prime-field element;
// here it is simply a 64-bit word, which is all H treats it as.
type FieldElement uint64

// Encodable is implemented by every struct whose fields participate in
// MAST hashing (§4.2): it flattens itself into field elements in a
// fixed, declared order.
type Encodable interface {
	Encode() []FieldElement
}

// EncodeDigest turns a Digest into four field elements (32 bytes / 8).
func EncodeDigest(d Digest) []FieldElement {
	out := make([]FieldElement, 4)
	for i := 0; i < 4; i++ {
		out[i] = FieldElement(binary.BigEndian.Uint64(d[i*8 : i*8+8]))
	}
	return out
}

// EncodeUint64 encodes a single scalar as one field element.
func EncodeUint64(v uint64) []FieldElement {
	return []FieldElement{FieldElement(v)}
}

// fieldsToBytes is the canonical byte serialization H hashes over.
func fieldsToBytes(fields []FieldElement) []byte {
	buf := make([]byte, 8*len(fields))
	for i, f := range fields {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], uint64(f))
	}
	return buf
}

// HashFields is the variable-length sequence hash H(seq) (§2.1).
func HashFields(fields []FieldElement) Digest {
	sum := sha256.Sum256(fieldsToBytes(fields))
	return Digest(sum)
}

// HashPair is H applied to the concatenation of two digests' field
// encodings — the two-ary combinator used throughout the mutator set
// and the MMR (§4.1).
func HashPair(a, b Digest) Digest {
	fields := append(EncodeDigest(a), EncodeDigest(b)...)
	return HashFields(fields)
}

// HashVarlen hashes an arbitrary byte string into a digest, used for
// committing to the already-encoded bytes of other collaborators
// (e.g. a UTXO's lock script bytes).
func HashVarlen(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// HashEncodable is a convenience wrapper combining Encode and
// HashFields, used pervasively by the transaction kernel and block
// header hashing.
func HashEncodable(e Encodable) Digest {
	return HashFields(e.Encode())
}

func (d Digest) GoString() string {
	return fmt.Sprintf("Digest(%s)", d.String())
}
