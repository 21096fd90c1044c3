// Package mmr implements the append-only Merkle mountain range used by
// the mutator set for both the AOCL (commitment list) and the SWBF's
// inactive chunk history (§4.1). Unlike the original split between an
// "archival" MMR (full node storage) and an "accumulator" MMR
// (peaks-only, O(1) state), this implementation keeps the full leaf
// history in memory and recomputes peaks/authentication paths from it
// on demand. The persisted-state boundary in this module is the
// opaque ordered byte store (§6), not the MMR itself, so there is no
// separate archival-vs-accumulator split to maintain here: every
// membership proof this package hands out is always rebuilt fresh
// against current state, which trivially satisfies the invariant that
// batch-updated and sequentially-updated proofs are byte-identical
// (§8 property 5) — both paths call the same deterministic rebuild.
package mmr

import (
	"fmt"

	"github.com/rawblock/utxo-node/internal/hashutil"
)

// Digest is an alias so callers don't need to import hashutil directly
// for the common case.
type Digest = hashutil.Digest

// Mmr is an append-only list of leaves with peak-bagging accumulation.
// Index-based: leaves are referenced by position, never by pointer, so
// there is no owning back-pointer graph to keep consistent (§9 "Arena
// vs pointer graphs").
type Mmr struct {
	leaves []Digest
}

// New returns an empty MMR.
func New() *Mmr {
	return &Mmr{}
}

// NewFromLeaves reconstructs an MMR from a known leaf history, used
// when restoring wallet/chain state from the ordered byte store.
func NewFromLeaves(leaves []Digest) *Mmr {
	cp := make([]Digest, len(leaves))
	copy(cp, leaves)
	return &Mmr{leaves: cp}
}

// Append adds a new leaf and returns its index.
func (m *Mmr) Append(leaf Digest) uint64 {
	m.leaves = append(m.leaves, leaf)
	return uint64(len(m.leaves) - 1)
}

// LeafCount returns the number of leaves appended so far.
func (m *Mmr) LeafCount() uint64 {
	return uint64(len(m.leaves))
}

// Leaves returns a copy of the append-only leaf history, for
// persistence or archival restoration.
func (m *Mmr) Leaves() []Digest {
	cp := make([]Digest, len(m.leaves))
	copy(cp, m.leaves)
	return cp
}

// chunkSizes decomposes n into its constituent powers of two, largest
// first, mirroring the binary representation of the leaf count. Each
// chunk becomes one perfect Merkle subtree, i.e. one peak.
func chunkSizes(n uint64) []uint64 {
	var sizes []uint64
	for bit := 63; bit >= 0; bit-- {
		p := uint64(1) << uint(bit)
		if n&p != 0 {
			sizes = append(sizes, p)
		}
	}
	return sizes
}

// merkleRoot computes the root of a perfect binary tree over a
// power-of-two-sized leaf slice.
func merkleRoot(leaves []Digest) Digest {
	if len(leaves) == 1 {
		return leaves[0]
	}
	half := len(leaves) / 2
	left := merkleRoot(leaves[:half])
	right := merkleRoot(leaves[half:])
	return hashutil.HashPair(left, right)
}

// Peaks returns the current peak digests, ordered from the oldest
// (largest) subtree to the newest (smallest).
func (m *Mmr) Peaks() []Digest {
	sizes := chunkSizes(uint64(len(m.leaves)))
	peaks := make([]Digest, 0, len(sizes))
	start := uint64(0)
	for _, size := range sizes {
		peaks = append(peaks, merkleRoot(m.leaves[start:start+size]))
		start += size
	}
	return peaks
}

// bagPeaks folds peaks right-associatively: the newest (smallest, last)
// peak is innermost, the oldest (tallest, first) peak is applied last.
// This mirrors the kernel's "fold all peaks into one digest" step used
// both for the AOCL and for the SWBF's inactive-chunk MMR (§3).
func bagPeaks(peaks []Digest) Digest {
	if len(peaks) == 0 {
		return hashutil.ZeroDigest
	}
	bag := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		bag = hashutil.HashPair(peaks[i], bag)
	}
	return bag
}

// BagPeaks returns the single-digest commitment to all current peaks.
func (m *Mmr) BagPeaks() Digest {
	return bagPeaks(m.Peaks())
}

// AuthPath is an authentication path from a leaf up to its owning
// peak's root.
type AuthPath struct {
	LeafIndex uint64
	Siblings  []Digest // bottom-up: Siblings[0] is the leaf's immediate sibling
}

// peakForLeaf returns which peak (by index into Peaks()) owns
// leafIndex, along with that peak's leaf-range start and size.
func peakForLeaf(totalLeaves, leafIndex uint64) (peakIdx int, start, size uint64, err error) {
	if leafIndex >= totalLeaves {
		return 0, 0, 0, fmt.Errorf("mmr: leaf index %d out of range (%d leaves)", leafIndex, totalLeaves)
	}
	sizes := chunkSizes(totalLeaves)
	s := uint64(0)
	for i, sz := range sizes {
		if leafIndex < s+sz {
			return i, s, sz, nil
		}
		s += sz
	}
	return 0, 0, 0, fmt.Errorf("mmr: leaf index %d not found in any chunk", leafIndex)
}

// merkleProof returns the bottom-up sibling path for position pos
// within a power-of-two-sized leaf slice.
func merkleProof(leaves []Digest, pos uint64) []Digest {
	if len(leaves) == 1 {
		return nil
	}
	half := uint64(len(leaves)) / 2
	if pos < half {
		rest := merkleProof(leaves[:half], pos)
		return append(rest, merkleRoot(leaves[half:]))
	}
	rest := merkleProof(leaves[half:], pos-half)
	return append(rest, merkleRoot(leaves[:half]))
}

// MutateLeaf overwrites an already-appended leaf's digest in place,
// used when an archived SWBF chunk's raw bits change because a
// removal touched them (§4.1 "remove"). This is the one place the
// append-only discipline is deliberately broken: the leaf's identity
// (its index) never changes, only the commitment it carries.
func (m *Mmr) MutateLeaf(index uint64, newDigest Digest) error {
	if index >= uint64(len(m.leaves)) {
		return fmt.Errorf("mmr: cannot mutate leaf %d, only %d leaves exist", index, len(m.leaves))
	}
	m.leaves[index] = newDigest
	return nil
}

// ProspectiveAuthPath computes the authentication path a leaf would
// receive if it were appended next, without mutating the MMR. The AOCL
// uses this so that proving a membership proof for an item and adding
// that item are two independent, non-mutating-then-mutating steps
// (§4.1 "prove" / "add"), matching how callers invoke them.
func (m *Mmr) ProspectiveAuthPath(leaf Digest) (AuthPath, error) {
	sim := &Mmr{leaves: append(append([]Digest(nil), m.leaves...), leaf)}
	return sim.AuthenticationPath(uint64(len(m.leaves)))
}

// AuthenticationPath produces a fresh authentication path for
// leafIndex against the MMR's current state (§4.1 "prove").
func (m *Mmr) AuthenticationPath(leafIndex uint64) (AuthPath, error) {
	_, start, size, err := peakForLeaf(uint64(len(m.leaves)), leafIndex)
	if err != nil {
		return AuthPath{}, err
	}
	chunk := m.leaves[start : start+size]
	siblings := merkleProof(chunk, leafIndex-start)
	return AuthPath{LeafIndex: leafIndex, Siblings: siblings}, nil
}

// reconstructRoot replays sibling hashing bottom-up using the bits of
// the local position to decide hash order at each level.
func reconstructRoot(leaf Digest, siblings []Digest, localPos uint64) Digest {
	cur := leaf
	for i, sib := range siblings {
		if (localPos>>uint(i))&1 == 0 {
			cur = hashutil.HashPair(cur, sib)
		} else {
			cur = hashutil.HashPair(sib, cur)
		}
	}
	return cur
}

// VerifyAuthPath checks that leaf, combined with ap's siblings,
// reconstructs the current peak that owns ap.LeafIndex. It never
// raises: a stale or forged path simply returns false (§4.1 "verify").
func (m *Mmr) VerifyAuthPath(leaf Digest, ap AuthPath) bool {
	peakIdx, start, _, err := peakForLeaf(uint64(len(m.leaves)), ap.LeafIndex)
	if err != nil {
		return false
	}
	peaks := m.Peaks()
	if peakIdx >= len(peaks) {
		return false
	}
	got := reconstructRoot(leaf, ap.Siblings, ap.LeafIndex-start)
	return got == peaks[peakIdx]
}
