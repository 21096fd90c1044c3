package mutatorset

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/rawblock/utxo-node/internal/hashutil"
)

// ActiveWindow is the fixed-size sliding bit window at the tip of the
// SWBF (§3 "swbf_active"). Bit i of the window corresponds to the
// absolute Bloom-filter index offset+i; as the AOCL grows, the window
// slides forward and the chunk falling off its trailing edge is
// archived into swbf_inactive (§4.1 "add").
type ActiveWindow struct {
	offset uint64
	bits   *bitset.BitSet
}

// NewActiveWindow returns an empty window starting at absolute index 0.
func NewActiveWindow() *ActiveWindow {
	return &ActiveWindow{bits: bitset.New(WindowSize)}
}

// Offset is the absolute index represented by bit 0 of the window.
func (w *ActiveWindow) Offset() uint64 {
	return w.offset
}

// Contains reports whether absoluteIndex falls within the active
// window (as opposed to the archived region before it).
func (w *ActiveWindow) Contains(absoluteIndex uint64) bool {
	return absoluteIndex >= w.offset && absoluteIndex < w.offset+WindowSize
}

// Set marks absoluteIndex as spent. The caller must have already
// verified Contains(absoluteIndex).
func (w *ActiveWindow) Set(absoluteIndex uint64) {
	w.bits.Set(uint(absoluteIndex - w.offset))
}

// Test reports whether absoluteIndex is currently set.
func (w *ActiveWindow) Test(absoluteIndex uint64) bool {
	return w.bits.Test(uint(absoluteIndex - w.offset))
}

// packBits renders count bits starting at localStart into a byte
// slice, most-significant-bit first within each byte. count must be a
// multiple of 8.
func packBits(b *bitset.BitSet, localStart, count uint64) []byte {
	out := make([]byte, count/8)
	for i := uint64(0); i < count; i++ {
		if b.Test(uint(localStart + i)) {
			out[i/8] |= 1 << uint(7-(i%8))
		}
	}
	return out
}

// SlideAndArchive extracts the oldest ChunkSize bits of the window,
// returns their packed bytes (for the caller to hash into a new
// swbf_inactive MMR leaf), and slides the window forward by
// ChunkSize, zero-filling the newly exposed trailing bits.
func (w *ActiveWindow) SlideAndArchive() []byte {
	archived := packBits(w.bits, 0, ChunkSize)

	next := bitset.New(WindowSize)
	for i := uint64(ChunkSize); i < WindowSize; i++ {
		if w.bits.Test(uint(i)) {
			next.Set(uint(i - ChunkSize))
		}
	}
	w.bits = next
	w.offset += ChunkSize
	return archived
}

// Bytes packs the entire window into a byte slice, most-significant
// bit first, used to compute H(swbf_active) for the accumulator hash.
func (w *ActiveWindow) Bytes() []byte {
	return packBits(w.bits, 0, WindowSize)
}

// Hash is H(swbf_active), the active-window term of the accumulator
// hash formula (§3).
func (w *ActiveWindow) Hash() hashutil.Digest {
	return hashutil.HashVarlen(w.Bytes())
}

// Clone returns a deep copy, used when a block template needs its own
// mutator-set snapshot independent of the live tip (§9).
func (w *ActiveWindow) Clone() *ActiveWindow {
	cp := &ActiveWindow{offset: w.offset, bits: bitset.New(WindowSize)}
	cp.bits.InPlaceUnion(w.bits)
	return cp
}

// unpackChunk reconstructs a bitset from previously archived chunk
// bytes, used when rebuilding kernel state from persisted chunks.
func unpackChunk(raw []byte) *bitset.BitSet {
	b := bitset.New(ChunkSize)
	for i := uint64(0); i < ChunkSize; i++ {
		if raw[i/8]&(1<<uint(7-(i%8))) != 0 {
			b.Set(uint(i))
		}
	}
	return b
}
