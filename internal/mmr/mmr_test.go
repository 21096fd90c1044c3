package mmr

import (
	"testing"

	"github.com/rawblock/utxo-node/internal/hashutil"
)

func leafDigest(seed byte) hashutil.Digest {
	var d hashutil.Digest
	d[0] = seed
	d[31] = seed
	return hashutil.HashVarlen(d[:])
}

func TestAppendAndAuthenticationPath(t *testing.T) {
	m := New()
	var leaves []hashutil.Digest
	for i := 0; i < 37; i++ {
		leaf := leafDigest(byte(i))
		idx := m.Append(leaf)
		if idx != uint64(i) {
			t.Fatalf("Append() index = %d, want %d", idx, i)
		}
		leaves = append(leaves, leaf)
	}

	for i, leaf := range leaves {
		ap, err := m.AuthenticationPath(uint64(i))
		if err != nil {
			t.Fatalf("AuthenticationPath(%d) error: %v", i, err)
		}
		if !m.VerifyAuthPath(leaf, ap) {
			t.Errorf("VerifyAuthPath(%d) = false, want true", i)
		}
	}
}

func TestVerifyAuthPathRejectsWrongLeaf(t *testing.T) {
	m := New()
	for i := 0; i < 8; i++ {
		m.Append(leafDigest(byte(i)))
	}
	ap, err := m.AuthenticationPath(3)
	if err != nil {
		t.Fatalf("AuthenticationPath: %v", err)
	}
	if m.VerifyAuthPath(leafDigest(200), ap) {
		t.Error("VerifyAuthPath accepted a forged leaf")
	}
}

func TestAuthenticationPathOutOfRange(t *testing.T) {
	m := New()
	m.Append(leafDigest(1))
	if _, err := m.AuthenticationPath(5); err == nil {
		t.Error("AuthenticationPath did not error for out-of-range index")
	}
}

func TestBagPeaksEmptyIsZero(t *testing.T) {
	m := New()
	if m.BagPeaks() != hashutil.ZeroDigest {
		t.Error("BagPeaks() of an empty MMR must be the zero digest")
	}
}

func TestBagPeaksChangesOnAppend(t *testing.T) {
	m := New()
	var last hashutil.Digest
	for i := 0; i < 10; i++ {
		m.Append(leafDigest(byte(i)))
		bag := m.BagPeaks()
		if bag == last {
			t.Fatalf("BagPeaks() did not change after appending leaf %d", i)
		}
		last = bag
	}
}

func TestAppendPreservesExistingProofs(t *testing.T) {
	// Growing the MMR must not invalidate an unrelated leaf's ability
	// to be re-proved: a fresh AuthenticationPath(i) after growth must
	// still verify for leaf i, even though the path's bytes may change.
	m := New()
	leaves := make([]hashutil.Digest, 0, 20)
	for i := 0; i < 5; i++ {
		leaf := leafDigest(byte(i))
		m.Append(leaf)
		leaves = append(leaves, leaf)
	}
	for i := 5; i < 20; i++ {
		m.Append(leafDigest(byte(i)))
		for j, leaf := range leaves {
			ap, err := m.AuthenticationPath(uint64(j))
			if err != nil {
				t.Fatalf("AuthenticationPath(%d) after growth to %d leaves: %v", j, i+1, err)
			}
			if !m.VerifyAuthPath(leaf, ap) {
				t.Errorf("leaf %d failed to verify after growth to %d leaves", j, i+1)
			}
		}
	}
}

func TestNewFromLeavesRoundTrips(t *testing.T) {
	m := New()
	for i := 0; i < 15; i++ {
		m.Append(leafDigest(byte(i)))
	}
	restored := NewFromLeaves(m.Leaves())
	if restored.BagPeaks() != m.BagPeaks() {
		t.Error("NewFromLeaves did not reproduce the same BagPeaks()")
	}
}
