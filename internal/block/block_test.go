package block

import (
	"testing"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mmr"
	"github.com/rawblock/utxo-node/internal/mutatorset"
	"github.com/rawblock/utxo-node/internal/txkernel"
)

func genesis() *Block {
	kernel := txkernel.Kernel{MutatorSetHash: mutatorset.NewAccumulator().Hash()}
	tx := txkernel.Transaction{Kernel: kernel, Witness: txkernel.PrimitiveWitness{MutatorSet: mutatorset.NewAccumulator()}}
	header := Header{
		Version:      1,
		Height:       0,
		TimestampMs:  1_000,
		MaxBlockSize: 1 << 20,
		Difficulty:   1,
	}
	return NewBlock(header, NewBody(tx))
}

func childOf(t *testing.T, parent *Block, mutate func(h *Header)) *Block {
	t.Helper()
	kernel := txkernel.Kernel{MutatorSetHash: parent.Body.MutatorSetAccumulator.Hash()}
	tx := txkernel.Transaction{Kernel: kernel, Witness: txkernel.PrimitiveWitness{MutatorSet: parent.Body.MutatorSetAccumulator.Clone()}}
	header := Header{
		Version:           1,
		Height:            parent.Header.Height + 1,
		PrevBlockDigest:   parent.MastHash(),
		TimestampMs:       parent.Header.TimestampMs + TargetBlockIntervalMs,
		MaxBlockSize:      1 << 20,
		ProofOfWorkLine:   parent.Header.ProofOfWorkLine + parent.Header.Difficulty,
		ProofOfWorkFamily: parent.Header.ProofOfWorkLine + parent.Header.Difficulty,
		Difficulty:        DifficultyControl(parent.Header, parent.Header.TimestampMs+TargetBlockIntervalMs),
	}
	if mutate != nil {
		mutate(&header)
	}
	body := Body{
		Transaction:           tx,
		MutatorSetAccumulator: parent.Body.MutatorSetAccumulator.Clone(),
		LockFreeMMR:           mmr.New(),
		BlockMMR:              mmr.New(),
	}
	return NewBlock(header, body)
}

func TestMastHashSealedAtConstruction(t *testing.T) {
	g := genesis()
	h1 := g.MastHash()
	h2 := g.MastHash()
	if h1 != h2 {
		t.Fatal("MastHash() is not stable across repeated calls")
	}
}

func TestIsValidChild(t *testing.T) {
	g := genesis()
	c := childOf(t, g, nil)
	params := ValidationParams{}
	if err := IsValid(c, g, c.Header.TimestampMs+1, params); err != nil {
		t.Fatalf("IsValid() = %v, want nil", err)
	}
}

func TestIsValidRejectsWrongHeight(t *testing.T) {
	g := genesis()
	c := childOf(t, g, func(h *Header) { h.Height = 5 })
	if err := IsValid(c, g, c.Header.TimestampMs+1, ValidationParams{}); err == nil {
		t.Fatal("IsValid() = nil for a block with a skipped height")
	}
}

func TestIsValidRejectsStaleTimestamp(t *testing.T) {
	g := genesis()
	c := childOf(t, g, func(h *Header) { h.TimestampMs = g.Header.TimestampMs })
	if err := IsValid(c, g, c.Header.TimestampMs+1, ValidationParams{}); err == nil {
		t.Fatal("IsValid() = nil for a block whose timestamp does not exceed its parent's")
	}
}

func TestIsValidRejectsExcessiveSkew(t *testing.T) {
	g := genesis()
	c := childOf(t, g, nil)
	if err := IsValid(c, g, g.Header.TimestampMs, ValidationParams{MaxTimestampSkewMs: 1}); err == nil {
		t.Fatal("IsValid() = nil for a block far ahead of the validator's clock")
	}
}

func TestIsValidRejectsWrongPrevDigest(t *testing.T) {
	g := genesis()
	c := childOf(t, g, func(h *Header) { h.PrevBlockDigest = hashutil.Digest{9, 9, 9} })
	if err := IsValid(c, g, c.Header.TimestampMs+1, ValidationParams{}); err == nil {
		t.Fatal("IsValid() = nil for a block whose prev digest does not match the parent")
	}
}

func TestIsValidRejectsWrongDifficulty(t *testing.T) {
	g := genesis()
	c := childOf(t, g, func(h *Header) { h.Difficulty = h.Difficulty * 100 })
	if err := IsValid(c, g, c.Header.TimestampMs+1, ValidationParams{}); err == nil {
		t.Fatal("IsValid() = nil for a block with a difficulty not matching difficulty_control")
	}
}

func TestDifficultyControlMonotonic(t *testing.T) {
	parent := Header{Difficulty: 1000, TimestampMs: 0}
	shortWait := DifficultyControl(parent, TargetBlockIntervalMs/2)
	longWait := DifficultyControl(parent, TargetBlockIntervalMs*4)
	if !(longWait < shortWait) {
		t.Fatalf("expected longer elapsed time to yield lower difficulty: short=%d long=%d", shortWait, longWait)
	}
	shortThreshold := DifficultyToThreshold(shortWait)
	longThreshold := DifficultyToThreshold(longWait)
	if shortThreshold.Cmp(longThreshold) >= 0 {
		t.Fatal("higher difficulty must map to a smaller (harder) threshold")
	}
}

func TestDifficultyControlClampsStep(t *testing.T) {
	parent := Header{Difficulty: 1000, TimestampMs: 0}
	// An enormous wait should not crash difficulty to zero or below the
	// 1/3 floor in a single step.
	next := DifficultyControl(parent, TargetBlockIntervalMs*1_000_000)
	if next < 333 {
		t.Fatalf("difficulty dropped below the per-step floor: got %d", next)
	}
	// A near-instant block should not exceed the 3x ceiling.
	fast := DifficultyControl(parent, 1)
	if fast > 3000 {
		t.Fatalf("difficulty exceeded the per-step ceiling: got %d", fast)
	}
}
