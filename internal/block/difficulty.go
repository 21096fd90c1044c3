package block

import "math/big"

// TargetBlockIntervalMs is the interval difficulty_control aims to
// hold the average time between blocks to (§4.3 clause 5).
const TargetBlockIntervalMs int64 = 9_000

// maxDifficultyStepNum/Den bound how much difficulty can move in a
// single step, expressed as a rational multiplier applied to the
// parent's difficulty (§4.3 clause 5: "bounded per-step change").
const (
	maxDifficultyStepNum = 3
	maxDifficultyStepDen = 1
	minDifficultyStepNum = 1
	minDifficultyStepDen = 3
)

// DifficultyControl computes the next header's required difficulty
// from the parent header and the candidate timestamp (§4.3 clause 5).
// It is a pure function of (parent.Difficulty, parent.TimestampMs,
// candidateTimestampMs): faster-than-target intervals raise
// difficulty, slower ones lower it, clamped to at most a 3x swing in
// either direction per block.
func DifficultyControl(parent Header, candidateTimestampMs int64) uint64 {
	elapsed := candidateTimestampMs - parent.TimestampMs
	if elapsed <= 0 {
		elapsed = 1
	}

	// new_difficulty = parent_difficulty * target_interval / elapsed,
	// clamped to [parent/3, parent*3].
	parentDiff := new(big.Int).SetUint64(parent.Difficulty)
	if parentDiff.Sign() == 0 {
		parentDiff = big.NewInt(1)
	}
	target := big.NewInt(TargetBlockIntervalMs)
	elapsedBig := big.NewInt(elapsed)

	raw := new(big.Int).Mul(parentDiff, target)
	raw.Div(raw, elapsedBig)

	maxStep := new(big.Int).Mul(parentDiff, big.NewInt(maxDifficultyStepNum))
	maxStep.Div(maxStep, big.NewInt(maxDifficultyStepDen))
	minStep := new(big.Int).Mul(parentDiff, big.NewInt(minDifficultyStepNum))
	minStep.Div(minStep, big.NewInt(minDifficultyStepDen))
	if minStep.Sign() == 0 {
		minStep = big.NewInt(1)
	}

	if raw.Cmp(maxStep) > 0 {
		raw = maxStep
	}
	if raw.Cmp(minStep) < 0 {
		raw = minStep
	}
	if !raw.IsUint64() {
		return ^uint64(0)
	}
	return raw.Uint64()
}

// thresholdCeiling is the all-ones value a difficulty of 1 maps to;
// higher difficulty divides this down to a smaller (harder) threshold.
var thresholdCeiling = func() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), 256)
	return v.Sub(v, big.NewInt(1))
}()

// DifficultyToThreshold maps a difficulty to the maximum header digest
// (as a big-endian integer) that constitutes valid proof of work
// (§4.3 clause 4, glossary "Difficulty threshold"). Difficulty and
// threshold are inversely related: threshold = ceiling / difficulty.
func DifficultyToThreshold(difficulty uint64) *big.Int {
	if difficulty == 0 {
		difficulty = 1
	}
	return new(big.Int).Div(thresholdCeiling, new(big.Int).SetUint64(difficulty))
}

// HasProofOfWork is §4.3 clause 4 alone: H(header) <= threshold.
func HasProofOfWork(h Header) bool {
	threshold := DifficultyToThreshold(h.Difficulty)
	return digestToBigInt(h.Hash()).Cmp(threshold) <= 0
}
