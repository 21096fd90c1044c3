package block

// ValidationParams carries the configurable knobs §4.3 and §6 leave
// open: allowed clock skew, the reward schedule, and whether uncle
// accounting is turned on (§9 "Open questions": uncle inclusion is
// gated behind an explicit flag rather than inferred).
type ValidationParams struct {
	MaxTimestampSkewMs int64
	UnclesEnabled      bool
	RewardSchedule     RewardSchedule
}

func (p ValidationParams) reward(height uint64) int64 {
	schedule := p.RewardSchedule
	if schedule == nil {
		schedule = DefaultRewardSchedule
	}
	return int64(schedule(height))
}

// HasProofOfWorkFor is §4.3 clause 4 alone, exposed at the Block level
// ("has_proof_of_work(B, P) is step 4 only").
func HasProofOfWorkFor(b, parent *Block) bool {
	return HasProofOfWork(b.Header)
}

// IsValid checks all nine clauses of §4.3 ("is_valid(B, P) is all
// nine"). nowMs is the validator's current wall-clock time in
// milliseconds, used for clause 3's forward-skew bound.
func IsValid(b, parent *Block, nowMs int64, params ValidationParams) error {
	// Clause 1: prev_block_digest links to the parent's own MAST hash.
	if b.Header.PrevBlockDigest != parent.MastHash() {
		return invalid("prev_block_digest does not match parent's mast hash")
	}

	// Clause 2: height increments by exactly one.
	if b.Header.Height != parent.Header.Height+1 {
		return invalid("height %d is not parent height %d + 1", b.Header.Height, parent.Header.Height)
	}

	// Clause 3: timestamp strictly after the parent, bounded forward skew.
	if b.Header.TimestampMs <= parent.Header.TimestampMs {
		return invalid("timestamp %d does not exceed parent timestamp %d", b.Header.TimestampMs, parent.Header.TimestampMs)
	}
	skew := params.MaxTimestampSkewMs
	if skew == 0 {
		skew = 10_000
	}
	if b.Header.TimestampMs > nowMs+skew {
		return invalid("timestamp %d exceeds now+skew %d", b.Header.TimestampMs, nowMs+skew)
	}

	// Clause 4: proof of work meets the header's own claimed difficulty.
	if !HasProofOfWork(b.Header) {
		return invalid("header hash exceeds difficulty threshold")
	}

	// Clause 5: difficulty is exactly what difficulty_control prescribes.
	wantDifficulty := DifficultyControl(parent.Header, b.Header.TimestampMs)
	if b.Header.Difficulty != wantDifficulty {
		return invalid("difficulty %d does not match difficulty_control result %d", b.Header.Difficulty, wantDifficulty)
	}

	// Clause 6: proof-of-work line/family accumulate the parent's.
	wantLine := parent.Header.ProofOfWorkLine + parent.Header.Difficulty
	if b.Header.ProofOfWorkLine != wantLine {
		return invalid("proof_of_work_line %d does not match expected %d", b.Header.ProofOfWorkLine, wantLine)
	}
	wantFamily := wantLine
	if params.UnclesEnabled {
		for range b.Body.UncleDigests {
			wantFamily += parent.Header.Difficulty
		}
	}
	if b.Header.ProofOfWorkFamily != wantFamily {
		return invalid("proof_of_work_family %d does not match expected %d", b.Header.ProofOfWorkFamily, wantFamily)
	}

	// Clause 7: the body's accumulator is what applying the
	// transaction's removals then additions to the parent's yields.
	replay := parent.Body.MutatorSetAccumulator.Clone()
	for _, rr := range b.Body.Transaction.Kernel.Inputs {
		replay.Remove(rr)
	}
	for _, ar := range b.Body.Transaction.Kernel.Outputs {
		replay.Add(ar)
	}
	if replay.Hash() != b.Body.MutatorSetAccumulator.Hash() {
		return invalid("mutator set accumulator does not match replayed application")
	}

	// Clause 8: the kernel was built against the parent's accumulator.
	if b.Body.Transaction.Kernel.MutatorSetHash != parent.Body.MutatorSetAccumulator.Hash() {
		return invalid("kernel mutator_set_hash does not match parent accumulator hash")
	}

	// Clause 9: witness verifies; coinbase sum is within the allowed budget.
	if !b.Body.Transaction.IsValid() {
		return invalid("transaction witness failed to verify")
	}
	if b.Body.Transaction.Kernel.IsCoinbase() {
		budget := params.reward(b.Header.Height) + int64(b.Body.Transaction.Kernel.Fee)
		if int64(*b.Body.Transaction.Kernel.Coinbase) > budget {
			return invalid("coinbase amount %d exceeds reward+fees budget %d", *b.Body.Transaction.Kernel.Coinbase, budget)
		}
	}

	return nil
}
