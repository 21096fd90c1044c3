package block

import "github.com/btcsuite/btcd/btcutil"

// RewardSchedule computes the miner subsidy for a given height,
// excluding fees. The source repository's reward halving schedule was
// gated behind a `devnet_is_valid` stub and never fully specified for
// mainnet (§9 "Open questions"); rather than guess at an undocumented
// halving curve, this module makes the schedule an explicit,
// caller-supplied function and ships one concrete, documented default.
type RewardSchedule func(height uint64) btcutil.Amount

// FixedSubsidy returns a RewardSchedule that pays a constant subsidy
// at every height, with no halving. This is the default used by
// Regtest and by validation callers that don't supply their own
// schedule; it is a deliberate simplification of the unspecified
// mainnet curve, not an attempt to reproduce it (§9 "Open questions").
func FixedSubsidy(amount btcutil.Amount) RewardSchedule {
	return func(uint64) btcutil.Amount { return amount }
}

// DefaultRewardSchedule is the schedule used when a ValidationParams
// leaves RewardSchedule nil.
var DefaultRewardSchedule = FixedSubsidy(50 * btcutil.SatoshiPerBitcoin)
