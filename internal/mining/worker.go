package mining

import (
	"context"
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"time"

	"github.com/rawblock/utxo-node/internal/block"
	"github.com/rawblock/utxo-node/internal/hashutil"
)

// restrictedThrottle is the per-100-iteration sleep applied when
// mining is not unrestricted (§4.5 "Nonce search", §6 "Configuration:
// unrestricted_mining").
const restrictedThrottle = 100 * time.Millisecond

// checkpointInterval is how often the worker re-reads the syncing
// flag and, in restricted mode, sleeps (§4.5 "Nonce search").
const checkpointInterval = 100

// seedRNG seeds a PRNG once from system entropy, the "thread-safe PRNG
// seeded once from system entropy" the nonce search samples from
// (§4.5). math/rand's generator is not itself safe for concurrent use,
// so each worker owns one, seeded independently.
func seedRNG() (*mrand.Rand, error) {
	var seed int64
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	for _, b := range buf {
		seed = seed<<8 | int64(b)
	}
	return mrand.New(mrand.NewSource(seed)), nil
}

func randomNonce(r *mrand.Rand) block.Nonce {
	var n block.Nonce
	for i := range n {
		n[i] = hashutil.FieldElement(r.Uint64())
	}
	return n
}

// SearchNonce repeatedly samples a fresh nonce and recomputes H(header)
// until the digest clears the header's own difficulty threshold, or
// until cancelled (§4.5 "Nonce search", "Cancellation semantics").
// syncing is polled every checkpointInterval iterations; ctx.Done()
// being closed ("the cancellation channel's receiver is dropped") is
// checked every iteration. unrestricted disables the per-checkpoint
// throttle.
func SearchNonce(ctx context.Context, header block.Header, syncing func() bool, unrestricted bool) (block.Header, bool) {
	r, err := seedRNG()
	if err != nil {
		return block.Header{}, false
	}
	threshold := block.DifficultyToThreshold(header.Difficulty)

	for iteration := uint64(0); ; iteration++ {
		select {
		case <-ctx.Done():
			return block.Header{}, false
		default:
		}

		if iteration > 0 && iteration%checkpointInterval == 0 {
			if syncing != nil && syncing() {
				return block.Header{}, false
			}
			if !unrestricted {
				select {
				case <-ctx.Done():
					return block.Header{}, false
				case <-time.After(restrictedThrottle):
				}
			}
		}

		candidate := header
		candidate.Nonce = randomNonce(r)
		digest := candidate.Hash()
		if digestLE(digest).Cmp(threshold) <= 0 {
			return candidate, true
		}
	}
}

func digestLE(d hashutil.Digest) *big.Int {
	return new(big.Int).SetBytes(d[:])
}
