// Package globalstate holds the single process-wide GlobalState (§9
// "Global mutable state"): the live chain tip, mutator set, and block
// index a node's RPC handlers, mining loop, and wallet sync all read
// and write. Mirrors the teacher's globalTaintMap singleton
// (internal/heuristics/taint_seed.go): a package-level instance guarded
// by one RWMutex, initialized once at startup and dropped at shutdown.
package globalstate

import (
	"log"
	"sync"

	"github.com/rawblock/utxo-node/internal/block"
	"github.com/rawblock/utxo-node/internal/mutatorset"
)

// Lock order (§5 "Deadlock avoidance"): global state ≺ wallet DB ≺
// latest-header cache. Code that needs both GlobalState and a
// wallet.Database lock must acquire GlobalState's lock first, and must
// never hold it while blocking on the wallet DB.
type GlobalState struct {
	mu sync.RWMutex

	tip            *block.Block
	mutatorSet     *mutatorset.Accumulator
	blocksByDigest map[block.Digest]*block.Block
	syncing        bool
}

var (
	instance *GlobalState
	mu       sync.RWMutex
	initOnce sync.Once
)

// Init sets up the singleton from a genesis block. Safe to call only
// once per process; subsequent calls are no-ops, matching
// InitGlobalTaintMap's "safe to call multiple times" contract.
func Init(genesis *block.Block) {
	initOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		instance = &GlobalState{
			tip:            genesis,
			mutatorSet:     genesis.Body.MutatorSetAccumulator,
			blocksByDigest: map[block.Digest]*block.Block{genesis.MastHash(): genesis},
		}
		log.Printf("[GlobalState] initialized at height %d", genesis.Header.Height)
	})
}

// Drop releases the singleton, the counterpart of Init for orderly
// shutdown and for tests that need a fresh process-wide state.
func Drop() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	initOnce = sync.Once{}
}

// Get returns the process-wide instance, or nil if Init was never
// called.
func Get() *GlobalState {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// Tip returns the current chain head.
func (g *GlobalState) Tip() *block.Block {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tip
}

// MutatorSet returns the tip's mutator set accumulator.
func (g *GlobalState) MutatorSet() *mutatorset.Accumulator {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mutatorSet
}

// BlockByDigest looks up a previously-applied block by its mast hash,
// used to resolve a header's prev_block_digest during validation.
func (g *GlobalState) BlockByDigest(digest block.Digest) (*block.Block, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.blocksByDigest[digest]
	return b, ok
}

// Syncing reports whether the node considers itself behind its peers,
// the flag the mining loop and nonce-search worker poll (§4.5).
func (g *GlobalState) Syncing() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.syncing
}

// SetSyncing updates the syncing flag.
func (g *GlobalState) SetSyncing(syncing bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.syncing = syncing
}

// Advance moves the tip forward to a newly validated block, recording
// it in the block index. Callers must have already checked
// block.IsValid(next, g.Tip(), ...) before calling this.
func (g *GlobalState) Advance(next *block.Block) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tip = next
	g.mutatorSet = next.Body.MutatorSetAccumulator
	g.blocksByDigest[next.MastHash()] = next
	log.Printf("[GlobalState] advanced to height %d", next.Header.Height)
}
