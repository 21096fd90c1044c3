package mining

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/rawblock/utxo-node/internal/block"
	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mempool"
)

// Controller drives the mining state machine (§4.5): it owns the
// current State, starts and cancels the nonce-search worker as
// Transition's Action demands, and validates a worker's find against
// the chain tip before announcing it.
type Controller struct {
	mu    sync.Mutex
	state State

	latestBlock *block.Block
	cancel      context.CancelFunc

	mp                 *mempool.Mempool
	receiverPreimage   hashutil.Digest
	receiverPubKey     *btcec.PublicKey
	nextSenderRandom   func() hashutil.Digest
	rewardSchedule     block.RewardSchedule
	syncing            func() bool
	unrestrictedMining bool
	validation         block.ValidationParams

	found chan FoundBlock
}

// ControllerConfig collects Controller's external collaborators (§2
// "external collaborators": mempool, wallet, chain state, node config).
type ControllerConfig struct {
	Mempool            *mempool.Mempool
	ReceiverPreimage   hashutil.Digest
	ReceiverPubKey     *btcec.PublicKey
	NextSenderRandom   func() hashutil.Digest
	RewardSchedule     block.RewardSchedule
	Syncing            func() bool
	UnrestrictedMining bool
	Validation         block.ValidationParams
}

// NewController returns a controller in the Idle state; it does no
// mining until OnStartMining or OnNewBlock moves it to Mining.
func NewController(cfg ControllerConfig) *Controller {
	schedule := cfg.RewardSchedule
	if schedule == nil {
		schedule = block.DefaultRewardSchedule
	}
	return &Controller{
		state:              Idle,
		mp:                 cfg.Mempool,
		receiverPreimage:   cfg.ReceiverPreimage,
		receiverPubKey:     cfg.ReceiverPubKey,
		nextSenderRandom:   cfg.NextSenderRandom,
		rewardSchedule:     schedule,
		syncing:            cfg.Syncing,
		unrestrictedMining: cfg.UnrestrictedMining,
		validation:         cfg.Validation,
		found:              make(chan FoundBlock, 1),
	}
}

// State reports the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Found is the channel a found, validated nonce is delivered on before
// announcement (§6 "Miner→main: NewBlockFound").
func (c *Controller) Found() <-chan FoundBlock {
	return c.found
}

func (c *Controller) abortWorker() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) apply(event Event) Action {
	c.mu.Lock()
	next, action := Transition(c.state, event)
	c.state = next
	c.mu.Unlock()
	return action
}

// OnNewBlock handles a new chain tip arriving, from this node's own
// mining or from the network (§4.5 "Transitions": NewBlock aborts any
// in-flight search and rebuilds against the new parent).
func (c *Controller) OnNewBlock(b *block.Block) {
	action := c.apply(EventNewBlock)
	if action.AbortWorker {
		c.abortWorker()
	}
	c.mu.Lock()
	c.latestBlock = b
	c.mu.Unlock()
	if action.RebuildTemplate {
		c.startWorker()
	}
}

// OnStopMining pauses the loop (§6 "Main→miner: StopMining").
func (c *Controller) OnStopMining() {
	action := c.apply(EventStopMining)
	if action.AbortWorker {
		c.abortWorker()
	}
}

// OnStartMining resumes from Paused (§6 "Main→miner: StartMining").
func (c *Controller) OnStartMining() {
	action := c.apply(EventStartMining)
	if action.RebuildTemplate {
		c.startWorker()
	}
}

// OnShutdown aborts any in-flight search and moves to ShuttingDown
// (§6 "Main→miner: Shutdown").
func (c *Controller) OnShutdown() {
	action := c.apply(EventShutdown)
	if action.AbortWorker {
		c.abortWorker()
	}
}

// startWorker builds a fresh template against the current tip and
// launches a cancellable nonce search for it (§4.5 "Template
// construction" steps 1-4). It is a no-op while syncing or with no
// known tip, matching step 1's "stay Idle until caught up".
func (c *Controller) startWorker() {
	c.mu.Lock()
	parent := c.latestBlock
	st := c.state
	c.mu.Unlock()
	if st != Mining || parent == nil {
		return
	}
	if c.syncing != nil && c.syncing() {
		return
	}

	senderRandomness := hashutil.ZeroDigest
	if c.nextSenderRandom != nil {
		senderRandomness = c.nextSenderRandom()
	}
	header, body, err := BuildTemplate(parent, c.mp, c.receiverPreimage, senderRandomness, c.receiverPubKey, c.rewardSchedule, time.Now())
	if err != nil {
		log.Printf("[Mining] discarding template: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	coinbaseExpectation := int64(0)
	if body.Transaction.Kernel.Coinbase != nil {
		coinbaseExpectation = int64(*body.Transaction.Kernel.Coinbase)
	}

	go func() {
		found, ok := SearchNonce(ctx, header, c.syncing, c.unrestrictedMining)
		if !ok {
			return
		}
		blk := block.NewBlock(found, body)
		select {
		case c.found <- FoundBlock{Block: blk, CoinbaseExpectation: coinbaseExpectation}:
		case <-ctx.Done():
		}
	}()
}

// HandleFound validates a worker's find against the current tip before
// treating it as a new block (§4.5 "Transitions": WorkerFound in
// Mining → ValidateAndAnnounce). It discards finds that raced a
// concurrent tip change — the worker that produced fb was searching
// against a parent that is no longer current. Callers that accept the
// returned block are expected to announce it and then call
// OnNewBlock(accepted) once it becomes the new tip, which restarts the
// template against it (the "await ReadyToMineNextBlock" barrier).
func (c *Controller) HandleFound(fb FoundBlock, nowMs int64) (*block.Block, error) {
	action := c.apply(EventWorkerFound)
	if !action.ValidateAndAnnounce {
		return nil, nil
	}

	c.mu.Lock()
	parent := c.latestBlock
	c.mu.Unlock()
	if parent == nil || fb.Block.Header.PrevBlockDigest != parent.MastHash() {
		return nil, nil
	}
	if err := block.IsValid(fb.Block, parent, nowMs, c.validation); err != nil {
		return nil, err
	}
	return fb.Block, nil
}
