package main

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"time"

	"github.com/rawblock/utxo-node/internal/api"
	"github.com/rawblock/utxo-node/internal/block"
	"github.com/rawblock/utxo-node/internal/chainindex"
	"github.com/rawblock/utxo-node/internal/config"
	"github.com/rawblock/utxo-node/internal/globalstate"
	"github.com/rawblock/utxo-node/internal/mempool"
	"github.com/rawblock/utxo-node/internal/mining"
	"github.com/rawblock/utxo-node/internal/mutatorset"
	"github.com/rawblock/utxo-node/internal/store"
	"github.com/rawblock/utxo-node/internal/txkernel"
	"github.com/rawblock/utxo-node/internal/wallet"
)

func main() {
	log.Println("Starting node...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: configuration: %v", err)
	}
	params := config.ParamsFor(cfg.Network)
	log.Printf("network=%s magic=%#x coinbaseMaturity=%d", cfg.Network, params.Magic, params.CoinbaseMaturity)

	kv, err := store.Open(cfg.DataDirectory)
	if err != nil {
		log.Fatalf("FATAL: opening store at %s: %v", cfg.DataDirectory, err)
	}
	defer kv.Close()

	secret, err := loadOrGenerateSecret(kv)
	if err != nil {
		log.Fatalf("FATAL: wallet secret: %v", err)
	}
	walletDB := wallet.NewDatabase(secret)

	genesis := genesisBlock(params.GenesisTimestampMs)
	globalstate.Init(genesis)
	gs := globalstate.Get()
	log.Printf("genesis digest %s", genesis.MastHash())

	mp := mempool.New()

	var index *chainindex.Index
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		idx, err := chainindex.Connect(connStr)
		if err != nil {
			log.Printf("Warning: chain index unavailable, history() will degrade: %v", err)
		} else {
			defer idx.Close()
			if err := idx.InitSchema(); err != nil {
				log.Printf("Warning: chain index schema init failed: %v", err)
			}
			index = idx
		}
	} else {
		log.Println("DATABASE_URL not set — running without the optional balance-history index")
	}

	wsHub := api.NewHub()
	go wsHub.Run()
	onNewBlock := api.BroadcastBlock(wsHub)

	control := mining.NewController(mining.ControllerConfig{
		Mempool:            mp,
		ReceiverPreimage:   secret.ReceiverPreimageFor(0),
		ReceiverPubKey:     secret.ReceivingAddress(),
		NextSenderRandom:   walletDB.NextSenderRandomness,
		RewardSchedule:     block.DefaultRewardSchedule,
		Syncing:            gs.Syncing,
		UnrestrictedMining: cfg.UnrestrictedMining,
	})
	control.OnNewBlock(genesis)
	if cfg.Mining {
		control.OnStartMining()
	}

	go func() {
		for found := range control.Found() {
			nowMs := time.Now().UnixMilli()
			mined, err := control.HandleFound(found, nowMs)
			if err != nil {
				log.Printf("discarding mined block: %v", err)
				continue
			}
			if mined == nil {
				continue
			}

			// §4.4: replay the wallet forward against the block it is
			// about to become current against, before the tip itself
			// moves — parentSet is still the accumulator Sync expects.
			parentSet := gs.MutatorSet()
			hints := detectOwnedOutputs(secret, mined, block.DefaultRewardSchedule)
			before := len(walletDB.UTXOs)
			if err := walletDB.Sync(mined, parentSet, hints); err != nil {
				log.Printf("wallet sync: %v — wallet view of height %d will lag until resynced", err, mined.Header.Height)
			} else {
				recordBalanceUpdates(index, walletDB, mined, before)
			}

			gs.Advance(mined)
			control.OnNewBlock(mined)
			onNewBlock(mined.MastHash().String())
		}
	}()

	r := api.SetupRouter(walletDB, mp, control, index, wsHub, cfg)

	port := "5339"
	log.Printf("node listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("FATAL: server: %v", err)
	}
}

// genesisBlock is the fixed starting point every network begins
// replaying from: an empty mutator set, no coinbase payout, stamped
// with the network's own genesis timestamp (§6 "Configuration":
// "network ... changes genesis digest").
func genesisBlock(genesisTimestampMs int64) *block.Block {
	acc := mutatorset.NewAccumulator()
	kernel := txkernel.Kernel{TimestampMs: genesisTimestampMs, MutatorSetHash: acc.Hash()}
	tx := txkernel.Transaction{Kernel: kernel, Witness: txkernel.PrimitiveWitness{MutatorSet: acc}}
	header := block.Header{
		Version:      1,
		Height:       0,
		TimestampMs:  genesisTimestampMs,
		MaxBlockSize: mining.MaxTemplateBytes,
		Difficulty:   1,
	}
	return block.NewBlock(header, block.NewBody(tx))
}

// detectOwnedOutputs scans a newly mined block's own transaction for
// outputs this node's wallet controls (§4.4 step 2). Announcement
// decryption for outputs received from other peers is an out-of-scope
// collaborator concern (§1); the one case this node can resolve on its
// own is the coinbase output it just mined for itself, whose amount is
// publicly recoverable as reward(height)+fee.
func detectOwnedOutputs(secret wallet.Secret, mined *block.Block, rewardSchedule block.RewardSchedule) []wallet.OwnedOutputHint {
	pw, ok := mined.Body.Transaction.Witness.(txkernel.PrimitiveWitness)
	if !ok {
		return nil
	}
	kernel := mined.Body.Transaction.Kernel
	var hints []wallet.OwnedOutputHint
	for i, pre := range pw.OutputPreimages {
		digest := mutatorset.ReceiverDigest(pre.ReceiverPreimage)
		if _, owned := secret.OwnsReceiverDigest(digest, 1); !owned {
			continue
		}
		if i != 0 || !kernel.IsCoinbase() {
			log.Printf("wallet sync: output %d at height %d recognized as ours but its amount cannot be recovered outside the coinbase case; skipping", i, mined.Header.Height)
			continue
		}
		amount := rewardSchedule(mined.Header.Height) + kernel.Fee
		hints = append(hints, wallet.OwnedOutputHint{
			OutputIndex:      i,
			Item:             pre.Item,
			SenderRandomness: pre.SenderRandomness,
			ReceiverPreimage: pre.ReceiverPreimage,
			Amount:           amount,
			LockScript:       pre.LockScript,
		})
	}
	return hints
}

// recordBalanceUpdates writes one chainindex.BalanceUpdate row per
// monitored UTXO that newly confirmed or was newly spent by this
// sync step (§6 "history(range)"). A no-op when no secondary index is
// configured.
func recordBalanceUpdates(index *chainindex.Index, walletDB *wallet.Database, mined *block.Block, utxosBefore int) {
	if index == nil {
		return
	}
	digest := mined.MastHash()
	running := walletDB.SyncedUnspentAmount()
	for i, u := range walletDB.UTXOs {
		receiverDigest := mutatorset.ReceiverDigest(u.ReceiverPreimage)
		receiverHex := hex.EncodeToString(receiverDigest[:])

		switch {
		case i >= utxosBefore && u.ConfirmedInBlock != nil && u.ConfirmedInBlock.Digest == digest:
			update := chainindex.BalanceUpdate{
				Height:         mined.Header.Height,
				BlockDigest:    digest,
				TimestampMs:    mined.Header.TimestampMs,
				DeltaSatoshis:  int64(u.Amount),
				RunningBalance: int64(running),
			}
			if err := index.RecordBalanceUpdate(context.Background(), receiverHex, update); err != nil {
				log.Printf("chain index: recording confirmation: %v", err)
			}
		case u.SpentInBlock != nil && u.SpentInBlock.Digest == digest:
			update := chainindex.BalanceUpdate{
				Height:         mined.Header.Height,
				BlockDigest:    digest,
				TimestampMs:    mined.Header.TimestampMs,
				DeltaSatoshis:  -int64(u.Amount),
				RunningBalance: int64(running),
			}
			if err := index.RecordBalanceUpdate(context.Background(), receiverHex, update); err != nil {
				log.Printf("chain index: recording spend: %v", err)
			}
		}
	}
}

// loadOrGenerateSecret restores the wallet's root key material from
// store.WalletSecretKey, or generates and persists a fresh one the
// first time a node starts against an empty data directory.
func loadOrGenerateSecret(kv store.KV) (wallet.Secret, error) {
	raw, err := kv.Get(store.WalletSecretKey())
	if err == nil {
		return wallet.DecodeSecret(raw)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return wallet.Secret{}, err
	}
	secret, err := wallet.GenerateSecret()
	if err != nil {
		return wallet.Secret{}, err
	}
	if err := kv.Put(store.WalletSecretKey(), secret.Encode()); err != nil {
		return wallet.Secret{}, err
	}
	return secret, nil
}
