// Command walletgen generates or loads a node's wallet secret without
// starting the rest of the node — the Go counterpart of the original
// implementation's standalone wallet_gen binary, which creates
// wallet.dat and prints its public key so an operator can fund an
// address before the node ever runs.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"log"

	"github.com/rawblock/utxo-node/internal/store"
	"github.com/rawblock/utxo-node/internal/wallet"
)

func main() {
	dataDir := flag.String("data-dir", "", "data directory the node will use (required)")
	flag.Parse()

	if *dataDir == "" {
		log.Fatal("FATAL: -data-dir is required")
	}

	kv, err := store.Open(*dataDir)
	if err != nil {
		log.Fatalf("FATAL: opening store at %s: %v", *dataDir, err)
	}
	defer kv.Close()

	secret, generated, err := loadOrGenerateSecret(kv)
	if err != nil {
		log.Fatalf("FATAL: wallet secret: %v", err)
	}

	if generated {
		log.Printf("Wallet stored in: %s", *dataDir)
	} else {
		log.Printf("Wallet loaded from: %s", *dataDir)
	}
	log.Printf("Wallet public key: %s", hex.EncodeToString(secret.ReceivingAddress().SerializeCompressed()))
}

// loadOrGenerateSecret mirrors cmd/node/main.go's own helper of the
// same name: restore existing key material if this data directory
// already has a wallet, otherwise generate and persist a fresh one.
func loadOrGenerateSecret(kv store.KV) (secret wallet.Secret, generated bool, err error) {
	raw, err := kv.Get(store.WalletSecretKey())
	if err == nil {
		secret, err = wallet.DecodeSecret(raw)
		return secret, false, err
	}
	if !errors.Is(err, store.ErrNotFound) {
		return wallet.Secret{}, false, err
	}

	secret, err = wallet.GenerateSecret()
	if err != nil {
		return wallet.Secret{}, false, err
	}
	if err := kv.Put(store.WalletSecretKey(), secret.Encode()); err != nil {
		return wallet.Secret{}, false, err
	}
	return secret, true, nil
}
