package wallet

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mutatorset"
)

// Secret is the wallet's root key material: a generation spending key
// (used to detect and unlock owned outputs, §4.1 DOMAIN STACK note on
// btcec) and the commitment seed that seeds sender-randomness
// derivation (§4.4 "Sender-randomness derivation").
type Secret struct {
	SpendingKey    *btcec.PrivateKey
	CommitmentSeed Digest
}

// GenerateSecret produces a fresh wallet secret from system entropy,
// the one-time step a new wallet database takes at creation.
func GenerateSecret() (Secret, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return Secret{}, err
	}
	var seed Digest
	if _, err := rand.Read(seed[:]); err != nil {
		return Secret{}, err
	}
	return Secret{SpendingKey: key, CommitmentSeed: seed}, nil
}

// Encode serializes the secret as its 32-byte private scalar followed
// by the 32-byte commitment seed, the form store.WalletSecretKey
// persists so a node never regenerates spending authority across
// restarts.
func (s Secret) Encode() []byte {
	out := make([]byte, 64)
	copy(out[:32], s.SpendingKey.Serialize())
	copy(out[32:], s.CommitmentSeed[:])
	return out
}

// DecodeSecret reconstructs a Secret from Encode's output.
func DecodeSecret(data []byte) (Secret, error) {
	if len(data) != 64 {
		return Secret{}, fmt.Errorf("wallet: secret must be 64 bytes, got %d", len(data))
	}
	key, _ := btcec.PrivKeyFromBytes(data[:32])
	var seed Digest
	copy(seed[:], data[32:])
	return Secret{SpendingKey: key, CommitmentSeed: seed}, nil
}

// ReceivingAddress is the public half of the generation spending key,
// the address `validate_address` parses and `send` pays to (§6 RPC
// surface).
func (s Secret) ReceivingAddress() *btcec.PublicKey {
	return s.SpendingKey.PubKey()
}

// ReceiverPreimageFor derives the receiver preimage used when
// constructing an addition record payable to this wallet: H of
// outputIndex followed by the receiving public key's compressed
// encoding packed big-endian into 8-byte words.
func (s Secret) ReceiverPreimageFor(outputIndex uint64) Digest {
	pub := s.ReceivingAddress().SerializeCompressed()
	fields := hashutil.EncodeUint64(outputIndex)
	for i := 0; i < len(pub); i += 8 {
		end := i + 8
		if end > len(pub) {
			end = len(pub)
		}
		var word uint64
		for _, b := range pub[i:end] {
			word = word<<8 | uint64(b)
		}
		fields = append(fields, hashutil.FieldElement(word))
	}
	return hashutil.HashFields(fields)
}

// OwnsReceiverDigest reports whether receiverDigest was produced by
// this wallet's own receiver preimage at some output index, up to a
// bounded lookahead window — the check the sync algorithm uses to
// decide "if the added output is ours" (§4.4 step 2).
func (s Secret) OwnsReceiverDigest(receiverDigest Digest, lookahead uint64) (uint64, bool) {
	for i := uint64(0); i < lookahead; i++ {
		preimage := s.ReceiverPreimageFor(i)
		if mutatorset.ReceiverDigest(preimage) == receiverDigest {
			return i, true
		}
	}
	return 0, false
}
