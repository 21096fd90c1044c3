package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mutatorset"
	"github.com/rawblock/utxo-node/internal/txkernel"
)

// ErrMissingMembershipProof is returned when a selected input has no
// membership proof retained for the block the spend is built against —
// the wallet fell too far behind that block's retention window (§3
// "RetainedProofCount").
var ErrMissingMembershipProof = fmt.Errorf("wallet: no membership proof retained for this block")

// itemFor derives the canonical item digest for a plain (non-coinbase)
// output, the same H(amount, receiver_preimage) shape buildCoinbase
// uses for the miner's own output (§4.5 step 3).
func itemFor(amount btcutil.Amount, receiverPreimage Digest) Digest {
	fields := hashutil.EncodeUint64(uint64(amount))
	fields = append(fields, hashutil.EncodeDigest(receiverPreimage)...)
	return hashutil.HashFields(fields)
}

// BuildSpend assembles a spending transaction paying amount to
// receiverPubKey, with fee taken from the selected inputs and any
// remainder returned to the wallet's own next output index (§4.4
// "Input selection", §6 "send(amount, address, fee)"). tipDigest
// names the block the caller's spendableSet is the accumulator of;
// every selected input must carry a membership proof retained for
// that block, or the spend cannot be witnessed and BuildSpend fails.
// Each input's unlock script is signed over the assembled kernel's
// MAST hash with this wallet's spending key, satisfying the lock
// script recorded against that UTXO when it was received.
func (db *Database) BuildSpend(spendableSet *mutatorset.Accumulator, tipDigest Digest, amount, fee btcutil.Amount, receiverPubKey *btcec.PublicKey, timestampMs int64) (txkernel.Transaction, error) {
	selected, err := db.AllocateSufficientInputFunds(amount + fee)
	if err != nil {
		return txkernel.Transaction{}, err
	}

	receiverPreimage := hashutil.HashVarlen(receiverPubKey.SerializeCompressed())
	payeeLockScript, err := txkernel.LockScriptForPubKey(receiverPubKey)
	if err != nil {
		return txkernel.Transaction{}, fmt.Errorf("wallet: building payee lock script: %w", err)
	}

	var (
		inputs          []mutatorset.RemovalRecord
		inputPreimages  []txkernel.UtxoPreimage
		inputProofs     []mutatorset.MembershipProof
		outputs         []mutatorset.AdditionRecord
		outputPreimages []txkernel.UtxoPreimage
		sum             btcutil.Amount
	)
	for _, u := range selected {
		mp, ok := u.ProofsByBlock[tipDigest]
		if !ok {
			return txkernel.Transaction{}, fmt.Errorf("%w: utxo %x", ErrMissingMembershipProof, u.Item)
		}
		rr := spendableSet.Drop(u.Item, mp)
		inputs = append(inputs, rr)
		inputPreimages = append(inputPreimages, txkernel.UtxoPreimage{
			Item:             u.Item,
			SenderRandomness: u.SenderRandomness,
			ReceiverPreimage: u.ReceiverPreimage,
			LockScript:       u.LockScript,
		})
		inputProofs = append(inputProofs, mp)
		sum += u.Amount
	}

	payItem := itemFor(amount, receiverPreimage)
	paySenderRandomness := db.NextSenderRandomness()
	payReceiverDigest := mutatorset.ReceiverDigest(receiverPreimage)
	outputs = append(outputs, mutatorset.AdditionRecord{
		Commitment: mutatorset.Commit(payItem, paySenderRandomness, payReceiverDigest),
	})
	outputPreimages = append(outputPreimages, txkernel.UtxoPreimage{
		Item:             payItem,
		SenderRandomness: paySenderRandomness,
		ReceiverPreimage: receiverPreimage,
		LockScript:       payeeLockScript,
	})

	if change := sum - amount - fee; change > 0 {
		changeReceiverPreimage := db.Secret.ReceiverPreimageFor(db.OutputCounter)
		changeLockScript, err := txkernel.LockScriptForPubKey(db.Secret.ReceivingAddress())
		if err != nil {
			return txkernel.Transaction{}, fmt.Errorf("wallet: building change lock script: %w", err)
		}
		changeItem := itemFor(change, changeReceiverPreimage)
		changeSenderRandomness := db.NextSenderRandomness()
		changeReceiverDigest := mutatorset.ReceiverDigest(changeReceiverPreimage)
		outputs = append(outputs, mutatorset.AdditionRecord{
			Commitment: mutatorset.Commit(changeItem, changeSenderRandomness, changeReceiverDigest),
		})
		outputPreimages = append(outputPreimages, txkernel.UtxoPreimage{
			Item:             changeItem,
			SenderRandomness: changeSenderRandomness,
			ReceiverPreimage: changeReceiverPreimage,
			LockScript:       changeLockScript,
		})
	}

	kernel := txkernel.Kernel{
		Inputs:         inputs,
		Outputs:        outputs,
		Fee:            fee,
		TimestampMs:    timestampMs,
		MutatorSetHash: spendableSet.Hash(),
	}
	mastHash := kernel.MastHash()
	for i := range inputPreimages {
		unlockScript, err := txkernel.SignUnlockScript(db.Secret.SpendingKey, mastHash)
		if err != nil {
			return txkernel.Transaction{}, fmt.Errorf("wallet: signing input %d: %w", i, err)
		}
		inputPreimages[i].UnlockScript = unlockScript
	}

	witness := txkernel.PrimitiveWitness{
		InputPreimages:  inputPreimages,
		InputProofs:     inputProofs,
		OutputPreimages: outputPreimages,
		MutatorSet:      spendableSet,
	}
	return txkernel.Transaction{Kernel: kernel, Witness: witness}, nil
}
