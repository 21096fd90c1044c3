package mining

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/utxo-node/internal/block"
	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mempool"
	"github.com/rawblock/utxo-node/internal/mmr"
	"github.com/rawblock/utxo-node/internal/mutatorset"
	"github.com/rawblock/utxo-node/internal/txkernel"
)

// MaxTemplateBytes is the mempool byte budget a block template draws
// from (§4.5 "Template construction" step 2: "up to 20 MB").
const MaxTemplateBytes uint64 = 20 * 1024 * 1024

// mergeKernels deterministically folds the coinbase kernel and every
// selected mempool entry's kernel into one transaction kernel, in
// mempool-priority order (§4.5 step 3: "deterministically fold the
// selected mempool transactions into it via associative merge"; §4.1
// "Ordering": "across transactions in a block, the mempool-defined
// ordering is preserved").
func mergeKernels(coinbase txkernel.Kernel, entries []mempool.Entry) txkernel.Kernel {
	merged := coinbase
	for _, e := range entries {
		merged.Inputs = append(merged.Inputs, e.Transaction.Kernel.Inputs...)
		merged.Outputs = append(merged.Outputs, e.Transaction.Kernel.Outputs...)
		merged.Announcements = append(merged.Announcements, e.Transaction.Kernel.Announcements...)
		merged.Fee += e.Transaction.Kernel.Fee
	}
	return merged
}

// mergeWitness folds the coinbase output's opening and every mempool
// entry's own primitive witness into one combined witness over the
// merged kernel, in the same order mergeKernels folds their kernels.
// An entry whose witness is not a PrimitiveWitness (e.g. already a
// succinct ValidationLogic proof) cannot be folded this way and is
// dropped from the template; that is a template-construction limit,
// not a consensus rule.
func mergeWitness(coinbaseOutput txkernel.UtxoPreimage, entries []mempool.Entry, parentSet *mutatorset.Accumulator) txkernel.PrimitiveWitness {
	w := txkernel.PrimitiveWitness{
		OutputPreimages: []txkernel.UtxoPreimage{coinbaseOutput},
		MutatorSet:      parentSet,
	}
	for _, e := range entries {
		pw, ok := e.Transaction.Witness.(txkernel.PrimitiveWitness)
		if !ok {
			continue
		}
		w.InputPreimages = append(w.InputPreimages, pw.InputPreimages...)
		w.InputProofs = append(w.InputProofs, pw.InputProofs...)
		w.OutputPreimages = append(w.OutputPreimages, pw.OutputPreimages...)
	}
	return w
}

// buildCoinbase constructs the miner's reward transaction kernel for
// the given height (§4.5 step 3): a single output paying
// reward(height)+fees to the wallet's receiver preimage, no inputs. It
// also returns the output's opening, the preimage the template's
// combined witness attests to. The output's lock script is the
// pay-to-pubkey template for receiverPubKey, so the reward can later
// pass BuildSpend's unlock-script check the same as any other UTXO.
func buildCoinbase(height uint64, parentAccumulatorHash hashutil.Digest, fees btcutil.Amount, reward btcutil.Amount, receiverPreimage, senderRandomness hashutil.Digest, receiverPubKey *btcec.PublicKey, timestampMs int64) (txkernel.Kernel, txkernel.UtxoPreimage, error) {
	amount := reward + fees
	item := hashutil.HashFields(append(hashutil.EncodeUint64(uint64(amount)), hashutil.EncodeDigest(receiverPreimage)...))
	receiverDigest := mutatorset.ReceiverDigest(receiverPreimage)
	commitment := mutatorset.Commit(item, senderRandomness, receiverDigest)

	lockScript, err := txkernel.LockScriptForPubKey(receiverPubKey)
	if err != nil {
		return txkernel.Kernel{}, txkernel.UtxoPreimage{}, err
	}

	kernel := txkernel.Kernel{
		Outputs:        []mutatorset.AdditionRecord{{Commitment: commitment}},
		Coinbase:       &amount,
		TimestampMs:    timestampMs,
		MutatorSetHash: parentAccumulatorHash,
	}
	output := txkernel.UtxoPreimage{
		Item:             item,
		SenderRandomness: senderRandomness,
		ReceiverPreimage: receiverPreimage,
		LockScript:       lockScript,
	}
	return kernel, output, nil
}

// BuildTemplate assembles a candidate block header and body on top of
// parent (§4.5 "Template construction" steps 2-4). The returned
// header carries a zero nonce; SearchNonce fills it in.
func BuildTemplate(parent *block.Block, mp *mempool.Mempool, receiverPreimage, senderRandomness hashutil.Digest, receiverPubKey *btcec.PublicKey, params ValidationRewardFunc, now time.Time) (block.Header, block.Body, error) {
	all := mp.PriorityView(MaxTemplateBytes)
	// Only entries carrying an explicit, foldable witness can be merged
	// into the template's own combined witness; see mergeWitness.
	entries := make([]mempool.Entry, 0, len(all))
	for _, e := range all {
		if _, ok := e.Transaction.Witness.(txkernel.PrimitiveWitness); ok {
			entries = append(entries, e)
		}
	}
	fees := mempool.TotalFees(entries)
	height := parent.Header.Height + 1

	reward := params(height)
	parentAccHash := parent.Body.MutatorSetAccumulator.Hash()
	coinbaseKernel, coinbaseOutput, err := buildCoinbase(height, parentAccHash, fees, reward, receiverPreimage, senderRandomness, receiverPubKey, now.UnixMilli())
	if err != nil {
		return block.Header{}, block.Body{}, err
	}
	merged := mergeKernels(coinbaseKernel, entries)

	// §4.3 clause 7 applies removals then additions; the template's own
	// accumulator is built the same way so is_valid(template, parent)
	// holds once a nonce is found.
	replay := parent.Body.MutatorSetAccumulator.Clone()
	for _, rr := range merged.Inputs {
		replay.Remove(rr)
	}
	for _, ar := range merged.Outputs {
		replay.Add(ar)
	}

	blockMMR := mmr.NewFromLeaves(parent.Body.BlockMMR.Leaves())
	blockMMR.Append(parent.MastHash())
	lockFreeMMR := mmr.NewFromLeaves(parent.Body.LockFreeMMR.Leaves())

	header := block.Header{
		Version:           parent.Header.Version,
		Height:            height,
		PrevBlockDigest:   parent.MastHash(),
		TimestampMs:       now.UnixMilli(),
		MaxBlockSize:      parent.Header.MaxBlockSize,
		ProofOfWorkLine:   parent.Header.ProofOfWorkLine + parent.Header.Difficulty,
		ProofOfWorkFamily: parent.Header.ProofOfWorkLine + parent.Header.Difficulty,
		Difficulty:        block.DifficultyControl(parent.Header, now.UnixMilli()),
	}

	witness := mergeWitness(coinbaseOutput, entries, parent.Body.MutatorSetAccumulator.Clone())
	body := block.Body{
		Transaction:           txkernel.Transaction{Kernel: merged, Witness: witness},
		MutatorSetAccumulator: replay,
		LockFreeMMR:           lockFreeMMR,
		BlockMMR:              blockMMR,
	}
	return header, body, nil
}

// ValidationRewardFunc is the subsidy-at-height function BuildTemplate
// needs; block.RewardSchedule is the concrete type callers pass.
type ValidationRewardFunc = block.RewardSchedule
