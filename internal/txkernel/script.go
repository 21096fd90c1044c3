package txkernel

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
)

// LockScriptForPubKey builds the one lock-script template this module
// recognizes: push the receiving compressed public key, then
// OP_CHECKSIG (§1 "smart-contract execution beyond script-hash checks"
// stays a non-goal — this is a fixed template, not a general script
// interpreter).
func LockScriptForPubKey(pub *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(pub.SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// SignUnlockScript produces the scriptSig satisfying
// LockScriptForPubKey(priv.PubKey()) for msgHash: a single DER-encoded
// signature push.
func SignUnlockScript(priv *btcec.PrivateKey, msgHash Digest) ([]byte, error) {
	sig := ecdsa.Sign(priv, msgHash[:])
	return txscript.NewScriptBuilder().AddData(sig.Serialize()).Script()
}

// VerifyLockUnlock checks that unlockScript satisfies lockScript for
// msgHash, recognizing only the pay-to-pubkey template
// LockScriptForPubKey produces — the one script-hash lock/unlock check
// this module performs (§1).
func VerifyLockUnlock(lockScript, unlockScript []byte, msgHash Digest) bool {
	if txscript.GetScriptClass(lockScript) != txscript.PubKeyTy {
		return false
	}
	lockPushes, err := txscript.PushedData(lockScript)
	if err != nil || len(lockPushes) != 1 {
		return false
	}
	pub, err := btcec.ParsePubKey(lockPushes[0])
	if err != nil {
		return false
	}
	sigPushes, err := txscript.PushedData(unlockScript)
	if err != nil || len(sigPushes) != 1 {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigPushes[0])
	if err != nil {
		return false
	}
	return sig.Verify(msgHash[:], pub)
}
