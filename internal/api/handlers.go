package api

import (
	"context"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/gin-gonic/gin"

	"github.com/rawblock/utxo-node/internal/globalstate"
	"github.com/rawblock/utxo-node/internal/txkernel"
)

// sendDeadline bounds how long handleSend waits for a spendable
// selection and membership proofs to resolve (§5 "Cancellation &
// timeouts": the send-transaction path carries a 40-second deadline
// covering proof generation; §6 "send(...) → optional
// transaction_digest (deadline-bound)"; §8 scenario S6). A var, not a
// const, so tests can shrink it to exercise the timeout path without
// an actual 40-second wait.
var sendDeadline = 40 * time.Second

// handleHead serves head() → block_header (§6 "RPC surface").
func (h *APIHandler) handleHead(c *gin.Context) {
	gs := globalstate.Get()
	if gs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "node not yet initialized"})
		return
	}
	tip := gs.Tip()
	c.JSON(http.StatusOK, gin.H{
		"digest":      tip.MastHash().String(),
		"height":      tip.Header.Height,
		"timestampMs": tip.Header.TimestampMs,
		"difficulty":  tip.Header.Difficulty,
	})
}

// handleValidateAddress serves validate_address(addr_string, network)
// → optional receiving_address (§6). Addresses are the hex encoding of
// a generation spending key's compressed public key (§4.1 wallet
// DOMAIN STACK note on btcec).
func (h *APIHandler) handleValidateAddress(c *gin.Context) {
	addrHex := c.Query("address")
	networkStr := c.DefaultQuery("network", h.network.String())
	if networkStr != h.network.String() {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "network mismatch"})
		return
	}

	raw, err := hex.DecodeString(addrHex)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "not valid hex"})
		return
	}
	if _, err := btcec.ParsePubKey(raw); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "not a valid public key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "receivingAddress": addrHex})
}

// handleValidateAmount serves validate_amount(amount_string) →
// optional amount (§6), parsing a decimal coin-denominated string into
// satoshis with btcutil.NewAmount's IEEE-754-correct rounding.
func (h *APIHandler) handleValidateAmount(c *gin.Context) {
	amountStr := c.Query("amount")
	f, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "not a valid number"})
		return
	}
	amt, err := btcutil.NewAmount(f)
	if err != nil || amt < 0 {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "not a valid amount"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "satoshis": int64(amt)})
}

// handleAmountLeqSyncedBalance serves amount_leq_synced_balance(amount)
// → bool (§6).
func (h *APIHandler) handleAmountLeqSyncedBalance(c *gin.Context) {
	amountStr := c.Query("amount")
	f, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	amt, err := btcutil.NewAmount(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	h.mu.Lock()
	leq := amt <= h.wallet.SyncedUnspentAmount()
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"leq": leq})
}

// handleSend serves send(amount, address, fee) → optional
// transaction_digest (§6), deadline-bound per sendDeadline: input
// selection, membership-proof lookup, and unlock-script signing must
// resolve before the deadline or the request fails rather than hanging
// the RPC (§8 scenario S6).
//
// notices reports the same validation checkpoints the dashboard send
// flow narrates as it commits to each step in turn — "Validating
// input...", "Validated address; validating amount...", "Validated
// amount; checking against balance...", "Validated inputs;
// sending..." — ending in "Payment broadcast!" or one of the
// rejection notices ("Invalid address.", "Invalid amount.",
// "Insufficient balance.", "Could not send due to error.").
func (h *APIHandler) handleSend(c *gin.Context) {
	var req struct {
		Amount  float64 `json:"amount" binding:"required"`
		Address string  `json:"address" binding:"required"`
		Fee     float64 `json:"fee"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	notices := []string{"Validating input..."}

	raw, err := hex.DecodeString(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"notices": append(notices, "Invalid address.")})
		return
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"notices": append(notices, "Invalid address.")})
		return
	}
	notices = append(notices, "Validated address; validating amount...")

	amount, err := btcutil.NewAmount(req.Amount)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"notices": append(notices, "Invalid amount.")})
		return
	}
	fee, err := btcutil.NewAmount(req.Fee)
	if err != nil || fee < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"notices": append(notices, "Invalid amount.")})
		return
	}
	notices = append(notices, "Validated amount; checking against balance...")

	h.mu.Lock()
	synced := h.wallet.SyncedUnspentAmount()
	h.mu.Unlock()
	if amount+fee > synced {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"notices": append(notices, "Insufficient balance.")})
		return
	}
	notices = append(notices, "Validated inputs; sending...")

	ctx, cancel := context.WithTimeout(c.Request.Context(), sendDeadline)
	defer cancel()

	gs := globalstate.Get()
	if gs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"notices": append(notices, "Could not send due to error.")})
		return
	}

	result := make(chan any, 1)
	go func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		tx, err := h.wallet.BuildSpend(gs.MutatorSet().Clone(), gs.Tip().MastHash(), amount, fee, pub, time.Now().UnixMilli())
		if err != nil {
			result <- err
			return
		}
		result <- tx
	}()

	select {
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"notices": append(notices, "Could not send due to error."), "error": "send did not resolve before the deadline"})
	case r := <-result:
		if err, ok := r.(error); ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"notices": append(notices, "Could not send due to error."), "error": err.Error()})
			return
		}
		tx := r.(txkernel.Transaction)
		h.mempool.Insert(tx, uint64(len(tx.Kernel.Encode())))
		c.JSON(http.StatusOK, gin.H{
			"notices":           append(notices, "Payment broadcast!"),
			"transactionDigest": tx.Kernel.MastHash().String(),
		})
	}
}

// handleHistory serves history(range) → [balance_update] (§6),
// degrading to 503 when no secondary index is configured.
func (h *APIHandler) handleHistory(c *gin.Context) {
	if h.index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history index not configured"})
		return
	}

	receiverDigest := c.Query("address")
	if receiverDigest == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	fromHeight, _ := strconv.ParseUint(c.DefaultQuery("from", "0"), 10, 64)
	toHeight, err := strconv.ParseUint(c.DefaultQuery("to", "0"), 10, 64)
	if err != nil || toHeight == 0 {
		gs := globalstate.Get()
		if gs != nil {
			toHeight = gs.Tip().Header.Height
		}
	}

	updates, err := h.index.History(c.Request.Context(), receiverDigest, fromHeight, toHeight)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates})
}
