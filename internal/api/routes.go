package api

import (
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/utxo-node/internal/chainindex"
	"github.com/rawblock/utxo-node/internal/config"
	"github.com/rawblock/utxo-node/internal/mempool"
	"github.com/rawblock/utxo-node/internal/mining"
	"github.com/rawblock/utxo-node/internal/wallet"
)

// APIHandler holds every collaborator the RPC surface of §6 dispatches
// to. index is nil-tolerant: a node started without DATABASE_URL
// serves every route except history, which degrades to 503.
type APIHandler struct {
	mu      sync.Mutex
	wallet  *wallet.Database
	mempool *mempool.Mempool
	control *mining.Controller
	index   *chainindex.Index
	wsHub   *Hub
	network config.Network
}

// requestID tags every request with a UUID for log correlation, echoed
// back in the X-Request-Id response header.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

// SetupRouter wires the §6 RPC surface onto a Gin engine, keeping the
// CORS, auth, and rate-limit scaffolding shape of the original router.
func SetupRouter(wallet *wallet.Database, mp *mempool.Mempool, control *mining.Controller, index *chainindex.Index, wsHub *Hub, cfg config.Config) *gin.Engine {
	r := gin.Default()
	r.Use(requestID())

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://example.net
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		wallet:  wallet,
		mempool: mp,
		control: control,
		index:   index,
		wsHub:   wsHub,
		network: cfg.Network,
	}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/head", handler.handleHead)
		pub.GET("/validate/address", handler.handleValidateAddress)
		pub.GET("/validate/amount", handler.handleValidateAmount)
	}

	// ── Protected endpoints (require bearer token if API_AUTH_TOKEN set) ──
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiter(cfg.RateLimitPerMinute, 10).Middleware())
	{
		auth.GET("/balance/leq", handler.handleAmountLeqSyncedBalance)
		auth.POST("/send", handler.handleSend)
		auth.GET("/history", handler.handleHistory)
	}

	return r
}

// handleHealth reports node status and which optional collaborators
// are wired, the service-discovery shape the teacher's own
// handleHealth carries.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "operational",
		"network":        h.network.String(),
		"indexConnected": h.index != nil,
	})
}

// BroadcastBlock pushes a NewBlockFound event to every subscribed
// websocket client, the node's counterpart of the teacher's
// BroadcastCoinJoinAlert.
func BroadcastBlock(wsHub *Hub) func(heightDigestHex string) {
	return func(heightDigestHex string) {
		payload := []byte(`{"type":"new_block","digest":"` + heightDigestHex + `"}`)
		wsHub.Broadcast(payload)
		log.Printf("[API] broadcast new_block %s", heightDigestHex)
	}
}
