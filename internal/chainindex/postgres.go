// Package chainindex is an optional secondary index over balance
// history, serving the history(range) RPC call with the kind of range
// query an ordered-by-key store (internal/store) is poor at. It is
// nil-tolerant throughout: callers that have no DATABASE_URL configured
// run with Index == nil and the history RPC degrades to "unavailable"
// rather than failing the node, the same optionality the teacher's
// cmd/engine/main.go gives db.PostgresStore ("if dbConn != nil { ... }").
package chainindex

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Index is the Postgres-backed balance-history read model.
type Index struct {
	pool *pgxpool.Pool
}

// Connect opens the connection pool and verifies it with a ping,
// mirroring db.Connect's shape.
func Connect(connStr string) (*Index, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("chainindex: unable to connect: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("chainindex: ping failed: %w", err)
	}
	log.Println("[ChainIndex] connected to PostgreSQL balance-history index")
	return &Index{pool: pool}, nil
}

// Close releases the connection pool.
func (idx *Index) Close() {
	if idx.pool != nil {
		idx.pool.Close()
	}
}

// InitSchema loads and executes schema.sql, creating balance_update if
// it does not already exist.
func (idx *Index) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/chainindex/schema.sql")
	if err != nil {
		return fmt.Errorf("chainindex: failed to read schema file: %w", err)
	}
	if _, err := idx.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("chainindex: failed to execute schema migration: %w", err)
	}
	log.Println("[ChainIndex] schema initialized")
	return nil
}

// BalanceUpdate is one entry of history(range) (§6 "RPC surface":
// "history(range) → [balance_update]").
type BalanceUpdate struct {
	Height         uint64
	BlockDigest    [32]byte
	TimestampMs    int64
	DeltaSatoshis  int64
	RunningBalance int64
}

// RecordBalanceUpdate appends one balance-changing event for a
// receiving address's owner, called by the wallet sync loop whenever
// Sync confirms or spends a monitored UTXO.
func (idx *Index) RecordBalanceUpdate(ctx context.Context, receiverDigestHex string, u BalanceUpdate) error {
	const sql = `
		INSERT INTO balance_update (receiver_digest, height, block_digest, timestamp_ms, delta_satoshis, running_balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (receiver_digest, height) DO UPDATE
		SET delta_satoshis = EXCLUDED.delta_satoshis, running_balance = EXCLUDED.running_balance;
	`
	_, err := idx.pool.Exec(ctx, sql, receiverDigestHex, u.Height, u.BlockDigest[:], u.TimestampMs, u.DeltaSatoshis, u.RunningBalance)
	if err != nil {
		return fmt.Errorf("chainindex: record balance update: %w", err)
	}
	return nil
}

// History returns every balance update for receiverDigestHex between
// heights [fromHeight, toHeight], ascending by height — the
// history(range) RPC's backing query.
func (idx *Index) History(ctx context.Context, receiverDigestHex string, fromHeight, toHeight uint64) ([]BalanceUpdate, error) {
	const sql = `
		SELECT height, block_digest, timestamp_ms, delta_satoshis, running_balance
		FROM balance_update
		WHERE receiver_digest = $1 AND height BETWEEN $2 AND $3
		ORDER BY height ASC;
	`
	rows, err := idx.pool.Query(ctx, sql, receiverDigestHex, fromHeight, toHeight)
	if err != nil {
		return nil, fmt.Errorf("chainindex: history query: %w", err)
	}
	defer rows.Close()

	var updates []BalanceUpdate
	for rows.Next() {
		var u BalanceUpdate
		var digest []byte
		if err := rows.Scan(&u.Height, &digest, &u.TimestampMs, &u.DeltaSatoshis, &u.RunningBalance); err != nil {
			return nil, fmt.Errorf("chainindex: scan history row: %w", err)
		}
		copy(u.BlockDigest[:], digest)
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chainindex: history rows: %w", err)
	}
	return updates, nil
}
