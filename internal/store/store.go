// Package store implements the persisted-state boundary of §6: an
// ordered byte store with a handful of fixed keyspaces (block index,
// block bodies, the latest-header singleton, and the wallet schema).
// Callers outside this package never see leveldb directly — the
// keyspace helpers here are the only place key layout is decided.
package store

import (
	"encoding/binary"

	"github.com/rawblock/utxo-node/internal/hashutil"
)

// KV is the opaque ordered byte store spec.md §1 treats as an external
// collaborator: get/put/delete plus a range iterator over a key
// prefix, ordered lexicographically by raw key bytes.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Range calls fn for every key with the given prefix, in ascending
	// key order, until fn returns false or the range is exhausted.
	Range(prefix []byte, fn func(key, value []byte) bool) error
	Close() error
}

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: key not found" }

// Key-space prefixes (§6 "Persisted state"). Each is one byte so the
// prefix never collides with a following big-endian integer or digest.
const (
	prefixBlockHeight byte = 0x01 // block_height -> block_digest
	prefixBlockDigest byte = 0x02 // block_digest -> block_bytes
	prefixLatestHeader byte = 0x03 // singleton("latest_header") -> header_bytes
	prefixMonitoredUTXO byte = 0x10 // monitored_utxos[i]
	prefixSyncLabel     byte = 0x11 // sync_label singleton
	prefixOutputCounter byte = 0x12 // output_counter singleton
	prefixWalletSecret  byte = 0x13 // wallet_secret singleton
)

// BlockHeightKey is the block_height -> block_digest keyspace key,
// raw fixed-width big-endian per §6 ("Keys are raw fixed-width
// big-endian for integers"). Multi-valued during a reorg window: a
// given height may have more than one digest appended under it, the
// caller (internal/chain, if present) distinguishes by stored value
// list rather than by key.
func BlockHeightKey(height uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixBlockHeight
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

// BlockDigestKey is the block_digest -> block_bytes keyspace key.
func BlockDigestKey(digest hashutil.Digest) []byte {
	key := make([]byte, 1+len(digest))
	key[0] = prefixBlockDigest
	copy(key[1:], digest[:])
	return key
}

// LatestHeaderKey is the singleton("latest_header") key.
func LatestHeaderKey() []byte {
	return []byte{prefixLatestHeader}
}

// MonitoredUTXOKey is one entry of the wallet's monitored_utxos[i]
// keyspace, indexed by its position in the wallet's append order.
func MonitoredUTXOKey(index uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixMonitoredUTXO
	binary.BigEndian.PutUint64(key[1:], index)
	return key
}

// MonitoredUTXOPrefix is the prefix every MonitoredUTXOKey shares, for
// ranging over the whole wallet.
func MonitoredUTXOPrefix() []byte {
	return []byte{prefixMonitoredUTXO}
}

// SyncLabelKey is the wallet's sync_label singleton.
func SyncLabelKey() []byte {
	return []byte{prefixSyncLabel}
}

// OutputCounterKey is the wallet's output_counter singleton.
func OutputCounterKey() []byte {
	return []byte{prefixOutputCounter}
}

// WalletSecretKey is the wallet's root-key-material singleton, the
// generation spending key and commitment seed a node must not
// regenerate across restarts (§3 "Wallet database" extended with the
// one fact a wallet schema needs beyond monitored UTXOs, sync label,
// and output counter: its own secret).
func WalletSecretKey() []byte {
	return []byte{prefixWalletSecret}
}
