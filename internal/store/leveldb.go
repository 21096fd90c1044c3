package store

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore is the goleveldb-backed KV implementation: the concrete
// ordered byte store behind every keyspace in this package, and the
// node's only on-disk state outside the optional chainindex.
type LevelStore struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a leveldb database rooted at dir,
// the data_directory configuration option (§6 "Configuration").
func Open(dir string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &LevelStore{db: db}, nil
}

func (s *LevelStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return v, nil
}

func (s *LevelStore) Put(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	return nil
}

func (s *LevelStore) Delete(key []byte) error {
	if err := s.db.Delete(key, nil); err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

func (s *LevelStore) Range(prefix []byte, fn func(key, value []byte) bool) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if !fn(key, value) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("store: range: %w", err)
	}
	return nil
}

func (s *LevelStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
