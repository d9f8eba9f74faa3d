package llmproc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// persistentCache is a BadgerDB-backed TTL cache for LLM call results,
// using badger.Open/Update/View, keyed by stable MD5 cache keys and carrying
// a per-entry TTL via badger's native WithTTL.
type persistentCache struct {
	db *badger.DB
}

func openPersistentCache(path string) (*persistentCache, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open llm cache: %w", err)
	}
	return &persistentCache{db: db}, nil
}

func (c *persistentCache) get(key string, out interface{}) (bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read llm cache: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode cached llm result: %w", err)
	}
	return true, nil
}

func (c *persistentCache) set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode llm result for cache: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (c *persistentCache) close() error {
	return c.db.Close()
}
