// Package kvstore implements a persistent key-value store for resolved
// chain metadata (IBC denom traces, channel info). Values are JSON; keys
// are caller-constructed strings with a per-cache prefix.
package kvstore

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/akrylysov/pogreb"

	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/metrics"
)

// A key in the KVStore.
type CacheKey []byte

// GenerateCacheKey builds a deterministic key from a cache name and its
// parameters. Identical inputs must produce identical keys or cached
// entries are never found again.
func GenerateCacheKey(cacheName string, params ...interface{}) CacheKey {
	key, err := json.Marshal([]interface{}{cacheName, params})
	if err != nil {
		// Params are always plain strings/ints in this codebase.
		panic(fmt.Sprintf("unmarshalable cache key params for %s: %v", cacheName, err))
	}
	return CacheKey(key)
}

// KVStore is a persistent byte-oriented store. Typed access goes through
// the generic helpers below.
type KVStore interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	// Clear removes every entry. For chain resets.
	Clear() error
	Close() error
}

type pogrebKVStore struct {
	db *pogreb.DB

	path   string
	logger *log.Logger

	// The store opens in a background goroutine (pogreb may reindex after
	// a crash, which takes a while); reads before that finishes behave as
	// misses and writes are dropped.
	initialized uint32
}

var _ KVStore = (*pogrebKVStore)(nil)

func (s *pogrebKVStore) isInitialized() bool {
	return atomic.LoadUint32(&s.initialized) == 1
}

func (s *pogrebKVStore) Get(key []byte) ([]byte, error) {
	if !s.isInitialized() {
		return nil, fmt.Errorf("kvstore: not initialized yet")
	}
	return s.db.Get(key)
}

func (s *pogrebKVStore) Has(key []byte) (bool, error) {
	if !s.isInitialized() {
		return false, nil
	}
	return s.db.Has(key)
}

func (s *pogrebKVStore) Put(key []byte, value []byte) error {
	if !s.isInitialized() {
		s.logger.Debug("skipping write to uninitialized KVStore", "key", string(key))
		return nil
	}
	return s.db.Put(key, value)
}

func (s *pogrebKVStore) Clear() error {
	if !s.isInitialized() {
		return nil
	}
	it := s.db.Items()
	for {
		key, _, err := it.Next()
		if err == pogreb.ErrIterationDone {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.db.Delete(key); err != nil {
			return err
		}
	}
}

func (s *pogrebKVStore) Close() error {
	if !s.isInitialized() {
		s.logger.Warn("skipping closing uninitialized KVStore")
		return nil
	}
	s.logger.Info("closing KVStore", "path", s.path)
	return s.db.Close()
}

func (s *pogrebKVStore) init() error {
	s.logger.Info("(re)opening KVStore", "path", s.path)
	db, err := pogreb.Open(s.path, &pogreb.Options{BackgroundSyncInterval: -1})
	if err != nil {
		s.logger.Error("failed to initialize pogreb store", "err", err)
		return err
	}
	s.db = db
	atomic.StoreUint32(&s.initialized, 1)
	s.logger.Info(fmt.Sprintf("KVStore has %d entries", db.Count()))
	return nil
}

// initTimeout bounds how long OpenKVStore blocks on a possible pogreb
// reindex before continuing without the cache.
const initTimeout = 30 * time.Second

// OpenKVStore opens (or creates) a store backed by a database at path.
func OpenKVStore(logger *log.Logger, path string) (KVStore, error) {
	store := &pogrebKVStore{
		logger: logger,
		path:   path,
	}

	initErrCh := make(chan error)
	go func() {
		initErrCh <- store.init()
	}()

	select {
	case err := <-initErrCh:
		if err != nil {
			return nil, err
		}
		return store, nil
	case <-time.After(initTimeout):
		// Likely a full reindex after a crash. Continue without the cache;
		// once the reindex finishes the store starts serving.
		logger.Warn("KVStore initialization timed out, continuing without cache while the database reindexes in the background")
		return store, nil
	}
}

// GetFromCacheOrCall fetches the value under key, or invokes fetch and
// caches its result. If volatile, the cache is only read on fetch failure
// (so callers always see fresh data when the source is reachable).
// Cache failures are never fatal; they degrade to calling fetch.
func GetFromCacheOrCall[V any](store KVStore, volatile bool, key CacheKey, cacheMetrics *metrics.CacheMetrics, cacheName string, fetch func() (*V, error)) (*V, error) {
	observe := func(status metrics.CacheReadStatus) {
		if cacheMetrics != nil {
			cacheMetrics.CacheReads(cacheName, status).Inc()
		}
	}

	tryCache := func() (*V, bool) {
		raw, err := store.Get(key)
		if err != nil || raw == nil {
			observe(metrics.CacheReadStatusMiss)
			return nil, false
		}
		var value V
		if err := json.Unmarshal(raw, &value); err != nil {
			observe(metrics.CacheReadStatusBadValue)
			return nil, false
		}
		observe(metrics.CacheReadStatusHit)
		return &value, true
	}

	if !volatile {
		if cached, ok := tryCache(); ok {
			return cached, nil
		}
	}

	fetched, err := fetch()
	if err != nil {
		if volatile {
			// Stale beats absent for volatile entries when the source is down.
			if cached, ok := tryCache(); ok {
				return cached, nil
			}
		}
		return nil, err
	}

	if raw, err := json.Marshal(fetched); err == nil {
		// A failed write is not fatal; the value was fetched fine.
		_ = store.Put(key, raw)
	}
	return fetched, nil
}
