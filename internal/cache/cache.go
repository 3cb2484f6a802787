// Package cache implements the result cache: a bounded key-value store keyed
// by (source, normalized query) with lazy TTL expiry, LRU/lowest-score
// eviction and an optional per-entry reliability score.
//
// Caching is best-effort. Storage errors degrade to a miss and are never
// surfaced to the download path. Failures are never cached; only callers with
// a successful outcome call Put.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"radiobot/internal/logger"
)

// Policy tunes one cache instance.
type Policy struct {
	// TTL is the freshness window: entries older than this are treated as
	// absent and purged on the next read.
	TTL time.Duration
	// MaxEntries bounds the cache size; eviction removes the
	// lowest-score/least-recently-used entries first.
	MaxEntries int
	// MinScore, when positive, hides entries whose reliability score has
	// dropped below it, forcing a fresh search.
	MinScore float64
}

// Entry is one cached value with its bookkeeping.
type Entry[T any] struct {
	Value      T         `json:"value"`
	Score      float64   `json:"score"`
	Uses       int       `json:"uses"`
	LastAccess time.Time `json:"last_access"`
}

// Cache is an in-memory table mirrored best-effort to a durable Store.
type Cache[T any] struct {
	mu      sync.Mutex
	policy  Policy
	store   Store
	log     *logger.Logger
	entries map[string]*Entry[T]

	// saveMu guards the snapshot handed to the background writer. Writes
	// coalesce: the writer always persists the latest snapshot.
	saveMu  sync.Mutex
	pending map[string][]byte
	saving  bool
	wg      sync.WaitGroup

	// now is swappable in tests
	now func() time.Time
}

const storeTimeout = 5 * time.Second

// New builds a cache and loads whatever the store still holds. A store
// failure here only means starting cold.
func New[T any](policy Policy, store Store, log *logger.Logger) *Cache[T] {
	c := &Cache[T]{
		policy:  policy,
		store:   store,
		log:     log,
		entries: make(map[string]*Entry[T]),
		now:     time.Now,
	}
	c.load()
	return c
}

// Key derives the stable cache key for a (source, query) pair. The hash is
// truncated to 16 hex chars; collisions only cost a cache miss.
func Key(source, query string) string {
	h := fnv.New64a()
	h.Write([]byte(source + ":" + query))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Get returns the fresh, usable value for (source, query). Expired entries
// are deleted and reported absent; entries below the score threshold are
// reported absent without deletion so a later success can rehabilitate them.
// A hit refreshes the entry's last access time. Reads never touch the store;
// access bookkeeping reaches it with the next mutation.
func (c *Cache[T]) Get(source, query string) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(source, query)
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	if c.now().Sub(e.LastAccess) > c.policy.TTL {
		delete(c.entries, key)
		return zero, false
	}

	if c.policy.MinScore > 0 && e.Score < c.policy.MinScore {
		return zero, false
	}

	e.LastAccess = c.now()
	e.Uses++
	return e.Value, true
}

// Put stores a successful value under (source, query) with a fresh score.
func (c *Cache[T]) Put(source, query string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(source, query)
	if e, ok := c.entries[key]; ok {
		e.Value = value
		e.LastAccess = c.now()
		c.bumpScore(e, true)
	} else {
		c.entries[key] = &Entry[T]{
			Value:      value,
			Score:      1.0,
			Uses:       1,
			LastAccess: c.now(),
		}
	}
	c.evict()
	c.persist()
}

// MarkResult folds one use outcome into the entry's reliability score.
// Unknown keys are ignored.
func (c *Cache[T]) MarkResult(source, query string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(source, query)
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.LastAccess = c.now()
	c.bumpScore(e, success)
	c.persist()
}

// Len reports the number of live entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// bumpScore is a running average over uses, same update the use counter sees.
func (c *Cache[T]) bumpScore(e *Entry[T], success bool) {
	hit := 0.0
	if success {
		hit = 1.0
	}
	e.Score = (e.Score*float64(e.Uses) + hit) / float64(e.Uses+1)
	e.Uses++
}

// evict drops the overflow, worst entries first: lowest score, then oldest
// access.
func (c *Cache[T]) evict() {
	over := len(c.entries) - c.policy.MaxEntries
	if over <= 0 {
		return
	}

	type scored struct {
		key string
		e   *Entry[T]
	}
	all := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, scored{k, e})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].e.Score != all[j].e.Score {
			return all[i].e.Score < all[j].e.Score
		}
		return all[i].e.LastAccess.Before(all[j].e.LastAccess)
	})
	for _, s := range all[:over] {
		delete(c.entries, s.key)
	}
}

func (c *Cache[T]) load() {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	raw, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn("cache: failed to load store, starting cold: %v", err)
		return
	}
	for key, data := range raw {
		var e Entry[T]
		if err := json.Unmarshal(data, &e); err != nil {
			continue // corrupt entry, benign miss
		}
		c.entries[key] = &e
	}
}

// persist hands a snapshot of the table to the background writer. The caller
// must hold c.mu. Errors are logged and swallowed: the cache must never fail
// or stall the calling download path, even against a degraded store.
func (c *Cache[T]) persist() {
	if c.store == nil {
		return
	}

	raw := make(map[string][]byte, len(c.entries))
	for key, e := range c.entries {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		raw[key] = data
	}

	c.saveMu.Lock()
	c.pending = raw
	start := !c.saving
	c.saving = true
	c.saveMu.Unlock()

	if start {
		c.wg.Add(1)
		go c.flush()
	}
}

// flush writes pending snapshots until none is left. A snapshot queued while
// a save is in flight replaces the queue; only the latest state matters.
func (c *Cache[T]) flush() {
	defer c.wg.Done()
	for {
		c.saveMu.Lock()
		raw := c.pending
		c.pending = nil
		if raw == nil {
			c.saving = false
			c.saveMu.Unlock()
			return
		}
		c.saveMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := c.store.Save(ctx, raw)
		cancel()
		if err != nil {
			c.log.Warn("cache: failed to persist: %v", err)
		}
	}
}

// Close waits for the in-flight store write to finish. Shutdown calls it so
// the last mutation reaches the store.
func (c *Cache[T]) Close() {
	c.wg.Wait()
}
