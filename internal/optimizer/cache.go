package optimizer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantforge/strategy-optimizer/internal/monitoring"
	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// EvalCacheMax bounds the in-process evaluation cache.
const EvalCacheMax = 2000

// defaultCacheTTL is how long persisted evaluations stay valid.
const defaultCacheTTL = 24 * time.Hour

// EvalResult is the memoized outcome of one simulate-plus-summarize pass.
// Entries are immutable once written.
type EvalResult struct {
	Metrics MetricsPack   `json:"metrics"`
	Trades  []types.Trade `json:"trades"`
}

// EvalCache memoizes candidate evaluations in two tiers: a bounded in-process
// map with oldest-inserted eviction, and an optional external persistent tier
// with TTL and engine-version invalidation. It is safe for concurrent use
// across sessions; entries never change after insertion, so map-level
// exclusion is all the locking required.
//
// Eviction is FIFO by insertion order rather than LRU, which keeps eviction
// independent of access patterns and therefore deterministic per run.
type EvalCache struct {
	mu      sync.Mutex
	entries map[string]EvalResult
	order   []string
	max     int

	persistent PersistentCache
	ttl        time.Duration
}

// NewEvalCache builds a cache with the documented capacity. persistent may be
// nil, which disables the second tier.
func NewEvalCache(persistent PersistentCache) *EvalCache {
	return &EvalCache{
		entries:    make(map[string]EvalResult),
		max:        EvalCacheMax,
		persistent: persistent,
		ttl:        defaultCacheTTL,
	}
}

// CacheKey derives the composite evaluation key. The bar window is identified
// by its cheap signature (count|firstT|lastT), not by hashing bar contents.
func CacheKey(strategy string, bars []types.Bar, paramsHash, filterHash, execHash string) string {
	return strings.Join([]string{
		strategy,
		types.BarsSignature(bars),
		paramsHash,
		filterHash,
		execHash,
	}, "|")
}

// Get checks tier 1 then tier 2. A tier-2 hit is back-filled into tier 1.
// Stale or version-incompatible persisted entries and all persistence errors
// are treated as misses.
func (c *EvalCache) Get(ctx context.Context, key string) (EvalResult, bool) {
	c.mu.Lock()
	if res, ok := c.entries[key]; ok {
		c.mu.Unlock()
		monitoring.RecordCacheHit("memory")
		return res, true
	}
	c.mu.Unlock()

	if c.persistent == nil {
		monitoring.RecordCacheMiss()
		return EvalResult{}, false
	}

	entry, err := c.persistent.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("persistent cache read failed, treating as miss")
		monitoring.RecordCacheMiss()
		return EvalResult{}, false
	}
	if entry == nil ||
		entry.EngineVersion != EngineVersion ||
		entry.ExpiresAtMs <= time.Now().UnixMilli() {
		monitoring.RecordCacheMiss()
		return EvalResult{}, false
	}

	c.storeLocal(key, entry.Result)
	monitoring.RecordCacheHit("persistent")
	return entry.Result, true
}

// Put stores the result in both tiers. The persistent write is best-effort:
// its error is logged and discarded on purpose, so a broken external cache
// can slow evaluations down but never affect their correctness.
func (c *EvalCache) Put(ctx context.Context, key string, res EvalResult) {
	c.storeLocal(key, res)

	if c.persistent == nil {
		return
	}
	entry := &PersistedEval{
		EngineVersion: EngineVersion,
		ExpiresAtMs:   time.Now().Add(c.ttl).UnixMilli(),
		Result:        res,
	}
	if err := c.persistent.Put(ctx, key, entry); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("persistent cache write failed, result kept in memory only")
	}
}

// Len reports how many entries tier 1 currently holds.
func (c *EvalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *EvalCache) storeLocal(key string, res EvalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = res

	for len(c.entries) > c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}
