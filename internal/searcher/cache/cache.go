// Package cache implements the query-result cache. Results are scoped to
// the index snapshot generation they were computed on, concurrent requests
// for the same uncached key share a single computation, and memory is
// bounded by an LRU over entry count and estimated bytes. An optional
// persisted tier (bolt or Redis) survives restarts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/metrics"
)

const storeTimeout = 2 * time.Second

// Outcome says how GetOrCompute produced its result.
type Outcome int

const (
	// OutcomeMiss means this call ran the computation.
	OutcomeMiss Outcome = iota
	// OutcomeHit means the result came from memory.
	OutcomeHit
	// OutcomeCoalesced means the call waited on another caller's
	// computation.
	OutcomeCoalesced
	// OutcomeStoreHit means the result came from the persisted tier.
	OutcomeStoreHit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMiss:
		return "miss"
	case OutcomeHit:
		return "hit"
	case OutcomeCoalesced:
		return "coalesced"
	case OutcomeStoreHit:
		return "store_hit"
	default:
		return "unknown"
	}
}

// ComputeFunc produces the result for a key against snap.
type ComputeFunc func(snap *index.Snapshot) (ranker.RankedResult, error)

// SnapshotSource yields the live snapshot; indexer.Engine implements it.
type SnapshotSource interface {
	Snapshot() *index.Snapshot
}

// Options configures a QueryCache. Zero ceilings mean unbounded; a zero
// WaitTimeout means callers wait as long as their context allows.
type Options struct {
	MaxEntries  int
	MaxBytes    int64
	WaitTimeout time.Duration
	Store       ResultStore
	Metrics     *metrics.Metrics
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Coalesced  int64  `json:"coalesced"`
	StoreHits  int64  `json:"store_hits"`
	Evictions  int64  `json:"evictions"`
	Corrupt    int64  `json:"corrupt"`
	Entries    int    `json:"entries"`
	Bytes      int64  `json:"bytes"`
	Generation uint64 `json:"generation"`
}

// QueryCache is safe for concurrent use.
type QueryCache struct {
	snapshots SnapshotSource
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
	group     singleflight.Group

	mu sync.Mutex
	// minGeneration rejects results computed on snapshots older than
	// the last invalidation.
	minGeneration uint64
	entries       *lru

	hits, misses, coalesced, storeHits, evictions, corrupt atomic.Int64
}

// New returns a QueryCache reading snapshots from src.
func New(src SnapshotSource, opts Options) *QueryCache {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &QueryCache{
		snapshots: src,
		opts:      opts,
		metrics:   m,
		logger:    slog.Default().With("component", "query-cache"),
		entries:   newLRU(opts.MaxEntries, opts.MaxBytes),
	}
}

type flightResult struct {
	value   ranker.RankedResult
	outcome Outcome
}

// GetOrCompute returns the cached result for key on the live snapshot, or
// computes it. At most one computation per (generation, key) runs at a
// time; concurrent callers wait for it and receive its result. A caller
// whose ctx ends, or whose WaitTimeout passes, stops waiting without
// affecting the computation or the other waiters.
func (c *QueryCache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (ranker.RankedResult, Outcome, error) {
	return c.GetOrComputeOn(ctx, c.snapshots.Snapshot(), key, compute)
}

// GetOrComputeOn is GetOrCompute pinned to snap, for callers that already
// inspected a snapshot and need the result to come from that same one.
// Results for a snapshot older than the last invalidation are returned but
// not cached.
func (c *QueryCache) GetOrComputeOn(ctx context.Context, snap *index.Snapshot, key Key, compute ComputeFunc) (ranker.RankedResult, Outcome, error) {
	if key.K <= 0 {
		return ranker.RankedResult{}, OutcomeMiss, apperrors.Invalidf("k must be positive, got %d", key.K)
	}
	if snap == nil {
		return ranker.RankedResult{}, OutcomeMiss, apperrors.ErrIndexNotReady
	}
	ek := entryKey{generation: snap.Generation, key: key}

	if v, ok := c.lookup(ek); ok {
		c.hits.Add(1)
		c.metrics.CacheHitsTotal.Inc()
		return v, OutcomeHit, nil
	}

	var leader bool
	ch := c.group.DoChan(ek.flightKey(), func() (any, error) {
		leader = true
		return c.fill(snap, ek, compute)
	})

	var timeout <-chan time.Time
	if c.opts.WaitTimeout > 0 {
		timer := time.NewTimer(c.opts.WaitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return ranker.RankedResult{}, OutcomeMiss, res.Err
		}
		fr := res.Val.(flightResult)
		if !leader {
			c.coalesced.Add(1)
			c.metrics.CacheCoalescedTotal.Inc()
			return fr.value, OutcomeCoalesced, nil
		}
		return fr.value, fr.outcome, nil
	case <-ctx.Done():
		return ranker.RankedResult{}, OutcomeMiss, ctx.Err()
	case <-timeout:
		return ranker.RankedResult{}, OutcomeMiss, fmt.Errorf("%w: waited %v for %s", apperrors.ErrTimeout, c.opts.WaitTimeout, key)
	}
}

// fill runs inside the flight. It re-checks memory, then the persisted
// tier, and only then computes.
func (c *QueryCache) fill(snap *index.Snapshot, ek entryKey, compute ComputeFunc) (res any, err error) {
	if v, ok := c.lookup(ek); ok {
		c.hits.Add(1)
		c.metrics.CacheHitsTotal.Inc()
		return flightResult{value: v, outcome: OutcomeHit}, nil
	}
	if v, ok := c.storeGet(snap, ek.key); ok {
		c.insert(ek, v)
		c.storeHits.Add(1)
		c.metrics.CacheHitsTotal.Inc()
		return flightResult{value: v, outcome: OutcomeStoreHit}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("query computation panicked", "key", ek.key.String(), "panic", r)
			err = fmt.Errorf("%w: computing %s: %v", apperrors.ErrInternal, ek.key, r)
		}
	}()
	c.misses.Add(1)
	c.metrics.CacheMissesTotal.Inc()
	v, err := compute(snap)
	if err != nil {
		return nil, err
	}
	c.insert(ek, v)
	c.storePut(snap, ek.key, v)
	return flightResult{value: v, outcome: OutcomeMiss}, nil
}

func (c *QueryCache) lookup(ek entryKey) (ranker.RankedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.get(ek)
	if !ok {
		return ranker.RankedResult{}, false
	}
	return e.value, true
}

func (c *QueryCache) insert(ek entryKey, v ranker.RankedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ek.generation < c.minGeneration {
		return
	}
	if n := c.entries.add(ek, v, time.Now()); n > 0 {
		c.evictions.Add(int64(n))
		c.metrics.CacheEvictionsTotal.Add(float64(n))
	}
	c.metrics.CacheEntries.Set(float64(c.entries.len()))
}

// Invalidate drops every in-memory entry and refuses late results from
// flights that started on an older snapshot. indexer.Engine calls it after
// each publish.
func (c *QueryCache) Invalidate() {
	var gen uint64
	if snap := c.snapshots.Snapshot(); snap != nil {
		gen = snap.Generation
	}
	c.mu.Lock()
	if gen > c.minGeneration {
		c.minGeneration = gen
	}
	dropped := c.entries.purge()
	c.mu.Unlock()
	c.metrics.CacheEntries.Set(0)
	c.logger.Info("cache invalidated", "entries_dropped", dropped, "generation", gen)
}

// Purge invalidates memory and also clears the persisted tier.
func (c *QueryCache) Purge(ctx context.Context) error {
	c.Invalidate()
	if c.opts.Store == nil {
		return nil
	}
	if err := c.opts.Store.Purge(ctx); err != nil {
		return fmt.Errorf("purging result store: %w", err)
	}
	return nil
}

// Stats returns current counters.
func (c *QueryCache) Stats() Stats {
	c.mu.Lock()
	entries, bytes, gen := c.entries.len(), c.entries.bytes, c.minGeneration
	c.mu.Unlock()
	if snap := c.snapshots.Snapshot(); snap != nil && snap.Generation > gen {
		gen = snap.Generation
	}
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Coalesced:  c.coalesced.Load(),
		StoreHits:  c.storeHits.Load(),
		Evictions:  c.evictions.Load(),
		Corrupt:    c.corrupt.Load(),
		Entries:    entries,
		Bytes:      bytes,
		Generation: gen,
	}
}

func storeKey(snap *index.Snapshot, k Key) string {
	return snap.Fingerprint + "/" + k.String()
}

func (c *QueryCache) storeGet(snap *index.Snapshot, k Key) (ranker.RankedResult, bool) {
	if c.opts.Store == nil || snap.Fingerprint == "" {
		return ranker.RankedResult{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	sk := storeKey(snap, k)
	v, ok, err := c.opts.Store.Get(ctx, sk)
	switch {
	case err == nil:
		return v, ok
	case errors.Is(err, apperrors.ErrCacheCorruption):
		c.corrupt.Add(1)
		c.metrics.CacheCorruptTotal.Inc()
		c.logger.Warn("discarding corrupt persisted entry", "key", sk, "error", err)
		if derr := c.opts.Store.Delete(ctx, sk); derr != nil {
			c.logger.Warn("deleting corrupt entry failed", "key", sk, "error", derr)
		}
	default:
		c.logger.Warn("result store read failed", "key", sk, "error", err)
	}
	return ranker.RankedResult{}, false
}

func (c *QueryCache) storePut(snap *index.Snapshot, k Key, v ranker.RankedResult) {
	if c.opts.Store == nil || snap.Fingerprint == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := c.opts.Store.Put(ctx, storeKey(snap, k), v); err != nil {
		c.logger.Warn("result store write failed", "key", k.String(), "error", err)
	}
}
