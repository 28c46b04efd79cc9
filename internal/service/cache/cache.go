// Package cache maps audio fingerprints to transcripts.
//
// A Cache is a bounded LRU with per-fingerprint request coalescing: concurrent
// misses for the same fingerprint share a single computation, and only a
// successful result is stored. An optional second-level Store (Redis) lets
// several replicas share transcripts.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/observability/metrics"
	"clinical-notes-service/internal/service/fingerprint"
)

// Source tells where a transcript returned by GetOrCompute came from.
type Source int

const (
	// SourceComputed means this caller's flight ran the computation.
	SourceComputed Source = iota
	// SourceMemory means the in-memory LRU held the transcript.
	SourceMemory
	// SourceStore means the second-level store held the transcript.
	SourceStore
	// SourceCoalesced means the caller joined another caller's computation.
	SourceCoalesced
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceComputed:
		return "computed"
	case SourceMemory:
		return "memory"
	case SourceStore:
		return "store"
	case SourceCoalesced:
		return "coalesced"
	default:
		return "unknown"
	}
}

// Hit reports whether the transcript was served from a cache tier.
func (s Source) Hit() bool {
	return s == SourceMemory || s == SourceStore
}

// ComputeFunc produces the transcript for a fingerprint on a miss.
type ComputeFunc func(ctx context.Context) (string, error)

// Config holds cache configuration.
type Config struct {
	// Capacity bounds the number of in-memory entries. Must be positive.
	Capacity int
	// Store is an optional second-level store. Nil disables it.
	Store Store
	// StoreTimeout bounds each second-level store call.
	StoreTimeout time.Duration
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries   int
	InFlight  int
	Hits      int64
	Misses    int64
	Coalesced int64
	Evictions int64
}

// Cache is safe for concurrent use. It is constructed once at startup and
// handed to the orchestrator; there is no package-level instance.
type Cache struct {
	entries      *lru.Cache[fingerprint.Fingerprint, string]
	store        Store
	storeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       zerolog.Logger

	mu      sync.Mutex
	flights map[fingerprint.Fingerprint]*flight

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
	evictions atomic.Int64
}

// New creates a cache bounded to cfg.Capacity entries.
func New(cfg Config) (*Cache, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("cache: capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 500 * time.Millisecond
	}

	c := &Cache{
		store:        cfg.Store,
		storeTimeout: cfg.StoreTimeout,
		metrics:      metrics.DefaultMetrics,
		logger:       logging.WithComponent("cache"),
		flights:      make(map[fingerprint.Fingerprint]*flight),
	}

	entries, err := lru.NewWithEvict(cfg.Capacity, func(fingerprint.Fingerprint, string) {
		c.evictions.Add(1)
		c.metrics.RecordEviction()
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Lookup returns the cached transcript for fp and marks it recently used.
func (c *Cache) Lookup(fp fingerprint.Fingerprint) (string, bool) {
	return c.entries.Get(fp)
}

// Insert stores transcript under fp in memory. A later Insert for the same
// fingerprint overwrites the earlier one.
func (c *Cache) Insert(fp fingerprint.Fingerprint, transcript string) {
	c.entries.Add(fp, transcript)
	c.metrics.SetCacheEntries(c.entries.Len())
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	inFlight := len(c.flights)
	c.mu.Unlock()

	return Stats{
		Entries:   c.entries.Len(),
		InFlight:  inFlight,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Evictions: c.evictions.Load(),
	}
}

// GetOrCompute returns the transcript for fp, running compute at most once
// across all concurrent callers for the same fingerprint.
//
// A caller whose ctx ends stops waiting and receives ctx.Err(). The shared
// computation keeps running while at least one caller still waits and is
// cancelled when the last one leaves. Failed or cancelled computations leave
// the cache untouched.
func (c *Cache) GetOrCompute(ctx context.Context, fp fingerprint.Fingerprint, compute ComputeFunc) (string, Source, error) {
	if transcript, ok := c.entries.Get(fp); ok {
		c.hits.Add(1)
		c.metrics.RecordCacheHit(SourceMemory.String())
		return transcript, SourceMemory, nil
	}

	f, joined := c.join(ctx, fp, compute)
	if joined {
		c.coalesced.Add(1)
		c.metrics.RecordCoalesced()
		c.logger.Debug().Str("fingerprint", fp.Short()).Msg("Joined in-flight transcription")
	}

	select {
	case <-f.done:
		c.leave(fp, f)
		source := f.source
		if joined && source == SourceComputed {
			source = SourceCoalesced
		}
		return f.result, source, f.err
	case <-ctx.Done():
		c.leave(fp, f)
		return "", SourceComputed, ctx.Err()
	}
}

// join registers the caller as a waiter on the flight for fp, starting one
// if none exists.
func (c *Cache) join(ctx context.Context, fp fingerprint.Fingerprint, compute ComputeFunc) (*flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flights[fp]; ok {
		f.waiters++
		return f, true
	}

	// The flight outlives any single caller, so it keeps request values but
	// not the caller's cancellation.
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{
		done:    make(chan struct{}),
		cancel:  cancel,
		waiters: 1,
	}
	c.flights[fp] = f
	go c.run(fctx, fp, f, compute)
	return f, false
}

// leave drops a waiter. The last waiter to leave an unfinished flight
// cancels it and unregisters it so the next caller starts afresh.
func (c *Cache) leave(fp fingerprint.Fingerprint, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	select {
	case <-f.done:
		return
	default:
	}
	f.cancel()
	if c.flights[fp] == f {
		delete(c.flights, fp)
	}
}

// run resolves a flight: memory, then store, then compute.
func (c *Cache) run(ctx context.Context, fp fingerprint.Fingerprint, f *flight, compute ComputeFunc) {
	defer f.cancel()
	logger := logging.WithFingerprint(c.logger, fp.Short())

	result, source, err := c.resolve(ctx, fp, compute, logger)

	c.mu.Lock()
	if c.flights[fp] == f {
		delete(c.flights, fp)
	}
	c.mu.Unlock()

	f.result, f.source, f.err = result, source, err
	close(f.done)
}

func (c *Cache) resolve(ctx context.Context, fp fingerprint.Fingerprint, compute ComputeFunc, logger zerolog.Logger) (result string, source Source, err error) {
	// An earlier flight may have finished between the caller's miss and now.
	if transcript, ok := c.entries.Get(fp); ok {
		c.hits.Add(1)
		c.metrics.RecordCacheHit(SourceMemory.String())
		return transcript, SourceMemory, nil
	}

	if transcript, ok := c.storeGet(ctx, fp, logger); ok {
		c.hits.Add(1)
		c.metrics.RecordCacheHit(SourceStore.String())
		c.Insert(fp, transcript)
		logger.Debug().Msg("Transcript served from store")
		return transcript, SourceStore, nil
	}

	c.misses.Add(1)
	c.metrics.RecordCacheMiss()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache: compute panicked: %v", r)
			logger.Error().Interface("panic", r).Msg("Transcript computation panicked")
		}
	}()

	start := time.Now()
	result, err = compute(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("Transcript computation failed, nothing cached")
		return "", SourceComputed, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Debug().Msg("Transcript computation cancelled, nothing cached")
		return "", SourceComputed, ctxErr
	}

	c.Insert(fp, result)
	c.storeSet(ctx, fp, result, logger)

	logger.Info().
		Dur("duration", time.Since(start)).
		Int("transcriptLen", len(result)).
		Msg("Transcript cached")
	return result, SourceComputed, nil
}

func (c *Cache) storeGet(ctx context.Context, fp fingerprint.Fingerprint, logger zerolog.Logger) (string, bool) {
	if c.store == nil {
		return "", false
	}
	sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	transcript, ok, err := c.store.Get(sctx, fp)
	if err != nil {
		c.metrics.RecordStoreError("get")
		logger.Warn().Err(err).Msg("Transcript store lookup failed")
		return "", false
	}
	return transcript, ok
}

func (c *Cache) storeSet(ctx context.Context, fp fingerprint.Fingerprint, transcript string, logger zerolog.Logger) {
	if c.store == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	if err := c.store.Set(sctx, fp, transcript); err != nil {
		c.metrics.RecordStoreError("set")
		logger.Warn().Err(err).Msg("Transcript store write failed")
	}
}

// flight is one in-progress resolution shared by every waiter for a
// fingerprint. waiters is guarded by Cache.mu; the result fields are written
// once before done is closed.
type flight struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int

	result string
	source Source
	err    error
}
