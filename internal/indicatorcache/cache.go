// Package indicatorcache implements the process-shared, fingerprint-keyed
// indicator signal cache of spec.md §4.4 (C4): a fixed-capacity bank of
// slots, each holding one indicator's long/short signal vectors across
// every period of one bar matrix, with at-most-once-build and write-once
// publication semantics.
//
// A real OS-level shared-memory segment (spec.md §9: "memory-mapped array
// with a lock-free slot allocator") only matters across separate processes;
// within one Go process the worker pool already shares its address space,
// so this cache realizes the same discipline with a mutex-guarded
// fingerprint→slot map and atomic.Bool-published slot readiness, per
// DESIGN.md's resolution of spec.md §9 open question (b).
package indicatorcache

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/haldorsen/fstratbt/internal/logging"
)

// Signal holds one indicator's long/short vectors for one period.
type Signal struct {
	Long  []bool
	Short []bool
}

type slot struct {
	ready   atomic.Bool
	signals []Signal // one per period, length == periodCount
	once    sync.Once
}

// Cache is a fingerprint→slot cache scoped to one strategy evaluation or
// optimizer generation (spec.md §4.4 Lifetime). It must be discarded
// before the bar matrix it was built against is reclaimed.
type Cache struct {
	log zerolog.Logger

	capacity    int
	periodCount int

	mu          sync.Mutex
	fingerprint map[string]int // fingerprint -> slot index
	slots       []*slot

	hits    atomic.Int64
	misses  atomic.Int64
	evicted atomic.Int64
}

// New returns a cache sized for cacheCapacity fingerprints across
// periodCount periods.
func New(cacheCapacity, periodCount int) *Cache {
	return &Cache{
		log:         logging.GetLogger("indicatorcache"),
		capacity:    cacheCapacity,
		periodCount: periodCount,
		fingerprint: make(map[string]int, cacheCapacity),
		slots:       make([]*slot, 0, cacheCapacity),
	}
}

// ComputeFunc computes the long/short signal vectors for one period, given
// the period index. It is supplied by the caller (typically the Entry
// Builder, delegating to internal/indicator.Compute).
type ComputeFunc func(periodIdx int) (long, short []bool, err error)

// Get returns the cached (or freshly computed and cached) Signal for
// fingerprint at periodIdx. If the cache has no room for a new fingerprint
// it returns ok=false and the caller must fall back to direct computation
// (spec.md §4.4 Eviction; §7 ErrCacheUnavailable is the caller's fallback
// signal, not returned here since falling back is not itself an error).
func (c *Cache) Get(fingerprint string, periodIdx int, compute ComputeFunc) (Signal, bool, error) {
	s, ok := c.acquireSlot(fingerprint)
	if !ok {
		c.misses.Add(1)
		return Signal{}, false, nil
	}

	s.once.Do(func() {
		signals := make([]Signal, c.periodCount)
		for p := 0; p < c.periodCount; p++ {
			long, short, err := compute(p)
			if err != nil {
				// Leave the slot unready; every caller falls back to direct
				// computation rather than observing a partially-built slot.
				c.log.Warn().Err(err).Str("fingerprint", fingerprint).Int("period", p).Msg("indicator cache build failed")
				return
			}
			signals[p] = Signal{Long: long, Short: short}
		}
		s.signals = signals
		s.ready.Store(true)
	})

	if !s.ready.Load() {
		c.misses.Add(1)
		return Signal{}, false, nil
	}
	c.hits.Add(1)
	return s.signals[periodIdx], true, nil
}

// acquireSlot returns the slot for fingerprint, allocating one if capacity
// allows. Lookup and allocation are serialized under mu (every Get takes it
// briefly); once assigned, slot contents are published write-once via the
// returned *slot's atomic ready flag, so the slot's data is read without mu.
func (c *Cache) acquireSlot(fingerprint string) (*slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.fingerprint[fingerprint]; ok {
		return c.slots[idx], true
	}
	if len(c.slots) >= c.capacity {
		c.evicted.Add(1)
		return nil, false
	}
	s := &slot{}
	c.slots = append(c.slots, s)
	c.fingerprint[fingerprint] = len(c.slots) - 1
	return s, true
}

// Stats reports cache hit/miss/eviction counters. The coordinator exports
// Hits and Misses as Prometheus counters; Evicted and InUse are not exported.
type Stats struct {
	Hits    int64
	Misses  int64
	Evicted int64
	InUse   int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	inUse := len(c.slots)
	c.mu.Unlock()
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Evicted: c.evicted.Load(),
		InUse:   inUse,
	}
}

// Len reports how many fingerprints currently occupy a slot.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
