package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultShardCount = 32

// Entry is one key's counting window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// expired reports whether the window has ended at now. The boundary is
// inclusive: a request at exactly ResetAt opens a new window. Negative counts
// can only come from a bug and are treated the same way.
func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.ResetAt) || e.Count < 0
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// Store maps keys to window entries. Keys are spread over independently
// locked shards so unrelated callers do not contend on one mutex.
type Store struct {
	shards []*shard
}

// NewStore creates an empty store with the default shard count.
func NewStore() *Store {
	return NewStoreWithShards(defaultShardCount)
}

// NewStoreWithShards creates an empty store with n shards (at least one).
func NewStoreWithShards(n int) *Store {
	if n < 1 {
		n = 1
	}
	s := &Store{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// getOrCreateLocked must be called with sh.mu held.
func (sh *shard) getOrCreateLocked(key string, now time.Time, window time.Duration) *Entry {
	e, ok := sh.entries[key]
	if !ok || e.expired(now) {
		e = &Entry{Count: 0, ResetAt: now.Add(window)}
		sh.entries[key] = e
	}
	return e
}

// GetOrCreate returns a snapshot of the live entry for key, installing a fresh
// window when the key is unknown or its window has ended.
func (s *Store) GetOrCreate(key string, now time.Time, window time.Duration) Entry {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return *sh.getOrCreateLocked(key, now, window)
}

// Increment counts one request for key and returns the updated entry. The
// get-or-create and the increment happen under one lock, so concurrent
// requests can never both observe the same count.
func (s *Store) Increment(key string, now time.Time, window time.Duration) Entry {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e := sh.getOrCreateLocked(key, now, window)
	e.Count++
	return *e
}

// Sweep removes every entry whose window has ended at now and returns how
// many were removed. It only reclaims memory; Increment checks expiry itself.
func (s *Store) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.expired(now) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of entries, including expired ones not yet swept.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
