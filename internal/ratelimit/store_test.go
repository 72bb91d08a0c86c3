package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetOrCreate(t *testing.T) {
	store := NewStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	e := store.GetOrCreate("A", now, time.Minute)
	assert.Equal(t, 0, e.Count)
	assert.Equal(t, now.Add(time.Minute), e.ResetAt)

	store.Increment("A", now, time.Minute)

	// Live entry is returned unchanged.
	e = store.GetOrCreate("A", now.Add(30*time.Second), time.Minute)
	assert.Equal(t, 1, e.Count)
	assert.Equal(t, now.Add(time.Minute), e.ResetAt)

	// Expired entry is replaced at the exact reset instant.
	e = store.GetOrCreate("A", now.Add(time.Minute), time.Minute)
	assert.Equal(t, 0, e.Count)
	assert.Equal(t, now.Add(2*time.Minute), e.ResetAt)
}

func TestStore_Increment(t *testing.T) {
	store := NewStore()
	now := time.Now()

	for i := 1; i <= 3; i++ {
		e := store.Increment("A", now, time.Minute)
		assert.Equal(t, i, e.Count)
	}

	e := store.Increment("A", now.Add(2*time.Minute), time.Minute)
	assert.Equal(t, 1, e.Count, "expired window restarts at one")
}

func TestStore_CorruptEntryIsRebuilt(t *testing.T) {
	store := NewStoreWithShards(1)
	now := time.Now()

	store.shards[0].entries["A"] = &Entry{Count: -4, ResetAt: now.Add(time.Hour)}

	e := store.Increment("A", now, time.Minute)
	assert.Equal(t, 1, e.Count)
	assert.Equal(t, now.Add(time.Minute), e.ResetAt)
}

func TestStore_Sweep(t *testing.T) {
	store := NewStore()
	now := time.Now()

	store.Increment("short", now, time.Second)
	store.Increment("long", now, time.Hour)
	require.Equal(t, 2, store.Len())

	assert.Equal(t, 0, store.Sweep(now))
	assert.Equal(t, 1, store.Sweep(now.Add(time.Second)), "resetAt <= now is removed")
	assert.Equal(t, 1, store.Len())

	e := store.GetOrCreate("long", now.Add(time.Second), time.Hour)
	assert.Equal(t, 1, e.Count, "live entries survive the sweep")
}

func TestStore_SweepDoesNotAffectCorrectness(t *testing.T) {
	store := NewStore()
	now := time.Now()

	store.Increment("A", now, time.Second)
	store.Increment("A", now, time.Second)

	// Without a sweep, an expired entry is still replaced on access.
	e := store.Increment("A", now.Add(5*time.Second), time.Second)
	assert.Equal(t, 1, e.Count)
}

func TestNewStoreWithShards_Minimum(t *testing.T) {
	store := NewStoreWithShards(0)
	assert.Len(t, store.shards, 1)

	store.Increment("A", time.Now(), time.Minute)
	assert.Equal(t, 1, store.Len())
}

func TestStore_ConcurrentIncrement(t *testing.T) {
	store := NewStore()
	now := time.Now()

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Increment(fmt.Sprintf("key-%d", j%10), now, time.Minute)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 10, store.Len())
	for i := 0; i < 10; i++ {
		e := store.GetOrCreate(fmt.Sprintf("key-%d", i), now, time.Minute)
		assert.Equal(t, 200, e.Count)
	}
}
