package ratelimit

import (
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		Name:        "test",
		Window:      60 * time.Second,
		MaxRequests: 5,
		Message:     "Too many requests, please try again later.",
	}
}

func newTestLimiter(t *testing.T, cfg Config, clock *fakeClock, opts ...Option) *Limiter {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	limiter, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(limiter.Close)
	return limiter
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"zero window", Config{Name: "x", Window: 0, MaxRequests: 1}, "window"},
		{"negative window", Config{Name: "x", Window: -time.Second, MaxRequests: 1}, "window"},
		{"zero max", Config{Name: "x", Window: time.Second, MaxRequests: 0}, "max_requests"},
		{"negative max", Config{Name: "x", Window: time.Second, MaxRequests: -3}, "max_requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := New(tt.cfg)
			assert.Nil(t, limiter)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, "x", cfgErr.Limiter)
		})
	}
}

func TestNew_UnsupportedSweepMode(t *testing.T) {
	_, err := New(testConfig(), WithSweep("hourly", 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "sweep_mode")
}

func TestNew_DefaultsKeyExtractor(t *testing.T) {
	limiter := newTestLimiter(t, testConfig(), newFakeClock())
	assert.Equal(t, RemoteAddr{}, limiter.Config().KeyExtractor)
}

func TestLimiter_WindowCeiling(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock)

	var remaining []int
	for i := 0; i < 5; i++ {
		d := limiter.Allow("A")
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, d.Limit)
		remaining = append(remaining, d.Remaining)
	}
	assert.Equal(t, []int{4, 3, 2, 1, 0}, remaining)

	d := limiter.Allow("A")
	assert.False(t, d.Allowed, "sixth request should be rejected")
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, clock.Now().Add(60*time.Second), d.ResetAt)
	assert.Equal(t, 60*time.Second, d.RetryAfter(clock.Now()))
}

func TestLimiter_ResetAfterWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock)

	for i := 0; i < 6; i++ {
		limiter.Allow("A")
	}

	clock.Advance(61 * time.Second)

	d := limiter.Allow("A")
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
	assert.Equal(t, clock.Now().Add(60*time.Second), d.ResetAt)
}

func TestLimiter_ResetBoundaryIsInclusive(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock)

	first := limiter.Allow("A")
	for i := 0; i < 5; i++ {
		limiter.Allow("A")
	}

	clock.Advance(59*time.Second + 999*time.Millisecond)
	assert.False(t, limiter.Allow("A").Allowed, "still inside the window")

	clock.Advance(time.Millisecond)
	require.Equal(t, first.ResetAt, clock.Now())

	d := limiter.Allow("A")
	assert.True(t, d.Allowed, "request at resetAt opens a new window")
	assert.Equal(t, 4, d.Remaining)
}

func TestLimiter_RemainingPinnedUnderOverage(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock)

	for i := 0; i < 5; i++ {
		limiter.Allow("A")
	}
	for i := 0; i < 10; i++ {
		d := limiter.Allow("A")
		assert.False(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
	}

	// Rejected requests are counted too.
	entry := limiter.store.GetOrCreate("A", clock.Now(), time.Minute)
	assert.Equal(t, 15, entry.Count)
}

func TestLimiter_RemainingMonotonic(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxRequests = 20
	limiter := newTestLimiter(t, cfg, clock)

	prev := cfg.MaxRequests
	for i := 1; i <= cfg.MaxRequests; i++ {
		clock.Advance(time.Second)
		d := limiter.Allow("A")
		require.True(t, d.Allowed)
		assert.LessOrEqual(t, d.Remaining, prev)
		assert.Equal(t, cfg.MaxRequests-i, d.Remaining)
		prev = d.Remaining
	}
	assert.Equal(t, 0, prev)
}

func TestLimiter_ResetConstantWithinWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock)

	first := limiter.Allow("A")
	for i := 0; i < 8; i++ {
		clock.Advance(5 * time.Second)
		d := limiter.Allow("A")
		assert.Equal(t, first.ResetAt, d.ResetAt)
		assert.Equal(t, first.Limit, d.Limit)
	}

	clock.Advance(30 * time.Second)
	d := limiter.Allow("A")
	assert.True(t, d.ResetAt.After(first.ResetAt), "reset changes only after rollover")
}

func TestLimiter_KeyIsolation(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock)

	for i := 0; i < 6; i++ {
		limiter.Allow("A")
		if i == 2 {
			d := limiter.Allow("B")
			assert.True(t, d.Allowed)
			assert.Equal(t, 4, d.Remaining)
		}
	}
	assert.False(t, limiter.Allow("A").Allowed)

	d := limiter.Allow("B")
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining, "B only sees its own two requests")
}

func TestLimiter_FixedWindowStraddle(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock)

	limiter.Allow("A")
	clock.Advance(59 * time.Second)
	for i := 0; i < 4; i++ {
		assert.True(t, limiter.Allow("A").Allowed)
	}
	clock.Advance(time.Second)
	admitted := 0
	for i := 0; i < 5; i++ {
		if limiter.Allow("A").Allowed {
			admitted++
		}
	}
	// Nine requests in two seconds: the window boundary resets the budget.
	assert.Equal(t, 5, admitted)
}

func TestLimiter_ConcurrentSameKey(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock)

	const callers = 10
	var (
		admitted atomic.Int64
		rejected atomic.Int64
		start    = make(chan struct{})
		wg       sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if limiter.Allow("C").Allowed {
				admitted.Add(1)
			} else {
				rejected.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(5), admitted.Load())
	assert.Equal(t, int64(5), rejected.Load())
}

func TestLimiter_ConcurrentManyKeys(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxRequests = 50
	limiter := newTestLimiter(t, cfg, clock)

	keys := []string{"k1", "k2", "k3", "k4"}
	admitted := make([]atomic.Int64, len(keys))

	var wg sync.WaitGroup
	for g := 0; g < 40; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				idx := (id + j) % len(keys)
				if limiter.Allow(keys[idx]).Allowed {
					admitted[idx].Add(1)
				}
			}
		}(g)
	}
	wg.Wait()

	for i := range keys {
		assert.Equal(t, int64(50), admitted[i].Load(), "key %s", keys[i])
	}
}

func TestLimiter_Check_UsesKeyExtractor(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxRequests = 1
	cfg.KeyExtractor = Header{Name: "X-API-Key"}
	limiter := newTestLimiter(t, cfg, clock)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", "abc")

	d := limiter.Check(req)
	assert.True(t, d.Allowed)
	assert.Equal(t, "header:abc", d.Key)
	assert.False(t, limiter.Check(req).Allowed)

	anon := httptest.NewRequest("GET", "/", nil)
	d = limiter.Check(anon)
	assert.True(t, d.Allowed)
	assert.Equal(t, UnknownKey, d.Key)
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []Decision
	limiters  []string
}

func (o *recordingObserver) Observe(limiter string, d Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.limiters = append(o.limiters, limiter)
	o.decisions = append(o.decisions, d)
}

func TestLimiter_Observer(t *testing.T) {
	obs := &recordingObserver{}
	cfg := testConfig()
	cfg.MaxRequests = 1
	limiter := newTestLimiter(t, cfg, newFakeClock(), WithObserver(obs))

	limiter.Allow("A")
	limiter.Allow("A")

	require.Len(t, obs.decisions, 2)
	assert.Equal(t, []string{"test", "test"}, obs.limiters)
	assert.True(t, obs.decisions[0].Allowed)
	assert.False(t, obs.decisions[1].Allowed)
}

// waitForSweep blocks until no inline sweep is running.
func waitForSweep(t *testing.T, l *Limiter) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !l.sweeping.Load()
	}, time.Second, time.Millisecond)
}

func TestLimiter_InlineSweep(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock, WithSweep(SweepInline, time.Minute))

	limiter.Allow("old-1")
	limiter.Allow("old-2")
	assert.Equal(t, 2, limiter.Size())
	waitForSweep(t, limiter)

	clock.Advance(2 * time.Minute)
	limiter.Allow("new")
	assert.Eventually(t, func() bool {
		return limiter.Size() == 1
	}, time.Second, time.Millisecond, "expired keys should be swept")
}

func TestLimiter_InlineSweep_OncePerInterval(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, testConfig(), clock, WithSweep(SweepInline, 10*time.Minute))

	limiter.Allow("A")
	waitForSweep(t, limiter)

	// A has expired, but the next sweep is not due yet.
	clock.Advance(2 * time.Minute)
	limiter.Allow("B")
	assert.False(t, limiter.sweeping.Load())
	assert.Equal(t, 2, limiter.Size())

	clock.Advance(9 * time.Minute)
	limiter.Allow("C")
	assert.Eventually(t, func() bool {
		return limiter.Size() == 1
	}, time.Second, time.Millisecond)
}

func TestLimiter_InlineSweep_Concurrent(t *testing.T) {
	cfg := testConfig()
	cfg.Window = time.Millisecond
	cfg.MaxRequests = 1000
	limiter, err := New(cfg, WithSweep(SweepInline, time.Millisecond))
	require.NoError(t, err)
	defer limiter.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				d := limiter.Allow(string(rune('a' + g)))
				assert.True(t, d.Allowed)
			}
		}(g)
	}
	wg.Wait()
	waitForSweep(t, limiter)
}

func TestLimiter_BackgroundSweep(t *testing.T) {
	cfg := testConfig()
	cfg.Window = 20 * time.Millisecond
	limiter, err := New(cfg, WithSweep(SweepBackground, 10*time.Millisecond))
	require.NoError(t, err)
	defer limiter.Close()

	limiter.Allow("ephemeral-key")
	assert.Equal(t, 1, limiter.Size())

	assert.Eventually(t, func() bool {
		return limiter.Size() == 0
	}, time.Second, 10*time.Millisecond, "expired key should be swept")
}

func TestLimiter_Close(t *testing.T) {
	limiter, err := New(testConfig())
	require.NoError(t, err)
	limiter.Close()
	// Should not panic on double close
	limiter.Close()
}

func TestConfig_WithOverrides(t *testing.T) {
	base := testConfig()

	same := base.WithOverrides(0, 0, "")
	assert.Equal(t, base, same)

	changed := base.WithOverrides(time.Hour, 7, "nope")
	assert.Equal(t, time.Hour, changed.Window)
	assert.Equal(t, 7, changed.MaxRequests)
	assert.Equal(t, "nope", changed.Message)
	assert.Equal(t, 60*time.Second, base.Window, "base is not modified")
}

func TestDecision_RetryAfter_NeverNegative(t *testing.T) {
	now := time.Now()
	d := Decision{ResetAt: now.Add(-time.Second)}
	assert.Equal(t, time.Duration(0), d.RetryAfter(now))
}
