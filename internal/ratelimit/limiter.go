// Package ratelimit provides fixed-window admission control for HTTP requests.
// Each Limiter owns an independent in-memory window store keyed by a caller
// identity, counts every request against the caller's current window, and
// includes HTTP middleware that sets standard rate limit response headers.
//
// State is process-local. Several server instances behind a load balancer each
// keep their own counters, so the effective limit scales with the instance count.
package ratelimit

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config describes one named limiter. Values are immutable once passed to New.
type Config struct {
	Name         string        // Identifies the limiter in logs and metrics
	Window       time.Duration // Length of each counting window
	MaxRequests  int           // Admitted requests per window per key
	KeyExtractor KeyExtractor  // Caller identity; RemoteAddr when nil
	Message      string        // Rejection body text
}

// Validate reports a *ConfigError when the window or request ceiling is not positive.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return &ConfigError{Limiter: c.Name, Field: "window", Reason: "must be positive"}
	}
	if c.MaxRequests <= 0 {
		return &ConfigError{Limiter: c.Name, Field: "max_requests", Reason: "must be positive"}
	}
	return nil
}

// WithOverrides returns a copy of c with every positive or non-empty argument
// replacing the corresponding field.
func (c Config) WithOverrides(window time.Duration, maxRequests int, message string) Config {
	if window > 0 {
		c.Window = window
	}
	if maxRequests > 0 {
		c.MaxRequests = maxRequests
	}
	if message != "" {
		c.Message = message
	}
	return c
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Key       string
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time left until the window resets, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Observer receives every decision a limiter makes. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	Observe(limiter string, d Decision)
}

// SweepMode selects how expired window entries are reclaimed.
type SweepMode string

const (
	// SweepBackground runs the sweep from a ticker goroutine, off the request path.
	SweepBackground SweepMode = "background"
	// SweepInline starts the sweep from Check, at most once per interval. The
	// scan runs on its own goroutine, so requests never wait for it, but each
	// sweep still walks every key and suits small, trusted key populations only.
	SweepInline SweepMode = "inline"
)

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now as the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithStore injects the window store. Stores must not be shared between
// limiters; NewPresets refuses it.
func WithStore(store *Store) Option {
	return func(l *Limiter) {
		l.store = store
	}
}

// WithSweep sets the sweep mode and cadence. A non-positive interval means
// once per window length.
func WithSweep(mode SweepMode, interval time.Duration) Option {
	return func(l *Limiter) {
		l.sweepMode = mode
		l.sweepInterval = interval
	}
}

// WithObserver registers an observer for every decision.
func WithObserver(o Observer) Option {
	return func(l *Limiter) {
		l.observers = append(l.observers, o)
	}
}

// Limiter is a fixed-window admission engine. It is safe for concurrent use.
type Limiter struct {
	cfg       Config
	store     *Store
	now       func() time.Time
	observers []Observer

	sweepMode     SweepMode
	sweepInterval time.Duration
	inlineSweep   *rate.Limiter
	nextSweep     atomic.Int64 // unix nanos; inline sweeps are skipped before this
	sweeping      atomic.Bool

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// New validates cfg and creates a limiter. In background sweep mode it starts
// a goroutine that runs until Close.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.KeyExtractor == nil {
		cfg.KeyExtractor = RemoteAddr{}
	}

	l := &Limiter{
		cfg:       cfg,
		now:       time.Now,
		sweepMode: SweepBackground,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = NewStore()
	}
	if l.sweepInterval <= 0 {
		l.sweepInterval = cfg.Window
	}

	switch l.sweepMode {
	case SweepBackground:
		go l.sweepLoop()
	case SweepInline:
		l.inlineSweep = rate.NewLimiter(rate.Every(l.sweepInterval), 1)
	default:
		return nil, &ConfigError{Limiter: cfg.Name, Field: "sweep_mode", Reason: "unsupported mode " + string(l.sweepMode)}
	}

	return l, nil
}

// Check derives the caller key from r and counts the request against it.
func (l *Limiter) Check(r *http.Request) Decision {
	return l.Allow(l.cfg.KeyExtractor.Extract(r))
}

// Allow counts one request for key in its current window. Rejected requests
// are counted too, so Remaining stays pinned at zero under sustained overage.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()
	if l.inlineSweep != nil {
		l.maybeSweep(now)
	}

	entry := l.store.Increment(key, now, l.cfg.Window)

	remaining := l.cfg.MaxRequests - entry.Count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   entry.Count <= l.cfg.MaxRequests,
		Key:       key,
		Limit:     l.cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   entry.ResetAt,
	}

	for _, o := range l.observers {
		o.Observe(l.cfg.Name, d)
	}
	return d
}

// Config returns the limiter's configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Now returns the current time according to the limiter's clock.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// Size returns the number of keys currently held in the window store.
func (l *Limiter) Size() int {
	return l.store.Len()
}

// Close stops the background sweeper. It is safe to call more than once.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep(l.now())
		}
	}
}

// maybeSweep starts an inline sweep when one is due. The common path is a
// single atomic load; no lock is held while the store is scanned.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.UnixNano() < l.nextSweep.Load() || !l.inlineSweep.AllowN(now, 1) {
		return
	}
	l.nextSweep.Store(now.Add(l.sweepInterval).UnixNano())
	if !l.sweeping.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer l.sweeping.Store(false)
		l.sweep(now)
	}()
}

func (l *Limiter) sweep(now time.Time) {
	if removed := l.store.Sweep(now); removed > 0 {
		slog.Debug("Rate limit windows reclaimed",
			"limiter", l.cfg.Name,
			"removed", removed,
			"remaining_keys", l.store.Len(),
		)
	}
}
