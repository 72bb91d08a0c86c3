package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"starter/internal/ratelimit"
)

// Decision outcomes recorded on the ratelimit.decisions counter.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
)

// LimiterMetrics records rate limiter decisions and window store sizes. It
// implements ratelimit.Observer. Caller keys are never used as attributes.
type LimiterMetrics struct {
	decisions    metric.Int64Counter
	keys         metric.Int64ObservableGauge
	registration metric.Registration

	mu      sync.Mutex
	tracked []*ratelimit.Limiter
}

// NewLimiterMetrics creates the decision counter and the store size gauge on
// a meter from provider.
func NewLimiterMetrics(provider metric.MeterProvider) (*LimiterMetrics, error) {
	meter := provider.Meter("starter/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of admission decisions by limiter and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	keys, err := meter.Int64ObservableGauge(
		"ratelimit.keys",
		metric.WithDescription("Number of caller keys held in the limiter's window store"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}

	m := &LimiterMetrics{
		decisions: decisions,
		keys:      keys,
	}

	m.registration, err = meter.RegisterCallback(m.observeKeys, keys)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Observe records one decision.
func (m *LimiterMetrics) Observe(limiter string, d ratelimit.Decision) {
	outcome := OutcomeAllowed
	if !d.Allowed {
		outcome = OutcomeRejected
	}
	m.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("limiter", limiter),
		attribute.String("outcome", outcome),
	))
}

// Track adds limiters to the store size gauge.
func (m *LimiterMetrics) Track(limiters ...*ratelimit.Limiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked = append(m.tracked, limiters...)
}

func (m *LimiterMetrics) observeKeys(_ context.Context, o metric.Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.tracked {
		o.ObserveInt64(m.keys, int64(l.Size()),
			metric.WithAttributes(attribute.String("limiter", l.Config().Name)))
	}
	return nil
}

// Close unregisters the gauge callback.
func (m *LimiterMetrics) Close() error {
	return m.registration.Unregister()
}
