package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records placement outcomes for the order pipeline.
type CheckoutMetrics struct {
	duration      *prometheus.HistogramVec
	attempts      *prometheus.CounterVec
	stockRejected prometheus.Counter
	compensations prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_placement_duration_seconds",
		Help:    "Duration of order placement attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_placement_attempts",
		Help: "Order placement attempts by outcome.",
	}, []string{"outcome"})
	stockRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_stock_rejections",
		Help: "Placements rejected because stock was insufficient.",
	})
	compensations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_stock_compensations",
		Help: "Stock releases issued after a failed order persist.",
	})
	reg.MustRegister(duration, attempts, stockRejected, compensations)
	return &CheckoutMetrics{
		duration:      duration,
		attempts:      attempts,
		stockRejected: stockRejected,
		compensations: compensations,
	}
}

// ObserveDuration records the duration of a placement attempt.
func (c *CheckoutMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncAttempt increments the attempt counter for the given outcome.
func (c *CheckoutMetrics) IncAttempt(outcome string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStockRejection increments the insufficient-stock rejection counter.
func (c *CheckoutMetrics) IncStockRejection() {
	if c == nil || c.stockRejected == nil {
		return
	}
	c.stockRejected.Inc()
}

// IncCompensation increments the compensation counter.
func (c *CheckoutMetrics) IncCompensation() {
	if c == nil || c.compensations == nil {
		return
	}
	c.compensations.Inc()
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
