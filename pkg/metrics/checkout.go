package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeUnauthenticated   = "unauthenticated"
	OutcomeValidation        = "validation"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeOrderFailed       = "order_failed"
	OutcomeOrderItemsFailed  = "order_items_failed"
	OutcomeStockSyncFailed   = "stock_sync_failed"
	OutcomeCartClearFailed   = "cart_clear_failed"
	OutcomeError             = "error"
)

// CheckoutMetrics records the outcome and latency of each checkout.
type CheckoutMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_total",
		Help:      "Checkout attempts partitioned by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_seconds",
		Help:      "Duration of checkout attempts in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(total, duration)
	return &CheckoutMetrics{
		total:    total,
		duration: duration,
	}
}

// Observe counts one checkout attempt and records its duration.
func (c *CheckoutMetrics) Observe(outcome string, duration time.Duration) {
	if c == nil || c.total == nil {
		return
	}
	label := normalizeLabel(outcome)
	c.total.WithLabelValues(label).Inc()
	c.duration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncCartClearFailed counts a post-commit cart clear failure.
func (c *CheckoutMetrics) IncCartClearFailed() {
	if c == nil || c.total == nil {
		return
	}
	c.total.WithLabelValues(OutcomeCartClearFailed).Inc()
}
