package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dentalquote"

// QuoteMetrics records quote mutations, persistence health and discount usage.
type QuoteMetrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	persistence *prometheus.CounterVec
	discounts   *prometheus.CounterVec
}

// NewQuoteMetrics registers the quote metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		return &QuoteMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_operations_total",
		Help:      "Quote operations by action and result.",
	}, []string{"action", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "quote_operation_duration_seconds",
		Help:      "Duration of quote operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})
	persistence := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_persistence_failures_total",
		Help:      "Failed quote persistence calls by backend and operation.",
	}, []string{"backend", "op"})
	discounts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_discounts_applied_total",
		Help:      "Discount sources activated on quotes by kind.",
	}, []string{"kind"})
	reg.MustRegister(operations, duration, persistence, discounts)
	return &QuoteMetrics{
		operations:  operations,
		duration:    duration,
		persistence: persistence,
		discounts:   discounts,
	}
}

// ObserveOperation records the outcome and latency of one quote operation.
func (m *QuoteMetrics) ObserveOperation(action, result string, elapsed time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	action = normalizeLabel(action)
	m.operations.WithLabelValues(action, normalizeLabel(result)).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// IncPersistenceFailure counts a failed load or save against a backend.
func (m *QuoteMetrics) IncPersistenceFailure(backend, op string) {
	if m == nil || m.persistence == nil {
		return
	}
	m.persistence.WithLabelValues(normalizeLabel(backend), normalizeLabel(op)).Inc()
}

// IncDiscountApplied counts a discount source becoming active.
func (m *QuoteMetrics) IncDiscountApplied(kind string) {
	if m == nil || m.discounts == nil {
		return
	}
	m.discounts.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
