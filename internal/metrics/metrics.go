package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OutcomeSuccess labels a quote that resolved with a result. Failures are
// labelled with their classification.
const OutcomeSuccess = "success"

// QuoteMetrics holds the quote engine collectors. A nil *QuoteMetrics is a
// valid no-op.
type QuoteMetrics struct {
	// Quote calls by provider, route and outcome
	RequestsTotal *prometheus.CounterVec
	// Wall time of quote calls
	Duration *prometheus.HistogramVec
	// Calls answered from the dedup layer instead of the provider
	DedupSharedTotal *prometheus.CounterVec
}

// NewQuoteMetrics registers the collectors on reg. A nil reg uses the
// default registerer.
func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &QuoteMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dexquote_requests_total",
				Help: "Quote calls by provider, route and outcome",
			},
			[]string{"provider", "route", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dexquote_request_duration_seconds",
				Help:    "Quote call duration",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
			},
			[]string{"provider", "route"},
		),
		DedupSharedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dexquote_dedup_shared_total",
				Help: "Quote calls served by the dedup layer",
			},
			[]string{"provider", "mode"},
		),
	}
}

// Observe records one finished quote call.
func (m *QuoteMetrics) Observe(provider, route, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(provider, route, outcome).Inc()
	m.Duration.WithLabelValues(provider, route).Observe(elapsed.Seconds())
}

// Shared records a call answered by the dedup layer.
func (m *QuoteMetrics) Shared(provider, mode string) {
	if m == nil {
		return
	}
	m.DedupSharedTotal.WithLabelValues(provider, mode).Inc()
}
