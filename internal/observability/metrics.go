package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Commission engine cascades
	recalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_recalculations_total",
		Help: "Total commission cascades run, by trigger and outcome",
	}, []string{
		"trigger", // terms_changed, payments_generated, payment_overridden, broker_added, ...
		"outcome", // ok, configuration_error, error
	})

	paymentSplitsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_splits_written_total",
		Help: "PaymentSplit rows created, updated or deleted by the engine",
	}, []string{
		"op", // created, updated, deleted
	})

	percentNormalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_percent_normalizations_total",
		Help: "Percentages outside 0-100 that were rescaled by dividing by 100",
	}, []string{
		"source", // deal, commission_split
	})

	splitValidationMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_split_validation_mismatches_total",
		Help: "Stored payment/split values that differ from the recomputed value by more than one cent",
	})

	// HTTP
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// RecordRecalculation records one cascade run.
func RecordRecalculation(trigger, outcome string) {
	recalculationsTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordSplitsWritten records PaymentSplit writes.
func RecordSplitsWritten(op string, n int) {
	if n <= 0 {
		return
	}
	paymentSplitsWritten.WithLabelValues(op).Add(float64(n))
}

// RecordPercentNormalization records an out-of-range percentage that was rescaled.
func RecordPercentNormalization(source string) {
	percentNormalizations.WithLabelValues(source).Inc()
}

// RecordValidationMismatches records mismatches found by the split validator.
func RecordValidationMismatches(n int) {
	if n <= 0 {
		return
	}
	splitValidationMismatches.Add(float64(n))
}

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, route, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
