package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout and payment gateway outcomes.
type CheckoutMetrics struct {
	initiated  *prometheus.CounterVec
	finalized  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	qrPolls    prometheus.Histogram
	qrOutcomes *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	initiated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_initiated_total",
		Help: "Checkout sessions opened, by payment method.",
	}, []string{"method"})
	finalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_finalized_total",
		Help: "Checkout finalize attempts, by payment method and outcome.",
	}, []string{"method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_finalize_duration_seconds",
		Help:    "Duration of the finalize transaction in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	qrPolls := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "qr_payment_polls",
		Help:    "Number of status polls issued before a QR payment resolved.",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 40, 60},
	})
	qrOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_payment_outcomes_total",
		Help: "Terminal QR payment outcomes.",
	}, []string{"outcome"})
	reg.MustRegister(initiated, finalized, duration, qrPolls, qrOutcomes)
	return &CheckoutMetrics{
		initiated:  initiated,
		finalized:  finalized,
		duration:   duration,
		qrPolls:    qrPolls,
		qrOutcomes: qrOutcomes,
	}
}

// IncInitiated counts a newly opened checkout session.
func (c *CheckoutMetrics) IncInitiated(method string) {
	if c == nil || c.initiated == nil {
		return
	}
	c.initiated.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncFinalized counts a finalize attempt with its outcome.
func (c *CheckoutMetrics) IncFinalized(method, outcome string) {
	if c == nil || c.finalized == nil {
		return
	}
	c.finalized.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// ObserveFinalizeDuration records how long the finalize transaction took.
func (c *CheckoutMetrics) ObserveFinalizeDuration(method string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// ObserveQRPolls records the poll count of a resolved QR payment.
func (c *CheckoutMetrics) ObserveQRPolls(polls int) {
	if c == nil || c.qrPolls == nil {
		return
	}
	c.qrPolls.Observe(float64(polls))
}

// IncQROutcome counts a terminal QR payment outcome.
func (c *CheckoutMetrics) IncQROutcome(outcome string) {
	if c == nil || c.qrOutcomes == nil {
		return
	}
	c.qrOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
