package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the payment-flow counters exposed on /metrics.
type Metrics struct {
	PaymentsSucceeded prometheus.Counter
	PaymentsFailed    *prometheus.CounterVec
	ChallengesStarted prometheus.Counter
	GatewayErrors     *prometheus.CounterVec
	AuthorizeDuration prometheus.Histogram
}

// NewMetrics registers the payment counters on reg. Tests pass a fresh
// prometheus.NewRegistry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PaymentsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkout_payments_succeeded_total",
			Help: "Orders that reached the paid state.",
		}),
		PaymentsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_payments_failed_total",
			Help: "Orders that reached the failed state, by failure category.",
		}, []string{"category"}),
		ChallengesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkout_3ds_challenges_total",
			Help: "Authorizations that required a 3-D Secure challenge.",
		}),
		GatewayErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_gateway_errors_total",
			Help: "Transport-level gateway failures, by provider.",
		}, []string{"gateway"}),
		AuthorizeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_authorize_duration_seconds",
			Help:    "Wall time of authorization calls against the gateway.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
