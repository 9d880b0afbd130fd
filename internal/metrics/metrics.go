// Package metrics exposes gateway counters so infrastructure failures that
// are intentionally absorbed (success returned to the provider) still fire an
// internal signal.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcome labels.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

type Gateway struct {
	received        *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	storeFailures   prometheus.Counter
	notifyFailures  prometheus.Counter
	handlerDuration *prometheus.HistogramVec
}

func NewGateway(reg prometheus.Registerer) *Gateway {
	g := &Gateway{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_received_total",
			Help: "Inbound webhook deliveries by provider.",
		}, []string{"provider"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_outcome_total",
			Help: "Dispatch outcomes by provider and outcome.",
		}, []string{"provider", "outcome"}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_event_store_failures_total",
			Help: "Event store errors absorbed to keep acknowledging the provider.",
		}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_notify_failures_total",
			Help: "Best-effort broadcast failures.",
		}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webhook_handler_duration_seconds",
			Help:    "Handler execution time by provider and event type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "event_type"}),
	}
	if reg != nil {
		reg.MustRegister(g.received, g.outcomes, g.storeFailures, g.notifyFailures, g.handlerDuration)
	}
	return g
}

// Methods are nil-safe so the pipeline can run without metrics in tests.

func (g *Gateway) Received(provider string) {
	if g == nil {
		return
	}
	g.received.WithLabelValues(provider).Inc()
}

func (g *Gateway) Outcome(provider, outcome string) {
	if g == nil {
		return
	}
	g.outcomes.WithLabelValues(provider, outcome).Inc()
}

func (g *Gateway) StoreFailure() {
	if g == nil {
		return
	}
	g.storeFailures.Inc()
}

func (g *Gateway) NotifyFailure() {
	if g == nil {
		return
	}
	g.notifyFailures.Inc()
}

func (g *Gateway) ObserveHandler(provider, eventType string, d time.Duration) {
	if g == nil {
		return
	}
	g.handlerDuration.WithLabelValues(provider, eventType).Observe(d.Seconds())
}
