// Package observability exposes prometheus instrumentation for the property
// ledger. Metrics ride the same event stream external indexers consume, so
// engines need no direct metrics dependency.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"estatechain/core/events"
)

// PropertyMetrics counts ledger activity segmented by event type.
type PropertyMetrics struct {
	payments *prometheus.CounterVec
	assets   *prometheus.CounterVec
	income   prometheus.Counter
	config   prometheus.Counter
}

var (
	propertyMetricsOnce sync.Once
	propertyRegistry    *PropertyMetrics
)

// Metrics returns the lazily-initialised property metrics registry.
func Metrics() *PropertyMetrics {
	propertyMetricsOnce.Do(func() {
		propertyRegistry = &PropertyMetrics{
			payments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "estate",
				Subsystem: "payments",
				Name:      "transitions_total",
				Help:      "Pending payment state transitions segmented by outcome.",
			}, []string{"outcome"}),
			assets: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "estate",
				Subsystem: "assets",
				Name:      "events_total",
				Help:      "Asset lifecycle events segmented by kind.",
			}, []string{"kind"}),
			income: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "estate",
				Subsystem: "income",
				Name:      "claims_total",
				Help:      "Successful income claims.",
			}),
			config: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "estate",
				Subsystem: "params",
				Name:      "updates_total",
				Help:      "Admin configuration updates.",
			}),
		}
		prometheus.MustRegister(
			propertyRegistry.payments,
			propertyRegistry.assets,
			propertyRegistry.income,
			propertyRegistry.config,
		)
	})
	return propertyRegistry
}

// Observe increments the counter matching the event type. Unknown event types
// are ignored.
func (m *PropertyMetrics) Observe(eventType string) {
	if m == nil {
		return
	}
	switch eventType {
	case events.TypePaymentInitiated:
		m.payments.WithLabelValues("initiated").Inc()
	case events.TypePaymentCompleted:
		m.payments.WithLabelValues("completed").Inc()
	case events.TypePaymentExpired:
		m.payments.WithLabelValues("expired").Inc()
	case events.TypePaymentCancelled:
		m.payments.WithLabelValues("cancelled").Inc()
	case events.TypeAssetMinted:
		m.assets.WithLabelValues("minted").Inc()
	case events.TypeAssetUpgraded:
		m.assets.WithLabelValues("upgraded").Inc()
	case events.TypeAssetTransferred:
		m.assets.WithLabelValues("transferred").Inc()
	case events.TypeAssetSoldBack:
		m.assets.WithLabelValues("soldback").Inc()
	case events.TypeIncomeClaimed:
		m.income.Inc()
	case events.TypeConfigUpdated:
		m.config.Inc()
	}
}

// EmitterFunc adapts a function to the events.Emitter interface.
type EmitterFunc func(events.Event)

// Emit implements events.Emitter.
func (f EmitterFunc) Emit(evt events.Event) { f(evt) }

// MetricsEmitter returns an emitter that records every event in the metrics
// registry and then forwards it to next. A nil next discards events after
// counting.
func MetricsEmitter(next events.Emitter) events.Emitter {
	metrics := Metrics()
	return EmitterFunc(func(evt events.Event) {
		if evt != nil {
			metrics.Observe(evt.EventType())
		}
		if next != nil {
			next.Emit(evt)
		}
	})
}
