// Package metrics defines the Prometheus collectors exported by the dev
// server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "appletdev"

// Metrics groups the live-reload collectors.
//
// A nil *Metrics is valid and records nothing, so packages can accept one
// without nil checks at every call site.
type Metrics struct {
	Subscribers      prometheus.Gauge
	Broadcasts       prometheus.Counter
	DeliveryFailures prometheus.Counter
	FSEvents         *prometheus.CounterVec
	Reloads          prometheus.Counter
}

// New registers the collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reload_subscribers",
			Help:      "Number of browser tabs connected to the reload channel.",
		}),
		Broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Number of frames broadcast to all subscribers.",
		}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Number of subscriber writes that failed and evicted the subscriber.",
		}),
		FSEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fs_events_total",
			Help:      "Filesystem events observed by the watcher, by outcome.",
		}, []string{"outcome"}),
		Reloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounced_reloads_total",
			Help:      "Reload notifications emitted after debouncing.",
		}),
	}
}

// SubscriberAdded increments the subscriber gauge.
func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.Subscribers.Inc()
	}
}

// SubscriberRemoved decrements the subscriber gauge.
func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.Subscribers.Dec()
	}
}

// Broadcast counts one broadcast call.
func (m *Metrics) Broadcast() {
	if m != nil {
		m.Broadcasts.Inc()
	}
}

// DeliveryFailed counts one failed subscriber write.
func (m *Metrics) DeliveryFailed() {
	if m != nil {
		m.DeliveryFailures.Inc()
	}
}

// FSEvent counts a filesystem event as "qualifying" or "ignored".
func (m *Metrics) FSEvent(qualifying bool) {
	if m == nil {
		return
	}
	outcome := "ignored"
	if qualifying {
		outcome = "qualifying"
	}
	m.FSEvents.WithLabelValues(outcome).Inc()
}

// Reload counts one debounced reload.
func (m *Metrics) Reload() {
	if m != nil {
		m.Reloads.Inc()
	}
}
