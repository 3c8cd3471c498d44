package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SubscriberAdded()
	m.SubscriberRemoved()
	m.Broadcast()
	m.DeliveryFailed()
	m.FSEvent(true)
	m.Reload()
}

func TestMetrics_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()
	m.Broadcast()
	m.FSEvent(true)
	m.FSEvent(false)
	m.FSEvent(false)

	expected := `
# HELP appletdev_reload_subscribers Number of browser tabs connected to the reload channel.
# TYPE appletdev_reload_subscribers gauge
appletdev_reload_subscribers 1
# HELP appletdev_broadcasts_total Number of frames broadcast to all subscribers.
# TYPE appletdev_broadcasts_total counter
appletdev_broadcasts_total 1
# HELP appletdev_fs_events_total Filesystem events observed by the watcher, by outcome.
# TYPE appletdev_fs_events_total counter
appletdev_fs_events_total{outcome="ignored"} 2
appletdev_fs_events_total{outcome="qualifying"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"appletdev_reload_subscribers",
		"appletdev_broadcasts_total",
		"appletdev_fs_events_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("second New() on the same registry did not panic")
		}
	}()
	New(reg)
}
