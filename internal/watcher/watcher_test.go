package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/jpalmerr/appletdev/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQualifies(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"app.html", true},
		{"/tmp/site/AI SimCity.html", true},
		{"style.css", false},
		{"app.html.swp", false},
		{"app.html~", false},
		{"app.htm", false},
		{"html", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Qualifies(tt.name); got != tt.want {
				t.Errorf("Qualifies(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	_, err := New(missing, func() {}, Options{Logger: testLogger()})
	if err == nil {
		t.Fatal("New() expected error for missing directory, got nil")
	}
}

func newTestDetector(t *testing.T, clock clockwork.Clock, m *metrics.Metrics) (*Detector, chan struct{}) {
	t.Helper()
	fn, fired := counter()
	d, err := New(t.TempDir(), fn, Options{
		Delay:   testDelay,
		Clock:   clock,
		Logger:  testLogger(),
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, fired
}

func TestDetector_IgnoresNonQualifyingEvents(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.New(prometheus.NewRegistry())
	d, fired := newTestDetector(t, clock, m)

	events := []fsnotify.Event{
		{Name: "style.css", Op: fsnotify.Write},
		{Name: "app.js", Op: fsnotify.Create},
		{Name: "notes.txt", Op: fsnotify.Rename},
		{Name: "app.html", Op: fsnotify.Chmod},
		{Name: "app.html", Op: fsnotify.Remove},
	}
	for _, ev := range events {
		d.handleEvent(ev)
	}

	if d.debouncer.Pending() {
		t.Error("non-qualifying events armed the debouncer")
	}
	clock.Advance(testDelay * 2)
	expectNoFire(t, fired)

	if got := testutil.ToFloat64(m.FSEvents.WithLabelValues("ignored")); got != float64(len(events)) {
		t.Errorf("ignored events = %v, want %d", got, len(events))
	}
}

func TestDetector_QualifyingBurstCollapses(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.New(prometheus.NewRegistry())
	d, fired := newTestDetector(t, clock, m)

	d.handleEvent(fsnotify.Event{Name: "app.html", Op: fsnotify.Write})
	clock.Advance(40 * time.Millisecond)
	d.handleEvent(fsnotify.Event{Name: "other.html", Op: fsnotify.Create})
	clock.Advance(40 * time.Millisecond)
	d.handleEvent(fsnotify.Event{Name: "app.html", Op: fsnotify.Rename})

	clock.Advance(testDelay)
	expectFire(t, fired)
	expectNoFire(t, fired)

	if got := testutil.ToFloat64(m.Reloads); got != 1 {
		t.Errorf("reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FSEvents.WithLabelValues("qualifying")); got != 3 {
		t.Errorf("qualifying events = %v, want 3", got)
	}
}

func TestDetector_CloseCancelsPendingReload(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d, fired := newTestDetector(t, clock, nil)

	d.handleEvent(fsnotify.Event{Name: "app.html", Op: fsnotify.Write})
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	clock.Advance(testDelay * 2)
	expectNoFire(t, fired)
}

func TestDetector_RealFilesystem(t *testing.T) {
	dir := t.TempDir()
	fn, fired := counter()
	d, err := New(dir, fn, Options{Delay: 50 * time.Millisecond, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = d.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	path := filepath.Join(dir, "app.html")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("<html><body>v</body></html>"), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	expectFire(t, fired)

	// let any straggling events from the html writes settle
	drain := time.After(200 * time.Millisecond)
settle:
	for {
		select {
		case <-fired:
		case <-drain:
			break settle
		}
	}

	// non-qualifying write should not reload
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	select {
	case <-fired:
		t.Fatal("css change triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
