package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jpalmerr/appletdev/internal/metrics"
	"github.com/jpalmerr/appletdev/internal/sse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errBrokenPipe = errors.New("broken pipe")

// mockSubscriber records frames and optionally fails every write.
type mockSubscriber struct {
	id   string
	fail bool

	mu     sync.Mutex
	frames []string
	closed int
}

func newMockSubscriber(id string, fail bool) *mockSubscriber {
	return &mockSubscriber{id: id, fail: fail}
}

func (m *mockSubscriber) ID() string { return m.id }

func (m *mockSubscriber) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail || m.closed > 0 {
		return errBrokenPipe
	}
	m.frames = append(m.frames, string(frame))
	return nil
}

func (m *mockSubscriber) Close() {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
}

func (m *mockSubscriber) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.frames...)
}

func (m *mockSubscriber) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	r := New(testLogger(), nil)
	sub := newMockSubscriber("a", false)

	if err := r.Register(sub); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	r.Unregister(sub)
	if r.Len() != 0 {
		t.Errorf("Len() after Unregister = %d, want 0", r.Len())
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := New(testLogger(), m)
	a := newMockSubscriber("a", false)
	b := newMockSubscriber("b", false)
	_ = r.Register(a)
	_ = r.Register(b)

	r.Unregister(a)
	r.Unregister(a)
	r.Unregister(newMockSubscriber("unknown", false))

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if got := testutil.ToFloat64(m.Subscribers); got != 1 {
		t.Errorf("subscribers gauge = %v, want 1", got)
	}
}

func TestRegistry_RegisterDuplicateID(t *testing.T) {
	r := New(testLogger(), nil)
	_ = r.Register(newMockSubscriber("a", false))

	if err := r.Register(newMockSubscriber("a", false)); err == nil {
		t.Fatal("Register() duplicate id expected error, got nil")
	}
}

func TestRegistry_UnregisterIgnoresStaleHandleWithSameID(t *testing.T) {
	r := New(testLogger(), nil)
	first := newMockSubscriber("a", false)
	_ = r.Register(first)
	r.Unregister(first)

	second := newMockSubscriber("a", false)
	_ = r.Register(second)

	r.Unregister(first)
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (stale handle must not remove new subscriber)", r.Len())
	}
}

func TestRegistry_BroadcastAll(t *testing.T) {
	r := New(testLogger(), nil)
	subs := make([]*mockSubscriber, 5)
	for i := range subs {
		subs[i] = newMockSubscriber(fmt.Sprintf("tab-%d", i), false)
		_ = r.Register(subs[i])
	}

	frame := sse.Encode(sse.Reload)
	if n := r.Broadcast(frame); n != len(subs) {
		t.Errorf("Broadcast() delivered = %d, want %d", n, len(subs))
	}

	for _, s := range subs {
		got := s.received()
		if len(got) != 1 || got[0] != string(frame) {
			t.Errorf("%s received %q, want exactly one reload frame", s.id, got)
		}
	}
}

func TestRegistry_BroadcastPartialFailure(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		failed int
	}{
		{"none failing", 3, 0},
		{"one of three failing", 3, 1},
		{"all failing", 4, 4},
		{"half failing", 10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			r := New(testLogger(), m)

			var healthy, broken []*mockSubscriber
			for i := 0; i < tt.total; i++ {
				fail := i < tt.failed
				s := newMockSubscriber(fmt.Sprintf("tab-%d", i), fail)
				if fail {
					broken = append(broken, s)
				} else {
					healthy = append(healthy, s)
				}
				_ = r.Register(s)
			}

			delivered := r.Broadcast(sse.Encode(sse.Reload))

			if delivered != tt.total-tt.failed {
				t.Errorf("Broadcast() delivered = %d, want %d", delivered, tt.total-tt.failed)
			}
			if r.Len() != tt.total-tt.failed {
				t.Errorf("Len() = %d, want %d", r.Len(), tt.total-tt.failed)
			}
			for _, s := range healthy {
				if len(s.received()) != 1 {
					t.Errorf("%s received %d frames, want 1", s.id, len(s.received()))
				}
			}
			for _, s := range broken {
				if s.closeCount() == 0 {
					t.Errorf("%s not closed after failed write", s.id)
				}
			}
			if got := testutil.ToFloat64(m.DeliveryFailures); got != float64(tt.failed) {
				t.Errorf("delivery failures = %v, want %d", got, tt.failed)
			}
		})
	}
}

func TestRegistry_DeliverFailureEvicts(t *testing.T) {
	r := New(testLogger(), nil)
	sub := newMockSubscriber("a", true)
	_ = r.Register(sub)

	err := r.Deliver(sub, sse.Comment("keepalive"))
	if !errors.Is(err, errBrokenPipe) {
		t.Fatalf("Deliver() error = %v, want %v", err, errBrokenPipe)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}

	if err := r.Deliver(sub, sse.Comment("keepalive")); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Deliver() to evicted subscriber error = %v, want ErrNotRegistered", err)
	}
}

func TestRegistry_Close(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := New(testLogger(), m)
	a := newMockSubscriber("a", false)
	b := newMockSubscriber("b", false)
	_ = r.Register(a)
	_ = r.Register(b)

	r.Close()
	r.Close()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if a.closeCount() != 1 || b.closeCount() != 1 {
		t.Errorf("close counts = %d, %d, want 1, 1", a.closeCount(), b.closeCount())
	}
	if err := r.Register(newMockSubscriber("c", false)); !errors.Is(err, ErrClosed) {
		t.Errorf("Register() after Close error = %v, want ErrClosed", err)
	}
	if got := testutil.ToFloat64(m.Subscribers); got != 0 {
		t.Errorf("subscribers gauge = %v, want 0", got)
	}

	// writes to a closed subscriber must fail rather than succeed silently
	if err := a.Write([]byte("x")); err == nil {
		t.Error("Write() after Close succeeded")
	}
}

func TestRegistry_ConcurrentBroadcastAndChurn(t *testing.T) {
	r := New(testLogger(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newMockSubscriber(fmt.Sprintf("tab-%d", i), i%3 == 0)
			_ = r.Register(s)
			r.Broadcast(sse.Encode(sse.Reload))
			r.Unregister(s)
		}(i)
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
