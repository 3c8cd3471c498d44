package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jpalmerr/appletdev/internal/metrics"
)

var (
	// ErrClosed is returned by [Registry.Register] after [Registry.Close].
	ErrClosed = errors.New("registry closed")

	// ErrNotRegistered is returned by [Registry.Deliver] for a subscriber
	// that is not (or no longer) in the registry.
	ErrNotRegistered = errors.New("subscriber not registered")
)

// Subscriber is a server-held write endpoint for one connected browser tab.
//
// Implementations must serialize concurrent Write calls and must return an
// error from Write once Close has been called.
type Subscriber interface {
	// ID uniquely identifies the underlying connection.
	ID() string

	// Write sends one complete frame.
	Write(frame []byte) error

	// Close releases the write endpoint. Safe to call multiple times.
	Close()
}

// Registry is the set of connected reload subscribers.
//
// Registry is safe for concurrent use. A subscriber whose write fails is
// unregistered and closed immediately; delivery errors never escape the
// registry other than through [Registry.Deliver]'s return value.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber
	closed bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an empty [Registry]. m may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		subs:    make(map[string]Subscriber),
		logger:  logger,
		metrics: m,
	}
}

// Register adds sub to the registry.
func (r *Registry) Register(sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, exists := r.subs[sub.ID()]; exists {
		return fmt.Errorf("subscriber %s already registered", sub.ID())
	}
	r.subs[sub.ID()] = sub
	r.metrics.SubscriberAdded()

	r.logger.Debug("subscriber registered", "subscriber", sub.ID(), "subscribers", len(r.subs))
	return nil
}

// Unregister removes sub. Unregistering an unknown or already removed
// subscriber is a no-op.
func (r *Registry) Unregister(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sub)
}

// removeLocked deletes sub if the registry still holds that exact subscriber.
func (r *Registry) removeLocked(sub Subscriber) bool {
	current, ok := r.subs[sub.ID()]
	if !ok || current != sub {
		return false
	}
	delete(r.subs, sub.ID())
	r.metrics.SubscriberRemoved()

	r.logger.Debug("subscriber unregistered", "subscriber", sub.ID(), "subscribers", len(r.subs))
	return true
}

// Deliver writes frame to a single registered subscriber. On write failure
// the subscriber is evicted and closed, and the write error is returned.
func (r *Registry) Deliver(sub Subscriber, frame []byte) error {
	r.mu.RLock()
	_, ok := r.subs[sub.ID()]
	r.mu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}

	if err := sub.Write(frame); err != nil {
		r.evict(sub, err)
		return err
	}
	return nil
}

// Broadcast writes frame to every registered subscriber and returns the
// number of successful deliveries.
//
// Delivery iterates over a snapshot: a failed write evicts that subscriber
// and delivery continues with the rest.
func (r *Registry) Broadcast(frame []byte) int {
	r.mu.RLock()
	snapshot := make([]Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		snapshot = append(snapshot, sub)
	}
	r.mu.RUnlock()

	r.metrics.Broadcast()

	delivered := 0
	for _, sub := range snapshot {
		if err := sub.Write(frame); err != nil {
			r.evict(sub, err)
			continue
		}
		delivered++
	}

	r.logger.Debug("broadcast complete",
		"delivered", delivered,
		"failed", len(snapshot)-delivered,
	)
	return delivered
}

// evict unregisters and closes a subscriber whose write failed.
func (r *Registry) evict(sub Subscriber, err error) {
	r.mu.Lock()
	removed := r.removeLocked(sub)
	r.mu.Unlock()

	sub.Close()

	if removed {
		r.metrics.DeliveryFailed()
		r.logger.Debug("subscriber evicted after failed write", "subscriber", sub.ID(), "error", err)
	}
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Close unregisters and closes every subscriber and rejects future
// registrations. Safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	subs := r.subs
	r.subs = make(map[string]Subscriber)
	for range subs {
		r.metrics.SubscriberRemoved()
	}
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	r.logger.Debug("registry closed", "closed_subscribers", len(subs))
}
