package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// errSubscriberClosed is returned by writes to a released subscriber.
var errSubscriberClosed = errors.New("subscriber closed")

// streamSubscriber is the registry.Subscriber for one SSE response.
//
// Writes are serialized and bounded by sseWriteTimeout so a stalled client
// cannot block a broadcast indefinitely.
type streamSubscriber struct {
	id     string
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger

	mu        sync.Mutex
	deadlines bool

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func newStreamSubscriber(id string, w http.ResponseWriter, logger *slog.Logger) *streamSubscriber {
	return &streamSubscriber{
		id:        id,
		w:         w,
		rc:        http.NewResponseController(w),
		logger:    logger,
		deadlines: true,
		done:      make(chan struct{}),
	}
}

func (s *streamSubscriber) ID() string { return s.id }

// Write sends one frame and flushes it to the client.
func (s *streamSubscriber) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return errSubscriberClosed
	}

	if s.deadlines {
		if err := s.rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
			// deadline not supported by underlying connection, continue without
			s.logger.Debug("sse write deadlines not supported", "subscriber", s.id, "error", err)
			s.deadlines = false
		}
	}

	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Close marks the subscriber dead and wakes its handler.
func (s *streamSubscriber) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

// Done is closed once the subscriber has been closed.
func (s *streamSubscriber) Done() <-chan struct{} {
	return s.done
}

// release closes the subscriber and waits for any in-flight write, after
// which the ResponseWriter is no longer touched.
func (s *streamSubscriber) release() {
	s.Close()
	s.mu.Lock()
	s.mu.Unlock() //nolint:staticcheck // empty critical section waits for writers
}
