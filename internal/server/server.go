package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jpalmerr/appletdev/internal/inject"
	"github.com/jpalmerr/appletdev/internal/registry"
	"github.com/jpalmerr/appletdev/internal/sse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	sseWriteTimeout = 5 * time.Second

	// ReloadPath is the path of the reload channel.
	ReloadPath = "/__reload"

	// MetricsPath serves Prometheus metrics.
	MetricsPath = "/metrics"

	// DefaultKeepAlive is the interval between keepalive comments.
	DefaultKeepAlive = 30 * time.Second

	keepAliveComment = "keepalive"
)

// Config holds the HTTP-level settings of a [Server].
type Config struct {
	// Root is the directory files are served from.
	Root string

	// Entry is the applet document served at "/".
	Entry string

	// Host is the interface to bind. Empty binds all interfaces.
	Host string

	// Port is the TCP port. Zero picks a free port.
	Port int

	// KeepAlive is the keepalive comment interval on the reload channel.
	KeepAlive time.Duration

	// Script is injected into every served HTML document.
	Script []byte
}

// Server serves the applet, its static assets and the reload channel.
//
// Server provides:
//   - GET / (and /index.html, /<entry>): the entry document with the reload script injected
//   - GET /__reload: the Server-Sent Events reload channel
//   - GET /metrics: Prometheus metrics (when a gatherer is configured)
//   - anything else: static files under the root, 404 when missing
type Server struct {
	cfg      Config
	files    fs.FS
	registry *registry.Registry
	clock    clockwork.Clock
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	httpServer *http.Server
	listener   net.Listener
	draining   atomic.Bool
	pages      singleflight.Group
	cancelBase context.CancelFunc
}

// NewServer creates a new HTTP [Server] backed by reg.
//
// gatherer may be nil, in which case /metrics is not served. The server is
// not listening until [Server.Start] is called.
func NewServer(cfg Config, reg *registry.Registry, clock clockwork.Clock, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		cfg:      cfg,
		files:    os.DirFS(cfg.Root),
		registry: reg,
		clock:    clock,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Handler returns the routing handler. It is exposed for tests and for
// embedding the server in another mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ReloadPath, s.handleReload)
	if s.gatherer != nil {
		mux.Handle(MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", s.handleFiles)
	return s.refuseWhileDraining(mux)
}

// Start binds the listener and serves in a background goroutine.
//
// Start is non-blocking. Returns an error if the server fails to bind.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}
	s.listener = ln

	baseCtx, cancel := context.WithCancel(ctx)
	s.cancelBase = cancel

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from baseCtx so that Shutdown also ends
		// long-running reload streams
		BaseContext: func(_ net.Listener) context.Context {
			return baseCtx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before [Server.Start].
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Drain stops accepting new work: new requests get 503, keep-alive is
// disabled, and every open reload stream is closed.
func (s *Server) Drain() {
	if s.draining.Swap(true) {
		return
	}
	if s.httpServer != nil {
		s.httpServer.SetKeepAlivesEnabled(false)
	}
	s.registry.Close()
	s.logger.Info("http server draining")
}

// Shutdown releases the listening socket and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	defer s.cancelBase()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// refuseWhileDraining answers 503 once [Server.Drain] has been called.
func (s *Server) refuseWhileDraining(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.draining.Load() {
			w.Header().Set("Connection", "close")
			http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleFiles serves the entry document and static assets.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || name == "index.html" {
		name = s.cfg.Entry
	}

	if !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}

	info, err := fs.Stat(s.files, name)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if strings.EqualFold(path.Ext(name), ".html") {
		s.serveHTML(w, r, name)
		return
	}

	http.ServeFileFS(w, r, s.files, name)
}

// serveHTML serves an HTML document with the reload script injected.
// Concurrent renders of the same file share one read.
func (s *Server) serveHTML(w http.ResponseWriter, r *http.Request, name string) {
	v, err, _ := s.pages.Do(name, func() (any, error) {
		content, err := fs.ReadFile(s.files, name)
		if err != nil {
			return nil, err
		}
		return inject.Inject(content, s.cfg.Script), nil
	})
	if err != nil {
		http.NotFound(w, r)
		return
	}
	body := v.([]byte)

	w.Header().Set("Content-Type", mime.TypeByExtension(".html"))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		s.logger.Error("failed to write document", "file", name, "error", err)
	}
}

// handleReload serves the reload channel as a Server-Sent Events stream.
//
// The connection is registered, acknowledged with a "connected" frame and
// kept alive with comment frames until the client goes away, the server
// shuts down or a write fails. Cleanup runs exactly once on every path.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := newStreamSubscriber(uuid.NewString(), w, s.logger)
	if err := s.registry.Register(sub); err != nil {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	ticker := s.clock.NewTicker(s.cfg.KeepAlive)
	defer func() {
		ticker.Stop()
		s.registry.Unregister(sub)
		sub.release()
		s.logger.Debug("reload channel closed", "subscriber", sub.ID())
	}()

	s.logger.Debug("reload channel opened", "subscriber", sub.ID(), "remote", r.RemoteAddr)

	if err := s.registry.Deliver(sub, sse.Encode(sse.Connected)); err != nil {
		return
	}

	for {
		select {
		case <-ticker.Chan():
			if err := s.registry.Deliver(sub, sse.Comment(keepAliveComment)); err != nil {
				return
			}
		case <-sub.Done():
			// evicted after a failed write, or registry closed on drain
			return
		case <-r.Context().Done():
			// request context is derived from the server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
