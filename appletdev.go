package appletdev

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jpalmerr/appletdev/client"
	"github.com/jpalmerr/appletdev/internal/metrics"
	"github.com/jpalmerr/appletdev/internal/reconnect"
	"github.com/jpalmerr/appletdev/internal/registry"
	"github.com/jpalmerr/appletdev/internal/server"
	"github.com/jpalmerr/appletdev/internal/sse"
	"github.com/jpalmerr/appletdev/internal/watcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRoot  = "."
	defaultEntry = "index.html"
	defaultPort  = 4002

	// shutdownTimeout bounds how long in-flight requests may finish.
	shutdownTimeout = 5 * time.Second
)

// ReloadPath is the path of the reload channel.
const ReloadPath = server.ReloadPath

// DevServer serves an applet directory and reloads connected browser tabs
// when its HTML files change.
//
// The typical lifecycle is:
//
//	dev, err := appletdev.New(appletdev.WithRoot("."))
//	if err != nil {
//	    slog.Error("failed to create dev server", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	if err := dev.Start(ctx); err != nil { // blocks until ctx is cancelled
//	    os.Exit(1)
//	}
type DevServer struct {
	root      string
	entry     string
	host      string
	port      int
	debounce  time.Duration
	keepAlive time.Duration
	policy    reconnect.Policy
	logger    *slog.Logger
	clock     clockwork.Clock
	promReg   *prometheus.Registry
	metrics   *metrics.Metrics

	ready     chan struct{}
	readyOnce sync.Once
	mu        sync.Mutex
	addr      string
}

// New creates a [DevServer] with the given options.
//
// Defaults:
//   - Root: current directory
//   - Entry: index.html
//   - Port: 4002
//   - Debounce: 300ms
//   - Keepalive: 30s
//   - Reconnect: 10 attempts, 1s linear backoff
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*DevServer, error) {
	cfg := &devConfig{
		root:        defaultRoot,
		entry:       defaultEntry,
		port:        defaultPort,
		debounce:    watcher.DefaultDelay,
		keepAlive:   server.DefaultKeepAlive,
		maxAttempts: reconnect.DefaultMaxAttempts,
		baseBackoff: reconnect.DefaultBaseBackoff,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	policy := reconnect.Policy{MaxAttempts: cfg.maxAttempts, BaseBackoff: cfg.baseBackoff}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reconnect policy: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	promReg := cfg.registry
	if promReg == nil {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &DevServer{
		root:      cfg.root,
		entry:     cfg.entry,
		host:      cfg.host,
		port:      cfg.port,
		debounce:  cfg.debounce,
		keepAlive: cfg.keepAlive,
		policy:    policy,
		logger:    logger,
		clock:     clock,
		promReg:   promReg,
		metrics:   metrics.New(promReg),
		ready:     make(chan struct{}),
	}, nil
}

// Start serves and watches until ctx is cancelled.
//
// Start blocks. Returns nil on graceful shutdown, or an error if the root
// directory cannot be watched or the port cannot be bound.
//
// Shutdown happens in order: new requests are refused and open reload
// channels are closed, the file watcher is closed, then the listener is
// released.
func (d *DevServer) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	script, err := client.Script(client.Config{
		Endpoint:    ReloadPath,
		MaxAttempts: d.policy.MaxAttempts,
		BaseBackoff: d.policy.BaseBackoff,
	})
	if err != nil {
		return err
	}

	reg := registry.New(d.logger, d.metrics)
	srv := server.NewServer(server.Config{
		Root:      d.root,
		Entry:     d.entry,
		Host:      d.host,
		Port:      d.port,
		KeepAlive: d.keepAlive,
		Script:    script,
	}, reg, d.clock, d.promReg, d.logger)

	detector, err := watcher.New(d.root, func() { d.reloadAll(reg) }, watcher.Options{
		Delay:   d.debounce,
		Clock:   d.clock,
		Logger:  d.logger,
		Metrics: d.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", d.root, err)
	}

	if err := srv.Start(ctx); err != nil {
		_ = detector.Close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	d.setAddr(srv.Addr())
	d.logger.Info("appletdev serving",
		"url", "http://"+d.displayAddr()+"/",
		"root", d.root,
		"entry", d.entry,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return detector.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()

		d.logger.Info("shutting down", "step", "drain")
		srv.Drain()

		d.logger.Info("shutting down", "step", "close watcher")
		if err := detector.Close(); err != nil {
			d.logger.Warn("failed to close watcher", "error", err)
		}

		d.logger.Info("shutting down", "step", "release listener")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	d.logger.Info("appletdev stopped")
	return err
}

// reloadAll tells every connected tab to reload.
func (d *DevServer) reloadAll(reg *registry.Registry) {
	n := reg.Broadcast(sse.Encode(sse.Reload))
	d.logger.Info("reload broadcast", "clients", n)
}

// Ready is closed once the server is listening.
func (d *DevServer) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the bound address, or "" before the server is listening.
func (d *DevServer) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

func (d *DevServer) setAddr(addr string) {
	d.mu.Lock()
	d.addr = addr
	d.mu.Unlock()
	d.readyOnce.Do(func() { close(d.ready) })
}

// displayAddr renders the bound address with localhost for wildcard hosts.
func (d *DevServer) displayAddr() string {
	addr := d.Addr()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// Root returns the served directory.
func (d *DevServer) Root() string {
	return d.root
}

// Entry returns the file served at "/".
func (d *DevServer) Entry() string {
	return d.entry
}

// Port returns the configured port.
func (d *DevServer) Port() int {
	return d.port
}

// Reconnect returns the retry policy embedded in served pages.
func (d *DevServer) Reconnect() (maxAttempts int, baseBackoff time.Duration) {
	return d.policy.MaxAttempts, d.policy.BaseBackoff
}

// URL returns the address browsers should open.
func (d *DevServer) URL() string {
	if addr := d.Addr(); addr != "" {
		return "http://" + d.displayAddr() + "/"
	}
	return "http://localhost:" + strconv.Itoa(d.port) + "/"
}
