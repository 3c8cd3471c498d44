package appletdev

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// devConfig holds mutable state during DevServer construction.
type devConfig struct {
	root        string
	entry       string
	host        string
	port        int
	debounce    time.Duration
	keepAlive   time.Duration
	maxAttempts int
	baseBackoff time.Duration
	logger      *slog.Logger
	clock       clockwork.Clock
	registry    *prometheus.Registry
}

// Option configures a [DevServer] during construction. Options return an
// error if validation fails.
type Option func(*devConfig) error

// WithRoot sets the directory that is served and watched.
// Defaults to the current directory.
func WithRoot(dir string) Option {
	return func(cfg *devConfig) error {
		if dir == "" {
			return errors.New("root directory cannot be empty")
		}
		cfg.root = dir
		return nil
	}
}

// WithEntry sets the HTML file served at "/". It must be a file name inside
// the root directory. Defaults to index.html.
//
// Example:
//
//	dev, err := appletdev.New(
//	    appletdev.WithRoot("./applets"),
//	    appletdev.WithEntry("AI SimCity.html"),
//	)
func WithEntry(name string) Option {
	return func(cfg *devConfig) error {
		if name == "" {
			return errors.New("entry cannot be empty")
		}
		if strings.ContainsAny(name, `/\`) {
			return errors.New("entry must be a file name, not a path")
		}
		cfg.entry = name
		return nil
	}
}

// WithHost sets the interface to bind. Defaults to all interfaces.
func WithHost(host string) Option {
	return func(cfg *devConfig) error {
		cfg.host = host
		return nil
	}
}

// WithPort sets the HTTP port. Port 0 binds a free port, see [DevServer.Addr].
// Defaults to 4002.
//
// Returns an error if the port is outside 0-65535.
func WithPort(port int) Option {
	return func(cfg *devConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port must be between 0 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithDebounce sets the quiet period after the last qualifying file change
// before clients are reloaded. Defaults to 300ms.
func WithDebounce(d time.Duration) Option {
	return func(cfg *devConfig) error {
		if d <= 0 {
			return errors.New("debounce must be positive")
		}
		cfg.debounce = d
		return nil
	}
}

// WithKeepAlive sets the interval between keepalive comments on open reload
// channels. Defaults to 30s.
func WithKeepAlive(d time.Duration) Option {
	return func(cfg *devConfig) error {
		if d <= 0 {
			return errors.New("keepalive interval must be positive")
		}
		cfg.keepAlive = d
		return nil
	}
}

// WithReconnect sets the browser's retry policy: at most maxAttempts
// reconnects, waiting attempt × baseBackoff before each.
// Defaults to 10 attempts with a 1s base.
func WithReconnect(maxAttempts int, baseBackoff time.Duration) Option {
	return func(cfg *devConfig) error {
		if maxAttempts < 0 {
			return errors.New("reconnect attempts cannot be negative")
		}
		if baseBackoff <= 0 {
			return errors.New("reconnect backoff must be positive")
		}
		cfg.maxAttempts = maxAttempts
		cfg.baseBackoff = baseBackoff
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *devConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithClock replaces the clock driving debounce and keepalive timers.
// Intended for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *devConfig) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = clock
		return nil
	}
}

// WithMetricsRegistry registers the server's metrics in reg and serves reg
// on /metrics. By default a private registry with Go runtime collectors is
// used.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(cfg *devConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}
