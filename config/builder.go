package config

import (
	"log/slog"

	"github.com/jpalmerr/appletdev"
)

// BuildOptions converts parsed configuration into [appletdev.Option] values.
//
// The logger is passed through as-is; a nil logger leaves the library
// default in place.
func BuildOptions(cfg *Config, logger *slog.Logger) []appletdev.Option {
	opts := []appletdev.Option{
		appletdev.WithRoot(cfg.Root),
		appletdev.WithEntry(cfg.Entry),
		appletdev.WithHost(cfg.Host),
		appletdev.WithPort(cfg.Port),
		appletdev.WithDebounce(cfg.Debounce.Duration()),
		appletdev.WithKeepAlive(cfg.KeepAlive.Duration()),
		appletdev.WithReconnect(cfg.Reconnect.Attempts(), cfg.Reconnect.BaseBackoff.Duration()),
	}
	if logger != nil {
		opts = append(opts, appletdev.WithLogger(logger))
	}
	return opts
}
