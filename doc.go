// Package appletdev is a live-reload development server for single-file
// HTML applets.
//
// It serves a directory of applets, injects a small reload script into every
// HTML page, and pushes a reload over Server-Sent Events to every open tab
// when an HTML file in the directory changes.
//
// # Quick Start
//
//	dev, _ := appletdev.New(appletdev.WithRoot("./applets"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	dev.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// appletdev uses the functional options pattern:
//
//	dev, err := appletdev.New(
//	    appletdev.WithRoot("./applets"),
//	    appletdev.WithEntry("AI SimCity.html"),
//	    appletdev.WithPort(4002),
//	    appletdev.WithDebounce(300 * time.Millisecond),
//	    appletdev.WithReconnect(10, time.Second),
//	)
//
// # Reload protocol
//
// Pages open an event stream at [ReloadPath]. The server sends a "connected"
// event on open, a keepalive comment every 30 seconds, and a "reload" event
// 300ms after the last burst of changes to *.html files in the root. Only the
// top level of the root is watched.
//
// When the stream breaks, the page retries with linear backoff (1s, 2s, 3s,
// ...) and gives up after ten failed attempts. A "connected" event resets the
// count.
//
// # Architecture
//
// appletdev consists of several internal packages (under internal/):
//
//   - internal/registry: the set of open reload channels, with broadcast
//   - internal/watcher: fsnotify directory watcher with a debounce timer
//   - internal/server: HTTP file server, reload channel and shutdown drain
//   - internal/reconnect: the client reconnection state machine
//   - internal/reloadclient: a Go follower of the reload channel
//   - internal/sse: event stream framing
//   - internal/inject: reload script injection
//   - internal/manifest: applet manifest builder
//   - internal/metrics: Prometheus instruments
//   - client: the embedded browser script
//
// The internal packages are not part of the public API and may change
// without notice.
package appletdev
