// Package reconnect models the reload client's connection lifecycle as an
// explicit state machine.
//
// The transitions are:
//
//	disconnected --start|retry-fired--> connecting            (connect)
//	connecting   --opened-------------> open
//	connecting|open --connected-frame-> open, attempts = 0
//	open         --reload-frame-------> reloading             (reload)
//	connecting|open --failed----------> disconnected          (retry after attempts*base)
//	                                 or given-up              (when attempts == max)
//	any          --teardown-----------> stopped               (cancel timers, close)
//
// Backoff is linear and bounded. The "connected" frame only confirms
// liveness; only a "reload" frame reloads the page.
//
// The same table is implemented by the browser script in package client and
// driven from Go by package reloadclient.
package reconnect
