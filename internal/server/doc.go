// Package server provides the HTTP side of the dev server.
//
// It handles three routes:
//
//   - Reload channel: Server-Sent Events at "/__reload", one registry
//     subscriber per open tab, with a periodic keepalive comment
//   - Metrics: Prometheus exposition at "/metrics"
//   - Files: everything else is served from the root directory, with the
//     reload script injected into HTML pages
//
// Shutdown is two-phase: [Server.Drain] refuses new requests and closes
// every reload channel, then [Server.Shutdown] releases the listener.
//
// Users of the appletdev library should not need to interact with this
// package directly. The server is started by [appletdev.DevServer.Start].
package server
