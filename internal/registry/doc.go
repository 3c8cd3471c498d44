// Package registry holds the set of browser tabs subscribed to the reload
// channel and fans frames out to them.
//
// This package is internal to appletdev. The main components are:
//
//   - [Subscriber]: a write endpoint for one connection
//   - [Registry]: the subscriber set with best-effort [Registry.Broadcast]
//
// Broadcast is partial-failure tolerant: a subscriber whose write fails is
// removed and closed, and the remaining subscribers still receive the frame.
// The registry is the only component allowed to write to a subscriber.
package registry
