// Package watcher detects changes to applet sources on disk.
//
// A [Detector] watches one directory (non-recursively) with fsnotify and
// feeds qualifying events (create, write or rename of a *.html file) into a
// [Debouncer]. The debouncer keeps a single armed timer that every new event
// replaces, so a burst of saves produces one reload, [DefaultDelay] after
// the last save.
//
// Timers run on an injectable clockwork.Clock so the debounce window can be
// driven by a fake clock in tests.
package watcher
