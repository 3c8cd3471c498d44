// Package reloadclient follows a dev server's reload channel from Go.
//
// It is the non-browser counterpart of the embedded reload script: both drive
// the same reconnect state machine. The CLI's watch command uses it to run a
// hook on every reload, and the end-to-end tests use it to play the part of a
// browser tab.
package reloadclient
