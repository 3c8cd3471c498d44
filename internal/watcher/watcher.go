package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/jpalmerr/appletdev/internal/metrics"
)

const (
	// DefaultDelay is the quiet period before a reload is announced.
	DefaultDelay = 300 * time.Millisecond

	// SourceExt is the extension of files that trigger a reload.
	SourceExt = ".html"
)

// relevantOps are the filesystem operations that count as a change.
const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Rename

// Options tunes a [Detector]. The zero value uses [DefaultDelay], the real
// clock and [slog.Default].
type Options struct {
	Delay   time.Duration
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Detector watches a single directory and calls onChange once per burst of
// qualifying events.
type Detector struct {
	dir       string
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger
	metrics   *metrics.Metrics

	closeOnce sync.Once
	closeErr  error
}

// New starts watching dir (non-recursively). onChange runs after every
// debounced burst of changes to *.html files.
//
// An error means the directory cannot be watched; callers treat it as fatal.
func New(dir string, onChange func(), opts Options) (*Detector, error) {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	d := &Detector{
		dir:     dir,
		fsw:     fsw,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	d.debouncer = NewDebouncer(opts.Clock, opts.Delay, func() {
		d.metrics.Reload()
		d.logger.Info("change detected, reloading clients", "dir", d.dir)
		onChange()
	})

	d.logger.Info("watching directory", "dir", dir, "ext", SourceExt, "debounce", opts.Delay.String())
	return d, nil
}

// Qualifies reports whether a change to name should trigger a reload.
func Qualifies(name string) bool {
	return strings.HasSuffix(filepath.Base(name), SourceExt)
}

// Run consumes watcher events until ctx is cancelled or the watcher is
// closed. It returns nil in both cases.
func (d *Detector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-d.fsw.Events:
			if !ok {
				return nil
			}
			d.handleEvent(event)
		case err, ok := <-d.fsw.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("file watcher error", "dir", d.dir, "error", err)
		}
	}
}

// handleEvent filters one event and re-arms the debouncer if it qualifies.
func (d *Detector) handleEvent(event fsnotify.Event) {
	qualifying := event.Op&relevantOps != 0 && Qualifies(event.Name)
	d.metrics.FSEvent(qualifying)
	if !qualifying {
		return
	}

	d.logger.Debug("qualifying change", "file", filepath.Base(event.Name), "op", event.Op.String())
	d.debouncer.Trigger()
}

// Close cancels any pending reload and releases the watch handle.
// Safe to call multiple times.
func (d *Detector) Close() error {
	d.closeOnce.Do(func() {
		d.debouncer.Stop()
		if err := d.fsw.Close(); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			d.closeErr = fmt.Errorf("failed to close file watcher: %w", err)
		}
	})
	return d.closeErr
}
