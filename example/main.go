// Command example serves a generated demo applet with appletdev and rewrites
// it every few seconds, so every open tab can be seen reloading.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jpalmerr/appletdev"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	dir, err := os.MkdirTemp("", "appletdev-example")
	if err != nil {
		logger.Error("failed to create applet directory", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	if err := writeDemoApplet(dir, 0); err != nil {
		logger.Error("failed to write demo applet", "error", err)
		os.Exit(1)
	}

	dev, err := appletdev.New(
		appletdev.WithRoot(dir),
		appletdev.WithEntry(demoFile),
		appletdev.WithPort(4002),
		appletdev.WithDebounce(200*time.Millisecond),
		appletdev.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create dev server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go rewriteEvery(ctx, dir, 5*time.Second, logger)

	fmt.Printf("open %s in a few tabs\n", dev.URL())
	if err := dev.Start(ctx); err != nil {
		logger.Error("dev server failed", "error", err)
		os.Exit(1)
	}
}

// rewriteEvery bumps the demo applet's revision until ctx ends.
func rewriteEvery(ctx context.Context, dir string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for rev := 1; ; rev++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeDemoApplet(dir, rev); err != nil {
				logger.Warn("failed to rewrite demo applet", "error", err)
				continue
			}
			logger.Info("demo applet rewritten", "file", filepath.Join(dir, demoFile), "revision", rev)
		}
	}
}
