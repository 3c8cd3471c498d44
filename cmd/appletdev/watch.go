package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"log/slog"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/jpalmerr/appletdev"
	"github.com/jpalmerr/appletdev/internal/reconnect"
	"github.com/jpalmerr/appletdev/internal/reloadclient"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// watchCmd follows a running server's reload channel.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running server's reloads",
	Long: `Connect to a running appletdev server and report every reload, the way
a browser tab would. With --exec, run a shell command on each reload.

The retry policy comes from the config file. The command exits non-zero
once the server has been unreachable for the whole retry budget.

Example:
  appletdev watch
  appletdev watch --url http://localhost:8080 --exec "make screenshot"`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("url", "", "server base URL (default http://localhost:<port>)")
	watchCmd.Flags().String("exec", "", "shell command to run on every reload")
	watchCmd.Flags().Duration("exec-interval", time.Second, "minimum time between hook runs")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	base, _ := cmd.Flags().GetString("url")
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	command, _ := cmd.Flags().GetString("exec")
	interval, _ := cmd.Flags().GetDuration("exec-interval")

	logger, closeLog := newLogger(cfg.Log)
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var hook *reloadHook
	if command != "" {
		hook = newReloadHook(command, interval, logger)
	}

	transport := reloadclient.NewHTTPTransport(strings.TrimRight(base, "/") + appletdev.ReloadPath)
	defer transport.Close()

	follower := reloadclient.New(transport, reloadclient.Options{
		Policy: reconnect.Policy{
			MaxAttempts: cfg.Reconnect.Attempts(),
			BaseBackoff: cfg.Reconnect.BaseBackoff.Duration(),
		},
		Logger: logger,
		OnReload: func() {
			fmt.Fprintln(out, "reload")
			if hook != nil {
				hook.fire(ctx)
			}
		},
		OnState: func(s reconnect.State) {
			logger.Debug("watch state", "state", s.String())
		},
	})

	logger.Info("following reload channel", "url", base)
	err = follower.Run(ctx)
	if errors.Is(err, reloadclient.ErrGivenUp) {
		return fmt.Errorf("server at %s is unreachable", base)
	}
	return err
}

// reloadHook runs a shell command on reload, at most once per interval.
type reloadHook struct {
	command string
	limiter *rate.Limiter
	logger  *slog.Logger
	run     func(ctx context.Context, command string)
}

func newReloadHook(command string, interval time.Duration, logger *slog.Logger) *reloadHook {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &reloadHook{
		command: command,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		run:     runHook,
	}
}

// fire runs the hook unless it ran less than one interval ago.
func (h *reloadHook) fire(ctx context.Context) {
	if !h.limiter.Allow() {
		h.logger.Info("reload hook skipped", "reason", "rate limited")
		return
	}
	h.run(ctx, h.command)
}

// runHook runs command through the platform shell, streaming its output.
// Failures are reported but do not stop watching.
func runHook(ctx context.Context, command string) {
	shell, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/C"
	}
	c := exec.CommandContext(ctx, shell, flag, command)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "reload hook failed: %v\n", err)
	}
}
