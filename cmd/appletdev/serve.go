package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/appletdev"
	"github.com/jpalmerr/appletdev/config"
	"github.com/spf13/cobra"
)

// serveCmd starts the development server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the development server",
	Long: `Start the appletdev development server.

The server will:
  - Serve the root directory, with the entry applet at /
  - Inject a reload script into every HTML page
  - Watch the root directory (not subdirectories) for changes to *.html
  - Tell every open tab to reload after each burst of changes

Flags override values from the config file. The server runs until
interrupted (Ctrl+C) or it receives SIGTERM.

Example:
  appletdev serve
  appletdev serve --root ./applets --entry "AI SimCity.html"
  appletdev serve -c appletdev.yaml --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "HTTP port (default 4002)")
	serveCmd.Flags().String("host", "", "interface to bind (default all)")
	serveCmd.Flags().StringP("root", "r", "", "directory to serve and watch (default .)")
	serveCmd.Flags().StringP("entry", "e", "", "HTML file served at / (default index.html)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	logger, closeLog := newLogger(cfg.Log)
	defer func() { _ = closeLog() }()

	dev, err := appletdev.New(config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create dev server: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dev.Start(ctx); err != nil {
		logger.Error("dev server failed", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// loadConfig reads --config, or returns the defaults when it is unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// applyServeFlags copies explicitly set flags over cfg and revalidates.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("root") {
		cfg.Root, _ = flags.GetString("root")
	}
	if flags.Changed("entry") {
		cfg.Entry, _ = flags.GetString("entry")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
