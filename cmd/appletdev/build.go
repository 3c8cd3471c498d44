package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/appletdev/internal/manifest"
	"github.com/spf13/cobra"
)

// buildCmd writes a manifest for every applet.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate applet manifests",
	Long: `Generate a JSON manifest for every *.html file in the source directory.

Each manifest carries the applet's HTML, a title taken from <title> or the
first <h1>, an icon chosen from keywords in the file name, and the window
size the applet opens with. Manifests are written to <dist>/<name>.json.

Example:
  appletdev build
  appletdev build --src ./applets --dist ./public/applets`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("src", "", "directory containing applets (default: config root)")
	buildCmd.Flags().String("dist", "", "output directory (default: config build.dist)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	src := cfg.Root
	if cmd.Flags().Changed("src") {
		src, _ = cmd.Flags().GetString("src")
	}
	dist := cfg.Build.Dist
	if cmd.Flags().Changed("dist") {
		dist, _ = cmd.Flags().GetString("dist")
	}

	logger, closeLog := newLogger(cfg.Log)
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := manifest.Build(ctx, src, dist, manifest.Options{
		Author:      cfg.Build.Author,
		Concurrency: cfg.Build.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%s %s -> %s (%s)\n", r.Icon, r.Source, r.Output, r.Title)
	}
	fmt.Fprintf(out, "Generated %d applet(s) in %s\n", len(results), dist)
	return nil
}
