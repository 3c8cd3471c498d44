// Package main is the entry point for the appletdev CLI.
//
// Usage:
//
//	appletdev serve                       # Serve the current directory
//	appletdev serve -c appletdev.yaml     # Serve with a config file
//	appletdev validate -c appletdev.yaml  # Validate configuration
//	appletdev build                       # Write applet manifests to dist/
//	appletdev watch --url http://localhost:4002
//	appletdev version                     # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "appletdev",
	Short: "Live-reload development server for HTML applets",
	Long: `appletdev serves a directory of single-file HTML applets and reloads
every open browser tab when an applet changes on disk.

Quick start:
  1. cd into your applet directory
  2. Run: appletdev serve
  3. Open http://localhost:4002 in your browser

Example config (optional):
  port: 4002
  entry: index.html
  debounce: 300ms
  reconnect:
    max_attempts: 10
    base_backoff: 1s`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this appletdev binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "appletdev %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
}
