package main

import (
	"errors"
	"fmt"

	"github.com/jpalmerr/appletdev/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an appletdev configuration file without starting the server.

This command parses the YAML, expands environment variables, applies
defaults and validates all fields.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  appletdev validate -c appletdev.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return errors.New(`required flag "config" not set`)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:      %d\n", cfg.Port)
	fmt.Fprintf(out, "  Root:      %s\n", cfg.Root)
	fmt.Fprintf(out, "  Entry:     %s\n", cfg.Entry)
	fmt.Fprintf(out, "  Debounce:  %s\n", cfg.Debounce.Duration())
	fmt.Fprintf(out, "  Keepalive: %s\n", cfg.KeepAlive.Duration())
	fmt.Fprintf(out, "  Reconnect: %d attempts, %s linear backoff\n",
		cfg.Reconnect.Attempts(), cfg.Reconnect.BaseBackoff.Duration())

	return nil
}
