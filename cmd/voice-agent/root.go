package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/upb/voice-agent/config"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice-agent",
		Short: "Voice Agent - ask the construction database questions by voice",
		Long: `Voice Agent answers spoken or typed questions about the construction
management database. Questions are transcribed, translated to read-only SQL,
summarized and spoken back as MP3.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

// overrides are command-line values that win over the environment
type overrides struct {
	host     string
	port     int
	logLevel string
}

// loadConfig reads and validates the configuration. Missing variables are
// listed on out, one per line.
func loadConfig(out io.Writer, o overrides) (*config.Config, error) {
	cfg := config.Load()

	if o.host != "" {
		cfg.Server.Host = o.host
	}
	if o.port > 0 {
		cfg.Server.Port = o.port
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		var missing *config.MissingConfigError
		if errors.As(err, &missing) {
			fmt.Fprintln(out, "missing required environment variables:")
			for _, name := range missing.Missing {
				fmt.Fprintf(out, "  - %s\n", name)
			}
		}
		return nil, &ConfigError{Err: fmt.Errorf("config validation failed: %w", err)}
	}

	return cfg, nil
}
