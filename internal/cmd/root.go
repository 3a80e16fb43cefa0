// Package cmd implements the nauru command tree.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nauru-yvy/nauru/internal/version"
)

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "nauru",
		Short: "Territorial monitoring client for indigenous communities",
		Long: `nauru is a command-line client for the territorial monitoring API.

It keeps an encrypted local session, reports environmental occurrences,
follows alerts and records soil analyses for a territory.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default is $HOME/.nauru/config.yaml)")
	pf.String("api-url", "", "API base URL, overrides api.base_url")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.StringP("output", "o", "text", "output format: text, json, yaml")
	pf.Bool("no-color", false, "disable colored output")
	pf.String("metrics-addr", "", "serve /metrics and /health/* on this address while long-running commands run")

	root.AddCommand(
		newAuthCmd(),
		newProfileCmd(),
		newOccurrencesCmd(),
		newAlertsCmd(),
		newSoilCmd(),
		newHealthCmd(),
		newServeCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by the caller.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
