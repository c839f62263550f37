// Package app wires the craftcans commands: the full walkthrough, the
// inspection-only view, the synthetic benchmark and the run history.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/craftcans/internal/config"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/pkg/log"
)

var (
	cfgFile string
	cfg     *config.Config

	// loggers supplies the component loggers of every command
	loggers log.LoggerProvider = log.GlobalProvider{}

	// RootCmd is the root command for craftcans
	RootCmd = &cobra.Command{
		Use:   "craftcans",
		Short: "Regression walkthrough on the craft-cans beer dataset",
		Long: `craftcans extracts the craft-cans archive, inspects and cleans the beers
table, one-hot encodes the style column and grid-searches a
StandardScaler → RandomForestRegressor pipeline to predict abv.

Settings come from built-in defaults, an optional --config file,
CRAFTCANS_* environment variables and flags, in that order.

Examples:
  # Full walkthrough with the defaults (data/craft-cans.zip)
  craftcans run

  # Only extract and inspect the tables
  craftcans inspect --archive ./craft-cans.zip

  # Same pipeline on a generated dataset
  craftcans benchmark --dataset friedman1 --samples 1000

  # Record runs and list them later
  craftcans run --store runs.db
  craftcans history --store runs.db`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	RootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	RootCmd.PersistentFlags().String("store", "", "sqlite run history path (empty disables it)")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(inspectCmd)
	RootCmd.AddCommand(benchmarkCmd)
	RootCmd.AddCommand(historyCmd)
}

// Execute runs the root command. An interrupt cancels the running search.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}

// loadConfig resolves the configuration for the command being run and
// installs the loggers.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if err := log.SetupLogger(c.Log.Level, cmd.ErrOrStderr()); err != nil {
		return err
	}
	errors.SetZerologWarnFunc(newWarnSink(os.Stderr))
	cfg = c
	return nil
}
