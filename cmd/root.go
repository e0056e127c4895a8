// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/config"
	"github.com/jfelder/chronicle-harvester/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Bulk downloader for digitized newspaper OCR text",
		Long: `harvester enumerates item identifiers from a public archive's search
API and downloads each item's OCR text payload into a local cache, respecting
a shared request budget. Runs are resumable: anything already cached is
skipped without a network call.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (optional)")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI. SIGINT/SIGTERM cancel the command context so running
// batches finish in-flight items and report partial statistics.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
