package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/api"
	"github.com/jfelder/chronicle-harvester/internal/batch"
)

// newFetchCmd creates the 'fetch' subcommand: download payloads for an
// explicit identifier list.
func newFetchCmd() *cobra.Command {
	var idFile string

	cmd := &cobra.Command{
		Use:   "fetch [identifier...]",
		Short: "Download payloads for the given identifiers into the cache",
		Long: `Downloads the OCR text payload for each identifier, skipping anything
already cached. Identifiers come from the arguments, from --file (one per
line, '#' starts a comment), or both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := append([]string(nil), args...)
			if idFile != "" {
				fromFile, err := readIdentifierFile(idFile)
				if err != nil {
					return err
				}
				ids = append(ids, fromFile...)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.close(context.WithoutCancel(cmd.Context()))

			return runBatch(cmd, a, ids)
		},
	}

	cmd.Flags().StringVar(&idFile, "file", "", "file with one identifier per line")
	return cmd
}

// runBatch executes the orchestrator over ids, optionally serving the status
// API for the duration, and prints the final summary. Shared by 'fetch' and
// 'harvest'.
func runBatch(cmd *cobra.Command, a *app, ids []string) error {
	ctx := cmd.Context()

	if cfg.Server.Enabled {
		srv := api.NewServer(a.orchestrator, logger)
		go func() {
			if err := srv.Serve(ctx, cfg.Server.Addr); err != nil {
				logger.Warn("status server stopped", zap.Error(err))
			}
		}()
		logger.Info("status server listening", zap.String("addr", cfg.Server.Addr))
	}

	stats, err := a.orchestrator.Run(ctx, ids)
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return err
	}

	out := cmd.OutOrStdout()
	if interrupted {
		fmt.Fprintln(out, "interrupted; statistics reflect work completed before cancellation")
	}
	printStats(cmd, stats, len(ids))
	return nil
}

func printStats(cmd *cobra.Command, stats batch.Stats, requested int) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "requested:  %d\n", requested)
	fmt.Fprintf(out, "downloaded: %d\n", stats.Successful)
	fmt.Fprintf(out, "cached:     %d\n", stats.Cached)
	fmt.Fprintf(out, "not found:  %d\n", stats.NotFound)
	fmt.Fprintf(out, "failed:     %d\n", stats.Failed)
}

// readIdentifierFile loads identifiers one per line; blank lines and '#'
// comments are skipped.
func readIdentifierFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identifier file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read identifier file: %w", err)
	}
	return ids, nil
}
