package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfelder/chronicle-harvester/internal/catalog"
)

// newHarvestCmd creates the 'harvest' subcommand: search the catalog and
// fetch everything it returns in one run.
func newHarvestCmd() *cobra.Command {
	var (
		collection string
		from       string
		to         string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Search the catalog and download every matching payload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.close(context.WithoutCancel(cmd.Context()))

			if collection == "" {
				collection = cfg.Archive.Collection
			}
			ids, err := a.searcher.Search(cmd.Context(), catalog.Query{
				Collection: collection,
				From:       from,
				To:         to,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matching items")
				return nil
			}

			return runBatch(cmd, a, ids)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "archive collection (defaults to archive.collection from config)")
	cmd.Flags().StringVar(&from, "from", "", "inclusive start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "inclusive end date, YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum number of identifiers to harvest")
	return cmd
}
