package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfelder/chronicle-harvester/internal/catalog"
)

// newSearchCmd creates the 'search' subcommand. It prints matching
// identifiers one per line so results can be piped into 'fetch --file -'
// style workflows or saved for later resumption.
func newSearchCmd() *cobra.Command {
	var (
		collection string
		from       string
		to         string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Enumerate item identifiers matching a collection and date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.close(cmd.Context())

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
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "archive collection (defaults to archive.collection from config)")
	cmd.Flags().StringVar(&from, "from", "", "inclusive start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "inclusive end date, YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum number of identifiers to return")
	return cmd
}
