package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/elasticsearch"
)

type seedOptions struct {
	force bool
	index bool
}

func newSeedCmd(global *globalOptions) *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog into the configured store",
		Long: `Load the demo catalog into the configured store.

By default the store is only seeded when it is empty. With --index the
whole catalog is also pushed to Elasticsearch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), cmd.OutOrStdout(), global, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Seed even when the store already holds products")
	cmd.Flags().BoolVar(&opts.index, "index", false, "Also bulk-index the catalog into Elasticsearch")

	return cmd
}

func runSeed(ctx context.Context, out io.Writer, global *globalOptions, opts seedOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := global.load()
	if err != nil {
		return err
	}
	if cfg.Catalog.Backend == "memory" {
		return fmt.Errorf("the memory catalog does not persist; configure sqlite or postgres to seed")
	}

	store, err := catalog.Open(ctx, cfg.Catalog, cfg.Search.CircuitBreaker, logger)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	var n int
	if opts.force {
		n, err = catalog.Seed(ctx, store)
	} else {
		n, err = catalog.SeedIfEmpty(ctx, store)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %d products into %s\n", n, store.Name())

	if !opts.index {
		return nil
	}

	es, err := elasticsearch.NewClient(cfg.Elasticsearch, cfg.Search, logger)
	if err != nil {
		return fmt.Errorf("connecting to elasticsearch: %w", err)
	}
	defer es.Close()

	if err := es.EnsureIndex(ctx); err != nil {
		return err
	}
	products, err := catalog.All(ctx, store)
	if err != nil {
		return err
	}
	if err := es.IndexProducts(ctx, products); err != nil {
		return err
	}
	fmt.Fprintf(out, "indexed %d products into %s\n", len(products), es.Index())
	return nil
}
