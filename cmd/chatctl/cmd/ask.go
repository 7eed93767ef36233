package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/orchestrator"
)

type askOptions struct {
	memory bool
	format string
}

func newAskCmd(global *globalOptions) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message to the chat engine",
		Long: `Send one message to the chat engine and print the answer.

Examples:
  chatctl ask "show me laptops under $1000"
  chatctl ask --memory "recommend headphones"
  chatctl ask --format json "compare iphone vs samsung"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), global, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVar(&opts.memory, "memory", false, "Answer from the built-in demo catalog instead of the configured store")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runAsk(ctx context.Context, out io.Writer, global *globalOptions, opts askOptions, message string) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := global.load()
	if err != nil {
		return err
	}

	var store catalog.Store
	if opts.memory {
		store = catalog.NewMemory(catalog.SeedProducts()...)
	} else {
		store, err = catalog.Open(ctx, cfg.Catalog, cfg.Search.CircuitBreaker, logger)
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer store.Close()
		if cfg.Catalog.SeedOnStart {
			if _, err := catalog.SeedIfEmpty(ctx, store); err != nil {
				return fmt.Errorf("seeding catalog: %w", err)
			}
		}
	}

	orch := orchestrator.New(lexicon.Default(), store, cfg.Chat, cfg.Search, logger, orchestrator.Options{Source: store.Name()})
	resp := orch.ProcessMessage(ctx, message)

	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(out, resp)
	return nil
}

func printResponse(out io.Writer, resp *models.ChatResponse) {
	fmt.Fprintln(out, resp.Response)
	for _, p := range resp.Products {
		fmt.Fprintf(out, "  - %s (%s) $%.2f, rated %.1f\n", p.Name, p.Brand, p.Price, p.Rating)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintln(out, "Try:")
		for _, s := range resp.Suggestions {
			fmt.Fprintf(out, "  %s\n", s)
		}
	}
	if resp.LadderStep != "" {
		fmt.Fprintf(out, "[%s, step %s, %dms]\n", resp.Type, resp.LadderStep, resp.TookMs)
	} else {
		fmt.Fprintf(out, "[%s, %dms]\n", resp.Type, resp.TookMs)
	}
}
