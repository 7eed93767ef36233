// Package cmd provides the chatctl commands: asking the chat engine from the
// terminal, seeding the catalog and publishing product change events.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

type globalOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd creates the root command for the chatctl CLI.
func NewRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:          "chatctl",
		Short:        "Operate the catalog chat service from the command line",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to configuration file (defaults apply when missing)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")

	cmd.AddCommand(newAskCmd(&opts))
	cmd.AddCommand(newSeedCmd(&opts))
	cmd.AddCommand(newPublishCmd(&opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *globalOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if !o.verbose {
		return cfg, zap.NewNop(), nil
	}
	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
