package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shubhsaxena/chat-search/internal/kafka"
	"github.com/shubhsaxena/chat-search/internal/models"
)

type publishOptions struct {
	eventType string
	productID int64
	file      string
	version   int64
}

func newPublishCmd(global *globalOptions) *cobra.Command {
	var opts publishOptions

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a product change event to Kafka",
		Long: `Publish a product change event to the changes topic.

CREATE and UPDATE read the product JSON from --file ("-" for stdin).

Examples:
  chatctl publish --type update --file pixel.json
  chatctl publish --type delete --id 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			if opts.file != "" {
				var err error
				payload, err = readPayload(cmd.InOrStdin(), opts.file)
				if err != nil {
					return err
				}
			}
			event, err := buildEvent(opts, payload)
			if err != nil {
				return err
			}
			return runPublish(cmd.Context(), cmd.OutOrStdout(), global, event)
		},
	}

	cmd.Flags().StringVarP(&opts.eventType, "type", "t", "update", "Event type: create, update, delete")
	cmd.Flags().Int64Var(&opts.productID, "id", 0, "Product id (taken from the payload when omitted)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Product JSON file, - for stdin")
	cmd.Flags().Int64Var(&opts.version, "version", 0, "Event version (defaults to the current time)")

	return cmd
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading product file: %w", err)
	}
	return data, nil
}

// buildEvent assembles a change event from flags and an optional product
// payload.
func buildEvent(opts publishOptions, payload []byte) (*models.ProductChangeEvent, error) {
	now := time.Now().UTC()
	event := &models.ProductChangeEvent{
		Type:      strings.ToUpper(opts.eventType),
		ProductID: opts.productID,
		Timestamp: now,
		Version:   opts.version,
	}
	if event.Version == 0 {
		event.Version = now.UnixNano()
	}

	switch event.Type {
	case "CREATE", "UPDATE":
		if len(payload) == 0 {
			return nil, fmt.Errorf("%s needs a product payload (--file)", strings.ToLower(event.Type))
		}
		var p models.Product
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding product payload: %w", err)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("product payload has no name")
		}
		if event.ProductID == 0 {
			event.ProductID = p.ID
		}
		if p.ID == 0 {
			p.ID = event.ProductID
		}
		if p.ID != event.ProductID {
			return nil, fmt.Errorf("--id %d does not match payload id %d", event.ProductID, p.ID)
		}
		event.Product = &p
	case "DELETE":
		if event.ProductID == 0 {
			return nil, fmt.Errorf("delete needs --id")
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", opts.eventType)
	}
	return event, nil
}

func runPublish(ctx context.Context, out io.Writer, global *globalOptions, event *models.ProductChangeEvent) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := global.load()
	if err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	producer := kafka.NewProducer(cfg.Kafka, logger)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := producer.PublishChangeEvent(ctx, event); err != nil {
		return err
	}
	fmt.Fprintf(out, "published %s for product %d to %s\n", event.Type, event.ProductID, cfg.Kafka.TopicChanges)
	return nil
}
