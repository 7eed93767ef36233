package firestore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

// Client reads the product documents kept in Firestore. Those documents carry
// the merchandising fields the catalog does not store (image url and free
// form attributes) and are the source of truth the change listener watches.
type Client struct {
	client *firestore.Client
	cfg    config.FirestoreConfig
	logger *zap.Logger
}

func NewClient(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	logger.Info("firestore client connected",
		zap.String("project", cfg.ProjectID),
		zap.String("collection", cfg.Collection),
	)

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (c *Client) GetMulti(ctx context.Context, docIDs []string) (map[string]map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.get_multi",
		attribute.String("collection", c.cfg.Collection),
		attribute.Int("count", len(docIDs)),
	)
	defer span.End()

	result := make(map[string]map[string]any, len(docIDs))

	batchSize := c.cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for i := 0; i < len(docIDs); i += batchSize {
		end := i + batchSize
		if end > len(docIDs) {
			end = len(docIDs)
		}
		batch := docIDs[i:end]

		// Each batch gets its own timeout so sequential batches don't starve.
		batchCtx, batchCancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = c.client.Collection(c.cfg.Collection).Doc(id)
		}

		docs, err := c.client.GetAll(batchCtx, refs)
		batchCancel()
		if err != nil {
			return nil, fmt.Errorf("firestore get_all batch %d: %w", i/batchSize, err)
		}

		for _, doc := range docs {
			if doc.Exists() {
				result[doc.Ref.ID] = doc.Data()
			}
		}
	}

	return result, nil
}

// HydrateProducts copies image urls and extra attributes from Firestore onto
// the given products. Products without a document are returned unchanged.
func (c *Client) HydrateProducts(ctx context.Context, products []models.Product) ([]models.Product, error) {
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.DocumentID()
	}

	docs, err := c.GetMulti(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Product, len(products))
	for i, p := range products {
		if doc, ok := docs[p.DocumentID()]; ok {
			applyDocument(&p, doc)
		}
		out[i] = p
	}
	return out, nil
}

// catalogFields are owned by the catalog and never overwritten by hydration.
var catalogFields = map[string]bool{
	"id": true, "name": true, "description": true, "price": true, "category": true,
	"brand": true, "stock_quantity": true, "rating": true, "features": true, "created_at": true,
}

func applyDocument(p *models.Product, doc map[string]any) {
	if v, ok := doc["image_url"].(string); ok && v != "" {
		p.ImageURL = v
	}

	// copy on first write: the incoming map may be shared with the catalog
	var attrs map[string]any
	for k, v := range doc {
		if k == "image_url" || catalogFields[k] {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]any, len(p.Attributes)+len(doc))
			for ek, ev := range p.Attributes {
				attrs[ek] = ev
			}
		}
		attrs[k] = v
	}
	if attrs != nil {
		p.Attributes = attrs
	}
}

// productFromDoc decodes a full product document, used by the change
// listener. Firestore returns integers as int64 and doubles as float64.
func productFromDoc(id string, data map[string]any) (*models.Product, error) {
	pid, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("product document id %q is not numeric: %w", id, err)
	}

	p := &models.Product{ID: pid}
	p.Name, _ = data["name"].(string)
	p.Description, _ = data["description"].(string)
	p.Category, _ = data["category"].(string)
	p.Brand, _ = data["brand"].(string)
	p.ImageURL, _ = data["image_url"].(string)
	p.Price = number(data["price"])
	p.Rating = number(data["rating"])
	p.StockQuantity = int(number(data["stock_quantity"]))
	if ts, ok := data["created_at"].(time.Time); ok {
		p.CreatedAt = ts
	}
	if raw, ok := data["features"].([]any); ok {
		for _, f := range raw {
			if s, ok := f.(string); ok {
				p.Features = append(p.Features, s)
			}
		}
	}
	if p.Name == "" {
		return nil, fmt.Errorf("product document %s has no name", id)
	}
	return p, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// ChangeListener turns Firestore snapshot changes on the product collection
// into product change events.
type ChangeListener struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
	handler    func(context.Context, *models.ProductChangeEvent) error
}

func (c *Client) NewChangeListener(handler func(context.Context, *models.ProductChangeEvent) error) *ChangeListener {
	return &ChangeListener{
		client:     c.client,
		collection: c.cfg.Collection,
		logger:     c.logger,
		handler:    handler,
	}
}

func (cl *ChangeListener) Listen(ctx context.Context) error {
	snapIter := cl.client.Collection(cl.collection).Snapshots(ctx)
	defer snapIter.Stop()

	for {
		snap, err := snapIter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cl.logger.Error("snapshot iterator error", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, change := range snap.Changes {
			event, err := changeEvent(change.Kind, change.Doc.Ref.ID, change.Doc.Data(), change.Doc.UpdateTime)
			if err != nil {
				cl.logger.Warn("skipping product document", zap.String("doc_id", change.Doc.Ref.ID), zap.Error(err))
				continue
			}

			if err := cl.handler(ctx, event); err != nil {
				cl.logger.Error("change event handler error",
					zap.Int64("product_id", event.ProductID),
					zap.String("type", event.Type),
					zap.Error(err),
				)
			}
		}
	}
}

func changeEvent(kind firestore.DocumentChangeKind, id string, data map[string]any, updated time.Time) (*models.ProductChangeEvent, error) {
	event := &models.ProductChangeEvent{Timestamp: time.Now().UTC()}
	if !updated.IsZero() {
		event.Version = updated.UnixNano()
	}

	switch kind {
	case firestore.DocumentAdded:
		event.Type = "CREATE"
	case firestore.DocumentModified:
		event.Type = "UPDATE"
	case firestore.DocumentRemoved:
		event.Type = "DELETE"
		pid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("product document id %q is not numeric: %w", id, err)
		}
		event.ProductID = pid
		return event, nil
	default:
		return nil, fmt.Errorf("unknown change kind %d", kind)
	}

	p, err := productFromDoc(id, data)
	if err != nil {
		return nil, err
	}
	event.ProductID = p.ID
	event.Product = p
	return event, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	iter := c.client.Collection(c.cfg.Collection).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	// iterator.Done means the collection is empty; Firestore is reachable.
	if err != nil && err != iterator.Done {
		return fmt.Errorf("firestore health check: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
