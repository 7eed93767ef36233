package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
	"github.com/shubhsaxena/chat-search/internal/resilience"
)

// Client is an Elasticsearch-backed catalog.Catalog plus the bulk writer the
// indexing pipeline feeds.
type Client struct {
	es       *elasticsearch.Client
	cb       *gobreaker.CircuitBreaker
	cfg      config.ElasticsearchConfig
	retryCfg resilience.RetryConfig
	logger   *zap.Logger
}

var _ catalog.Catalog = (*Client)(nil)

func NewClient(cfg config.ElasticsearchConfig, searchCfg config.SearchConfig, logger *zap.Logger) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	res, err := es.Ping()
	if err != nil {
		return nil, fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned status: %s", res.Status())
	}

	cb := resilience.NewCircuitBreaker("elasticsearch-catalog", searchCfg.CircuitBreaker, logger)

	logger.Info("elasticsearch client connected",
		zap.Strings("addresses", cfg.Addresses),
		zap.String("index", cfg.Index),
	)

	return &Client{
		es:       es,
		cb:       cb,
		cfg:      cfg,
		retryCfg: resilience.RetryConfigFrom(searchCfg.Retry),
		logger:   logger,
	}, nil
}

func (c *Client) Index() string {
	return c.cfg.Index
}

func (c *Client) Query(ctx context.Context, q catalog.Query) ([]models.Product, error) {
	ctx, span := observability.StartSpan(ctx, "es.query",
		attribute.String("es.index", c.cfg.Index),
		attribute.Int("query.limit", q.Limit),
	)
	defer span.End()

	start := time.Now()
	body := BuildQuery(q)

	cbResult, err := c.cb.Execute(func() (any, error) {
		var products []models.Product
		retryErr := resilience.Retry(ctx, c.retryCfg, func() error {
			var execErr error
			products, execErr = c.executeSearch(ctx, body)
			return execErr
		})
		return products, retryErr
	})

	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		observability.CatalogQueryDuration.WithLabelValues("elasticsearch", "error").Observe(duration.Seconds())
		return nil, fmt.Errorf("es query (index=%s): %w", c.cfg.Index, err)
	}
	observability.CatalogQueryDuration.WithLabelValues("elasticsearch", "success").Observe(duration.Seconds())

	products, _ := cbResult.([]models.Product)
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

func (c *Client) executeSearch(ctx context.Context, query map[string]any) ([]models.Product, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshaling es query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.cfg.Index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	}
	if c.cfg.RequestTimeout > 0 {
		opts = append(opts, c.es.Search.WithTimeout(c.cfg.RequestTimeout))
	}

	res, err := c.es.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("executing es search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es search error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decoding es response: %w", err)
	}

	products := make([]models.Product, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		p, err := decodeProduct(h.Source)
		if err != nil {
			c.logger.Warn("skipping undecodable hit", zap.String("id", h.ID), zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// EnsureIndex creates the products index with its mapping when missing.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.cfg.Index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index %s: %w", c.cfg.Index, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(IndexMapping())
	if err != nil {
		return fmt.Errorf("marshaling index mapping: %w", err)
	}
	res, err = c.es.Indices.Create(c.cfg.Index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", c.cfg.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		// lost a creation race with another instance
		if strings.Contains(string(bodyBytes), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	c.logger.Info("elasticsearch index created", zap.String("index", c.cfg.Index))
	return nil
}

func (c *Client) BulkIndex(ctx context.Context, actions []models.IndexAction) error {
	if len(actions) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "es.bulk_index",
		attribute.Int("batch_size", len(actions)),
	)
	defer span.End()

	payload, err := buildBulkBody(actions)
	if err != nil {
		return err
	}

	res, err := c.es.Bulk(
		bytes.NewReader(payload),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			for op, result := range item {
				// deleting a document that was never indexed is fine
				if op == "delete" && result.Status == 404 {
					continue
				}
				if result.Error != nil {
					errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s", result.ID, result.Error.Reason))
				}
			}
		}
		if len(errMsgs) > 0 {
			return fmt.Errorf("bulk indexing had errors: %s", strings.Join(errMsgs, "; "))
		}
	}

	return nil
}

// IndexProducts bulk-indexes a full product set, in chunks of BulkSize.
func (c *Client) IndexProducts(ctx context.Context, products []models.Product) error {
	size := c.cfg.BulkSize
	if size <= 0 {
		size = 500
	}
	for start := 0; start < len(products); start += size {
		end := start + size
		if end > len(products) {
			end = len(products)
		}
		actions := make([]models.IndexAction, 0, end-start)
		for _, p := range products[start:end] {
			actions = append(actions, models.IndexAction{
				Action:    "index",
				Index:     c.cfg.Index,
				ID:        p.DocumentID(),
				Body:      ProductDocument(p),
				Timestamp: time.Now().UTC(),
			})
		}
		if err := c.BulkIndex(ctx, actions); err != nil {
			return fmt.Errorf("indexing products %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func buildBulkBody(actions []models.IndexAction) ([]byte, error) {
	var buf bytes.Buffer
	for _, action := range actions {
		meta := map[string]any{
			action.Action: map[string]any{
				"_index": action.Index,
				"_id":    action.ID,
			},
		}

		metaLine, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshaling bulk meta: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		if action.Action != "delete" && action.Body != nil {
			bodyLine, err := json.Marshal(action.Body)
			if err != nil {
				return nil, fmt.Errorf("marshaling bulk body: %w", err)
			}
			buf.Write(bodyLine)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return "red", fmt.Errorf("es health check: %w", err)
	}
	defer res.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "red", fmt.Errorf("decoding health response: %w", err)
	}
	return health.Status, nil
}

func (c *Client) Close() error {
	return nil
}

// ES response types

type esSearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

type esHit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}
