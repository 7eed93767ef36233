package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

// Client is the analytics sink: every chat exchange, slow query sample and
// catalog change lands in a MergeTree table.
type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

var chatEventColumns = []string{
	"message_hash", "session_id", "intent", "response_type", "ladder_step",
	"product_count", "fallback", "duration_ms", "timestamp",
}

func chatEventArgs(e *models.ChatEvent) []any {
	return []any{
		e.MessageHash,
		e.SessionID,
		e.Intent,
		e.ResponseType,
		e.LadderStep,
		int32(e.ProductCount),
		e.Fallback,
		e.DurationMs,
		e.Timestamp,
	}
}

var queryPerformanceColumns = []string{
	"event_type", "query_hash", "query_type", "duration_ms", "total_hits",
	"steps", "timed_out", "timestamp", "trace_id", "source",
}

func queryPerformanceArgs(e *models.AnalyticsEvent) []any {
	return []any{
		e.EventType,
		e.QueryHash,
		e.QueryType,
		e.DurationMs,
		e.TotalHits,
		int32(e.Steps),
		e.TimedOut,
		e.Timestamp,
		e.TraceID,
		e.Source,
	}
}

var productChangeColumns = []string{
	"product_id", "operation", "category", "timestamp", "version",
}

func productChangeArgs(e *models.ProductChangeEvent) []any {
	category := ""
	if e.Product != nil {
		category = e.Product.Category
	}
	return []any{
		e.ProductID,
		strings.ToUpper(e.Type),
		category,
		e.Timestamp,
		e.Version,
	}
}

func insertSQL(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)
}

func (c *Client) WriteChatEvent(ctx context.Context, event *models.ChatEvent) error {
	return c.insert(ctx, "chat_events", chatEventColumns, chatEventArgs(event))
}

func (c *Client) WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error {
	return c.insert(ctx, "query_performance", queryPerformanceColumns, queryPerformanceArgs(event))
}

func (c *Client) InsertProductEvent(ctx context.Context, event *models.ProductChangeEvent) error {
	return c.insert(ctx, "product_changelog", productChangeColumns, productChangeArgs(event))
}

func (c *Client) insert(ctx context.Context, table string, columns []string, args []any) error {
	start := time.Now()
	err := c.conn.Exec(ctx, insertSQL(table, columns), args...)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CHWriteDuration.WithLabelValues(table, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("ch insert %s: %w", table, err)
	}
	return nil
}

// LadderStat summarizes how often a relaxation step answered chat searches.
type LadderStat struct {
	Step          string  `json:"step"`
	Messages      uint64  `json:"messages"`
	AvgProducts   float64 `json:"avg_products"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// LadderStats aggregates chat_events since the given time, most used step
// first.
func (c *Client) LadderStats(ctx context.Context, since time.Time) ([]LadderStat, error) {
	ctx, span := observability.StartSpan(ctx, "ch.ladder_stats",
		attribute.String("since", since.Format(time.RFC3339)),
	)
	defer span.End()

	query := `
		SELECT
			ladder_step,
			count() AS messages,
			avg(product_count) AS avg_products,
			avg(duration_ms) AS avg_duration
		FROM chat_events
		WHERE timestamp >= ? AND response_type = 'product_search'
		GROUP BY ladder_step
		ORDER BY messages DESC
	`

	rows, err := c.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("ch ladder stats: %w", err)
	}
	defer rows.Close()

	var stats []LadderStat
	for rows.Next() {
		var s LadderStat
		if err := rows.Scan(&s.Step, &s.Messages, &s.AvgProducts, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("scanning ladder row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ladder rows: %w", err)
	}
	return stats, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS chat_events (
			message_hash String,
			session_id String,
			intent LowCardinality(String),
			response_type LowCardinality(String),
			ladder_step LowCardinality(String),
			product_count Int32,
			fallback Bool,
			duration_ms Float64,
			timestamp DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, message_hash)`,

		`CREATE TABLE IF NOT EXISTS query_performance (
			event_type String,
			query_hash String,
			query_type String,
			duration_ms Float64,
			total_hits Int64,
			steps Int32,
			timed_out Bool,
			timestamp DateTime,
			trace_id String,
			source String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, query_hash)`,

		`CREATE TABLE IF NOT EXISTS product_changelog (
			product_id Int64,
			operation LowCardinality(String),
			category String,
			timestamp DateTime,
			version Int64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, product_id)`,
	}

	for _, ddl := range tables {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}
