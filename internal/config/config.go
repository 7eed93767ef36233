package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Chat          ChatConfig          `yaml:"chat"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Firestore     FirestoreConfig     `yaml:"firestore"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Search        SearchConfig        `yaml:"search"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

type CatalogConfig struct {
	Backend      string `yaml:"backend"` // sqlite, postgres, memory
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	SeedOnStart  bool   `yaml:"seed_on_start"`
	// SearchEngine selects who answers chat queries: "store" or "elasticsearch".
	SearchEngine string `yaml:"search_engine"`
}

type ChatConfig struct {
	SearchLimit         int           `yaml:"search_limit"`
	RecommendationLimit int           `yaml:"recommendation_limit"`
	MaxMessageLength    int           `yaml:"max_message_length"`
	CacheResponses      bool          `yaml:"cache_responses"`
	LocalCacheSize      int           `yaml:"local_cache_size"`
	HistoryLimit        int           `yaml:"history_limit"`
	HistoryTTL          time.Duration `yaml:"history_ttl"`
}

type ElasticsearchConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Addresses         []string      `yaml:"addresses"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	Index             string        `yaml:"index"`
	BulkSize          int           `yaml:"bulk_size"`
	BulkFlushInterval time.Duration `yaml:"bulk_flush_interval"`
}

type RedisConfig struct {
	Enabled      bool           `yaml:"enabled"`
	Addresses    []string       `yaml:"addresses"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	PoolSize     int            `yaml:"pool_size"`
	MinIdleConns int            `yaml:"min_idle_conns"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	ReadTimeout  time.Duration  `yaml:"read_timeout"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	TTL          CacheTTLConfig `yaml:"ttl"`
}

type CacheTTLConfig struct {
	ChatResponses time.Duration `yaml:"chat_responses"`
	NoResults     time.Duration `yaml:"no_results"`
}

type ClickHouseConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

// FirestoreConfig enables hydration when ProjectID is set. WatchChanges also
// feeds document changes into the indexing pipeline.
type FirestoreConfig struct {
	ProjectID       string        `yaml:"project_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	Collection      string        `yaml:"collection"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
	WatchChanges    bool          `yaml:"watch_changes"`
}

type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	TopicChanges  string        `yaml:"topic_changes"`
	TopicDLQ      string        `yaml:"topic_dlq"`
	ConsumerGroup string        `yaml:"consumer_group"`
	BatchSize     int           `yaml:"batch_size"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

type SearchConfig struct {
	QueryTimeout   time.Duration        `yaml:"query_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	SlowQuery      SlowQueryConfig      `yaml:"slow_query"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowQueryConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type ObservabilityConfig struct {
	TracingEnabled bool   `yaml:"tracing_enabled"`
	LogLevel       string `yaml:"log_level"`
	ServiceName    string `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to DefaultConfig
// otherwise. Used by the CLI, where a config file is optional.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxConcurrent:   1000,
		},
		Catalog: CatalogConfig{
			Backend:      "sqlite",
			DSN:          "chat_search.db",
			MaxOpenConns: 10,
			SeedOnStart:  true,
			SearchEngine: "store",
		},
		Chat: ChatConfig{
			SearchLimit:         10,
			RecommendationLimit: 5,
			MaxMessageLength:    1000,
			CacheResponses:      true,
			LocalCacheSize:      1024,
			HistoryLimit:        200,
			HistoryTTL:          7 * 24 * time.Hour,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:         []string{"http://localhost:9200"},
			MaxRetries:        3,
			RequestTimeout:    150 * time.Millisecond,
			Index:             "products",
			BulkSize:          500,
			BulkFlushInterval: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			PoolSize:     100,
			MinIdleConns: 10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			TTL: CacheTTLConfig{
				ChatResponses: 2 * time.Minute,
				NoResults:     30 * time.Second,
			},
		},
		ClickHouse: ClickHouseConfig{
			Addresses:    []string{"localhost:9000"},
			Database:     "chat_analytics",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Firestore: FirestoreConfig{
			Collection:     "products",
			RequestTimeout: 2 * time.Second,
			MaxBatchSize:   100,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			TopicChanges:  "products.changes",
			TopicDLQ:      "products.changes.dlq",
			ConsumerGroup: "chat-search-indexer",
			BatchSize:     100,
			BatchTimeout:  1 * time.Second,
			MaxRetries:    3,
		},
		Search: SearchConfig{
			QueryTimeout: 2 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      100,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			Retry: RetryConfig{
				MaxAttempts: 2,
				InitialWait: 50 * time.Millisecond,
				MaxWait:     500 * time.Millisecond,
				Multiplier:  2.0,
			},
			SlowQuery: SlowQueryConfig{
				WarningThreshold:  200 * time.Millisecond,
				CriticalThreshold: 500 * time.Millisecond,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			ServiceName: "chat-search",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Catalog.Backend {
	case "sqlite", "postgres":
		if c.Catalog.DSN == "" {
			return fmt.Errorf("catalog dsn required for backend %q", c.Catalog.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown catalog backend: %q", c.Catalog.Backend)
	}
	switch c.Catalog.SearchEngine {
	case "store":
	case "elasticsearch":
		if !c.Elasticsearch.Enabled {
			return fmt.Errorf("search engine elasticsearch requires elasticsearch.enabled")
		}
	default:
		return fmt.Errorf("unknown search engine: %q", c.Catalog.SearchEngine)
	}
	if c.Chat.SearchLimit <= 0 || c.Chat.RecommendationLimit <= 0 {
		return fmt.Errorf("chat result limits must be positive")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive")
	}
	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("at least one elasticsearch address required")
	}
	if c.Redis.Enabled && len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker required")
	}
	if c.ClickHouse.Enabled && len(c.ClickHouse.Addresses) == 0 {
		return fmt.Errorf("at least one clickhouse address required")
	}
	return nil
}
