package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/api"
	"github.com/shubhsaxena/chat-search/internal/cache"
	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/clickhouse"
	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/elasticsearch"
	"github.com/shubhsaxena/chat-search/internal/firestore"
	"github.com/shubhsaxena/chat-search/internal/indexing"
	"github.com/shubhsaxena/chat-search/internal/kafka"
	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/observability"
	"github.com/shubhsaxena/chat-search/internal/orchestrator"
)

// responseCache is satisfied by both the Redis and the in-process cache.
type responseCache interface {
	orchestrator.ResponseCache
	indexing.Invalidator
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting chat service",
		zap.String("service", cfg.Observability.ServiceName),
		zap.String("catalog", cfg.Catalog.Backend),
		zap.String("search_engine", cfg.Catalog.SearchEngine),
	)

	// Initialize tracing
	var tracerShutdown func(context.Context) error
	if cfg.Observability.TracingEnabled {
		tracerShutdown, err = observability.InitTracer(cfg.Observability.ServiceName)
		if err != nil {
			logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := api.NewHealthHandler(logger)

	// Catalog store
	store, err := catalog.Open(ctx, cfg.Catalog, cfg.Search.CircuitBreaker, logger)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()
	healthHandler.Register("catalog", store)

	if cfg.Catalog.SeedOnStart {
		n, err := catalog.SeedIfEmpty(ctx, store)
		if err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
		if n > 0 {
			logger.Info("catalog seeded", zap.Int("products", n))
		}
	}

	var chatCatalog catalog.Catalog = store
	source := store.Name()

	var esClient *elasticsearch.Client
	if cfg.Elasticsearch.Enabled {
		esClient, err = elasticsearch.NewClient(cfg.Elasticsearch, cfg.Search, logger)
		if err != nil {
			return fmt.Errorf("initializing elasticsearch: %w", err)
		}
		defer esClient.Close()
		healthHandler.RegisterES(esClient)

		if err := syncSearchIndex(ctx, esClient, store, logger); err != nil {
			return err
		}
		if cfg.Catalog.SearchEngine == "elasticsearch" {
			chatCatalog = esClient
			source = "elasticsearch"
		}
	}

	// Response cache and chat history
	var respCache responseCache
	var history api.HistoryStore
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.Chat, logger)
		if err != nil {
			return fmt.Errorf("initializing redis: %w", err)
		}
		defer redisCache.Close()
		healthHandler.Register("redis", redisCache)
		respCache, history = redisCache, redisCache
		logger.Info("redis cache initialized")
	} else {
		respCache = cache.NewLocalCache(cfg.Chat.LocalCacheSize, cfg.Redis.TTL.ChatResponses)
		history = cache.NewMemoryHistory(cfg.Chat.HistoryLimit)
		logger.Info("using in-process response cache and chat history")
	}

	var chClient *clickhouse.Client
	if cfg.ClickHouse.Enabled {
		chClient, err = clickhouse.NewClient(cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("clickhouse initialization failed, analytics will be unavailable", zap.Error(err))
			chClient = nil
		} else {
			defer chClient.Close()
			if err := chClient.EnsureTables(ctx); err != nil {
				logger.Warn("clickhouse table creation failed", zap.Error(err))
			}
			healthHandler.RegisterOptional("clickhouse", chClient)
			logger.Info("clickhouse client initialized")
		}
	}

	var fsClient *firestore.Client
	if cfg.Firestore.ProjectID != "" {
		fsClient, err = firestore.NewClient(ctx, cfg.Firestore, logger)
		if err != nil {
			logger.Warn("firestore initialization failed, hydration will be unavailable", zap.Error(err))
			fsClient = nil
		} else {
			defer fsClient.Close()
			healthHandler.RegisterOptional("firestore", fsClient)
			logger.Info("firestore client initialized")
		}
	}

	// Initialize slow query detector
	var analyticsWriter observability.AnalyticsWriter
	if chClient != nil {
		analyticsWriter = chClient
	}
	slowQueryDetector := observability.NewSlowQueryDetector(
		cfg.Search.SlowQuery.WarningThreshold,
		cfg.Search.SlowQuery.CriticalThreshold,
		logger,
		analyticsWriter,
	)

	opts := orchestrator.Options{
		Cache:     respCache,
		SlowQuery: slowQueryDetector,
		Source:    source,
	}
	if chClient != nil {
		opts.Analytics = chClient
	}
	if fsClient != nil {
		opts.Hydrator = fsClient
	}
	orch := orchestrator.New(lexicon.Default(), chatCatalog, cfg.Chat, cfg.Search, logger, opts)

	// Indexing pipeline
	if cfg.Kafka.Enabled || (fsClient != nil && cfg.Firestore.WatchChanges) {
		procOpts := indexing.Options{Cache: respCache}
		if esClient != nil {
			procOpts.Indexer = esClient
		}
		if chClient != nil {
			procOpts.ChangeLog = chClient
		}
		streamProcessor := indexing.NewStreamProcessor(store, cfg.Elasticsearch, procOpts, logger)
		defer func() {
			if err := streamProcessor.Stop(); err != nil {
				logger.Error("stream processor stop error", zap.Error(err))
			}
		}()

		if cfg.Kafka.Enabled {
			consumer := kafka.NewConsumer(cfg.Kafka, streamProcessor.HandleEvent, logger)
			if err := consumer.Start(ctx); err != nil {
				logger.Warn("kafka consumer start failed, indexing pipeline will be unavailable", zap.Error(err))
			} else {
				defer consumer.Stop()
				healthHandler.RegisterOptional("kafka", consumer)
			}
		}

		if fsClient != nil && cfg.Firestore.WatchChanges {
			listener := fsClient.NewChangeListener(streamProcessor.HandleEvent)
			go func() {
				if err := listener.Listen(ctx); err != nil && ctx.Err() == nil {
					logger.Error("firestore change listener stopped", zap.Error(err))
				}
			}()
			logger.Info("firestore change listener started")
		}
	}

	// Initialize HTTP server
	handlerOpts := api.HandlerOptions{
		Products: store,
		History:  history,
		Service:  cfg.Observability.ServiceName,
	}
	if chClient != nil {
		handlerOpts.Ladder = chClient
	}
	handler := api.NewHandler(orch, cfg.Chat, handlerOpts, logger)
	router := api.NewRouter(handler, healthHandler, cfg.Server.MaxConcurrent, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	// Graceful shutdown
	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	// Cancel background operations
	cancel()

	// Shutdown tracing
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// syncSearchIndex creates the product index and loads the catalog into it.
func syncSearchIndex(ctx context.Context, es *elasticsearch.Client, store catalog.Store, logger *zap.Logger) error {
	if err := es.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensuring elasticsearch index: %w", err)
	}

	products, err := catalog.All(ctx, store)
	if err != nil {
		return fmt.Errorf("reading catalog for indexing: %w", err)
	}
	if err := es.IndexProducts(ctx, products); err != nil {
		return fmt.Errorf("indexing catalog: %w", err)
	}

	logger.Info("search index synced", zap.String("index", es.Index()), zap.Int("products", len(products)))
	return nil
}
