package indexing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/elasticsearch"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

// Indexer receives buffered bulk actions for the search index.
type Indexer interface {
	Index() string
	BulkIndex(ctx context.Context, actions []models.IndexAction) error
}

// ChangeLog records applied changes for analytics.
type ChangeLog interface {
	InsertProductEvent(ctx context.Context, event *models.ProductChangeEvent) error
}

// Invalidator drops cached chat responses once the catalog changed.
type Invalidator interface {
	InvalidateResponses(ctx context.Context) error
}

// Options carries the optional sinks of a StreamProcessor. A nil field
// disables that sink.
type Options struct {
	Indexer   Indexer
	ChangeLog ChangeLog
	Cache     Invalidator
}

// StreamProcessor applies product change events to the catalog store, then
// fans them out to the search index, the changelog and the response cache.
type StreamProcessor struct {
	store     catalog.Writer
	indexer   Indexer
	changeLog ChangeLog
	cache     Invalidator
	bulkSize  int
	logger    *zap.Logger

	// last applied version per product
	vmu      sync.Mutex
	versions map[int64]int64

	// held across check, apply and mark for one product
	applyLocks [lockStripes]sync.Mutex

	// Bulk buffer
	mu     sync.Mutex
	buffer []models.IndexAction
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewStreamProcessor(store catalog.Writer, esCfg config.ElasticsearchConfig, opts Options, logger *zap.Logger) *StreamProcessor {
	bulkSize := esCfg.BulkSize
	if bulkSize <= 0 {
		bulkSize = 500
	}

	sp := &StreamProcessor{
		store:     store,
		indexer:   opts.Indexer,
		changeLog: opts.ChangeLog,
		cache:     opts.Cache,
		bulkSize:  bulkSize,
		logger:    logger,
		versions:  make(map[int64]int64),
		done:      make(chan struct{}),
	}

	if sp.indexer != nil {
		interval := esCfg.BulkFlushInterval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		sp.buffer = make([]models.IndexAction, 0, bulkSize)
		sp.ticker = time.NewTicker(interval)
		sp.wg.Add(1)
		go sp.flushLoop()
	}

	return sp
}

// HandleEvent applies one change. Events whose version is not newer than the
// last applied version of the same product are dropped.
func (sp *StreamProcessor) HandleEvent(ctx context.Context, event *models.ProductChangeEvent) error {
	if event == nil {
		return fmt.Errorf("nil change event")
	}
	op := strings.ToUpper(event.Type)

	lock := sp.productLock(event.ProductID)
	lock.Lock()
	if sp.isStale(event) {
		lock.Unlock()
		observability.IndexingEventsTotal.WithLabelValues(op, "stale").Inc()
		sp.logger.Debug("skipping stale change event",
			zap.Int64("product_id", event.ProductID),
			zap.Int64("version", event.Version),
		)
		return nil
	}
	err := sp.apply(ctx, op, event)
	if err == nil {
		sp.markApplied(event)
	}
	lock.Unlock()
	if err != nil {
		return err
	}

	if !event.Timestamp.IsZero() {
		observability.IndexingLag.Set(time.Since(event.Timestamp).Seconds())
	}

	if sp.indexer != nil {
		action, err := elasticsearch.IndexActionFor(sp.indexer.Index(), *event)
		if err != nil {
			return fmt.Errorf("building index action: %w", err)
		}

		sp.mu.Lock()
		sp.buffer = append(sp.buffer, action)
		shouldFlush := len(sp.buffer) >= sp.bulkSize
		sp.mu.Unlock()

		if shouldFlush {
			if err := sp.flush(ctx); err != nil {
				sp.logger.Error("flush on buffer full failed", zap.Error(err))
			}
		}
	}

	// Write to ClickHouse for analytics (async, best-effort)
	if sp.changeLog != nil {
		ev := *event
		sp.wg.Add(1)
		go func() {
			defer sp.wg.Done()
			chCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sp.changeLog.InsertProductEvent(chCtx, &ev); err != nil {
				sp.logger.Warn("clickhouse changelog insert failed",
					zap.Int64("product_id", ev.ProductID),
					zap.Error(err),
				)
			}
		}()
	}

	// Cached answers may name the changed product or miss it entirely.
	if sp.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := sp.cache.InvalidateResponses(cacheCtx)
		cancel()
		if err != nil {
			sp.logger.Warn("cache invalidation failed",
				zap.Int64("product_id", event.ProductID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (sp *StreamProcessor) apply(ctx context.Context, op string, event *models.ProductChangeEvent) error {
	switch op {
	case "CREATE", "UPDATE":
		if event.Product == nil {
			return fmt.Errorf("%s event for product %d has no payload", op, event.ProductID)
		}
		p := *event.Product
		if p.ID == 0 {
			p.ID = event.ProductID
		}
		if event.ProductID == 0 {
			event.ProductID = p.ID
		}
		if p.ID != event.ProductID {
			return fmt.Errorf("event product id %d does not match payload id %d", event.ProductID, p.ID)
		}
		if err := sp.store.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("applying %s: %w", strings.ToLower(op), err)
		}
		// the store may have assigned an id
		event.ProductID = p.ID
		event.Product = &p
	case "DELETE":
		if err := sp.store.Delete(ctx, event.ProductID); err != nil && !catalog.IsNotFound(err) {
			return fmt.Errorf("applying delete: %w", err)
		}
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
	return nil
}

const lockStripes = 64

func (sp *StreamProcessor) productLock(id int64) *sync.Mutex {
	i := id % lockStripes
	if i < 0 {
		i = -i
	}
	return &sp.applyLocks[i]
}

func (sp *StreamProcessor) isStale(event *models.ProductChangeEvent) bool {
	if event.Version == 0 || event.ProductID == 0 {
		return false
	}
	sp.vmu.Lock()
	defer sp.vmu.Unlock()
	last, ok := sp.versions[event.ProductID]
	return ok && event.Version <= last
}

func (sp *StreamProcessor) markApplied(event *models.ProductChangeEvent) {
	if event.Version == 0 {
		return
	}
	sp.vmu.Lock()
	if event.Version > sp.versions[event.ProductID] {
		sp.versions[event.ProductID] = event.Version
	}
	sp.vmu.Unlock()
}

func (sp *StreamProcessor) flushLoop() {
	defer sp.wg.Done()
	for {
		select {
		case <-sp.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sp.flush(ctx); err != nil {
				sp.logger.Error("periodic flush failed", zap.Error(err))
			}
			cancel()
		case <-sp.done:
			return
		}
	}
}

func (sp *StreamProcessor) flush(ctx context.Context) error {
	sp.mu.Lock()
	if len(sp.buffer) == 0 {
		sp.mu.Unlock()
		return nil
	}
	batch := make([]models.IndexAction, len(sp.buffer))
	copy(batch, sp.buffer)
	sp.buffer = sp.buffer[:0]
	sp.mu.Unlock()

	start := time.Now()
	if err := sp.indexer.BulkIndex(ctx, batch); err != nil {
		// Put failed items back into buffer for retry
		sp.mu.Lock()
		sp.buffer = append(batch, sp.buffer...)
		sp.mu.Unlock()

		observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
		return fmt.Errorf("bulk index flush: %w", err)
	}

	observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Add(float64(len(batch)))
	sp.logger.Info("bulk flush completed",
		zap.Int("count", len(batch)),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}

// Pending reports the number of buffered index actions.
func (sp *StreamProcessor) Pending() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.buffer)
}

// Stop halts the flush loop, waits for in-flight changelog writes and flushes
// what is left in the buffer.
func (sp *StreamProcessor) Stop() error {
	if sp.ticker != nil {
		sp.ticker.Stop()
	}
	close(sp.done)
	sp.wg.Wait()

	if sp.indexer == nil {
		return nil
	}

	// Final flush
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return sp.flush(ctx)
}
