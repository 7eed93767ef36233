package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

const (
	responsePrefix = "chat:resp:"
	historyPrefix  = "chat:history:"
)

// RedisCache stores finished chat responses and per-session history.
type RedisCache struct {
	client       redis.UniversalClient
	ttl          config.CacheTTLConfig
	historyLimit int
	historyTTL   time.Duration
	logger       *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, chat config.ChatConfig, logger *zap.Logger) (*RedisCache, error) {
	var client redis.UniversalClient

	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))

	return &RedisCache{
		client:       client,
		ttl:          cfg.TTL,
		historyLimit: chat.HistoryLimit,
		historyTTL:   chat.HistoryTTL,
		logger:       logger,
	}, nil
}

func (rc *RedisCache) GetResponse(ctx context.Context, message string) (*models.ChatResponse, error) {
	val, err := rc.client.Get(ctx, responseKey(message)).Result()
	if err == redis.Nil {
		observability.CacheMisses.WithLabelValues("redis").Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	observability.CacheHits.WithLabelValues("redis").Inc()
	var resp models.ChatResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("cache unmarshal: %w", err)
	}
	return &resp, nil
}

func (rc *RedisCache) SetResponse(ctx context.Context, message string, resp *models.ChatResponse) error {
	cp := *resp
	cp.SessionID, cp.MessageID, cp.CacheHit = "", "", false

	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return rc.client.Set(ctx, responseKey(message), data, rc.ttlFor(resp.Type)).Err()
}

// InvalidateResponses drops every cached chat response. Called after catalog
// changes so answers never outlive the products they list. A cluster is
// scanned master by master since SCAN only walks the node it lands on.
func (rc *RedisCache) InvalidateResponses(ctx context.Context) error {
	var removed atomic.Int64
	purge := func(ctx context.Context, node redis.Cmdable) error {
		n, err := purgeResponses(ctx, node)
		removed.Add(int64(n))
		return err
	}

	var err error
	if cc, ok := rc.client.(*redis.ClusterClient); ok {
		err = cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return purge(ctx, node)
		})
	} else {
		err = purge(ctx, rc.client)
	}
	if err != nil {
		rc.logger.Warn("cache invalidation error", zap.Int64("removed", removed.Load()), zap.Error(err))
		return err
	}
	rc.logger.Debug("cached responses invalidated", zap.Int64("removed", removed.Load()))
	return nil
}

// purgeResponses removes the response keys held by one node. Keys are
// unlinked one per command, pipelined per scan page, so keys from different
// hash slots never share a command.
func purgeResponses(ctx context.Context, node redis.Cmdable) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := node.Scan(ctx, cursor, responsePrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			_, err := node.Pipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, key := range keys {
					pipe.Unlink(ctx, key)
				}
				return nil
			})
			if err != nil {
				return removed, fmt.Errorf("cache delete: %w", err)
			}
			removed += len(keys)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// AppendHistory pushes one exchange onto the session list, trims it to the
// configured length and refreshes its expiry.
func (rc *RedisCache) AppendHistory(ctx context.Context, sessionID string, entry models.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("history marshal: %w", err)
	}

	key := historyKey(sessionID)
	pipe := rc.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if rc.historyLimit > 0 {
		pipe.LTrim(ctx, key, int64(-rc.historyLimit), -1)
	}
	if rc.historyTTL > 0 {
		pipe.Expire(ctx, key, rc.historyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	return nil
}

// GetHistory returns up to limit of the most recent entries, oldest first.
func (rc *RedisCache) GetHistory(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	vals, err := rc.client.LRange(ctx, historyKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history get: %w", err)
	}

	entries := make([]models.HistoryEntry, 0, len(vals))
	for _, v := range vals {
		var e models.HistoryEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			rc.logger.Warn("skipping corrupt history entry", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (rc *RedisCache) ResetHistory(ctx context.Context, sessionID string) error {
	return rc.client.Del(ctx, historyKey(sessionID)).Err()
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// ttlFor keeps empty answers briefly so new stock shows up fast.
func (rc *RedisCache) ttlFor(typ models.ResponseType) time.Duration {
	if typ == models.ResponseNoResults {
		return rc.ttl.NoResults
	}
	return rc.ttl.ChatResponses
}

func responseKey(message string) string {
	return responsePrefix + hashString(normalize(message))
}

func historyKey(sessionID string) string {
	return historyPrefix + sessionID
}

func normalize(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
