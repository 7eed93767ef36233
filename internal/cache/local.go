package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

const defaultLocalSize = 1024

// LocalCache is the in-process response cache used when Redis is disabled.
// Values are stored and returned by copy: callers stamp session ids on the
// responses they get back.
type LocalCache struct {
	lru *expirable.LRU[string, models.ChatResponse]
}

func NewLocalCache(size int, ttl time.Duration) *LocalCache {
	if size <= 0 {
		size = defaultLocalSize
	}
	return &LocalCache{lru: expirable.NewLRU[string, models.ChatResponse](size, nil, ttl)}
}

func (lc *LocalCache) GetResponse(ctx context.Context, message string) (*models.ChatResponse, error) {
	resp, ok := lc.lru.Get(normalize(message))
	if !ok {
		observability.CacheMisses.WithLabelValues("local").Inc()
		return nil, nil
	}
	observability.CacheHits.WithLabelValues("local").Inc()
	return &resp, nil
}

func (lc *LocalCache) SetResponse(ctx context.Context, message string, resp *models.ChatResponse) error {
	cp := *resp
	cp.SessionID, cp.MessageID, cp.CacheHit = "", "", false
	lc.lru.Add(normalize(message), cp)
	return nil
}

func (lc *LocalCache) InvalidateResponses(ctx context.Context) error {
	lc.lru.Purge()
	return nil
}

func (lc *LocalCache) Len() int {
	return lc.lru.Len()
}

// MemoryHistory keeps chat history in process, capped per session.
type MemoryHistory struct {
	mu       sync.Mutex
	limit    int
	sessions map[string][]models.HistoryEntry
}

func NewMemoryHistory(limit int) *MemoryHistory {
	return &MemoryHistory{limit: limit, sessions: make(map[string][]models.HistoryEntry)}
}

func (mh *MemoryHistory) AppendHistory(ctx context.Context, sessionID string, entry models.HistoryEntry) error {
	mh.mu.Lock()
	defer mh.mu.Unlock()

	entries := append(mh.sessions[sessionID], entry)
	if mh.limit > 0 && len(entries) > mh.limit {
		entries = append([]models.HistoryEntry(nil), entries[len(entries)-mh.limit:]...)
	}
	mh.sessions[sessionID] = entries
	return nil
}

func (mh *MemoryHistory) GetHistory(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	mh.mu.Lock()
	defer mh.mu.Unlock()

	entries := mh.sessions[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]models.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (mh *MemoryHistory) ResetHistory(ctx context.Context, sessionID string) error {
	mh.mu.Lock()
	defer mh.mu.Unlock()
	delete(mh.sessions, sessionID)
	return nil
}
