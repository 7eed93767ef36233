package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/cache"
	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/clickhouse"
	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/orchestrator"
)

type fakeLadder struct {
	stats []clickhouse.LadderStat
	since time.Time
}

func (f *fakeLadder) LadderStats(ctx context.Context, since time.Time) ([]clickhouse.LadderStat, error) {
	f.since = since
	return f.stats, nil
}

type testServer struct {
	router  http.Handler
	history *cache.MemoryHistory
}

func newTestServer(t *testing.T, ladder LadderReporter) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Chat.MaxMessageLength = 50

	store := catalog.NewMemory(catalog.SeedProducts()...)
	orch := orchestrator.New(lexicon.Default(), store, cfg.Chat, cfg.Search, zap.NewNop(), orchestrator.Options{})
	history := cache.NewMemoryHistory(cfg.Chat.HistoryLimit)

	h := NewHandler(orch, cfg.Chat, HandlerOptions{
		Products: store,
		History:  history,
		Ladder:   ladder,
		Service:  "chat-search",
	}, zap.NewNop())

	return &testServer{
		router:  NewRouter(h, NewHealthHandler(zap.NewNop()), 10, zap.NewNop()),
		history: history,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %s %s response %q: %v", method, path, rr.Body.String(), err)
	}
	return rr, out
}

func TestChat_Validation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", `{"message":`, "invalid_request"},
		{"missing message", `{}`, "missing_message"},
		{"blank message", `{"message":"   "}`, "missing_message"},
		{"too long", `{"message":"` + strings.Repeat("a", 51) + `"}`, "message_too_long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := ts.do(t, http.MethodPost, "/api/v1/chat/message", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("expected code %q, got %v", tt.wantCode, body["code"])
			}
			if body["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestChat_MaxLengthCountsCharacters(t *testing.T) {
	ts := newTestServer(t, nil)

	// 50 multi-byte characters are within the limit
	rr, _ := ts.do(t, http.MethodPost, "/api/v1/chat/message", `{"message":"`+strings.Repeat("é", 50)+`"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestChat_GreetingCreatesSession(t *testing.T) {
	ts := newTestServer(t, nil)

	rr, body := ts.do(t, http.MethodPost, "/api/v1/chat/message", `{"message":"Hello there"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["type"] != string(models.ResponseGreeting) {
		t.Errorf("expected greeting, got %v", body["type"])
	}
	sessionID, _ := body["session_id"].(string)
	if sessionID == "" || body["message_id"] == "" {
		t.Fatalf("expected generated session and message ids, got %v", body)
	}

	entries, _ := ts.history.GetHistory(context.Background(), sessionID, 0)
	if len(entries) != 1 || entries[0].Message != "Hello there" || entries[0].Type != models.ResponseGreeting {
		t.Errorf("unexpected history %+v", entries)
	}
}

func TestChat_ProductSearchKeepsSession(t *testing.T) {
	ts := newTestServer(t, nil)

	rr, body := ts.do(t, http.MethodPost, "/api/v1/chat/message", `{"message":"show me laptops","session_id":"s-42"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["type"] != string(models.ResponseProductSearch) {
		t.Errorf("expected product_search, got %v", body["type"])
	}
	products, _ := body["products"].([]any)
	if len(products) == 0 {
		t.Error("expected products in response")
	}
	if body["session_id"] != "s-42" {
		t.Errorf("expected caller session id, got %v", body["session_id"])
	}
}

func TestHistoryAndReset(t *testing.T) {
	ts := newTestServer(t, nil)

	rr, _ := ts.do(t, http.MethodGet, "/api/v1/chat/history/s-1", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rr.Code)
	}

	for _, msg := range []string{"hi", "help", "show me tablets"} {
		ts.do(t, http.MethodPost, "/api/v1/chat/message", `{"message":"`+msg+`","session_id":"s-1"}`)
	}

	rr, body := ts.do(t, http.MethodGet, "/api/v1/chat/history/s-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	first := messages[0].(map[string]any)
	if first["message"] != "hi" {
		t.Errorf("expected oldest first, got %v", first["message"])
	}

	_, body = ts.do(t, http.MethodGet, "/api/v1/chat/history/s-1?limit=2", "")
	if body["count"] != 2.0 {
		t.Errorf("expected limit to apply, got %v", body["count"])
	}

	rr, body = ts.do(t, http.MethodPost, "/api/v1/chat/reset/s-1", "")
	if rr.Code != http.StatusOK || body["session_id"] != "s-1" {
		t.Errorf("unexpected reset response %d %v", rr.Code, body)
	}
	rr, _ = ts.do(t, http.MethodGet, "/api/v1/chat/history/s-1", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected history gone after reset, got %d", rr.Code)
	}
}

func TestListProducts_Pagination(t *testing.T) {
	ts := newTestServer(t, nil)

	rr, body := ts.do(t, http.MethodGet, "/api/v1/products?category=laptops&per_page=3&page=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["total"] != 8.0 || body["pages"] != 3.0 || body["current_page"] != 3.0 {
		t.Errorf("unexpected page info %v", body)
	}
	products, _ := body["products"].([]any)
	if len(products) != 2 {
		t.Errorf("expected 2 products on last page, got %d", len(products))
	}
}

func TestSearchProducts(t *testing.T) {
	ts := newTestServer(t, nil)

	rr, body := ts.do(t, http.MethodGet, "/api/v1/products/search", "")
	if rr.Code != http.StatusBadRequest || body["code"] != "missing_query" {
		t.Errorf("expected missing_query, got %d %v", rr.Code, body)
	}

	rr, body = ts.do(t, http.MethodGet, "/api/v1/products/search?q=sony&max_price=abc", "")
	if rr.Code != http.StatusBadRequest || body["code"] != "invalid_price" {
		t.Errorf("expected invalid_price, got %d %v", rr.Code, body)
	}

	rr, body = ts.do(t, http.MethodGet, "/api/v1/products/search?q=sony&category=headphones&max_price=500", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["query"] != "sony" {
		t.Errorf("expected query echoed, got %v", body["query"])
	}
	products, _ := body["products"].([]any)
	if len(products) == 0 {
		t.Fatal("expected sony headphones")
	}
	for _, raw := range products {
		p := raw.(map[string]any)
		if p["category"] != "Headphones" || p["price"].(float64) > 500 {
			t.Errorf("product outside filters: %v", p)
		}
	}
}

func TestGetProduct(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/api/v1/products/1", http.StatusOK},
		{"/api/v1/products/9999", http.StatusNotFound},
		{"/api/v1/products/abc", http.StatusBadRequest},
		{"/api/v1/products/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr, body := ts.do(t, http.MethodGet, tt.path, "")
			if rr.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if tt.wantCode == http.StatusOK && body["id"] != 1.0 {
				t.Errorf("expected product 1, got %v", body)
			}
		})
	}
}

func TestCategoriesAndBrands(t *testing.T) {
	ts := newTestServer(t, nil)

	_, body := ts.do(t, http.MethodGet, "/api/v1/products/categories", "")
	if categories, _ := body["categories"].([]any); len(categories) != 8 {
		t.Errorf("expected 8 categories, got %v", body["categories"])
	}

	_, body = ts.do(t, http.MethodGet, "/api/v1/products/brands", "")
	if brands, _ := body["brands"].([]any); len(brands) == 0 {
		t.Error("expected brands")
	}
}

func TestLadderStats(t *testing.T) {
	ts := newTestServer(t, nil)
	rr, _ := ts.do(t, http.MethodGet, "/api/v1/analytics/ladder", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without analytics, got %d", rr.Code)
	}

	ladder := &fakeLadder{stats: []clickhouse.LadderStat{{Step: "strict", Messages: 12}}}
	ts = newTestServer(t, ladder)
	rr, body := ts.do(t, http.MethodGet, "/api/v1/analytics/ladder?hours=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	steps, _ := body["steps"].([]any)
	if len(steps) != 1 {
		t.Errorf("expected one step, got %v", body["steps"])
	}
	if d := time.Since(ladder.since); d < time.Hour || d > 3*time.Hour {
		t.Errorf("expected a two hour window, got %v", d)
	}
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, nil)

	rr, body := ts.do(t, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK || body["service"] != "chat-search" || body["version"] != Version {
		t.Errorf("unexpected index %d %v", rr.Code, body)
	}
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query     string
		page, per int
	}{
		{"", 1, defaultPerPage},
		{"page=0&per_page=-1", 1, defaultPerPage},
		{"page=4&per_page=500", 4, maxPerPage},
		{"page=x&per_page=y", 1, defaultPerPage},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			page, per := pageParams(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))
			if page != tt.page || per != tt.per {
				t.Errorf("pageParams(%q) = %d,%d want %d,%d", tt.query, page, per, tt.page, tt.per)
			}
		})
	}
}

func TestPriceParam(t *testing.T) {
	if p, err := priceParam(""); p != nil || err != nil {
		t.Errorf("empty price should be nil, got %v %v", p, err)
	}
	if p, err := priceParam("99.5"); err != nil || *p != 99.5 {
		t.Errorf("expected 99.5, got %v %v", p, err)
	}
	for _, bad := range []string{"abc", "NaN", "Inf"} {
		if _, err := priceParam(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
