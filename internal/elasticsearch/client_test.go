package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
)

// fakeCluster answers the handful of endpoints the client touches.
type fakeCluster struct {
	mu        sync.Mutex
	searches  []map[string]any
	bulkLines int
	hits      []models.Product
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.searches = append(f.searches, body)
		f.mu.Unlock()

		hits := make([]map[string]any, 0, len(f.hits))
		for _, p := range f.hits {
			hits = append(hits, map[string]any{"_id": p.DocumentID(), "_source": ProductDocument(p)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "hits": map[string]any{"hits": hits}})
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bulkLines += strings.Count(string(data), "\n")
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	case strings.HasSuffix(r.URL.Path, "/_cluster/health"):
		_, _ = w.Write([]byte(`{"status":"green"}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func newTestClient(t *testing.T, f *fakeCluster) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Elasticsearch.Addresses = []string{srv.URL}
	cfg.Elasticsearch.RequestTimeout = time.Second
	cfg.Elasticsearch.BulkSize = 2

	c, err := NewClient(cfg.Elasticsearch, cfg.Search, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClient_Query_DecodesHits(t *testing.T) {
	f := &fakeCluster{hits: []models.Product{
		{ID: 1, Name: "Sony WH-1000XM5", Category: "Headphones", Brand: "Sony", Price: 399, Rating: 4.8},
		{ID: 2, Name: "AirPods Pro 2nd Gen", Category: "Headphones", Brand: "Apple", Price: 249, Rating: 4.7},
	}}
	c := newTestClient(t, f)

	products, err := c.Query(context.Background(), catalog.Query{Categories: []string{"headphones"}, Limit: 5})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(products) != 2 || products[0].Name != "Sony WH-1000XM5" {
		t.Errorf("unexpected products %+v", products)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.searches) != 1 {
		t.Fatalf("expected one search request, got %d", len(f.searches))
	}
	if f.searches[0]["size"] != 5.0 {
		t.Errorf("expected size 5 in request, got %v", f.searches[0]["size"])
	}
}

func TestClient_Query_EmptyResultIsNonNil(t *testing.T) {
	c := newTestClient(t, &fakeCluster{})

	products, err := c.Query(context.Background(), catalog.Query{Keywords: []string{"nothing"}})
	if err != nil {
		t.Fatal(err)
	}
	if products == nil || len(products) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", products)
	}
}

func TestClient_IndexProducts_Chunks(t *testing.T) {
	f := &fakeCluster{}
	c := newTestClient(t, f)

	if err := c.IndexProducts(context.Background(), catalog.SeedProducts()[:5]); err != nil {
		t.Fatalf("IndexProducts: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// meta + source line per product
	if f.bulkLines != 10 {
		t.Errorf("expected 10 bulk lines, got %d", f.bulkLines)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	c := newTestClient(t, &fakeCluster{})

	status, err := c.HealthCheck(context.Background())
	if err != nil || status != "green" {
		t.Errorf("expected green, got %q %v", status, err)
	}
}
