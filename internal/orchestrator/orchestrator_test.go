package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/models"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]models.ChatResponse
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]models.ChatResponse)}
}

func (c *fakeCache) GetResponse(ctx context.Context, message string) (*models.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[message]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (c *fakeCache) SetResponse(ctx context.Context, message string, resp *models.ChatResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[message] = *resp
	c.sets++
	return nil
}

type fakeAnalytics struct {
	mu     sync.Mutex
	events []*models.ChatEvent
}

func (a *fakeAnalytics) WriteChatEvent(ctx context.Context, event *models.ChatEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAnalytics) wait(t *testing.T, n int) []*models.ChatEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		if len(a.events) >= n {
			events := append([]*models.ChatEvent(nil), a.events...)
			a.mu.Unlock()
			return events
		}
		a.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d analytics events", n)
	return nil
}

type imageHydrator struct{}

func (imageHydrator) HydrateProducts(ctx context.Context, products []models.Product) ([]models.Product, error) {
	out := make([]models.Product, len(products))
	for i, p := range products {
		p.ImageURL = "https://cdn.example.com/" + p.DocumentID() + ".jpg"
		out[i] = p
	}
	return out, nil
}

type brokenHydrator struct{}

func (brokenHydrator) HydrateProducts(ctx context.Context, products []models.Product) ([]models.Product, error) {
	return nil, errors.New("firestore unavailable")
}

func newTestOrchestrator(cat catalog.Catalog, opts Options) *Orchestrator {
	cfg := config.DefaultConfig()
	return New(lexicon.Default(), cat, cfg.Chat, cfg.Search, zap.NewNop(), opts)
}

func TestOrchestrator_ProcessMessage_Greeting(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	for _, msg := range []string{"hi", "Hello!", "  hey there  "} {
		resp := o.ProcessMessage(context.Background(), msg)
		if resp.Type != models.ResponseGreeting {
			t.Errorf("%q: expected greeting, got %s", msg, resp.Type)
		}
		if len(resp.Products) != 0 {
			t.Errorf("%q: greeting should carry no products", msg)
		}
	}
}

func TestOrchestrator_ProcessMessage_Help(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	resp := o.ProcessMessage(context.Background(), "what can you do?")
	if resp.Type != models.ResponseHelp {
		t.Errorf("expected help, got %s", resp.Type)
	}
}

func TestOrchestrator_ProcessMessage_CategoryUnderPrice(t *testing.T) {
	cat := catalog.NewMemory(
		models.Product{Name: "Chromebook Plus", Category: "Laptops", Brand: "Acer", Price: 499, Rating: 4.1},
		models.Product{Name: "ThinkPad E14", Category: "Laptops", Brand: "Lenovo", Price: 899, Rating: 4.4},
		models.Product{Name: "MacBook Pro", Category: "Laptops", Brand: "Apple", Price: 1999, Rating: 4.9},
		models.Product{Name: "Kindle", Category: "Books", Brand: "Amazon", Price: 99, Rating: 4.6},
	)
	o := newTestOrchestrator(cat, Options{})

	resp := o.ProcessMessage(context.Background(), "show me laptops under $1000")

	if resp.Type != models.ResponseProductSearch {
		t.Fatalf("expected product_search, got %s: %s", resp.Type, resp.Response)
	}
	if resp.Response != "I found 2 products in laptops under $1000.00:" {
		t.Errorf("unexpected text %q", resp.Response)
	}
	if resp.LadderStep != StepStrict || resp.Fallback {
		t.Errorf("expected strict hit, got %s fallback=%v", resp.LadderStep, resp.Fallback)
	}
	names := []string{resp.Products[0].Name, resp.Products[1].Name}
	if !reflect.DeepEqual(names, []string{"ThinkPad E14", "Chromebook Plus"}) {
		t.Errorf("unexpected products %v", names)
	}
	if resp.Entities == nil || !reflect.DeepEqual(resp.Entities.Categories, []string{"laptops"}) {
		t.Errorf("unexpected entities %+v", resp.Entities)
	}
	if resp.Entities.PriceMax == nil || *resp.Entities.PriceMax != 1000 {
		t.Errorf("expected price max 1000, got %+v", resp.Entities.PriceMax)
	}
}

func TestOrchestrator_ProcessMessage_RelaxesPriceOnSeed(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	resp := o.ProcessMessage(context.Background(), "show me laptops under $1000")

	if resp.LadderStep != StepCategory {
		t.Errorf("expected category step, got %s", resp.LadderStep)
	}
	if len(resp.Products) != 8 {
		t.Errorf("expected 8 laptops, got %d", len(resp.Products))
	}
	if resp.Response != "I found 8 products in laptops under $1000.00:" {
		t.Errorf("unexpected text %q", resp.Response)
	}
}

func TestOrchestrator_ProcessMessage_CheapSmartphones(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	resp := o.ProcessMessage(context.Background(), "cheap smartphones")

	if resp.Entities == nil || resp.Entities.PriceMax == nil || *resp.Entities.PriceMax != 200 {
		t.Fatalf("expected cheap to cap price at 200, got %+v", resp.Entities)
	}
	if resp.Type != models.ResponseProductSearch {
		t.Errorf("expected product_search, got %s", resp.Type)
	}
	for _, p := range resp.Products {
		if p.Category != "Smartphones" {
			t.Errorf("unexpected category %s", p.Category)
		}
	}
}

func TestOrchestrator_ProcessMessage_Comparison(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	resp := o.ProcessMessage(context.Background(), "compare iphone vs samsung")

	if resp.Intent != models.IntentComparison.String() {
		t.Errorf("expected comparison intent, got %s", resp.Intent)
	}
	if !reflect.DeepEqual(resp.Entities.Brands, []string{"apple", "samsung"}) {
		t.Errorf("expected brands [apple samsung], got %v", resp.Entities.Brands)
	}
	wantPrefix := "Here are 10 products you can compare"
	if !strings.HasPrefix(resp.Response, wantPrefix) {
		t.Errorf("expected prefix %q, got %q", wantPrefix, resp.Response)
	}
}

func TestOrchestrator_ProcessMessage_Recommendation(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	resp := o.ProcessMessage(context.Background(), "recommend headphones")

	if len(resp.Products) != 4 {
		t.Fatalf("expected 4 headphones, got %d", len(resp.Products))
	}
	want := "Based on your preferences, I recommend these 4 products in headphones:" +
		"\n\n💡 Top pick: **Sony WH-1000XM5** (⭐ 4.8/5) - $399.00"
	if resp.Response != want {
		t.Errorf("Response =\n%q\nwant\n%q", resp.Response, want)
	}
}

func TestOrchestrator_ProcessMessage_PopularFallback(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	resp := o.ProcessMessage(context.Background(), "find canon cameras")

	if !resp.Fallback || resp.LadderStep != StepPopular {
		t.Errorf("expected popular fallback, got step=%s fallback=%v", resp.LadderStep, resp.Fallback)
	}
	if resp.Response != fallbackText {
		t.Errorf("unexpected text %q", resp.Response)
	}
	if len(resp.Products) == 0 {
		t.Error("fallback should return popular products")
	}
}

func TestOrchestrator_ProcessMessage_BareSearchListsCatalog(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	for _, msg := range []string{"show me", "i want"} {
		resp := o.ProcessMessage(context.Background(), msg)
		if resp.Type != models.ResponseProductSearch {
			t.Fatalf("%q: expected product_search, got %s", msg, resp.Type)
		}
		if resp.Fallback {
			t.Errorf("%q: unfiltered search must not be labelled a fallback", msg)
		}
		if resp.Response != "I found 10 products:" {
			t.Errorf("%q: unexpected text %q", msg, resp.Response)
		}
	}
}

func TestOrchestrator_ProcessMessage_NoResults(t *testing.T) {
	o := newTestOrchestrator(catalog.NewMemory(), Options{})

	resp := o.ProcessMessage(context.Background(), "show me something")

	if resp.Type != models.ResponseNoResults {
		t.Fatalf("expected no_results, got %s", resp.Type)
	}
	if len(resp.Suggestions) == 0 {
		t.Error("expected suggestions")
	}
	if resp.Products == nil || len(resp.Products) != 0 {
		t.Errorf("expected empty non-nil products, got %v", resp.Products)
	}
}

func TestOrchestrator_ProcessMessage_Default(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	resp := o.ProcessMessage(context.Background(), "asdkjasd")

	if resp.Type != models.ResponseDefault {
		t.Fatalf("expected default, got %s", resp.Type)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0] != "search for asdkjasd" {
		t.Errorf("unexpected suggestions %v", resp.Suggestions)
	}
}

func TestOrchestrator_ProcessMessage_AvailabilityAndFeatures(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})

	if resp := o.ProcessMessage(context.Background(), "is the ps5 in stock"); resp.Type != models.ResponseAvailability {
		t.Errorf("expected availability, got %s", resp.Type)
	}
	if resp := o.ProcessMessage(context.Background(), "tell me about specs"); resp.Type != models.ResponseFeatures {
		t.Errorf("expected features, got %s", resp.Type)
	}
}

func TestOrchestrator_ProcessMessage_CatalogError(t *testing.T) {
	cache := newFakeCache()
	o := newTestOrchestrator(failingCatalog{err: errors.New("db down")}, Options{Cache: cache})

	resp := o.ProcessMessage(context.Background(), "laptops")

	if resp.Type != models.ResponseError {
		t.Fatalf("expected error type, got %s", resp.Type)
	}
	if resp.Response != errorText {
		t.Errorf("unexpected text %q", resp.Response)
	}
	if cache.sets != 0 {
		t.Error("error responses must not be cached")
	}
}

func TestOrchestrator_ProcessMessage_Timeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Search.QueryTimeout = time.Nanosecond
	o := New(lexicon.Default(), blockingCatalog{}, cfg.Chat, cfg.Search, zap.NewNop(), Options{})

	resp := o.ProcessMessage(context.Background(), "laptops")
	if resp.Type != models.ResponseError {
		t.Errorf("expected error on timeout, got %s", resp.Type)
	}
}

type blockingCatalog struct{}

func (blockingCatalog) Query(ctx context.Context, q catalog.Query) ([]models.Product, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestOrchestrator_ProcessMessage_CacheHit(t *testing.T) {
	cache := newFakeCache()
	rec := &recordingCatalog{next: seededCatalog()}
	o := newTestOrchestrator(rec, Options{Cache: cache})

	first := o.ProcessMessage(context.Background(), "Laptops")
	if first.CacheHit {
		t.Fatal("first response should not be a cache hit")
	}
	calls := rec.calls()

	second := o.ProcessMessage(context.Background(), "  laptops ")
	if !second.CacheHit {
		t.Error("expected normalized message to hit the cache")
	}
	if rec.calls() != calls {
		t.Errorf("cache hit should not query the catalog, got %d extra queries", rec.calls()-calls)
	}
	if second.Response != first.Response || len(second.Products) != len(first.Products) {
		t.Error("cached response differs from original")
	}
}

func TestOrchestrator_ProcessMessage_CacheDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Chat.CacheResponses = false
	cache := newFakeCache()
	o := New(lexicon.Default(), seededCatalog(), cfg.Chat, cfg.Search, zap.NewNop(), Options{Cache: cache})

	o.ProcessMessage(context.Background(), "laptops")
	if resp := o.ProcessMessage(context.Background(), "laptops"); resp.CacheHit {
		t.Error("cache should be bypassed when disabled")
	}
	if cache.sets != 0 {
		t.Errorf("expected no cache writes, got %d", cache.sets)
	}
}

func TestOrchestrator_ProcessMessage_Hydration(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{Hydrator: imageHydrator{}})

	resp := o.ProcessMessage(context.Background(), "tablets")
	for _, p := range resp.Products {
		if !strings.HasPrefix(p.ImageURL, "https://cdn.example.com/") {
			t.Errorf("product %s not hydrated", p.Name)
		}
	}
}

func TestOrchestrator_ProcessMessage_HydrationFailureKeepsProducts(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{Hydrator: brokenHydrator{}})

	resp := o.ProcessMessage(context.Background(), "tablets")
	if resp.Type != models.ResponseProductSearch || len(resp.Products) != 4 {
		t.Errorf("expected 4 tablets despite hydration failure, got %s/%d", resp.Type, len(resp.Products))
	}
}

func TestOrchestrator_ProcessMessage_Analytics(t *testing.T) {
	analytics := &fakeAnalytics{}
	o := newTestOrchestrator(seededCatalog(), Options{Analytics: analytics})

	ctx := WithSessionID(context.Background(), "session-1")
	o.ProcessMessage(ctx, "laptops")

	events := analytics.wait(t, 1)
	ev := events[0]
	if ev.SessionID != "session-1" {
		t.Errorf("expected session id, got %q", ev.SessionID)
	}
	if ev.MessageHash != MessageHash("laptops") {
		t.Errorf("unexpected hash %q", ev.MessageHash)
	}
	if ev.ResponseType != string(models.ResponseProductSearch) || ev.LadderStep != StepStrict {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.ProductCount != 8 {
		t.Errorf("expected 8 products, got %d", ev.ProductCount)
	}
}

func TestOrchestrator_ProcessMessage_Deterministic(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{})
	messages := []string{"hi", "cheap smartphones", "compare iphone vs samsung", "asdkjasd", "gaming laptops"}

	for _, msg := range messages {
		a := o.ProcessMessage(context.Background(), msg)
		b := o.ProcessMessage(context.Background(), msg)
		a.TookMs, b.TookMs = 0, 0
		if !reflect.DeepEqual(a, b) {
			t.Errorf("%q: responses differ between runs", msg)
		}
	}
}

func TestOrchestrator_ProcessMessage_ConcurrentIdentical(t *testing.T) {
	o := newTestOrchestrator(seededCatalog(), Options{Cache: newFakeCache()})

	var wg sync.WaitGroup
	results := make([]*models.ChatResponse, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.ProcessMessage(context.Background(), "gaming laptops")
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.Type != models.ResponseProductSearch {
			t.Errorf("result %d: unexpected type %s", i, r.Type)
		}
		for j := range results {
			if i != j && r == results[j] {
				t.Fatalf("results %d and %d share a pointer", i, j)
			}
		}
	}
}

// gatedCatalog blocks every query until release is closed.
type gatedCatalog struct {
	next    catalog.Catalog
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedCatalog) Query(ctx context.Context, q catalog.Query) ([]models.Product, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.next.Query(ctx, q)
}

func TestOrchestrator_ProcessMessage_CancelledCallerDoesNotFailOthers(t *testing.T) {
	cat := &gatedCatalog{
		next:    seededCatalog(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	o := newTestOrchestrator(cat, Options{Cache: newFakeCache()})

	ctxA, cancelA := context.WithCancel(context.Background())
	respA := make(chan *models.ChatResponse, 1)
	go func() { respA <- o.ProcessMessage(ctxA, "show me laptops") }()
	<-cat.entered

	respB := make(chan *models.ChatResponse, 1)
	go func() { respB <- o.ProcessMessage(context.Background(), "show me laptops") }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case a := <-respA:
		if a.Type != models.ResponseError {
			t.Errorf("cancelled caller: expected error, got %s", a.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(cat.release)
	b := <-respB
	if b.Type != models.ResponseProductSearch || len(b.Products) == 0 {
		t.Errorf("live caller: expected products, got %s with %d products", b.Type, len(b.Products))
	}
}

func TestSessionIDFromContext(t *testing.T) {
	if id := SessionIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty session id, got %q", id)
	}
	ctx := WithSessionID(context.Background(), "abc")
	if id := SessionIDFromContext(ctx); id != "abc" {
		t.Errorf("expected abc, got %q", id)
	}
}

func TestMessageHash(t *testing.T) {
	a := MessageHash("laptops")
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %q", a)
	}
	if a != MessageHash("laptops") {
		t.Error("hash must be stable")
	}
	if a == MessageHash("tablets") {
		t.Error("different messages should hash differently")
	}
}

func TestLadderDepth(t *testing.T) {
	if ladderDepth(StepStrict) != 1 || ladderDepth(StepPopular) != 6 || ladderDepth("") != 0 {
		t.Error("unexpected ladder depth")
	}
}
