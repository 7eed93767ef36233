package elasticsearch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/models"
)

func price(v float64) *float64 { return &v }

func filtersOf(t *testing.T, body map[string]any) []any {
	t.Helper()
	query, ok := body["query"].(map[string]any)
	if !ok {
		t.Fatal("expected 'query' key in result")
	}
	b, ok := query["bool"].(map[string]any)
	if !ok {
		t.Fatalf("expected bool query, got %v", query)
	}
	filters, ok := b["filter"].([]any)
	if !ok {
		t.Fatalf("expected filter clause, got %v", b)
	}
	return filters
}

func TestBuildQuery_Unfiltered(t *testing.T) {
	body := BuildQuery(catalog.Query{Limit: 10})

	query := body["query"].(map[string]any)
	if _, ok := query["match_all"]; !ok {
		t.Errorf("expected match_all for unfiltered query, got %v", query)
	}
	if body["size"] != 10 {
		t.Errorf("expected size=10, got %v", body["size"])
	}
}

func TestBuildQuery_NoLimitOmitsSize(t *testing.T) {
	body := BuildQuery(catalog.Query{})
	if _, ok := body["size"]; ok {
		t.Error("size should be omitted without a limit")
	}
}

func TestBuildQuery_Sort(t *testing.T) {
	body := BuildQuery(catalog.Query{})

	sorts, ok := body["sort"].([]any)
	if !ok || len(sorts) != 3 {
		t.Fatalf("expected 3 sort clauses, got %v", body["sort"])
	}
	first := sorts[0].(map[string]any)["rating"].(map[string]any)
	if first["order"] != "desc" {
		t.Errorf("expected rating desc first, got %v", first)
	}
	second := sorts[1].(map[string]any)["price"].(map[string]any)
	if second["order"] != "asc" {
		t.Errorf("expected price asc second, got %v", second)
	}
}

func TestBuildQuery_CategoriesAreAnded(t *testing.T) {
	filters := filtersOf(t, BuildQuery(catalog.Query{Categories: []string{"Laptops", "gaming"}}))

	if len(filters) != 2 {
		t.Fatalf("expected one filter per category, got %d", len(filters))
	}
	wc := filters[0].(map[string]any)["wildcard"].(map[string]any)["category.raw"].(map[string]any)
	if wc["value"] != "*laptops*" {
		t.Errorf("expected lowercase substring pattern, got %v", wc["value"])
	}
	if wc["case_insensitive"] != true {
		t.Error("expected case_insensitive wildcard")
	}
}

func TestBuildQuery_BrandsAreOred(t *testing.T) {
	filters := filtersOf(t, BuildQuery(catalog.Query{Brands: []string{"apple", "samsung"}}))

	if len(filters) != 1 {
		t.Fatalf("expected a single brand clause, got %d", len(filters))
	}
	b := filters[0].(map[string]any)["bool"].(map[string]any)
	if b["minimum_should_match"] != 1 {
		t.Errorf("expected minimum_should_match=1, got %v", b["minimum_should_match"])
	}
	if should := b["should"].([]any); len(should) != 2 {
		t.Errorf("expected 2 should clauses, got %d", len(should))
	}
}

func TestBuildQuery_KeywordModes(t *testing.T) {
	all := filtersOf(t, BuildQuery(catalog.Query{
		Keywords:    []string{"gaming", "oled"},
		KeywordMode: catalog.MatchAllKeywords,
	}))
	if len(all) != 2 {
		t.Errorf("all mode should add one filter per keyword, got %d", len(all))
	}
	perField := all[0].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	if len(perField) != len(textFields) {
		t.Errorf("expected keyword to be matched across %d fields, got %d", len(textFields), len(perField))
	}

	anyMode := filtersOf(t, BuildQuery(catalog.Query{
		Keywords:    []string{"gaming", "oled"},
		KeywordMode: catalog.MatchAnyKeyword,
	}))
	if len(anyMode) != 1 {
		t.Fatalf("any mode should add a single filter, got %d", len(anyMode))
	}
	should := anyMode[0].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	if len(should) != 2 {
		t.Errorf("expected one should clause per keyword, got %d", len(should))
	}
}

func TestBuildQuery_PriceRange(t *testing.T) {
	filters := filtersOf(t, BuildQuery(catalog.Query{PriceMin: price(200), PriceMax: price(500)}))

	r := filters[0].(map[string]any)["range"].(map[string]any)["price"].(map[string]any)
	if r["gte"] != 200.0 || r["lte"] != 500.0 {
		t.Errorf("unexpected range %v", r)
	}

	filters = filtersOf(t, BuildQuery(catalog.Query{PriceMax: price(100)}))
	r = filters[0].(map[string]any)["range"].(map[string]any)["price"].(map[string]any)
	if _, ok := r["gte"]; ok {
		t.Errorf("unexpected lower bound %v", r)
	}
}

func TestBuildQuery_EscapesWildcards(t *testing.T) {
	filters := filtersOf(t, BuildQuery(catalog.Query{Categories: []string{`a*b?c\`}}))

	wc := filters[0].(map[string]any)["wildcard"].(map[string]any)["category.raw"].(map[string]any)
	if wc["value"] != `*a\*b\?c\\*` {
		t.Errorf("expected escaped pattern, got %v", wc["value"])
	}
}

func TestBuildQuery_Serializable(t *testing.T) {
	body := BuildQuery(catalog.Query{
		Categories: []string{"laptops"},
		Brands:     []string{"dell"},
		Keywords:   []string{"gaming"},
		PriceMax:   price(2000),
		Limit:      5,
	})
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"brand.raw"`) {
		t.Errorf("expected brand.raw wildcard in %s", data)
	}
}

func TestIndexMapping_HasRawSubfields(t *testing.T) {
	props := IndexMapping()["mappings"].(map[string]any)["properties"].(map[string]any)
	for _, f := range textFields {
		field, ok := props[f].(map[string]any)
		if !ok {
			t.Fatalf("missing mapping for %s", f)
		}
		if _, ok := field["fields"].(map[string]any)["raw"]; !ok {
			t.Errorf("field %s has no raw subfield", f)
		}
	}
}

func TestIndexMapping_DescriptionHasNoLengthCap(t *testing.T) {
	props := IndexMapping()["mappings"].(map[string]any)["properties"].(map[string]any)
	raw := props["description"].(map[string]any)["fields"].(map[string]any)["raw"].(map[string]any)

	if raw["type"] != "wildcard" {
		t.Errorf("description.raw type = %v, want wildcard", raw["type"])
	}
	if _, ok := raw["ignore_above"]; ok {
		t.Error("description.raw must not drop long values")
	}
}

func TestProductDocument(t *testing.T) {
	p := models.Product{ID: 7, Name: "Kindle", Price: 99, Category: "Books", Brand: "Amazon", Rating: 4.6}
	doc := ProductDocument(p)

	if doc["id"] != int64(7) || doc["name"] != "Kindle" {
		t.Errorf("unexpected document %v", doc)
	}
	if _, ok := doc["created_at"]; ok {
		t.Error("zero created_at should be omitted")
	}
	if _, ok := doc["image_url"]; ok {
		t.Error("empty image_url should be omitted")
	}

	p.CreatedAt = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if _, ok := ProductDocument(p)["created_at"]; !ok {
		t.Error("expected created_at")
	}
}

func TestProductDocument_RoundTripsThroughSource(t *testing.T) {
	p := models.Product{ID: 3, Name: "Xbox Series X", Price: 499, Category: "Gaming", Brand: "Microsoft",
		Rating: 4.7, Features: []string{"4K", "120fps"}}
	data, _ := json.Marshal(ProductDocument(p))

	got, err := decodeProduct(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 3 || got.Name != p.Name || got.Price != 499 || len(got.Features) != 2 {
		t.Errorf("unexpected product %+v", got)
	}
}

func TestIndexActionFor(t *testing.T) {
	p := &models.Product{ID: 9, Name: "Pixel 8"}

	tests := []struct {
		name       string
		event      models.ProductChangeEvent
		wantAction string
		wantErr    bool
	}{
		{"create", models.ProductChangeEvent{Type: "CREATE", ProductID: 9, Product: p}, "index", false},
		{"update lowercase", models.ProductChangeEvent{Type: "update", ProductID: 9, Product: p}, "index", false},
		{"delete", models.ProductChangeEvent{Type: "DELETE", ProductID: 9}, "delete", false},
		{"update without payload", models.ProductChangeEvent{Type: "UPDATE", ProductID: 9}, "", true},
		{"unknown", models.ProductChangeEvent{Type: "PATCH", ProductID: 9}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := IndexActionFor("products", tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IndexActionFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if action.Action != tt.wantAction || action.ID != "9" || action.Index != "products" {
				t.Errorf("unexpected action %+v", action)
			}
			if tt.wantAction == "delete" && action.Body != nil {
				t.Error("delete actions carry no body")
			}
		})
	}
}

func TestBuildBulkBody(t *testing.T) {
	actions := []models.IndexAction{
		{Action: "index", Index: "products", ID: "1", Body: map[string]any{"name": "a"}},
		{Action: "delete", Index: "products", ID: "2"},
	}

	payload, err := buildBulkBody(actions)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(payload), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected meta+body for index and meta for delete, got %d lines: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], `"index"`) || !strings.Contains(lines[2], `"delete"`) {
		t.Errorf("unexpected bulk payload %q", lines)
	}
}
