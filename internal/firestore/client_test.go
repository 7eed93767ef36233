package firestore

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/shubhsaxena/chat-search/internal/models"
)

func TestApplyDocument(t *testing.T) {
	p := models.Product{ID: 1, Name: "Kindle", Price: 99}
	applyDocument(&p, map[string]any{
		"image_url": "https://img.example.com/kindle.png",
		"color":     "black",
		"price":     1.0,
		"name":      "overwritten?",
	})

	if p.ImageURL != "https://img.example.com/kindle.png" {
		t.Errorf("expected image url, got %q", p.ImageURL)
	}
	if p.Attributes["color"] != "black" {
		t.Errorf("expected color attribute, got %v", p.Attributes)
	}
	if p.Price != 99 || p.Name != "Kindle" {
		t.Errorf("catalog fields must not be overwritten, got %+v", p)
	}
	if _, ok := p.Attributes["price"]; ok {
		t.Error("catalog fields must not leak into attributes")
	}
}

func TestApplyDocument_DoesNotMutateSharedAttributes(t *testing.T) {
	shared := map[string]any{"warranty": "1y"}
	p := models.Product{ID: 1, Attributes: shared}

	applyDocument(&p, map[string]any{"color": "silver"})

	if _, ok := shared["color"]; ok {
		t.Error("hydration wrote into a shared attributes map")
	}
	if p.Attributes["warranty"] != "1y" || p.Attributes["color"] != "silver" {
		t.Errorf("expected merged attributes, got %v", p.Attributes)
	}
}

func TestProductFromDoc(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p, err := productFromDoc("42", map[string]any{
		"name":           "Pixel 8",
		"category":       "Smartphones",
		"brand":          "Google",
		"price":          699.0,
		"rating":         4.5,
		"stock_quantity": int64(12),
		"features":       []any{"Tensor G3", 7},
		"created_at":     created,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != 42 || p.Name != "Pixel 8" || p.Price != 699 || p.StockQuantity != 12 {
		t.Errorf("unexpected product %+v", p)
	}
	if len(p.Features) != 1 || p.Features[0] != "Tensor G3" {
		t.Errorf("expected only string features, got %v", p.Features)
	}
	if !p.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, p.CreatedAt)
	}
}

func TestProductFromDoc_Invalid(t *testing.T) {
	if _, err := productFromDoc("abc", map[string]any{"name": "x"}); err == nil {
		t.Error("expected error for non-numeric id")
	}
	if _, err := productFromDoc("1", map[string]any{}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestChangeEvent(t *testing.T) {
	data := map[string]any{"name": "Switch", "price": int64(349)}
	updated := time.Unix(100, 0)

	tests := []struct {
		kind     firestore.DocumentChangeKind
		wantType string
	}{
		{firestore.DocumentAdded, "CREATE"},
		{firestore.DocumentModified, "UPDATE"},
		{firestore.DocumentRemoved, "DELETE"},
	}

	for _, tt := range tests {
		t.Run(tt.wantType, func(t *testing.T) {
			ev, err := changeEvent(tt.kind, "7", data, updated)
			if err != nil {
				t.Fatal(err)
			}
			if ev.Type != tt.wantType || ev.ProductID != 7 {
				t.Errorf("unexpected event %+v", ev)
			}
			if ev.Version != updated.UnixNano() {
				t.Errorf("expected version from update time, got %d", ev.Version)
			}
			if tt.wantType == "DELETE" && ev.Product != nil {
				t.Error("delete events carry no product")
			}
			if tt.wantType != "DELETE" && (ev.Product == nil || ev.Product.Price != 349) {
				t.Errorf("expected decoded product, got %+v", ev.Product)
			}
		})
	}
}
