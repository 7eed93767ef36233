package elasticsearch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/models"
)

// textFields are matched by keyword filters. Each has a "raw" subfield
// (lowercase keyword, or wildcard for description) so case-insensitive
// wildcards behave like substring matches.
var textFields = []string{"name", "description", "category", "brand"}

// BuildQuery translates a catalog query into an Elasticsearch request body
// with the same semantics as catalog.Query.Matches and the same ordering as
// catalog.SortByPopularity.
func BuildQuery(q catalog.Query) map[string]any {
	var filters []any

	for _, c := range q.Categories {
		filters = append(filters, contains("category", c))
	}

	if len(q.Brands) > 0 {
		should := make([]any, 0, len(q.Brands))
		for _, b := range q.Brands {
			should = append(should, contains("brand", b))
		}
		filters = append(filters, anyOf(should))
	}

	if len(q.Keywords) > 0 {
		perKeyword := make([]any, 0, len(q.Keywords))
		for _, kw := range q.Keywords {
			fields := make([]any, 0, len(textFields))
			for _, f := range textFields {
				fields = append(fields, contains(f, kw))
			}
			perKeyword = append(perKeyword, anyOf(fields))
		}
		if q.KeywordMode == catalog.MatchAnyKeyword {
			filters = append(filters, anyOf(perKeyword))
		} else {
			filters = append(filters, perKeyword...)
		}
	}

	if q.PriceMin != nil || q.PriceMax != nil {
		bounds := map[string]any{}
		if q.PriceMin != nil {
			bounds["gte"] = *q.PriceMin
		}
		if q.PriceMax != nil {
			bounds["lte"] = *q.PriceMax
		}
		filters = append(filters, map[string]any{"range": map[string]any{"price": bounds}})
	}

	var query map[string]any
	if len(filters) == 0 {
		query = map[string]any{"match_all": map[string]any{}}
	} else {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}

	body := map[string]any{
		"query": query,
		"sort": []any{
			map[string]any{"rating": map[string]any{"order": "desc"}},
			map[string]any{"price": map[string]any{"order": "asc"}},
			map[string]any{"id": map[string]any{"order": "asc"}},
		},
		"track_total_hits": false,
	}
	if q.Limit > 0 {
		body["size"] = q.Limit
	}
	return body
}

func contains(field, value string) map[string]any {
	return map[string]any{
		"wildcard": map[string]any{
			field + ".raw": map[string]any{
				"value":            "*" + escapeWildcard(strings.ToLower(value)) + "*",
				"case_insensitive": true,
			},
		},
	}
}

func anyOf(clauses []any) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"should":               clauses,
			"minimum_should_match": 1,
		},
	}
}

func escapeWildcard(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

// IndexMapping is the body used to create the products index.
func IndexMapping() map[string]any {
	rawText := func() map[string]any {
		return map[string]any{
			"type": "text",
			"fields": map[string]any{
				"raw": map[string]any{
					"type":         "keyword",
					"normalizer":   "lowercase_normalizer",
					"ignore_above": 4096,
				},
			},
		}
	}
	// wildcard fields have no length cap, so long descriptions stay matchable
	longText := func() map[string]any {
		return map[string]any{
			"type": "text",
			"fields": map[string]any{
				"raw": map[string]any{"type": "wildcard"},
			},
		}
	}
	return map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"normalizer": map[string]any{
					"lowercase_normalizer": map[string]any{
						"type":   "custom",
						"filter": []string{"lowercase"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":             map[string]any{"type": "long"},
				"name":           rawText(),
				"description":    longText(),
				"category":       rawText(),
				"brand":          rawText(),
				"price":          map[string]any{"type": "double"},
				"rating":         map[string]any{"type": "float"},
				"stock_quantity": map[string]any{"type": "integer"},
				"image_url":      map[string]any{"type": "keyword", "index": false},
				"features":       map[string]any{"type": "text"},
				"created_at":     map[string]any{"type": "date"},
			},
		},
	}
}

// ProductDocument is the indexed form of a product.
func ProductDocument(p models.Product) map[string]any {
	doc := map[string]any{
		"id":             p.ID,
		"name":           p.Name,
		"description":    p.Description,
		"price":          p.Price,
		"category":       p.Category,
		"brand":          p.Brand,
		"stock_quantity": p.StockQuantity,
		"rating":         p.Rating,
		"features":       p.Features,
	}
	if p.ImageURL != "" {
		doc["image_url"] = p.ImageURL
	}
	if !p.CreatedAt.IsZero() {
		doc["created_at"] = p.CreatedAt
	}
	return doc
}

// IndexActionFor turns a product change into a bulk action against index.
func IndexActionFor(index string, ev models.ProductChangeEvent) (models.IndexAction, error) {
	action := models.IndexAction{
		Index:     index,
		ID:        fmt.Sprintf("%d", ev.ProductID),
		Timestamp: ev.Timestamp,
	}
	switch strings.ToUpper(ev.Type) {
	case "DELETE":
		action.Action = "delete"
	case "CREATE", "UPDATE":
		if ev.Product == nil {
			return action, fmt.Errorf("%s event for product %d has no payload", ev.Type, ev.ProductID)
		}
		action.Action = "index"
		action.Body = ProductDocument(*ev.Product)
	default:
		return action, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return action, nil
}

func decodeProduct(source json.RawMessage) (models.Product, error) {
	var p models.Product
	if err := json.Unmarshal(source, &p); err != nil {
		return p, fmt.Errorf("decoding product source: %w", err)
	}
	return p, nil
}
