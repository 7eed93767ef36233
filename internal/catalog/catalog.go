// Package catalog defines the product query contract the chat engine relies
// on, plus the in-memory and SQL stores that satisfy it.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/shubhsaxena/chat-search/internal/models"
)

// Catalog answers filtered product queries. Results are always ordered by
// rating descending, then price ascending, and truncated to Query.Limit.
type Catalog interface {
	Query(ctx context.Context, q Query) ([]models.Product, error)
}

// Browser is the read surface used by the product API.
type Browser interface {
	List(ctx context.Context, category string, page, perPage int) ([]models.Product, int, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	Search(ctx context.Context, s ProductSearch) ([]models.Product, int, error)
	Categories(ctx context.Context) ([]string, error)
	Brands(ctx context.Context) ([]string, error)
}

// Writer is the mutation surface used by indexing and seeding.
type Writer interface {
	Upsert(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id int64) error
}

// Store is a full catalog backend: queried by the chat engine, browsed by the
// product API and written by seeding and indexing.
type Store interface {
	Catalog
	Browser
	Writer
	Count(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
	Name() string
	Close() error
}

type KeywordMode int

const (
	// MatchAllKeywords requires every keyword to hit at least one field.
	MatchAllKeywords KeywordMode = iota
	// MatchAnyKeyword requires a single keyword to hit a single field.
	MatchAnyKeyword
)

func (m KeywordMode) String() string {
	if m == MatchAnyKeyword {
		return "any"
	}
	return "all"
}

// Query is one filter specification. Categories are ANDed, brands are ORed,
// keywords follow KeywordMode across name, description, category and brand.
// Every comparison is a case-insensitive substring match.
type Query struct {
	Categories  []string
	Brands      []string
	Keywords    []string
	KeywordMode KeywordMode
	PriceMin    *float64
	PriceMax    *float64
	Limit       int
}

// Unfiltered reports whether the query carries no predicate at all.
func (q Query) Unfiltered() bool {
	return len(q.Categories) == 0 && len(q.Brands) == 0 && len(q.Keywords) == 0 &&
		q.PriceMin == nil && q.PriceMax == nil
}

// Equal compares filter content, ignoring slice identity. KeywordMode is
// irrelevant with fewer than two keywords.
func (q Query) Equal(o Query) bool {
	return equalStrings(q.Categories, o.Categories) &&
		equalStrings(q.Brands, o.Brands) &&
		equalStrings(q.Keywords, o.Keywords) &&
		(len(q.Keywords) < 2 || q.KeywordMode == o.KeywordMode) &&
		equalBound(q.PriceMin, o.PriceMin) &&
		equalBound(q.PriceMax, o.PriceMax) &&
		q.Limit == o.Limit
}

// Matches evaluates the query predicate against a single product.
func (q Query) Matches(p *models.Product) bool {
	category := strings.ToLower(p.Category)
	for _, c := range q.Categories {
		if !strings.Contains(category, strings.ToLower(c)) {
			return false
		}
	}

	if len(q.Brands) > 0 {
		brand := strings.ToLower(p.Brand)
		hit := false
		for _, b := range q.Brands {
			if strings.Contains(brand, strings.ToLower(b)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}

	if len(q.Keywords) > 0 {
		fields := []string{
			strings.ToLower(p.Name),
			strings.ToLower(p.Description),
			category,
			strings.ToLower(p.Brand),
		}
		if q.KeywordMode == MatchAnyKeyword {
			hit := false
			for _, kw := range q.Keywords {
				if anyContains(fields, strings.ToLower(kw)) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		} else {
			for _, kw := range q.Keywords {
				if !anyContains(fields, strings.ToLower(kw)) {
					return false
				}
			}
		}
	}

	if q.PriceMin != nil && p.Price < *q.PriceMin {
		return false
	}
	if q.PriceMax != nil && p.Price > *q.PriceMax {
		return false
	}
	return true
}

// SortByPopularity orders products by rating descending, then price
// ascending. The sort is stable so equal products keep catalog order.
func SortByPopularity(products []models.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Rating != products[j].Rating {
			return products[i].Rating > products[j].Rating
		}
		return products[i].Price < products[j].Price
	})
}

// ProductSearch is the free-text browse query of the product API.
type ProductSearch struct {
	Text     string
	Category string
	Brand    string
	PriceMin *float64
	PriceMax *float64
	Page     int
	PerPage  int
}

func anyContains(fields []string, needle string) bool {
	for _, f := range fields {
		if strings.Contains(f, needle) {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalBound(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
