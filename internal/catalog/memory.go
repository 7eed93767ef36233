package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/shubhsaxena/chat-search/internal/models"
)

// ErrNotFound is returned when a product id does not exist.
var ErrNotFound = errors.New("product not found")

// Memory is a slice-backed catalog. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	products []models.Product
	nextID   int64
}

func NewMemory(products ...models.Product) *Memory {
	m := &Memory{nextID: 1}
	for i := range products {
		p := products[i]
		_ = m.Upsert(context.Background(), &p)
	}
	return m
}

func (m *Memory) Query(ctx context.Context, q Query) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var matched []models.Product
	for i := range m.products {
		if q.Matches(&m.products[i]) {
			matched = append(matched, m.products[i])
		}
	}
	m.mu.RUnlock()

	SortByPopularity(matched)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (m *Memory) List(ctx context.Context, category string, page, perPage int) ([]models.Product, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.Product
	for _, p := range m.products {
		if category == "" || strings.Contains(strings.ToLower(p.Category), strings.ToLower(category)) {
			matched = append(matched, p)
		}
	}
	return paginate(matched, page, perPage), len(matched), nil
}

func (m *Memory) Get(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.products {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Search(ctx context.Context, s ProductSearch) ([]models.Product, int, error) {
	text := strings.ToLower(strings.TrimSpace(s.Text))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.Product
	for _, p := range m.products {
		fields := []string{
			strings.ToLower(p.Name),
			strings.ToLower(p.Description),
			strings.ToLower(strings.Join(p.Features, " ")),
			strings.ToLower(p.Brand),
		}
		if text != "" && !anyContains(fields, text) {
			continue
		}
		if s.Category != "" && !strings.Contains(strings.ToLower(p.Category), strings.ToLower(s.Category)) {
			continue
		}
		if s.Brand != "" && !strings.Contains(strings.ToLower(p.Brand), strings.ToLower(s.Brand)) {
			continue
		}
		if s.PriceMin != nil && p.Price < *s.PriceMin {
			continue
		}
		if s.PriceMax != nil && p.Price > *s.PriceMax {
			continue
		}
		matched = append(matched, p)
	}
	return paginate(matched, s.Page, s.PerPage), len(matched), nil
}

func (m *Memory) Categories(ctx context.Context) ([]string, error) {
	return m.distinct(func(p models.Product) string { return p.Category }), nil
}

func (m *Memory) Brands(ctx context.Context) ([]string, error) {
	return m.distinct(func(p models.Product) string { return p.Brand }), nil
}

func (m *Memory) Upsert(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == 0 {
		p.ID = m.nextID
	}
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
	}
	for i := range m.products {
		if m.products[i].ID == p.ID {
			m.products[i] = *p
			return nil
		}
	}
	m.products = append(m.products, *p)
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.products {
		if m.products[i].ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.products)
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	return m.Len(), nil
}

func (m *Memory) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) Name() string {
	return "memory"
}

func (m *Memory) distinct(field func(models.Product) string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, p := range m.products {
		v := field(p)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func paginate(products []models.Product, page, perPage int) []models.Product {
	page, perPage = normalizePage(page, perPage)
	start := (page - 1) * perPage
	if start >= len(products) {
		return []models.Product{}
	}
	end := start + perPage
	if end > len(products) {
		end = len(products)
	}
	return products[start:end]
}
