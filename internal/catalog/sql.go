package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
	"github.com/shubhsaxena/chat-search/internal/resilience"
)

type dialect struct {
	name   string
	driver string
	like   string
	serial string
	real   string
	// rebind turns the n-th (1-based) argument into a placeholder.
	rebind func(n int) string
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		like:   "LIKE",
		serial: "INTEGER PRIMARY KEY AUTOINCREMENT",
		real:   "REAL",
		rebind: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:   "postgres",
		driver: "pgx",
		like:   "ILIKE",
		serial: "BIGSERIAL PRIMARY KEY",
		real:   "DOUBLE PRECISION",
		rebind: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

const productColumns = "id, name, description, price, category, brand, stock_quantity, image_url, rating, features"

// SQLStore keeps the catalog in a relational database. SQLite is the default;
// Postgres is reached through pgx's database/sql driver.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func OpenSQL(ctx context.Context, cfg config.CatalogConfig, cbCfg config.CircuitBreakerConfig, logger *zap.Logger) (*SQLStore, error) {
	var d dialect
	switch cfg.Backend {
	case "sqlite":
		d = sqliteDialect
	case "postgres":
		d = postgresDialect
	default:
		return nil, fmt.Errorf("unsupported sql backend %q", cfg.Backend)
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s catalog: %w", d.name, err)
	}

	if d.name == "sqlite" {
		// single writer; WAL lets readers proceed
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("setting sqlite pragma: %w", err)
			}
		}
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s catalog: %w", d.name, err)
	}

	s := &SQLStore{
		db:      db,
		dialect: d,
		cb:      resilience.NewCircuitBreaker("catalog-"+d.name, cbCfg, logger),
		logger:  logger,
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	observability.ActiveConnections.WithLabelValues(d.name).Set(float64(db.Stats().OpenConnections))
	return s, nil
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id %s,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price %s NOT NULL,
			category TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			stock_quantity INTEGER NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			rating %s NOT NULL DEFAULT 0,
			features TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.dialect.serial, s.dialect.real, s.dialect.real),
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category)`,
		`CREATE INDEX IF NOT EXISTS idx_products_brand ON products (brand)`,
		`CREATE INDEX IF NOT EXISTS idx_products_rating_price ON products (rating DESC, price ASC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating catalog schema: %w", err)
		}
	}
	return nil
}

// Query runs one filter specification through the circuit breaker. Results
// come back ordered by rating desc, price asc.
func (s *SQLStore) Query(ctx context.Context, q Query) ([]models.Product, error) {
	ctx, span := observability.StartSpan(ctx, "catalog.query")
	defer span.End()

	w := s.where()
	for _, c := range q.Categories {
		w.and("category " + s.dialect.like + " " + w.arg(likePattern(c)) + ` ESCAPE '\'`)
	}
	if len(q.Brands) > 0 {
		var ors []string
		for _, b := range q.Brands {
			ors = append(ors, "brand "+s.dialect.like+" "+w.arg(likePattern(b))+` ESCAPE '\'`)
		}
		w.and("(" + strings.Join(ors, " OR ") + ")")
	}
	if len(q.Keywords) > 0 {
		joiner := " AND "
		if q.KeywordMode == MatchAnyKeyword {
			joiner = " OR "
		}
		var parts []string
		for _, kw := range q.Keywords {
			parts = append(parts, w.anyColumn(likePattern(kw), "name", "description", "category", "brand"))
		}
		w.and("(" + strings.Join(parts, joiner) + ")")
	}
	if q.PriceMin != nil {
		w.and("price >= " + w.arg(*q.PriceMin))
	}
	if q.PriceMax != nil {
		w.and("price <= " + w.arg(*q.PriceMax))
	}

	stmt := "SELECT " + productColumns + " FROM products" + w.clause() + " ORDER BY rating DESC, price ASC, id ASC"
	if q.Limit > 0 {
		stmt += " LIMIT " + w.arg(q.Limit)
	}

	start := time.Now()
	result, err := s.cb.Execute(func() (any, error) {
		return s.queryProducts(ctx, stmt, w.args...)
	})
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CatalogQueryDuration.WithLabelValues(s.dialect.name, status).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	return result.([]models.Product), nil
}

func (s *SQLStore) List(ctx context.Context, category string, page, perPage int) ([]models.Product, int, error) {
	w := s.where()
	if category != "" {
		w.and("category " + s.dialect.like + " " + w.arg(likePattern(category)) + ` ESCAPE '\'`)
	}
	return s.page(ctx, w, "ORDER BY id ASC", page, perPage)
}

func (s *SQLStore) Get(ctx context.Context, id int64) (*models.Product, error) {
	w := s.where()
	w.and("id = " + w.arg(id))
	products, err := s.queryProducts(ctx, "SELECT "+productColumns+" FROM products"+w.clause(), w.args...)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return &products[0], nil
}

func (s *SQLStore) Search(ctx context.Context, ps ProductSearch) ([]models.Product, int, error) {
	w := s.where()
	if text := strings.TrimSpace(ps.Text); text != "" {
		w.and(w.anyColumn(likePattern(text), "name", "description", "features", "brand"))
	}
	if ps.Category != "" {
		w.and("category " + s.dialect.like + " " + w.arg(likePattern(ps.Category)) + ` ESCAPE '\'`)
	}
	if ps.Brand != "" {
		w.and("brand " + s.dialect.like + " " + w.arg(likePattern(ps.Brand)) + ` ESCAPE '\'`)
	}
	if ps.PriceMin != nil {
		w.and("price >= " + w.arg(*ps.PriceMin))
	}
	if ps.PriceMax != nil {
		w.and("price <= " + w.arg(*ps.PriceMax))
	}
	return s.page(ctx, w, "ORDER BY id ASC", ps.Page, ps.PerPage)
}

func (s *SQLStore) Categories(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "category")
}

func (s *SQLStore) Brands(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "brand")
}

// Upsert inserts p, assigning an id when p.ID is zero, or replaces the row
// with the same id.
func (s *SQLStore) Upsert(ctx context.Context, p *models.Product) error {
	features, err := json.Marshal(nonNil(p.Features))
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}

	cols := "name, description, price, category, brand, stock_quantity, image_url, rating, features"
	w := s.where()
	values := func() string {
		return strings.Join([]string{
			w.arg(p.Name), w.arg(p.Description), w.arg(p.Price), w.arg(p.Category), w.arg(p.Brand),
			w.arg(p.StockQuantity), w.arg(p.ImageURL), w.arg(p.Rating), w.arg(string(features)),
		}, ", ")
	}

	if p.ID == 0 {
		stmt := "INSERT INTO products (" + cols + ") VALUES (" + values() + ") RETURNING id"
		if err := s.db.QueryRowContext(ctx, stmt, w.args...).Scan(&p.ID); err != nil {
			return fmt.Errorf("inserting product: %w", err)
		}
		return nil
	}

	// placeholders must follow argument order for sqlite
	idArg := w.arg(p.ID)
	stmt := "INSERT INTO products (id, " + cols + ") VALUES (" + idArg + ", " + values() + `)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price = excluded.price,
			category = excluded.category,
			brand = excluded.brand,
			stock_quantity = excluded.stock_quantity,
			image_url = excluded.image_url,
			rating = excluded.rating,
			features = excluded.features`
	if _, err := s.db.ExecContext(ctx, stmt, w.args...); err != nil {
		return fmt.Errorf("upserting product %d: %w", p.ID, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	w := s.where()
	stmt := "DELETE FROM products WHERE id = " + w.arg(id)
	if _, err := s.db.ExecContext(ctx, stmt, w.args...); err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

func (s *SQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Name reports the SQL dialect, used as the metrics backend label.
func (s *SQLStore) Name() string {
	return s.dialect.name
}

func (s *SQLStore) page(ctx context.Context, w *whereBuilder, order string, page, perPage int) ([]models.Product, int, error) {
	page, perPage = normalizePage(page, perPage)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	stmt := "SELECT " + productColumns + " FROM products" + w.clause() + " " + order +
		" LIMIT " + w.arg(perPage) + " OFFSET " + w.arg((page-1)*perPage)
	products, err := s.queryProducts(ctx, stmt, w.args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *SQLStore) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT "+column+" FROM products WHERE "+column+" <> '' ORDER BY "+column)
	if err != nil {
		return nil, fmt.Errorf("listing %s values: %w", column, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLStore) queryProducts(ctx context.Context, stmt string, args ...any) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var (
			p        models.Product
			features string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Brand,
			&p.StockQuantity, &p.ImageURL, &p.Rating, &features); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		if features != "" {
			if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
				s.logger.Warn("invalid features column", zap.Int64("product_id", p.ID), zap.Error(err))
			}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

type whereBuilder struct {
	d     dialect
	conds []string
	args  []any
}

func (s *SQLStore) where() *whereBuilder {
	return &whereBuilder{d: s.dialect}
}

func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return w.d.rebind(len(w.args))
}

func (w *whereBuilder) and(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) anyColumn(pattern string, columns ...string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + " " + w.d.like + " " + w.arg(pattern) + ` ESCAPE '\'`
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// IsNotFound reports whether err means the product does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
