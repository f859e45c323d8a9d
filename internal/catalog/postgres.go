package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore serves the product catalog from PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			price DOUBLE PRECISION,
			description TEXT NOT NULL DEFAULT '',
			promotion TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			brand TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			opening_hours TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_products_name ON products (lower(name));`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// searchFields is the fixed allow-list of searchable text columns.
var searchFields = []string{"name", "description", "keywords", "category", "brand", "address", "opening_hours"}

func (s *PostgresStore) Search(ctx context.Context, tokens []string, limit int) ([]Product, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	// One ILIKE group per token, OR-ed across tokens and fields: a record
	// matches when any token appears in any searchable column.
	var (
		groups []string
		args   []any
	)
	for i, token := range tokens {
		arg := "%" + token + "%"
		args = append(args, arg)
		conds := make([]string, 0, len(searchFields))
		for _, field := range searchFields {
			conds = append(conds, fmt.Sprintf("%s ILIKE $%d", field, i+1))
		}
		groups = append(groups, "("+strings.Join(conds, " OR ")+")")
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT name, price, description, promotion, category, brand, keywords, address, opening_hours
		 FROM products WHERE %s LIMIT $%d`,
		strings.Join(groups, " OR "), len(tokens)+1,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var (
			p     Product
			price *float64
		)
		if err := rows.Scan(&p.Name, &price, &p.Description, &p.Promotion, &p.Category, &p.Brand, &p.Keywords, &p.Address, &p.OpeningHours); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if price != nil {
			p.Price = *price
			p.HasPrice = true
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
