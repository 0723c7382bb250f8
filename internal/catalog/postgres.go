package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"finitefield.org/saro-web/internal/boutique"
)

const listProductsSQL = `
	SELECT id, name, price::float8, COALESCE(currency, ''), category, images, COALESCE(description, '')
	FROM products
	ORDER BY position, id
`

// PostgresSource reads products from a `products` table.
type PostgresSource struct {
	dsn string
}

// NewPostgresSource returns a source connecting with dsn on each load.
func NewPostgresSource(dsn string) (*PostgresSource, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("catalog: postgres dsn is required")
	}
	return &PostgresSource{dsn: dsn}, nil
}

// Products implements Source.
func (s *PostgresSource) Products(ctx context.Context) ([]boutique.Product, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: postgres connect: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("catalog: postgres query: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("catalog: postgres scan: %w", err)
	}
	return toProducts(records)
}

func scanRecord(row pgx.CollectableRow) (record, error) {
	var rec record
	err := row.Scan(&rec.ID, &rec.Name, &rec.Price, &rec.Currency, &rec.Category, &rec.Images, &rec.Description)
	return rec, err
}
