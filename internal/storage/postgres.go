package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/service"
)

// PostgresStorage implements the sales store on PostgreSQL. It is the shared
// backend used when several buyers work against one sales history.
type PostgresStorage struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostgresStorage connects to PostgreSQL using a standard connection
// string (postgres://... or key=value form).
func NewPostgresStorage(connStr string) (*PostgresStorage, error) {
	if err := validateString(connStr, "connStr"); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close closes the database connection.
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// Migrate creates the sales table if it does not exist yet.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS sales (
			id SERIAL PRIMARY KEY,
			brand TEXT NOT NULL,
			model TEXT NOT NULL,
			trim TEXT,
			build_year INTEGER,
			mileage INTEGER,
			fuel_type TEXT,
			transmission TEXT,
			body_type TEXT,
			power INTEGER,
			color TEXT,
			purchase_price DOUBLE PRECISION,
			selling_price DOUBLE PRECISION,
			channel TEXT NOT NULL DEFAULT 'B2C',
			purchase_date TIMESTAMPTZ,
			sold_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_brand ON sales(LOWER(brand))`,
		`CREATE INDEX IF NOT EXISTS idx_sales_sold_date ON sales(sold_date)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// SaveSales inserts historical sales in one transaction.
func (s *PostgresStorage) SaveSales(ctx context.Context, sales []model.InternalComparableSale) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSales(sales); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := s.sb.Insert("sales").Columns(
		"brand", "model", "trim", "build_year", "mileage", "fuel_type",
		"transmission", "body_type", "power", "color", "purchase_price",
		"selling_price", "channel", "purchase_date", "sold_date",
	)

	for _, sale := range sales {
		v := sale.Vehicle
		insert = insert.Values(
			v.Brand, v.Model, v.Trim, v.BuildYear, v.Mileage, v.FuelType,
			v.Transmission, v.BodyType, v.Power, v.Color,
			sale.PurchasePrice, sale.SellingPrice, string(sale.Channel),
			nullTime(sale.PurchaseDate), nullTime(sale.SoldDate),
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert sales: %w", err)
	}

	return tx.Commit()
}

// QuerySales returns sales matching the filter, newest first.
func (s *PostgresStorage) QuerySales(ctx context.Context, filter service.SaleFilter) ([]model.InternalComparableSale, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.Brand, "filter.Brand"); err != nil {
		return nil, err
	}

	builder := s.sb.Select(
		"id", "brand", "model", "trim", "build_year", "mileage", "fuel_type",
		"transmission", "body_type", "power", "color", "purchase_price",
		"selling_price", "channel", "purchase_date", "sold_date",
	).
		From("sales").
		Where(sq.Eq{"LOWER(brand)": strings.ToLower(filter.Brand)}).
		Where(sq.Gt{"purchase_price": 0}).
		Where(sq.Gt{"selling_price": 0}).
		OrderBy("sold_date DESC")

	if filter.ModelPrefix != "" {
		builder = builder.Where(sq.Like{"LOWER(model)": filter.ModelPrefix + "%"})
	}
	if !filter.SoldAfter.IsZero() {
		builder = builder.Where(sq.GtOrEq{"sold_date": filter.SoldAfter})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSales(rows)
}
