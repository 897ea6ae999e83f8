package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/service"
)

// SaveSales inserts historical sales in one transaction.
func (s *SQLiteStorage) SaveSales(ctx context.Context, sales []model.InternalComparableSale) error {
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales (
			brand, model, trim, build_year, mileage, fuel_type, transmission,
			body_type, power, color, purchase_price, selling_price, channel,
			purchase_date, sold_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, sale := range sales {
		v := sale.Vehicle
		if _, err := stmt.ExecContext(ctx,
			v.Brand, v.Model, v.Trim, v.BuildYear, v.Mileage, v.FuelType,
			v.Transmission, v.BodyType, v.Power, v.Color,
			sale.PurchasePrice, sale.SellingPrice, string(sale.Channel),
			nullTime(sale.PurchaseDate), nullTime(sale.SoldDate),
		); err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}
	}

	return tx.Commit()
}

// QuerySales returns sales matching the filter, newest first. Only rows with
// both purchase and selling price recorded are usable for comparisons, so the
// price restriction lives in the query.
func (s *SQLiteStorage) QuerySales(ctx context.Context, filter service.SaleFilter) ([]model.InternalComparableSale, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.Brand, "filter.Brand"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, brand, model, trim, build_year, mileage, fuel_type,
		       transmission, body_type, power, color, purchase_price,
		       selling_price, channel, purchase_date, sold_date
		FROM sales
		WHERE brand = ? COLLATE NOCASE
		  AND purchase_price > 0
		  AND selling_price > 0`
	args := []any{filter.Brand}

	if filter.ModelPrefix != "" {
		query += ` AND LOWER(model) LIKE ?`
		args = append(args, filter.ModelPrefix+"%")
	}
	if !filter.SoldAfter.IsZero() {
		query += ` AND sold_date >= ?`
		args = append(args, filter.SoldAfter)
	}

	query += ` ORDER BY sold_date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSales(rows)
}

func scanSales(rows *sql.Rows) ([]model.InternalComparableSale, error) {
	var sales []model.InternalComparableSale

	for rows.Next() {
		var sale model.InternalComparableSale
		var trim, fuelType, transmission, bodyType, color, channel sql.NullString
		var buildYear, mileage, power sql.NullInt64
		var purchaseDate, soldDate sql.NullTime

		if err := rows.Scan(
			&sale.ID, &sale.Vehicle.Brand, &sale.Vehicle.Model, &trim,
			&buildYear, &mileage, &fuelType, &transmission, &bodyType,
			&power, &color, &sale.PurchasePrice, &sale.SellingPrice,
			&channel, &purchaseDate, &soldDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}

		sale.Vehicle.Trim = trim.String
		sale.Vehicle.BuildYear = int(buildYear.Int64)
		sale.Vehicle.Mileage = int(mileage.Int64)
		sale.Vehicle.FuelType = fuelType.String
		sale.Vehicle.Transmission = transmission.String
		sale.Vehicle.BodyType = bodyType.String
		sale.Vehicle.Power = int(power.Int64)
		sale.Vehicle.Color = color.String
		sale.Channel = model.SaleChannel(channel.String)
		sale.PurchaseDate = purchaseDate.Time
		sale.SoldDate = soldDate.Time

		sales = append(sales, sale)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sale row iteration failed: %w", err)
	}
	return sales, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
