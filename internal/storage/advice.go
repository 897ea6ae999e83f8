package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dverbeek/carwise/internal/model"
)

// SaveAdvice persists one completed valuation advice. Writes are append-only.
func (s *SQLiteStorage) SaveAdvice(ctx context.Context, advice *model.ValuationAdvice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAdvice(advice); err != nil {
		return err
	}

	payload, err := json.Marshal(advice)
	if err != nil {
		return fmt.Errorf("failed to marshal advice: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO advice (plate, brand, model, recommendation, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, advice.Plate, advice.Vehicle.Brand, advice.Vehicle.Model,
		string(advice.Recommendation), string(payload), advice.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert advice: %w", err)
	}

	return nil
}

// GetRecentAdvice returns the most recently saved advice records.
func (s *SQLiteStorage) GetRecentAdvice(ctx context.Context, limit int) ([]model.ValuationAdvice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM advice ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query advice: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.ValuationAdvice
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan advice: %w", err)
		}

		var advice model.ValuationAdvice
		if err := json.Unmarshal([]byte(payload), &advice); err != nil {
			return nil, fmt.Errorf("failed to unmarshal advice: %w", err)
		}
		results = append(results, advice)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("advice row iteration failed: %w", err)
	}
	return results, nil
}
