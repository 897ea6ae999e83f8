// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/dverbeek/carwise/internal/model"
)

// RetryOptions configures retry behavior for operations against flaky
// external services.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// SaleFilter defines filtering options for historical-sale queries. Brand is
// matched exactly; ModelPrefix, when set, matches the start of the stored
// model name. Both price fields must be recorded for a row to be usable.
type SaleFilter struct {
	Brand       string
	ModelPrefix string
	SoldAfter   time.Time
	Limit       int
}

// SalesStore is the persistence contract for historical sales.
type SalesStore interface {
	SaveSales(ctx context.Context, sales []model.InternalComparableSale) error
	QuerySales(ctx context.Context, filter SaleFilter) ([]model.InternalComparableSale, error)
	Close() error
}

// AdviceStore persists completed valuation advice. Writes are append-only;
// a run never mutates shared state until this explicit save step.
type AdviceStore interface {
	SaveAdvice(ctx context.Context, advice *model.ValuationAdvice) error
	GetRecentAdvice(ctx context.Context, limit int) ([]model.ValuationAdvice, error)
}

// ProgressFunc receives aggregate progress updates during a bulk run.
type ProgressFunc func(progress model.BulkProgress)
