package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dverbeek/carwise/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrEmptySlice    = errors.New("slice cannot be empty")
	ErrInvalidSale   = errors.New("invalid sale")
	ErrInvalidAdvice = errors.New("invalid advice")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSales validates a slice of sales.
func validateSales(sales []model.InternalComparableSale) error {
	if sales == nil {
		return fmt.Errorf("%w: sales", ErrNilParameter)
	}
	if len(sales) == 0 {
		return fmt.Errorf("%w: sales", ErrEmptySlice)
	}

	for i, sale := range sales {
		if sale.Vehicle.Brand == "" {
			return fmt.Errorf("%w: sale at index %d missing brand", ErrInvalidSale, i)
		}
		if sale.Vehicle.Model == "" {
			return fmt.Errorf("%w: sale at index %d missing model", ErrInvalidSale, i)
		}
	}
	return nil
}

// validateAdvice validates a single advice record before persisting.
func validateAdvice(advice *model.ValuationAdvice) error {
	if advice == nil {
		return fmt.Errorf("%w: advice", ErrNilParameter)
	}
	if !advice.Recommendation.Valid() {
		return fmt.Errorf("%w: unknown recommendation %q", ErrInvalidAdvice, advice.Recommendation)
	}
	if advice.Vehicle.Brand == "" {
		return fmt.Errorf("%w: missing brand", ErrInvalidAdvice)
	}
	return nil
}
