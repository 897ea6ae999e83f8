// Package registry resolves a license plate to canonical vehicle attributes
// via the external vehicle registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dverbeek/carwise/internal/common"
	"github.com/dverbeek/carwise/internal/model"
)

// Lookup is the narrow contract to the external registry.
type Lookup interface {
	LookupPlate(ctx context.Context, plate string) (*model.VehicleAttributes, error)
}

// Resolver normalizes plates and queries the registry. Identity failures are
// fatal to a run and are never retried blindly: NotFound cannot change, and
// an Upstream failure is surfaced to the operator instead.
type Resolver struct {
	lookup Lookup
	logger *slog.Logger
}

// NewResolver creates a resolver over the given registry client.
func NewResolver(lookup Lookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// NormalizePlate strips separators and uppercases a plate of arbitrary
// formatting: "ab-123-c" and "AB 123 C" both become "AB123C".
func NormalizePlate(plate string) string {
	var sb strings.Builder
	for _, r := range plate {
		switch r {
		case '-', ' ', '.', '_':
			continue
		}
		sb.WriteRune(r)
	}
	return strings.ToUpper(sb.String())
}

// Resolve looks up a plate and returns the canonical attributes. The registry
// carries no mileage, trim, or options; those stay empty and the caller must
// prompt for them separately.
func (r *Resolver) Resolve(ctx context.Context, plate string) (model.VehicleAttributes, error) {
	normalized := NormalizePlate(plate)
	if normalized == "" {
		return model.VehicleAttributes{}, common.NewUserError("no plate given", common.ErrNotFound)
	}

	attrs, err := r.lookup.LookupPlate(ctx, normalized)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			r.logger.Info("plate not found in registry", "plate", normalized)
			return model.VehicleAttributes{}, common.NewUserError(
				fmt.Sprintf("plate %s is not known to the vehicle registry", normalized), err)
		}
		r.logger.Error("registry lookup failed", "plate", normalized, "error", err)
		return model.VehicleAttributes{}, common.NewUserError(
			"the vehicle registry could not be reached", fmt.Errorf("%w: %v", common.ErrUpstream, err))
	}

	resolved := *attrs
	resolved.Mileage = 0
	resolved.Trim = ""
	resolved.Options = nil

	r.logger.Info("plate resolved",
		"plate", normalized,
		"brand", resolved.Brand,
		"model", resolved.Model,
		"build_year", resolved.BuildYear)

	return resolved, nil
}
