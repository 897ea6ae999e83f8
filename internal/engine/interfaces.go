package engine

import (
	"context"

	"github.com/dverbeek/carwise/internal/advice"
	"github.com/dverbeek/carwise/internal/model"
)

// Resolver resolves a plate to canonical vehicle attributes. Failure here is
// fatal to a run.
type Resolver interface {
	Resolve(ctx context.Context, plate string) (model.VehicleAttributes, error)
}

// PortalSearcher discovers marketplace comparables. It degrades to an empty
// analysis instead of failing.
type PortalSearcher interface {
	Search(ctx context.Context, attrs model.VehicleAttributes, searchURLs []string) *model.PortalAnalysis
}

// IndexValuator fetches the third-party index valuation. (nil, nil) means the
// plate is unknown to the index.
type IndexValuator interface {
	Valuate(ctx context.Context, plate string) (*model.PricingIndexResult, error)
}

// InternalComparer aggregates our own sale history. It always returns a
// value.
type InternalComparer interface {
	Compare(ctx context.Context, attrs model.VehicleAttributes) *model.InternalComparison
}

// Advisor synthesizes the final recommendation from the source results.
type Advisor interface {
	Synthesize(ctx context.Context, in advice.Inputs) (*model.ValuationAdvice, error)
}

// DescriptionParser extracts vehicle attributes from free-text supplier rows.
type DescriptionParser interface {
	ParseDescriptions(ctx context.Context, descriptions []string) ([]model.ParsedVehicle, error)
}
