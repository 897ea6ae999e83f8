// Package comps aggregates our own historical sales into a comparison for a
// target vehicle, with a brand-level widening fallback when model-level
// matching finds too little.
package comps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/service"
)

const (
	// lookbackMonths bounds the primary query window.
	lookbackMonths = 12
	// minUsableRows is the widening threshold: fewer model-level rows than
	// this re-queries by brand only.
	minUsableRows = 2
	// maxRepresentative caps the rows carried in the result.
	maxRepresentative = 10

	// Conservative defaults used when the store itself fails. Downstream
	// synthesis must always receive a value here.
	defaultMarginPct  = 18.0
	defaultDaysToSell = 21
)

// defaultDaysHeld substitutes for rows missing a purchase or sold date.
const defaultDaysHeld = 21

// Engine runs the two-tier internal comparable search.
type Engine struct {
	store  service.SalesStore
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a comparables engine over the sales store.
func NewEngine(store service.SalesStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger, now: time.Now}
}

// Compare aggregates historical sales for the target vehicle. It never
// returns an error: a total store failure yields the conservative default so
// synthesis always has an internal signal to reason about.
func (e *Engine) Compare(ctx context.Context, attrs model.VehicleAttributes) *model.InternalComparison {
	soldAfter := e.now().AddDate(0, -lookbackMonths, 0)

	rows, err := e.store.QuerySales(ctx, service.SaleFilter{
		Brand:       attrs.Brand,
		ModelPrefix: attrs.ModelPrefix(),
		SoldAfter:   soldAfter,
	})
	if err != nil {
		e.logger.Error("internal sales query failed, using conservative default",
			"brand", attrs.Brand, "error", err)
		return conservativeDefault()
	}

	matchLevel := model.MatchedByModel
	widenedNote := ""

	if len(usable(rows)) < minUsableRows {
		widened, werr := e.store.QuerySales(ctx, service.SaleFilter{
			Brand:     attrs.Brand,
			SoldAfter: soldAfter,
		})
		if werr != nil {
			e.logger.Error("widened sales query failed, using conservative default",
				"brand", attrs.Brand, "error", werr)
			return conservativeDefault()
		}
		rows = widened
		matchLevel = model.MatchedByBrandFallback
		widenedNote = fmt.Sprintf(
			"too few %s sales on record; comparison widened to all %s models",
			attrs.Label(), attrs.Brand)
		e.logger.Info("internal comparable search widened to brand level",
			"brand", attrs.Brand, "model", attrs.Model, "rows", len(rows))
	}

	comparison := aggregate(usable(rows))
	comparison.MatchLevel = matchLevel
	comparison.WidenedSearchNote = widenedNote
	return comparison
}

// usable keeps rows with both purchase and selling price recorded.
func usable(rows []model.InternalComparableSale) []model.InternalComparableSale {
	out := make([]model.InternalComparableSale, 0, len(rows))
	for _, r := range rows {
		if r.PurchasePrice > 0 && r.SellingPrice > 0 {
			out = append(out, r)
		}
	}
	return out
}

func aggregate(rows []model.InternalComparableSale) *model.InternalComparison {
	comparison := &model.InternalComparison{}
	if len(rows) == 0 {
		return comparison
	}

	var marginSum, daysSum, daysB2CSum float64
	var daysB2CCount int

	for i := range rows {
		r := &rows[i]
		r.MarginPct = MarginPct(r.PurchasePrice, r.SellingPrice)
		r.DaysHeld = DaysToSell(r.PurchaseDate, r.SoldDate)

		marginSum += r.MarginPct
		daysSum += float64(r.DaysHeld)

		switch r.Channel {
		case model.ChannelB2B:
			comparison.CountB2B++
		default:
			comparison.CountB2C++
			daysB2CSum += float64(r.DaysHeld)
			daysB2CCount++
		}
	}

	comparison.AverageMarginPct = marginSum / float64(len(rows))
	comparison.AverageDaysToSell = daysSum / float64(len(rows))
	if daysB2CCount > 0 {
		comparison.AverageDaysB2C = daysB2CSum / float64(daysB2CCount)
	}

	representative := rows
	if len(representative) > maxRepresentative {
		representative = representative[:maxRepresentative]
	}
	comparison.RepresentativeRows = representative

	return comparison
}

func conservativeDefault() *model.InternalComparison {
	return &model.InternalComparison{
		AverageMarginPct:  defaultMarginPct,
		AverageDaysToSell: defaultDaysToSell,
		AverageDaysB2C:    defaultDaysToSell,
		MatchLevel:        model.MatchedByBrandFallback,
		WidenedSearchNote: "sales history unavailable; conservative defaults applied",
	}
}

// MarginPct is the sale margin as a percentage of the purchase price:
// (sell − buy) / buy × 100.
func MarginPct(purchasePrice, sellingPrice float64) float64 {
	if purchasePrice <= 0 {
		return 0
	}
	return (sellingPrice - purchasePrice) / purchasePrice * 100
}

// DaysToSell is the whole number of days between purchase and sold dates,
// clamped to [1, 365]. A missing date yields the 21-day default before
// clamping.
func DaysToSell(purchaseDate, soldDate time.Time) int {
	if purchaseDate.IsZero() || soldDate.IsZero() {
		return defaultDaysHeld
	}
	days := int(soldDate.Sub(purchaseDate).Hours() / 24)
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}
	return days
}
