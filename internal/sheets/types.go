package sheets

import "github.com/dverbeek/carwise/internal/model"

// Column layout of the valuations tab. Row coloring and the liquidity
// highlight reference these indexes, so the layout changes in one place.
const (
	colBrand = iota
	colModel
	colFuelType
	colMileage
	colBuildYear
	colAveragePriceRatio
	colTimeToRetail
	colIndexPrice
	colSellingPrice
	colPurchasePrice
	colRecommendation
	colLiquidity
	colSearchLink
	colError
	columnCount
)

var headerRow = []any{
	"Brand",
	"Model",
	"Fuel",
	"Mileage",
	"Build Year",
	"APR",
	"ETR (days)",
	"Index Price",
	"Recommended Selling Price",
	"Recommended Purchase Price",
	"Recommendation",
	"Liquidity",
	"Search Link",
	"Error",
}

// ExportSummary holds the trailing counts appended below the data rows.
type ExportSummary struct {
	Total     int
	Buy       int
	NoBuy     int
	Uncertain int
	Errors    int
}

func summarize(rows []model.BulkRow) ExportSummary {
	summary := ExportSummary{Total: len(rows)}
	for _, row := range rows {
		if row.Status == model.BulkError {
			summary.Errors++
			continue
		}
		if row.Result == nil || row.Result.Advice == nil {
			continue
		}
		switch row.Result.Advice.Recommendation {
		case model.RecommendBuy:
			summary.Buy++
		case model.RecommendNoBuy:
			summary.NoBuy++
		case model.RecommendUncertain:
			summary.Uncertain++
		}
	}
	return summary
}
