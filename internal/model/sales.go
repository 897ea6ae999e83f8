package model

import "time"

// SaleChannel distinguishes trade sales from consumer sales. B2B sales are
// excluded from time-to-sell statistics; their holding pattern differs
// structurally from retail.
type SaleChannel string

const (
	ChannelB2B SaleChannel = "B2B"
	ChannelB2C SaleChannel = "B2C"
)

// InternalComparableSale is one historical sale from our own books. Read-only.
type InternalComparableSale struct {
	ID            int64             `json:"id"`
	Vehicle       VehicleAttributes `json:"vehicle"`
	PurchasePrice float64           `json:"purchasePrice"`
	SellingPrice  float64           `json:"sellingPrice"`
	MarginPct     float64           `json:"marginPct"`
	DaysHeld      int               `json:"daysHeld"`
	Channel       SaleChannel       `json:"channel"`
	PurchaseDate  time.Time         `json:"purchaseDate"`
	SoldDate      time.Time         `json:"soldDate"`
}

// MatchLevel tags which tier of the internal comparable search produced a
// result.
type MatchLevel string

const (
	// MatchedByModel means the primary brand+model-prefix query found enough rows.
	MatchedByModel MatchLevel = "matchedByModel"
	// MatchedByBrandFallback means the search widened to brand-only matching.
	MatchedByBrandFallback MatchLevel = "matchedByBrandFallback"
)

// InternalComparison aggregates our own sale history for a target vehicle.
// A run always receives a value here: on total query failure the engine
// substitutes a conservative default instead of an error.
type InternalComparison struct {
	AverageMarginPct   float64                  `json:"averageMarginPct"`
	AverageDaysToSell  float64                  `json:"averageDaysToSell"`
	AverageDaysB2C     float64                  `json:"averageDaysB2C"`
	CountB2B           int                      `json:"countB2B"`
	CountB2C           int                      `json:"countB2C"`
	MatchLevel         MatchLevel               `json:"matchLevel"`
	WidenedSearchNote  string                   `json:"widenedSearchNote,omitempty"`
	RepresentativeRows []InternalComparableSale `json:"representativeRows,omitempty"`
}

// Count returns the total number of comparables behind the aggregates.
func (c *InternalComparison) Count() int {
	if c == nil {
		return 0
	}
	return c.CountB2B + c.CountB2C
}

// IsEmpty reports whether the comparison carries no usable margin signal.
func (c *InternalComparison) IsEmpty() bool {
	return c.Count() == 0
}
