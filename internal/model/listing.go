package model

// ComparableListing is a single marketplace listing returned by the portal
// search. Listings live only for the duration of a run unless the advice is
// explicitly saved.
type ComparableListing struct {
	Source             string   `json:"source"`
	URL                string   `json:"url"`
	Title              string   `json:"title"`
	Price              float64  `json:"price"`
	Mileage            int      `json:"mileage,omitempty"`
	BuildYear          int      `json:"buildYear,omitempty"`
	Color              string   `json:"color,omitempty"`
	Options            []string `json:"options,omitempty"`
	MatchScore         float64  `json:"matchScore"`
	IsPrimary          bool     `json:"isPrimaryComparable"`
	IsLogicalDeviation bool     `json:"isLogicalDeviation"`
	DeviationReason    string   `json:"deviationReason,omitempty"`
}

// PortalAnalysis aggregates the price statistics over the primary comparables
// of one run. An empty analysis (ListingCount == 0) is a valid, degraded
// result; it never carries an error.
type PortalAnalysis struct {
	LowestPrice    float64             `json:"lowestPrice"`
	MedianPrice    float64             `json:"medianPrice"`
	HighestPrice   float64             `json:"highestPrice"`
	ListingCount   int                 `json:"listingCount"`
	PrimaryCount   int                 `json:"primaryCount"`
	AppliedFilters []string            `json:"appliedFilters,omitempty"`
	Deviations     []ComparableListing `json:"deviations,omitempty"`
	Listings       []ComparableListing `json:"listings,omitempty"`
	SearchURL      string              `json:"searchUrl,omitempty"`
}

// IsEmpty reports whether the analysis carries no usable price signal.
func (p *PortalAnalysis) IsEmpty() bool {
	return p == nil || p.PrimaryCount == 0
}
