package model

import "time"

// Recommendation is the terminal verdict of a valuation run.
type Recommendation string

const (
	RecommendBuy       Recommendation = "buy"
	RecommendNoBuy     Recommendation = "no-buy"
	RecommendUncertain Recommendation = "uncertain"
)

// Valid reports whether the recommendation is one of the known categories.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendBuy, RecommendNoBuy, RecommendUncertain:
		return true
	}
	return false
}

// ValuationAdvice is the terminal output of a run. It requires at least one
// non-empty source result and must still be produced when the others are
// absent.
type ValuationAdvice struct {
	Vehicle                  VehicleAttributes `json:"vehicle"`
	Plate                    string            `json:"plate,omitempty"`
	RecommendedSellingPrice  float64           `json:"recommendedSellingPrice"`
	RecommendedPurchasePrice float64           `json:"recommendedPurchasePrice"`
	ExpectedDaysToSell       int               `json:"expectedDaysToSell"`
	TargetMarginPct          float64           `json:"targetMarginPct"`
	Recommendation           Recommendation    `json:"recommendation"`
	Reasoning                string            `json:"reasoning"`
	IndexDeviationNote       string            `json:"indexDeviationNote,omitempty"`
	RiskFactors              []string          `json:"riskFactors,omitempty"`
	Opportunities            []string          `json:"opportunities,omitempty"`
	PrimaryListingsUsed      int               `json:"primaryListingsUsed"`
	CreatedAt                time.Time         `json:"createdAt"`
}
