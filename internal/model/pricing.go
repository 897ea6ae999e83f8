package model

// LiquidityClass buckets how quickly the pricing index expects a vehicle to
// move at market price.
type LiquidityClass string

const (
	LiquidityHigh   LiquidityClass = "high"
	LiquidityMedium LiquidityClass = "medium"
	LiquidityLow    LiquidityClass = "low"
)

// PricingIndexResult is the third-party index valuation for a plate. A nil
// result means the index has no record for the vehicle, which is a normal
// outcome rather than an error.
type PricingIndexResult struct {
	BaseValue            float64        `json:"baseValue"`
	OptionValue          float64        `json:"optionValue"`
	TotalValue           float64        `json:"totalValue"`
	MinValue             float64        `json:"minValue"`
	MaxValue             float64        `json:"maxValue"`
	Confidence           float64        `json:"confidence"`
	AveragePriceRatio    float64        `json:"averagePriceRatio"`    // 0-1, higher = further under market
	ExpectedTimeToRetail int            `json:"expectedTimeToRetail"` // days
	Liquidity            LiquidityClass `json:"liquidity"`
}
