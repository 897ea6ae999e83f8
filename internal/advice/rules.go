package advice

import (
	"fmt"
	"math"

	"github.com/dverbeek/carwise/internal/model"
)

// Decision thresholds. The uncertain/buy/no-buy boundary is deliberately
// explicit rather than delegated to the reasoning model: the model may
// refine wording and risks, but the category and purchase price must be
// reproducible from these rules.
const (
	// minSignals is how many independent price signals a firm verdict needs.
	minSignals = 2
	// buyMarginPct and noBuyMarginPct bound the expected margin.
	buyMarginPct   = 12.0
	noBuyMarginPct = 8.0
	// etrBuyCeiling and etrNoBuyFloor bound the expected time to retail.
	etrBuyCeiling = 60
	etrNoBuyFloor = 90
	// portalSignalMinPrimaries is the minimum primary comparables for the
	// portal median to count as a signal.
	portalSignalMinPrimaries = 3
	// internalSignalMinRows is the minimum internal comparables for the
	// margin average to count as a signal.
	internalSignalMinRows = 2
	// fallbackTargetMarginPct applies when no internal margin signal exists.
	fallbackTargetMarginPct = 18.0
	// indexDeviationRatio is the relative portal/index gap that warrants an
	// explanation in the advice.
	indexDeviationRatio = 0.10
)

// signals describes which concrete price signals are available for a run.
type signals struct {
	marketEstimate float64
	targetMargin   float64
	expectedDays   int
	count          int
	hasIndex       bool
	hasPortal      bool
	hasInternal    bool
}

// collectSignals derives the concrete price signals from the (possibly
// partially absent) source results.
func collectSignals(in Inputs) signals {
	var s signals

	if in.Index != nil && in.Index.TotalValue > 0 {
		s.hasIndex = true
		s.count++
	}
	if !in.Portal.IsEmpty() && in.Portal.PrimaryCount >= portalSignalMinPrimaries && in.Portal.MedianPrice > 0 {
		s.hasPortal = true
		s.count++
	}

	// Market estimate: index total first, portal median second. The internal
	// margin alone cannot produce one.
	switch {
	case s.hasIndex:
		s.marketEstimate = in.Index.TotalValue
	case in.Portal != nil && in.Portal.MedianPrice > 0:
		s.marketEstimate = in.Portal.MedianPrice
	}

	if in.Internal.Count() >= internalSignalMinRows && s.marketEstimate > 0 {
		s.hasInternal = true
		s.count++
	}

	s.targetMargin = fallbackTargetMarginPct
	if in.Internal != nil && in.Internal.Count() >= internalSignalMinRows && in.Internal.AverageMarginPct > 0 {
		s.targetMargin = in.Internal.AverageMarginPct
	}

	switch {
	case in.Index != nil && in.Index.ExpectedTimeToRetail > 0:
		s.expectedDays = in.Index.ExpectedTimeToRetail
	case in.Internal != nil && in.Internal.AverageDaysB2C > 0:
		s.expectedDays = int(math.Round(in.Internal.AverageDaysB2C))
	default:
		s.expectedDays = 21
	}

	return s
}

// decideCategory applies the documented thresholds.
func decideCategory(s signals) (model.Recommendation, string) {
	if s.count < minSignals || s.marketEstimate <= 0 {
		return model.RecommendUncertain,
			fmt.Sprintf("only %d independent price signal(s) available; not enough data for a firm verdict", s.count)
	}

	if s.targetMargin < noBuyMarginPct {
		return model.RecommendNoBuy,
			fmt.Sprintf("expected margin %.1f%% is below the %.0f%% floor", s.targetMargin, noBuyMarginPct)
	}
	if s.expectedDays > etrNoBuyFloor {
		return model.RecommendNoBuy,
			fmt.Sprintf("expected %d days to retail exceeds the %d-day ceiling", s.expectedDays, etrNoBuyFloor)
	}

	if s.targetMargin >= buyMarginPct && s.expectedDays <= etrBuyCeiling {
		return model.RecommendBuy,
			fmt.Sprintf("expected margin %.1f%% over an estimated market price of €%.0f with %d days to retail",
				s.targetMargin, s.marketEstimate, s.expectedDays)
	}

	return model.RecommendUncertain,
		fmt.Sprintf("expected margin %.1f%% sits between the %.0f%% floor and the %.0f%% buy threshold",
			s.targetMargin, noBuyMarginPct, buyMarginPct)
}

// purchasePriceFor derives the recommended purchase price from the market
// estimate and target margin: buy = sell / (1 + margin/100). It is never
// fabricated without a market estimate.
func purchasePriceFor(s signals) float64 {
	if s.marketEstimate <= 0 {
		return 0
	}
	return math.Round(s.marketEstimate / (1 + s.targetMargin/100))
}

// indexDeviationNote explains a material gap between the portal median and
// the index valuation, when both exist.
func indexDeviationNote(in Inputs) string {
	if in.Index == nil || in.Index.TotalValue <= 0 || in.Portal.IsEmpty() || in.Portal.MedianPrice <= 0 {
		return ""
	}
	gap := (in.Portal.MedianPrice - in.Index.TotalValue) / in.Index.TotalValue
	if math.Abs(gap) < indexDeviationRatio {
		return ""
	}
	direction := "above"
	if gap < 0 {
		direction = "below"
	}
	return fmt.Sprintf("portal median €%.0f sits %.0f%% %s the index valuation of €%.0f",
		in.Portal.MedianPrice, math.Abs(gap)*100, direction, in.Index.TotalValue)
}
