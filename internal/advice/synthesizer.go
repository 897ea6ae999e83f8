// Package advice synthesizes the final purchase recommendation from the
// portal, index, and internal source results. Any subset of sources may be
// absent; the synthesizer degrades to an uncertain verdict with a
// data-scarcity explanation rather than failing.
package advice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dverbeek/carwise/internal/llm"
	"github.com/dverbeek/carwise/internal/model"
)

// ErrNoSources is returned when every source result is absent. At least one
// non-empty source is required to produce advice.
var ErrNoSources = errors.New("no source data to synthesize advice from")

// Inputs carries the three source results (any subset may be nil/empty) plus
// the target vehicle.
type Inputs struct {
	Plate    string
	Vehicle  model.VehicleAttributes
	Portal   *model.PortalAnalysis
	Index    *model.PricingIndexResult
	Internal *model.InternalComparison
}

// hasAnySource reports whether at least one source carries data.
func (in Inputs) hasAnySource() bool {
	return !in.Portal.IsEmpty() || in.Index != nil || !in.Internal.IsEmpty()
}

// Synthesizer combines source results into a ValuationAdvice via an AI
// reasoning pass, bounded by deterministic rules.
type Synthesizer struct {
	client llm.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewSynthesizer creates a synthesizer. client may be nil, in which case the
// advice is purely rule-derived.
func NewSynthesizer(client llm.Client, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{client: client, logger: logger, now: time.Now}
}

const synthesisSystemPrompt = "You are a purchase advisor for a used-vehicle trading business. " +
	"You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, " +
	"markdown formatting, or commentary before or after the JSON. " +
	"Start your response directly with { and end with }."

// llmAdvice mirrors the JSON shape requested from the reasoning model.
type llmAdvice struct {
	Recommendation           string   `json:"recommendation"`
	Reasoning                string   `json:"reasoning"`
	RecommendedSellingPrice  float64  `json:"recommendedSellingPrice"`
	RecommendedPurchasePrice float64  `json:"recommendedPurchasePrice"`
	RiskFactors              []string `json:"riskFactors"`
	Opportunities            []string `json:"opportunities"`
	IndexDeviationNote       string   `json:"indexDeviationNote"`
}

// Synthesize produces the final advice. It fails only when every source is
// absent; partial data degrades to an uncertain verdict.
func (s *Synthesizer) Synthesize(ctx context.Context, in Inputs) (*model.ValuationAdvice, error) {
	if !in.hasAnySource() {
		return nil, ErrNoSources
	}

	sig := collectSignals(in)
	category, ruleReasoning := decideCategory(sig)

	result := &model.ValuationAdvice{
		Vehicle:                  in.Vehicle,
		Plate:                    in.Plate,
		Recommendation:           category,
		Reasoning:                ruleReasoning,
		RecommendedSellingPrice:  math.Round(sig.marketEstimate),
		RecommendedPurchasePrice: purchasePriceFor(sig),
		ExpectedDaysToSell:       sig.expectedDays,
		TargetMarginPct:          sig.targetMargin,
		IndexDeviationNote:       indexDeviationNote(in),
		PrimaryListingsUsed:      primaryCount(in.Portal),
		CreatedAt:                s.now(),
	}

	if in.Internal != nil && in.Internal.WidenedSearchNote != "" {
		result.RiskFactors = append(result.RiskFactors, in.Internal.WidenedSearchNote)
	}

	s.enrichWithLLM(ctx, in, sig, result)

	return result, nil
}

// enrichWithLLM lets the reasoning model refine wording, risks, and
// opportunities. Its category and prices are advisory: anything that violates
// the deterministic rules is discarded.
func (s *Synthesizer) enrichWithLLM(ctx context.Context, in Inputs, sig signals, result *model.ValuationAdvice) {
	if s.client == nil {
		return
	}

	prompt, err := s.buildPrompt(in, sig, result)
	if err != nil {
		s.logger.Warn("failed to build synthesis prompt", "error", err)
		return
	}

	content, err := s.client.Complete(ctx, prompt, synthesisSystemPrompt)
	if err != nil {
		s.logger.Warn("synthesis model unavailable, keeping rule-derived advice", "error", err)
		return
	}

	var reply llmAdvice
	if err := llm.DecodeLoose(content, &reply); err != nil {
		s.logger.Warn("synthesis reply unparseable, keeping rule-derived advice", "error", err)
		return
	}

	if reply.Reasoning != "" {
		result.Reasoning = reply.Reasoning
	}
	result.RiskFactors = append(result.RiskFactors, reply.RiskFactors...)
	result.Opportunities = append(result.Opportunities, reply.Opportunities...)
	if result.IndexDeviationNote == "" && reply.IndexDeviationNote != "" {
		result.IndexDeviationNote = reply.IndexDeviationNote
	}

	// The model may be more cautious than the rules, never more aggressive.
	if r := model.Recommendation(reply.Recommendation); r.Valid() && r == model.RecommendUncertain {
		result.Recommendation = r
	}

	// Prices must stay anchored to a concrete signal: accept the model's
	// numbers only within a sane band around the rule-derived ones.
	if sig.marketEstimate > 0 {
		if within(reply.RecommendedSellingPrice, result.RecommendedSellingPrice, 0.15) {
			result.RecommendedSellingPrice = math.Round(reply.RecommendedSellingPrice)
		}
		if within(reply.RecommendedPurchasePrice, result.RecommendedPurchasePrice, 0.15) &&
			reply.RecommendedPurchasePrice < sig.marketEstimate {
			result.RecommendedPurchasePrice = math.Round(reply.RecommendedPurchasePrice)
		}
	}
}

func (s *Synthesizer) buildPrompt(in Inputs, sig signals, rule *model.ValuationAdvice) (string, error) {
	payload := map[string]any{
		"vehicle":        in.Vehicle,
		"portalAnalysis": in.Portal,
		"pricingIndex":   in.Index,
		"internalSales":  in.Internal,
		"ruleVerdict": map[string]any{
			"recommendation":           rule.Recommendation,
			"recommendedSellingPrice":  rule.RecommendedSellingPrice,
			"recommendedPurchasePrice": rule.RecommendedPurchasePrice,
			"targetMarginPct":          rule.TargetMarginPct,
			"expectedDaysToSell":       rule.ExpectedDaysToSell,
			"priceSignals":             sig.count,
		},
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal synthesis payload: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Assess this vehicle purchase opportunity. Some sources may be null; ")
	sb.WriteString("reason only from the data present.\n\n")
	sb.Write(data)
	sb.WriteString("\n\nReply as JSON: {\"recommendation\": \"buy\"|\"no-buy\"|\"uncertain\", ")
	sb.WriteString("\"reasoning\": string, \"recommendedSellingPrice\": number, ")
	sb.WriteString("\"recommendedPurchasePrice\": number, \"riskFactors\": [string], ")
	sb.WriteString("\"opportunities\": [string], \"indexDeviationNote\": string}")
	return sb.String(), nil
}

func primaryCount(portal *model.PortalAnalysis) int {
	if portal == nil {
		return 0
	}
	return portal.PrimaryCount
}

func within(candidate, anchor, tolerance float64) bool {
	if candidate <= 0 || anchor <= 0 {
		return false
	}
	return math.Abs(candidate-anchor) <= anchor*tolerance
}
