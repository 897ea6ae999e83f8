// Package parser turns unstructured supplier descriptions into canonical
// vehicle attributes. The primary path is a language-model extraction pass;
// a deterministic pattern fallback covers items the model cannot serve.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dverbeek/carwise/internal/llm"
	"github.com/dverbeek/carwise/internal/model"
)

// MaxBatchSize is the maximum number of descriptions per extraction call.
const MaxBatchSize = 20

const fallbackBaseConfidence = 0.3

// Parser extracts vehicle attributes from free text. A nil or failing LLM
// client degrades every item to the pattern fallback; one bad description
// never fails its siblings.
type Parser struct {
	client llm.Client
	logger *slog.Logger
}

// New creates a parser. client may be nil, in which case only the fallback
// path runs.
func New(client llm.Client, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{client: client, logger: logger}
}

const extractionSystemPrompt = "You are a vehicle data extractor for a used-vehicle trader. " +
	"You MUST respond with ONLY a valid JSON array. Do not include any explanatory text, " +
	"markdown formatting, or commentary before or after the JSON. " +
	"Start your response directly with [ and end with ]."

// extractedItem mirrors the JSON array elements the model is asked for.
type extractedItem struct {
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	Trim         string   `json:"trim"`
	BuildYear    int      `json:"buildYear"`
	Mileage      int      `json:"mileage"`
	FuelType     string   `json:"fuelType"`
	Transmission string   `json:"transmission"`
	BodyType     string   `json:"bodyType"`
	Power        int      `json:"power"`
	Color        string   `json:"color"`
	Options      []string `json:"options"`
	Confidence   float64  `json:"confidence"`
}

// ParseDescriptions parses up to MaxBatchSize descriptions. The result slice
// always has one entry per input, in order.
func (p *Parser) ParseDescriptions(ctx context.Context, descriptions []string) ([]model.ParsedVehicle, error) {
	if len(descriptions) > MaxBatchSize {
		return nil, fmt.Errorf("at most %d descriptions per call, got %d", MaxBatchSize, len(descriptions))
	}

	results := make([]model.ParsedVehicle, len(descriptions))

	items := p.extractWithLLM(ctx, descriptions)
	for i, desc := range descriptions {
		if items != nil && i < len(items) && items[i] != nil {
			results[i] = itemToParsed(*items[i])
			continue
		}
		results[i] = parseFallback(desc)
	}

	return results, nil
}

// extractWithLLM runs the model extraction pass. Returns nil when the service
// is unavailable or the reply is unusable as a whole; individual nil entries
// mark items that need the fallback.
func (p *Parser) extractWithLLM(ctx context.Context, descriptions []string) []*extractedItem {
	if p.client == nil || len(descriptions) == 0 {
		return nil
	}

	prompt := p.buildPrompt(descriptions)

	content, err := p.client.Complete(ctx, prompt, extractionSystemPrompt)
	if err != nil {
		p.logger.Warn("extraction service unavailable, using pattern fallback", "error", err)
		return nil
	}

	var items []json.RawMessage
	if err := llm.DecodeLoose(content, &items); err != nil {
		p.logger.Warn("extraction reply unusable, using pattern fallback", "error", err)
		return nil
	}

	out := make([]*extractedItem, len(descriptions))
	for i := range items {
		if i >= len(descriptions) {
			break
		}
		var item extractedItem
		if err := json.Unmarshal(items[i], &item); err != nil || item.Brand == "" {
			// Malformed element: this item falls back, siblings keep theirs.
			continue
		}
		out[i] = &item
	}
	return out
}

func (p *Parser) buildPrompt(descriptions []string) string {
	var sb strings.Builder
	sb.WriteString("Extract vehicle attributes from each supplier description below.\n")
	sb.WriteString("Reply with a JSON array, one element per description, in the same order.\n")
	sb.WriteString("Element shape: {\"brand\": string, \"model\": string, \"trim\": string, ")
	sb.WriteString("\"buildYear\": number, \"mileage\": number, \"fuelType\": string, ")
	sb.WriteString("\"transmission\": string, \"bodyType\": string, \"power\": number, ")
	sb.WriteString("\"color\": string, \"options\": [string], \"confidence\": number 0-1}\n")
	sb.WriteString("Use null or omit fields you cannot determine. Brand MUST be one of:\n")
	sb.WriteString(strings.Join(Brands(), ", "))
	sb.WriteString("\n\nDescriptions:\n")
	for i, desc := range descriptions {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, desc))
	}
	return sb.String()
}

func itemToParsed(item extractedItem) model.ParsedVehicle {
	confidence := item.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}
	return model.ParsedVehicle{
		Attributes: model.VehicleAttributes{
			Brand:        item.Brand,
			Model:        item.Model,
			Trim:         item.Trim,
			BuildYear:    item.BuildYear,
			Mileage:      item.Mileage,
			FuelType:     item.FuelType,
			Transmission: item.Transmission,
			BodyType:     item.BodyType,
			Power:        item.Power,
			Color:        item.Color,
			Options:      item.Options,
		},
		Confidence: confidence,
		Source:     "llm",
	}
}

var (
	yearRe    = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)
	powerRe   = regexp.MustCompile(`(?i)\b(\d{2,4})\s*(?:pk|hp)\b`)
	mileageRe = regexp.MustCompile(`(?i)\b(\d{1,3}(?:[.,]\d{3})+|\d{4,7})\s*km\b`)
)

var fuelKeywords = []string{"Benzine", "Diesel", "Elektrisch", "Hybride", "LPG", "Waterstof"}

var transmissionKeywords = []string{"Automaat", "Handgeschakeld", "Semi-automaat"}

var bodyKeywords = []string{"Hatchback", "Sedan", "Stationwagon", "SUV", "Cabrio", "Coupe", "MPV", "Bestelwagen"}

// parseFallback is the deterministic pattern path: brand substring scan,
// 4-digit year, keyword dictionaries, trailing power pattern. Every match
// increments a running confidence from the 0.3 base; unmatched fields stay
// at their zero value.
func parseFallback(description string) model.ParsedVehicle {
	attrs := model.VehicleAttributes{}
	confidence := fallbackBaseConfidence
	lower := strings.ToLower(description)

	if brand := matchBrand(description); brand != "" {
		attrs.Brand = brand
		confidence += 0.15
		attrs.Model = guessModel(description, brand)
	}

	if m := yearRe.FindString(description); m != "" {
		if year, err := strconv.Atoi(m); err == nil {
			attrs.BuildYear = year
			confidence += 0.15
		}
	}

	for _, kw := range fuelKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			attrs.FuelType = kw
			confidence += 0.1
			break
		}
	}

	for _, kw := range transmissionKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			attrs.Transmission = kw
			confidence += 0.1
			break
		}
	}

	for _, kw := range bodyKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			attrs.BodyType = kw
			confidence += 0.05
			break
		}
	}

	if m := powerRe.FindStringSubmatch(description); m != nil {
		if power, err := strconv.Atoi(m[1]); err == nil {
			attrs.Power = power
			confidence += 0.1
		}
	}

	if m := mileageRe.FindStringSubmatch(description); m != nil {
		digits := strings.NewReplacer(".", "", ",", "").Replace(m[1])
		if km, err := strconv.Atoi(digits); err == nil {
			attrs.Mileage = km
			confidence += 0.05
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	return model.ParsedVehicle{
		Attributes: attrs,
		Confidence: confidence,
		Source:     "fallback",
	}
}

// guessModel takes the first token after the brand that is not a year or
// known keyword. Best effort; stays empty when nothing fits.
func guessModel(description, brand string) string {
	lower := strings.ToLower(description)
	idx := strings.Index(lower, strings.ToLower(brand))
	if idx < 0 {
		return ""
	}

	rest := strings.TrimSpace(description[idx+len(brand):])
	for _, token := range strings.Fields(rest) {
		if yearRe.MatchString(token) || powerRe.MatchString(token) {
			continue
		}
		if isKeyword(token) {
			continue
		}
		return token
	}
	return ""
}

func isKeyword(token string) bool {
	lower := strings.ToLower(token)
	for _, set := range [][]string{fuelKeywords, transmissionKeywords, bodyKeywords} {
		for _, kw := range set {
			if lower == strings.ToLower(kw) {
				return true
			}
		}
	}
	return false
}
