package portals

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dverbeek/carwise/internal/llm"
	"github.com/dverbeek/carwise/internal/model"
)

// maxListings caps how many listings the agent is asked to return.
const maxListings = 15

// Deviation bounds relative to the candidate median.
const (
	deviationLowRatio  = 0.55
	deviationHighRatio = 1.8
	deviationYearDiff  = 3
)

// primaryScoreFloor is the minimum agent match score for a listing to count
// toward price statistics.
const primaryScoreFloor = 0.5

// Aggregator turns a vehicle plus pre-built search URLs into a
// PortalAnalysis. Every failure mode degrades to an explicitly empty
// analysis; the rest of the pipeline must be able to proceed.
type Aggregator struct {
	client  llm.Client
	cache   *llm.Cache
	scraper *PageScraper
	logger  *slog.Logger
}

// NewAggregator creates an aggregator. cache may be nil to disable caching of
// repeated searches; scraper may be nil to disable the HTML fallback.
func NewAggregator(client llm.Client, cache *llm.Cache, scraper *PageScraper, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{client: client, cache: cache, scraper: scraper, logger: logger}
}

const searchSystemPrompt = "You are a vehicle marketplace research agent. Open the URL you are " +
	"given, read the first page of results ordered by ascending price, and report the listings. " +
	"You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, " +
	"markdown formatting, or commentary before or after the JSON. " +
	"Start your response directly with { and end with }."

// agentReply mirrors the JSON the agent is instructed to return.
type agentReply struct {
	Listings []agentListing `json:"listings"`
}

type agentListing struct {
	Source     string  `json:"source"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Mileage    int     `json:"mileage"`
	BuildYear  int     `json:"buildYear"`
	Color      string  `json:"color"`
	MatchScore float64 `json:"matchScore"`
}

// Search runs the comparable-listing search. The returned analysis is never
// nil and never accompanied by an error: when no search URL exists, the agent
// returns no text, or parsing fails after repair, the analysis is empty with
// ListingCount 0.
func (a *Aggregator) Search(ctx context.Context, attrs model.VehicleAttributes, searchURLs []string) *model.PortalAnalysis {
	if len(searchURLs) == 0 {
		a.logger.Info("no search URL for vehicle, returning empty portal analysis", "vehicle", attrs.Label())
		return &model.PortalAnalysis{}
	}

	searchURL := searchURLs[0]

	listings := a.discover(ctx, attrs, searchURL)
	if len(listings) == 0 {
		return &model.PortalAnalysis{SearchURL: searchURL}
	}

	analysis := analyze(attrs, listings)
	analysis.SearchURL = searchURL
	analysis.AppliedFilters = appliedFilters(attrs)

	a.logger.Info("portal analysis complete",
		"vehicle", attrs.Label(),
		"listings", analysis.ListingCount,
		"primary", analysis.PrimaryCount,
		"median", analysis.MedianPrice)

	return analysis
}

// discover fetches raw listings via the agent, falling back to the direct
// page scraper when no agent is configured or the reply is unusable.
func (a *Aggregator) discover(ctx context.Context, attrs model.VehicleAttributes, searchURL string) []model.ComparableListing {
	if a.client != nil {
		if listings := a.searchViaAgent(ctx, attrs, searchURL); listings != nil {
			return listings
		}
	}
	if a.scraper != nil {
		listings, err := a.scraper.Scrape(ctx, searchURL)
		if err != nil {
			a.logger.Warn("page scrape fallback failed", "url", searchURL, "error", err)
			return nil
		}
		return listings
	}
	return nil
}

func (a *Aggregator) searchViaAgent(ctx context.Context, attrs model.VehicleAttributes, searchURL string) []model.ComparableListing {
	prompt := a.buildPrompt(attrs, searchURL)

	content, ok := a.cachedCompletion(ctx, prompt)
	if !ok {
		return nil
	}
	if strings.TrimSpace(content) == "" {
		a.logger.Warn("agent returned no text", "url", searchURL)
		return nil
	}

	var reply agentReply
	if err := llm.DecodeLoose(content, &reply); err != nil {
		a.logger.Warn("agent reply unparseable after repair", "url", searchURL, "error", err)
		return nil
	}

	listings := make([]model.ComparableListing, 0, len(reply.Listings))
	for _, l := range reply.Listings {
		// Listings without a URL or numeric price cannot be audited; discard.
		if l.URL == "" || l.Price <= 0 {
			continue
		}
		listings = append(listings, model.ComparableListing{
			Source:     l.Source,
			URL:        l.URL,
			Title:      l.Title,
			Price:      l.Price,
			Mileage:    l.Mileage,
			BuildYear:  l.BuildYear,
			Color:      l.Color,
			MatchScore: l.MatchScore,
		})
	}
	return listings
}

func (a *Aggregator) cachedCompletion(ctx context.Context, prompt string) (string, bool) {
	if a.cache != nil {
		if content, hit := a.cache.Get(prompt); hit {
			return content, true
		}
	}

	content, err := a.client.CompleteWithSearch(ctx, prompt, searchSystemPrompt)
	if err != nil {
		a.logger.Warn("portal search agent failed", "error", err)
		return "", false
	}

	if a.cache != nil {
		a.cache.Set(prompt, content)
	}
	return content, true
}

func (a *Aggregator) buildPrompt(attrs model.VehicleAttributes, searchURL string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search URL: %s\n", searchURL))
	sb.WriteString(fmt.Sprintf("Target vehicle: %s", attrs.Label()))
	if attrs.Mileage > 0 {
		sb.WriteString(fmt.Sprintf(", %d km", attrs.Mileage))
	}
	if attrs.FuelType != "" {
		sb.WriteString(", " + attrs.FuelType)
	}
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Return up to %d listings from the first page as JSON:\n", maxListings))
	sb.WriteString(`{"listings": [{"source": string, "url": string, "title": string, ` +
		`"price": number, "mileage": number, "buildYear": number, "color": string, ` +
		`"matchScore": number 0-1}]}` + "\n")
	sb.WriteString("matchScore reflects how similar the listing is to the target vehicle.")
	return sb.String()
}

// analyze splits listings into primary comparables and logical deviations
// (the sets are disjoint by construction) and computes price statistics over
// the primaries.
func analyze(attrs model.VehicleAttributes, listings []model.ComparableListing) *model.PortalAnalysis {
	analysis := &model.PortalAnalysis{ListingCount: len(listings)}

	// Candidate median over everything usable, as the deviation yardstick.
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		prices = append(prices, l.Price)
	}
	yardstick := median(prices)

	var primaries []model.ComparableListing
	for i := range listings {
		l := listings[i]

		if reason := deviationReason(attrs, l, yardstick); reason != "" {
			l.IsLogicalDeviation = true
			l.DeviationReason = reason
			analysis.Deviations = append(analysis.Deviations, l)
		} else if l.MatchScore >= primaryScoreFloor {
			l.IsPrimary = true
			primaries = append(primaries, l)
		}

		analysis.Listings = append(analysis.Listings, l)
	}

	analysis.PrimaryCount = len(primaries)
	if len(primaries) > 0 {
		primaryPrices := make([]float64, len(primaries))
		for i, l := range primaries {
			primaryPrices[i] = l.Price
		}
		sort.Float64s(primaryPrices)
		analysis.LowestPrice = primaryPrices[0]
		analysis.HighestPrice = primaryPrices[len(primaryPrices)-1]
		analysis.MedianPrice = median(primaryPrices)
	}

	return analysis
}

// deviationReason reports why a listing's price/mileage/year combination is
// inconsistent with its peers, or "" when it is not.
func deviationReason(attrs model.VehicleAttributes, l model.ComparableListing, yardstick float64) string {
	if yardstick <= 0 {
		return ""
	}
	if l.Price < yardstick*deviationLowRatio {
		return fmt.Sprintf("priced far below comparable market (€%.0f vs median €%.0f)", l.Price, yardstick)
	}
	if l.Price > yardstick*deviationHighRatio {
		return fmt.Sprintf("priced far above comparable market (€%.0f vs median €%.0f)", l.Price, yardstick)
	}
	if attrs.BuildYear > 0 && l.BuildYear > 0 {
		diff := l.BuildYear - attrs.BuildYear
		if diff < -deviationYearDiff || diff > deviationYearDiff {
			return fmt.Sprintf("build year %d inconsistent with target %d", l.BuildYear, attrs.BuildYear)
		}
	}
	return ""
}

func appliedFilters(attrs model.VehicleAttributes) []string {
	filters := []string{"brand=" + attrs.Brand}
	if attrs.Model != "" {
		filters = append(filters, "model="+attrs.Model)
	}
	if attrs.BuildYear > 0 {
		filters = append(filters, fmt.Sprintf("buildYear=%d±1", attrs.BuildYear))
	}
	filters = append(filters, "sort=price-asc")
	return filters
}

func median(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	vals := make([]float64, len(sorted))
	copy(vals, sorted)
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 0 {
		return (vals[mid-1] + vals[mid]) / 2
	}
	return vals[mid]
}
