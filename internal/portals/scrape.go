package portals

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dverbeek/carwise/internal/model"
)

var (
	priceExpr   = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+|\d{3,6})`)
	mileageExpr = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+|\d{4,7})\s*km`)
	yearExpr    = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)
)

// PageScraper parses a marketplace search-results page directly. It is the
// degraded path used when no search agent is configured; results carry a flat
// match score since no similarity judgment is available.
type PageScraper struct {
	client *http.Client
}

// NewPageScraper wires an HTTP client; a nil client gets a 20s-timeout default.
func NewPageScraper(client *http.Client) *PageScraper {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageScraper{client: client}
}

// Scrape fetches the search page and extracts listing candidates from anchor
// cards that carry a recognizable price.
func (s *PageScraper) Scrape(ctx context.Context, pageURL string) ([]model.ComparableListing, error) {
	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	source := base.Hostname()

	listings := make([]model.ComparableListing, 0, maxListings)
	seen := map[string]struct{}{}

	doc.Find("article, li[class*=listing], div[class*=result]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find("a[href]").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}

		ref, parseErr := url.Parse(href)
		if parseErr != nil {
			return true
		}
		listingURL := base.ResolveReference(ref).String()
		if _, dup := seen[listingURL]; dup {
			return true
		}

		text := sel.Text()
		price := parsePrice(text)
		if price <= 0 {
			return true
		}

		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			title = strings.TrimSpace(sel.Find("h2, h3").First().Text())
		}

		listing := model.ComparableListing{
			Source:     source,
			URL:        listingURL,
			Title:      title,
			Price:      price,
			MatchScore: primaryScoreFloor,
		}
		if m := mileageExpr.FindStringSubmatch(text); m != nil {
			listing.Mileage = parseGroupedInt(m[1])
		}
		if m := yearExpr.FindString(text); m != "" {
			listing.BuildYear, _ = strconv.Atoi(m)
		}

		seen[listingURL] = struct{}{}
		listings = append(listings, listing)
		return len(listings) < maxListings
	})

	return listings, nil
}

func (s *PageScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; carwise/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

// parsePrice pulls the first grouped number preceded by a euro sign, falling
// back to the first grouped number on the card.
func parsePrice(text string) float64 {
	if idx := strings.IndexRune(text, '€'); idx >= 0 {
		if m := priceExpr.FindString(text[idx:]); m != "" {
			return float64(parseGroupedInt(m))
		}
	}
	if m := priceExpr.FindString(text); m != "" {
		return float64(parseGroupedInt(m))
	}
	return 0
}

func parseGroupedInt(s string) int {
	digits := strings.NewReplacer(".", "", ",", "").Replace(s)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
