package portals

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/carwise/internal/llm"
	"github.com/dverbeek/carwise/internal/model"
)

type mockClient struct {
	response string
	err      error
	calls    int
}

func (m *mockClient) Complete(_ context.Context, _, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockClient) CompleteWithSearch(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return m.Complete(ctx, prompt, systemPrompt)
}

func golf(year int) model.VehicleAttributes {
	return model.VehicleAttributes{Brand: "Volkswagen", Model: "Golf", BuildYear: year}
}

func agentJSON(listings ...string) string {
	out := `{"listings": [`
	for i, l := range listings {
		if i > 0 {
			out += ","
		}
		out += l
	}
	return out + `]}`
}

func listing(price float64, year int, score float64) string {
	return fmt.Sprintf(`{"source": "autoscout24", "url": "https://example.com/%.0f", "title": "VW Golf", "price": %.0f, "buildYear": %d, "matchScore": %.2f}`,
		price, price, year, score)
}

func TestAggregatorSearch(t *testing.T) {
	attrs := golf(2020)
	urls := BuildSearchURLs(attrs)

	t.Run("computes stats over primaries only", func(t *testing.T) {
		client := &mockClient{response: agentJSON(
			listing(18000, 2020, 0.9),
			listing(18500, 2020, 0.85),
			listing(19000, 2019, 0.8),
			listing(6000, 2020, 0.9), // far below market
		)}
		agg := NewAggregator(client, nil, nil, nil)

		analysis := agg.Search(context.Background(), attrs, urls)
		require.NotNil(t, analysis)

		assert.Equal(t, 4, analysis.ListingCount)
		assert.Equal(t, 3, analysis.PrimaryCount)
		assert.Len(t, analysis.Deviations, 1)
		assert.Equal(t, 18000.0, analysis.LowestPrice)
		assert.Equal(t, 18500.0, analysis.MedianPrice)
		assert.Equal(t, 19000.0, analysis.HighestPrice)
		assert.False(t, analysis.IsEmpty())
	})

	t.Run("primary and deviation sets are disjoint", func(t *testing.T) {
		client := &mockClient{response: agentJSON(
			listing(18000, 2020, 0.9),
			listing(40000, 2020, 0.95), // above the high ratio
			listing(18200, 2012, 0.9),  // build year too far off
		)}
		agg := NewAggregator(client, nil, nil, nil)

		analysis := agg.Search(context.Background(), attrs, urls)

		for _, l := range analysis.Listings {
			assert.False(t, l.IsPrimary && l.IsLogicalDeviation, "listing %s in both sets", l.URL)
		}
		for _, d := range analysis.Deviations {
			assert.NotEmpty(t, d.DeviationReason)
		}
	})

	t.Run("low match score is neither primary nor deviation", func(t *testing.T) {
		client := &mockClient{response: agentJSON(
			listing(18000, 2020, 0.9),
			listing(18500, 2020, 0.2),
		)}
		agg := NewAggregator(client, nil, nil, nil)

		analysis := agg.Search(context.Background(), attrs, urls)
		assert.Equal(t, 2, analysis.ListingCount)
		assert.Equal(t, 1, analysis.PrimaryCount)
		assert.Empty(t, analysis.Deviations)
	})

	t.Run("discards listings without url or price", func(t *testing.T) {
		client := &mockClient{response: agentJSON(
			`{"source": "x", "url": "", "price": 18000, "matchScore": 0.9}`,
			`{"source": "x", "url": "https://example.com/1", "price": 0, "matchScore": 0.9}`,
			listing(18000, 2020, 0.9),
		)}
		agg := NewAggregator(client, nil, nil, nil)

		analysis := agg.Search(context.Background(), attrs, urls)
		assert.Equal(t, 1, analysis.ListingCount)
	})

	t.Run("malformed reply degrades to empty analysis", func(t *testing.T) {
		client := &mockClient{response: "I'm sorry, I was unable to open that page."}
		agg := NewAggregator(client, nil, nil, nil)

		analysis := agg.Search(context.Background(), attrs, urls)
		require.NotNil(t, analysis)
		assert.Equal(t, 0, analysis.ListingCount)
		assert.True(t, analysis.IsEmpty())
		assert.NotEmpty(t, analysis.SearchURL)
	})

	t.Run("agent failure degrades to empty analysis", func(t *testing.T) {
		client := &mockClient{err: errors.New("boom")}
		agg := NewAggregator(client, nil, nil, nil)

		analysis := agg.Search(context.Background(), attrs, urls)
		require.NotNil(t, analysis)
		assert.True(t, analysis.IsEmpty())
	})

	t.Run("no search URL yields empty analysis", func(t *testing.T) {
		agg := NewAggregator(&mockClient{}, nil, nil, nil)

		analysis := agg.Search(context.Background(), model.VehicleAttributes{}, nil)
		require.NotNil(t, analysis)
		assert.True(t, analysis.IsEmpty())
	})

	t.Run("repeated identical search hits the cache", func(t *testing.T) {
		client := &mockClient{response: agentJSON(listing(18000, 2020, 0.9))}
		agg := NewAggregator(client, llm.NewCache(4), nil, nil)

		first := agg.Search(context.Background(), attrs, urls)
		second := agg.Search(context.Background(), attrs, urls)

		assert.Equal(t, 1, client.calls)
		assert.Equal(t, first.MedianPrice, second.MedianPrice)
	})
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 5.0, median([]float64{5}))
	assert.Equal(t, 7.5, median([]float64{5, 10}))
	assert.Equal(t, 10.0, median([]float64{20, 5, 10}))
}

func TestBuildSearchURLs(t *testing.T) {
	t.Run("builds both portals with year window", func(t *testing.T) {
		urls := BuildSearchURLs(golf(2020))
		require.Len(t, urls, 2)
		assert.Contains(t, urls[0], "autoscout24.nl/lst/volkswagen/golf")
		assert.Contains(t, urls[0], "fregfrom=2019")
		assert.Contains(t, urls[0], "fregto=2021")
		assert.Contains(t, urls[1], "gaspedaal.nl/volkswagen/golf")
	})

	t.Run("no brand means no URLs", func(t *testing.T) {
		assert.Nil(t, BuildSearchURLs(model.VehicleAttributes{Model: "Golf"}))
	})

	t.Run("slugifies multi-word names", func(t *testing.T) {
		urls := BuildSearchURLs(model.VehicleAttributes{Brand: "Land Rover", Model: "Range Rover"})
		require.NotEmpty(t, urls)
		assert.Contains(t, urls[0], "/land-rover/range-rover")
	})
}
