package advice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/carwise/internal/model"
)

type mockClient struct {
	response string
	err      error
}

func (m *mockClient) Complete(_ context.Context, _, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockClient) CompleteWithSearch(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return m.Complete(ctx, prompt, systemPrompt)
}

func golfInputs() Inputs {
	return Inputs{
		Plate:   "AB-123-C",
		Vehicle: model.VehicleAttributes{Brand: "Volkswagen", Model: "Golf", BuildYear: 2020},
		Portal: &model.PortalAnalysis{
			ListingCount: 6,
			PrimaryCount: 5,
			LowestPrice:  17500,
			MedianPrice:  18400,
			HighestPrice: 19900,
		},
		Index: &model.PricingIndexResult{
			TotalValue:           18500,
			ExpectedTimeToRetail: 14,
			Liquidity:            model.LiquidityHigh,
		},
		Internal: &model.InternalComparison{
			AverageMarginPct:  16.0,
			AverageDaysToSell: 12,
			AverageDaysB2C:    12,
			CountB2C:          4,
			MatchLevel:        model.MatchedByModel,
		},
	}
}

func TestSynthesizeRuleOnly(t *testing.T) {
	t.Run("all sources present yields buy", func(t *testing.T) {
		s := NewSynthesizer(nil, nil)

		advice, err := s.Synthesize(context.Background(), golfInputs())
		require.NoError(t, err)

		assert.Equal(t, model.RecommendBuy, advice.Recommendation)
		assert.Equal(t, 18500.0, advice.RecommendedSellingPrice)
		// buy = market / (1 + margin/100), rounded
		assert.InDelta(t, 15948, advice.RecommendedPurchasePrice, 1)
		assert.Less(t, advice.RecommendedPurchasePrice, advice.RecommendedSellingPrice)
		assert.Equal(t, 14, advice.ExpectedDaysToSell)
		assert.InDelta(t, 16.0, advice.TargetMarginPct, 0.001)
		assert.Equal(t, 5, advice.PrimaryListingsUsed)
		assert.NotEmpty(t, advice.Reasoning)
		assert.False(t, advice.CreatedAt.IsZero())
	})

	t.Run("thin margin yields no-buy", func(t *testing.T) {
		in := golfInputs()
		in.Internal.AverageMarginPct = 5.0
		s := NewSynthesizer(nil, nil)

		advice, err := s.Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, model.RecommendNoBuy, advice.Recommendation)
	})

	t.Run("slow mover yields no-buy", func(t *testing.T) {
		in := golfInputs()
		in.Index.ExpectedTimeToRetail = 120
		s := NewSynthesizer(nil, nil)

		advice, err := s.Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, model.RecommendNoBuy, advice.Recommendation)
	})

	t.Run("middling margin yields uncertain", func(t *testing.T) {
		in := golfInputs()
		in.Internal.AverageMarginPct = 10.0
		s := NewSynthesizer(nil, nil)

		advice, err := s.Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, model.RecommendUncertain, advice.Recommendation)
	})

	t.Run("single signal yields uncertain with scarcity reasoning", func(t *testing.T) {
		in := golfInputs()
		in.Portal = nil
		in.Internal = nil
		s := NewSynthesizer(nil, nil)

		advice, err := s.Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, model.RecommendUncertain, advice.Recommendation)
		assert.Contains(t, advice.Reasoning, "signal")
		// Prices still anchor to the one available estimate.
		assert.Equal(t, 18500.0, advice.RecommendedSellingPrice)
		assert.Greater(t, advice.RecommendedPurchasePrice, 0.0)
	})

	t.Run("portal only yields advice without error", func(t *testing.T) {
		in := golfInputs()
		in.Index = nil
		in.Internal = nil
		s := NewSynthesizer(nil, nil)

		advice, err := s.Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, model.RecommendUncertain, advice.Recommendation)
		assert.Equal(t, 18400.0, advice.RecommendedSellingPrice)
	})

	t.Run("all sources absent is an error", func(t *testing.T) {
		in := Inputs{
			Vehicle: model.VehicleAttributes{Brand: "Volkswagen", Model: "Golf"},
			Portal:  &model.PortalAnalysis{},
		}
		s := NewSynthesizer(nil, nil)

		_, err := s.Synthesize(context.Background(), in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoSources))
	})

	t.Run("widened search note becomes a risk factor", func(t *testing.T) {
		in := golfInputs()
		in.Internal.WidenedSearchNote = "comparison widened to all Volkswagen models"
		s := NewSynthesizer(nil, nil)

		advice, err := s.Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Contains(t, advice.RiskFactors, in.Internal.WidenedSearchNote)
	})

	t.Run("material portal-index gap is explained", func(t *testing.T) {
		in := golfInputs()
		in.Portal.MedianPrice = 22000
		s := NewSynthesizer(nil, nil)

		advice, err := s.Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.NotEmpty(t, advice.IndexDeviationNote)
	})
}

func TestSynthesizeWithLLM(t *testing.T) {
	t.Run("model refines wording and adds risks", func(t *testing.T) {
		client := &mockClient{response: `{
			"recommendation": "buy",
			"reasoning": "strong demand for this configuration",
			"recommendedSellingPrice": 18800,
			"recommendedPurchasePrice": 16000,
			"riskFactors": ["timing belt due at 60k"],
			"opportunities": ["popular color"]
		}`}
		s := NewSynthesizer(client, nil)

		advice, err := s.Synthesize(context.Background(), golfInputs())
		require.NoError(t, err)

		assert.Equal(t, model.RecommendBuy, advice.Recommendation)
		assert.Equal(t, "strong demand for this configuration", advice.Reasoning)
		assert.Equal(t, 18800.0, advice.RecommendedSellingPrice)
		assert.Equal(t, 16000.0, advice.RecommendedPurchasePrice)
		assert.Contains(t, advice.RiskFactors, "timing belt due at 60k")
		assert.Contains(t, advice.Opportunities, "popular color")
	})

	t.Run("model may only downgrade the category", func(t *testing.T) {
		client := &mockClient{response: `{"recommendation": "uncertain", "reasoning": "accident history unclear"}`}
		s := NewSynthesizer(client, nil)

		advice, err := s.Synthesize(context.Background(), golfInputs())
		require.NoError(t, err)
		assert.Equal(t, model.RecommendUncertain, advice.Recommendation)
	})

	t.Run("model cannot upgrade a no-buy", func(t *testing.T) {
		in := golfInputs()
		in.Internal.AverageMarginPct = 5.0
		client := &mockClient{response: `{"recommendation": "buy", "reasoning": "trust me"}`}
		s := NewSynthesizer(client, nil)

		advice, err := s.Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, model.RecommendNoBuy, advice.Recommendation)
	})

	t.Run("out-of-band prices are discarded", func(t *testing.T) {
		client := &mockClient{response: `{
			"recommendation": "buy",
			"recommendedSellingPrice": 99000,
			"recommendedPurchasePrice": 100
		}`}
		s := NewSynthesizer(client, nil)

		advice, err := s.Synthesize(context.Background(), golfInputs())
		require.NoError(t, err)
		assert.Equal(t, 18500.0, advice.RecommendedSellingPrice)
		assert.InDelta(t, 15948, advice.RecommendedPurchasePrice, 1)
	})

	t.Run("model failure keeps rule-derived advice", func(t *testing.T) {
		client := &mockClient{err: errors.New("boom")}
		s := NewSynthesizer(client, nil)

		advice, err := s.Synthesize(context.Background(), golfInputs())
		require.NoError(t, err)
		assert.Equal(t, model.RecommendBuy, advice.Recommendation)
	})

	t.Run("unparseable reply keeps rule-derived advice", func(t *testing.T) {
		client := &mockClient{response: "let me think about this one"}
		s := NewSynthesizer(client, nil)

		advice, err := s.Synthesize(context.Background(), golfInputs())
		require.NoError(t, err)
		assert.Equal(t, model.RecommendBuy, advice.Recommendation)
		assert.NotEmpty(t, advice.Reasoning)
	})
}

func TestDecideCategoryBounds(t *testing.T) {
	base := signals{marketEstimate: 18500, count: 3, expectedDays: 30}

	t.Run("margin exactly at buy threshold buys", func(t *testing.T) {
		s := base
		s.targetMargin = 12.0
		category, _ := decideCategory(s)
		assert.Equal(t, model.RecommendBuy, category)
	})

	t.Run("margin exactly at floor is not a no-buy", func(t *testing.T) {
		s := base
		s.targetMargin = 8.0
		category, _ := decideCategory(s)
		assert.Equal(t, model.RecommendUncertain, category)
	})

	t.Run("days exactly at ceiling still buys", func(t *testing.T) {
		s := base
		s.targetMargin = 15.0
		s.expectedDays = 60
		category, _ := decideCategory(s)
		assert.Equal(t, model.RecommendBuy, category)
	})

	t.Run("days just over no-buy floor rejects", func(t *testing.T) {
		s := base
		s.targetMargin = 15.0
		s.expectedDays = 91
		category, _ := decideCategory(s)
		assert.Equal(t, model.RecommendNoBuy, category)
	})
}

func TestSynthesizerClock(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	fixed := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	advice, err := s.Synthesize(context.Background(), golfInputs())
	require.NoError(t, err)
	assert.Equal(t, fixed, advice.CreatedAt)
}
