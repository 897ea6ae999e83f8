package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/carwise/internal/model"
)

func completedRow(rec model.Recommendation) model.BulkRow {
	return model.BulkRow{
		Status: model.BulkCompleted,
		Result: &model.RunResult{
			Vehicle: model.VehicleAttributes{
				Brand:     "Volkswagen",
				Model:     "Golf",
				FuelType:  "Benzine",
				Mileage:   45000,
				BuildYear: 2020,
			},
			Index: &model.PricingIndexResult{
				TotalValue:           18500,
				AveragePriceRatio:    0.11,
				ExpectedTimeToRetail: 14,
				Liquidity:            model.LiquidityHigh,
			},
			Advice: &model.ValuationAdvice{
				Recommendation:           rec,
				RecommendedSellingPrice:  18500,
				RecommendedPurchasePrice: 15948,
			},
		},
	}
}

func erroredRow() model.BulkRow {
	return model.BulkRow{
		Status:      model.BulkError,
		Description: "roestbak zonder kenteken",
		Error:       "description could not be parsed into a vehicle",
	}
}

func TestPrepareRows(t *testing.T) {
	t.Run("header, data in batch order, trailing summary", func(t *testing.T) {
		rows := []model.BulkRow{
			completedRow(model.RecommendBuy),
			erroredRow(),
			completedRow(model.RecommendNoBuy),
		}

		values := prepareRows(rows)

		// header + 3 data + blank + 6 summary lines
		require.Len(t, values, 10)
		assert.Equal(t, headerRow, values[0])

		first := values[1]
		assert.Equal(t, "Volkswagen", first[colBrand])
		assert.Equal(t, "Golf", first[colModel])
		assert.Equal(t, "Benzine", first[colFuelType])
		assert.Equal(t, 45000, first[colMileage])
		assert.Equal(t, 2020, first[colBuildYear])
		assert.Equal(t, "0.11", first[colAveragePriceRatio])
		assert.Equal(t, 14, first[colTimeToRetail])
		assert.Equal(t, 18500.0, first[colIndexPrice])
		assert.Equal(t, 18500.0, first[colSellingPrice])
		assert.Equal(t, 15948.0, first[colPurchasePrice])
		assert.Equal(t, "buy", first[colRecommendation])
		assert.Equal(t, "high", first[colLiquidity])
		assert.Contains(t, first[colSearchLink], "autoscout24")
		assert.Equal(t, "", first[colError])

		failed := values[2]
		assert.Equal(t, "roestbak zonder kenteken", failed[colBrand])
		assert.NotEmpty(t, failed[colError])
	})

	t.Run("summary counts per category", func(t *testing.T) {
		rows := []model.BulkRow{
			completedRow(model.RecommendBuy),
			completedRow(model.RecommendBuy),
			completedRow(model.RecommendUncertain),
			erroredRow(),
		}

		summary := summarize(rows)
		assert.Equal(t, 4, summary.Total)
		assert.Equal(t, 2, summary.Buy)
		assert.Equal(t, 0, summary.NoBuy)
		assert.Equal(t, 1, summary.Uncertain)
		assert.Equal(t, 1, summary.Errors)
	})

	t.Run("row without index leaves those cells empty", func(t *testing.T) {
		row := completedRow(model.RecommendUncertain)
		row.Result.Index = nil

		cells := dataRow(row)
		assert.Equal(t, "", cells[colIndexPrice])
		assert.Equal(t, "", cells[colLiquidity])
		assert.Equal(t, "uncertain", cells[colRecommendation])
	})
}

func TestRowColor(t *testing.T) {
	assert.Equal(t, colorBuy, rowColor(completedRow(model.RecommendBuy)))
	assert.Equal(t, colorNoBuy, rowColor(completedRow(model.RecommendNoBuy)))
	assert.Equal(t, colorUncertain, rowColor(completedRow(model.RecommendUncertain)))
	assert.Equal(t, colorError, rowColor(erroredRow()))

	noAdvice := completedRow(model.RecommendBuy)
	noAdvice.Result.Advice = nil
	assert.Nil(t, rowColor(noAdvice))
}

func TestConfigValidate(t *testing.T) {
	t.Run("requires one auth method", func(t *testing.T) {
		cfg := DefaultConfig()
		require.Error(t, cfg.Validate())

		cfg.ServiceAccountPath = "/tmp/key.json"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects both auth methods", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ServiceAccountPath = "/tmp/key.json"
		cfg.ClientID = "id"
		cfg.ClientSecret = "secret"
		cfg.RefreshToken = "token"
		require.Error(t, cfg.Validate())
	})

	t.Run("rejects nonpositive batch size", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ServiceAccountPath = "/tmp/key.json"
		cfg.BatchSize = 0
		require.Error(t, cfg.Validate())
	})
}
