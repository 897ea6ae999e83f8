package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/carwise/internal/model"
	"github.com/dverbeek/carwise/internal/service"
)

func testStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "carwise.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testSale(brand, mdl string, soldDate time.Time) model.InternalComparableSale {
	return model.InternalComparableSale{
		Vehicle: model.VehicleAttributes{
			Brand:     brand,
			Model:     mdl,
			BuildYear: 2019,
			Mileage:   60000,
			FuelType:  "Benzine",
		},
		PurchasePrice: 14000,
		SellingPrice:  16500,
		Channel:       model.ChannelB2C,
		PurchaseDate:  soldDate.AddDate(0, 0, -21),
		SoldDate:      soldDate,
	}
}

func TestSales(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip preserves the sale", func(t *testing.T) {
		store := testStorage(t)
		sold := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

		require.NoError(t, store.SaveSales(ctx, []model.InternalComparableSale{
			testSale("Volkswagen", "Golf", sold),
		}))

		sales, err := store.QuerySales(ctx, service.SaleFilter{Brand: "Volkswagen"})
		require.NoError(t, err)
		require.Len(t, sales, 1)

		got := sales[0]
		assert.NotZero(t, got.ID)
		assert.Equal(t, "Volkswagen", got.Vehicle.Brand)
		assert.Equal(t, "Golf", got.Vehicle.Model)
		assert.Equal(t, 2019, got.Vehicle.BuildYear)
		assert.Equal(t, 60000, got.Vehicle.Mileage)
		assert.Equal(t, 14000.0, got.PurchasePrice)
		assert.Equal(t, 16500.0, got.SellingPrice)
		assert.Equal(t, model.ChannelB2C, got.Channel)
		assert.True(t, got.SoldDate.Equal(sold))
	})

	t.Run("brand match is case-insensitive", func(t *testing.T) {
		store := testStorage(t)
		sold := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

		require.NoError(t, store.SaveSales(ctx, []model.InternalComparableSale{
			testSale("Volkswagen", "Golf", sold),
		}))

		sales, err := store.QuerySales(ctx, service.SaleFilter{Brand: "volkswagen"})
		require.NoError(t, err)
		assert.Len(t, sales, 1)
	})

	t.Run("model prefix narrows the result", func(t *testing.T) {
		store := testStorage(t)
		sold := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

		require.NoError(t, store.SaveSales(ctx, []model.InternalComparableSale{
			testSale("Volkswagen", "Golf", sold),
			testSale("Volkswagen", "Polo", sold),
		}))

		sales, err := store.QuerySales(ctx, service.SaleFilter{Brand: "Volkswagen", ModelPrefix: "golf"})
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.Equal(t, "Golf", sales[0].Vehicle.Model)
	})

	t.Run("sold-after excludes older sales", func(t *testing.T) {
		store := testStorage(t)
		recent := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
		stale := recent.AddDate(-2, 0, 0)

		require.NoError(t, store.SaveSales(ctx, []model.InternalComparableSale{
			testSale("Volkswagen", "Golf", recent),
			testSale("Volkswagen", "Golf", stale),
		}))

		sales, err := store.QuerySales(ctx, service.SaleFilter{
			Brand:     "Volkswagen",
			SoldAfter: recent.AddDate(-1, 0, 0),
		})
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.True(t, sales[0].SoldDate.Equal(recent))
	})

	t.Run("newest first with limit", func(t *testing.T) {
		store := testStorage(t)
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		batch := make([]model.InternalComparableSale, 5)
		for i := range batch {
			batch[i] = testSale("Volkswagen", "Golf", base.AddDate(0, 0, i))
		}
		require.NoError(t, store.SaveSales(ctx, batch))

		sales, err := store.QuerySales(ctx, service.SaleFilter{Brand: "Volkswagen", Limit: 2})
		require.NoError(t, err)
		require.Len(t, sales, 2)
		assert.True(t, sales[0].SoldDate.After(sales[1].SoldDate))
	})

	t.Run("rows without prices are excluded", func(t *testing.T) {
		store := testStorage(t)
		incomplete := testSale("Volkswagen", "Golf", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
		incomplete.SellingPrice = 0

		require.NoError(t, store.SaveSales(ctx, []model.InternalComparableSale{incomplete}))

		sales, err := store.QuerySales(ctx, service.SaleFilter{Brand: "Volkswagen"})
		require.NoError(t, err)
		assert.Empty(t, sales)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		store := testStorage(t)
		err := store.SaveSales(ctx, []model.InternalComparableSale{})
		assert.True(t, errors.Is(err, ErrEmptySlice))
	})

	t.Run("sale without brand is rejected", func(t *testing.T) {
		store := testStorage(t)
		bad := testSale("", "Golf", time.Now())
		err := store.SaveSales(ctx, []model.InternalComparableSale{bad})
		assert.True(t, errors.Is(err, ErrInvalidSale))
	})
}

func TestAdvice(t *testing.T) {
	ctx := context.Background()

	savedAdvice := func(brand string, created time.Time) *model.ValuationAdvice {
		return &model.ValuationAdvice{
			Vehicle:                  model.VehicleAttributes{Brand: brand, Model: "Golf"},
			Plate:                    "AB-123-C",
			RecommendedSellingPrice:  18500,
			RecommendedPurchasePrice: 15948,
			Recommendation:           model.RecommendBuy,
			Reasoning:                "healthy margin across sources",
			CreatedAt:                created,
		}
	}

	t.Run("round trip preserves the payload", func(t *testing.T) {
		store := testStorage(t)
		created := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

		require.NoError(t, store.SaveAdvice(ctx, savedAdvice("Volkswagen", created)))

		results, err := store.GetRecentAdvice(ctx, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)

		got := results[0]
		assert.Equal(t, "Volkswagen", got.Vehicle.Brand)
		assert.Equal(t, "AB-123-C", got.Plate)
		assert.Equal(t, 18500.0, got.RecommendedSellingPrice)
		assert.Equal(t, model.RecommendBuy, got.Recommendation)
		assert.Equal(t, "healthy margin across sources", got.Reasoning)
	})

	t.Run("most recent first", func(t *testing.T) {
		store := testStorage(t)
		base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		require.NoError(t, store.SaveAdvice(ctx, savedAdvice("Toyota", base)))
		require.NoError(t, store.SaveAdvice(ctx, savedAdvice("Volkswagen", base.AddDate(0, 0, 1))))

		results, err := store.GetRecentAdvice(ctx, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Volkswagen", results[0].Vehicle.Brand)
	})

	t.Run("invalid recommendation is rejected", func(t *testing.T) {
		store := testStorage(t)
		bad := savedAdvice("Volkswagen", time.Now())
		bad.Recommendation = "maybe"

		err := store.SaveAdvice(ctx, bad)
		assert.True(t, errors.Is(err, ErrInvalidAdvice))
	})

	t.Run("nil advice is rejected", func(t *testing.T) {
		store := testStorage(t)
		err := store.SaveAdvice(ctx, nil)
		assert.True(t, errors.Is(err, ErrNilParameter))
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := testStorage(t)
	require.NoError(t, store.Migrate(context.Background()))

	var version int
	require.NoError(t, store.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}
