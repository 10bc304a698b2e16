package services_test

import (
	"testing"

	"autoinvest/src/models"
	"autoinvest/src/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioValuation(t *testing.T) {
	t.Run("should aggregate value, cost and returns", func(t *testing.T) {
		f := newFixture(t)
		_, err := buy(f, "AAPL", "10", "100")
		require.NoError(t, err)
		_, err = buy(f, "MSFT", "5", "200")
		require.NoError(t, err)
		f.setPrice("AAPL", "120", "118")
		f.setPrice("MSFT", "180", "185")

		v, err := f.valuation.Recalculate(f.ctx, f.portfolio)
		require.NoError(t, err)
		assertDecimal(t, "2100", v.TotalValue)
		assertDecimal(t, "2000", v.TotalInvested)
		assertDecimal(t, "100", v.TotalReturns)
		assertDecimal(t, "5", v.ReturnsPercentage)

		p, err := f.repos.Portfolios.GetByID(f.ctx, f.portfolio)
		require.NoError(t, err)
		assertDecimal(t, "2100", p.TotalValue)
		assertDecimal(t, "2000", p.TotalInvested)
		assertDecimal(t, "100", p.TotalReturns)
		assertDecimal(t, "5", p.ReturnsPercentage)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		f := newFixture(t)
		_, err := buy(f, "AAPL", "3", "10")
		require.NoError(t, err)
		f.setPrice("AAPL", "11", "10")

		first, err := f.valuation.Recalculate(f.ctx, f.portfolio)
		require.NoError(t, err)
		second, err := f.valuation.Recalculate(f.ctx, f.portfolio)
		require.NoError(t, err)
		assert.True(t, first.TotalValue.Equal(second.TotalValue))
		assert.True(t, first.ReturnsPercentage.Equal(second.ReturnsPercentage))
	})

	t.Run("should report zero percent for an empty portfolio", func(t *testing.T) {
		f := newFixture(t)
		v, err := f.valuation.Recalculate(f.ctx, f.portfolio)
		require.NoError(t, err)
		assert.True(t, v.TotalValue.IsZero())
		assert.True(t, v.ReturnsPercentage.IsZero())
	})
}

func TestValue(t *testing.T) {
	t.Run("should value unpriced holdings at average cost", func(t *testing.T) {
		holdings := []models.Holding{
			{AssetID: "AAPL", Quantity: dec("2"), AverageCost: dec("50")},
			{AssetID: "GONE", Quantity: dec("4"), AverageCost: dec("25")},
		}
		v, unpriced := services.Value(holdings, map[string]models.AssetPrice{"AAPL": price("AAPL", "60")})
		assert.Equal(t, []string{"GONE"}, unpriced)
		assertDecimal(t, "220", v.TotalValue)
		assertDecimal(t, "200", v.TotalInvested)
		assertDecimal(t, "20", v.TotalReturns)
		assertDecimal(t, "10", v.ReturnsPercentage)
	})

	t.Run("should round the percentage to four places", func(t *testing.T) {
		holdings := []models.Holding{{AssetID: "AAPL", Quantity: dec("3"), AverageCost: dec("1")}}
		v, _ := services.Value(holdings, map[string]models.AssetPrice{"AAPL": price("AAPL", "4")})
		assertDecimal(t, "300", v.ReturnsPercentage)

		v, _ = services.Value(holdings, map[string]models.AssetPrice{"AAPL": price("AAPL", "1.333333")})
		assertDecimal(t, "33.3333", v.ReturnsPercentage)
	})
}
