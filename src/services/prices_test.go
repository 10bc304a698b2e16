package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFeed struct {
	prices map[string]models.AssetPrice
	asked  [][]string
	err    error
}

func (f *countingFeed) GetPrices(ctx context.Context, assetIDs []string) (map[string]models.AssetPrice, error) {
	f.asked = append(f.asked, append([]string(nil), assetIDs...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]models.AssetPrice, len(assetIDs))
	for _, id := range assetIDs {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestCachedPriceFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("should only ask the feed for missing assets", func(t *testing.T) {
		feed := &countingFeed{prices: map[string]models.AssetPrice{
			"AAPL":  {AssetID: "AAPL", CurrentPrice: dec("150")},
			"GOOGL": {AssetID: "GOOGL", CurrentPrice: dec("100")},
		}}
		cached := services.NewCachedPriceFeed(feed, time.Minute)

		prices, err := cached.GetPrices(ctx, []string{"AAPL"})
		require.NoError(t, err)
		assertDecimal(t, "150", prices["AAPL"].CurrentPrice)

		prices, err = cached.GetPrices(ctx, []string{"AAPL", "GOOGL", "MSFT"})
		require.NoError(t, err)
		assert.Len(t, prices, 2)
		require.Len(t, feed.asked, 2)
		assert.ElementsMatch(t, []string{"GOOGL", "MSFT"}, feed.asked[1])

		_, err = cached.GetPrices(ctx, []string{"AAPL", "GOOGL"})
		require.NoError(t, err)
		assert.Len(t, feed.asked, 2, "fully cached reads must not reach the feed")
	})

	t.Run("should pass feed errors through", func(t *testing.T) {
		down := errors.New("feed down")
		cached := services.NewCachedPriceFeed(&countingFeed{err: down}, time.Minute)

		_, err := cached.GetPrices(ctx, []string{"AAPL"})
		assert.ErrorIs(t, err, down)
	})
}
