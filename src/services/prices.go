package services

import (
	"context"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/utils"
)

// PriceFeed is the read-only market data collaborator. Unknown assets are
// absent from the returned map.
type PriceFeed interface {
	GetPrices(ctx context.Context, assetIDs []string) (map[string]models.AssetPrice, error)
}

// CachedPriceFeed serves recently read prices from memory and only asks the
// underlying feed for the rest.
type CachedPriceFeed struct {
	feed  PriceFeed
	cache *utils.Cache[string, models.AssetPrice]
}

func NewCachedPriceFeed(feed PriceFeed, ttl time.Duration) *CachedPriceFeed {
	return &CachedPriceFeed{feed: feed, cache: utils.NewCache[string, models.AssetPrice](ttl)}
}

func (c *CachedPriceFeed) GetPrices(ctx context.Context, assetIDs []string) (map[string]models.AssetPrice, error) {
	prices := make(map[string]models.AssetPrice, len(assetIDs))
	var misses []string
	for _, id := range assetIDs {
		if p, ok := c.cache.Get(id); ok {
			prices[id] = p
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return prices, nil
	}

	fresh, err := c.feed.GetPrices(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, p := range fresh {
		c.cache.Set(id, p)
		prices[id] = p
	}
	return prices, nil
}
