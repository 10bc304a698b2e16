package services

import (
	"context"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/repositories"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const returnsPercentagePlaces = 4

type PortfolioValuationI interface {
	Recalculate(ctx context.Context, portfolioID uuid.UUID) (*models.Valuation, error)
}

// PortfolioValuation derives portfolio aggregates from its holdings.
type PortfolioValuation struct {
	holdings   repositories.HoldingRepository
	portfolios repositories.PortfolioRepository
	prices     PriceFeed
	now        func() time.Time
}

func NewPortfolioValuation(holdings repositories.HoldingRepository, portfolios repositories.PortfolioRepository, prices PriceFeed, now func() time.Time) *PortfolioValuation {
	if now == nil {
		now = time.Now
	}
	return &PortfolioValuation{holdings: holdings, portfolios: portfolios, prices: prices, now: now}
}

// Value computes the aggregates without persisting them. Holdings without a
// current price are valued at their average cost.
func Value(holdings []models.Holding, prices map[string]models.AssetPrice) (models.Valuation, []string) {
	var unpriced []string
	value, invested := decimal.Zero, decimal.Zero
	for _, h := range holdings {
		price := h.AverageCost
		if p, ok := prices[h.AssetID]; ok && p.CurrentPrice.IsPositive() {
			price = p.CurrentPrice
		} else {
			unpriced = append(unpriced, h.AssetID)
		}
		value = value.Add(h.Quantity.Mul(price))
		invested = invested.Add(h.Quantity.Mul(h.AverageCost))
	}

	returns := value.Sub(invested)
	percentage := decimal.Zero
	if !invested.IsZero() {
		percentage = returns.Div(invested).Mul(hundred).Round(returnsPercentagePlaces)
	}
	return models.Valuation{
		TotalValue:        value,
		TotalInvested:     invested,
		TotalReturns:      returns,
		ReturnsPercentage: percentage,
	}, unpriced
}

// Recalculate values every holding of the portfolio and stores the result on it.
func (v *PortfolioValuation) Recalculate(ctx context.Context, portfolioID uuid.UUID) (*models.Valuation, error) {
	holdings, err := v.holdings.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, utils.Persistence("list holdings", err)
	}

	assetIDs := make([]string, 0, len(holdings))
	for _, h := range holdings {
		assetIDs = append(assetIDs, h.AssetID)
	}
	prices, err := v.prices.GetPrices(ctx, assetIDs)
	if err != nil {
		return nil, utils.Persistence("read prices", err)
	}

	valuation, unpriced := Value(holdings, prices)
	if len(unpriced) > 0 {
		utils.LoggerFromContext(ctx).WithField("portfolio_id", portfolioID).WithField("assets", unpriced).
			Warn("valuing holdings without a current price at average cost")
	}

	if err := v.portfolios.UpdateAggregates(ctx, portfolioID, valuation, v.now()); err != nil {
		return nil, utils.Persistence("update portfolio aggregates", err)
	}
	return &valuation, nil
}
