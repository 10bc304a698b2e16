package services

import (
	"context"
	"time"

	"autoinvest/src/models"

	"github.com/shopspring/decimal"
)

// MarketDipDetector decides whether a rule's basket has fallen far enough to buy.
type MarketDipDetector struct {
	prices               PriceFeed
	defaultCooldownHours int
}

func NewMarketDipDetector(prices PriceFeed, defaultCooldownHours int) *MarketDipDetector {
	return &MarketDipDetector{prices: prices, defaultCooldownHours: defaultCooldownHours}
}

// DipPercent is the drop from the previous close in percent. ok is false when
// the previous close cannot be used as a base.
func DipPercent(p models.AssetPrice) (decimal.Decimal, bool) {
	if !p.PreviousClose.IsPositive() {
		return decimal.Zero, false
	}
	return p.PreviousClose.Sub(p.CurrentPrice).Div(p.PreviousClose).Mul(hundred), true
}

// IsTriggered reports whether any asset of the allocation dipped by at least
// thresholdPercent. Assets without a price are ignored.
func (d *MarketDipDetector) IsTriggered(ctx context.Context, allocation map[string]decimal.Decimal, thresholdPercent decimal.Decimal) (bool, error) {
	assetIDs := make([]string, 0, len(allocation))
	for id := range allocation {
		assetIDs = append(assetIDs, id)
	}
	prices, err := d.prices.GetPrices(ctx, assetIDs)
	if err != nil {
		return false, err
	}

	for _, id := range assetIDs {
		p, ok := prices[id]
		if !ok {
			continue
		}
		if dip, ok := DipPercent(p); ok && dip.GreaterThanOrEqual(thresholdPercent) {
			return true, nil
		}
	}
	return false, nil
}

// CooldownElapsed reports whether the rule may fire again. The last dip trigger
// is preferred, last_execution is the fallback for rules that never recorded one.
func (d *MarketDipDetector) CooldownElapsed(rule *models.AutomationRule, now time.Time) bool {
	last := rule.LastMarketDipTrigger
	if last == nil {
		last = rule.LastExecution
	}
	if last == nil {
		return true
	}

	hours := rule.MarketDipCooldownHours
	if hours <= 0 {
		hours = d.defaultCooldownHours
	}
	return now.Sub(*last) >= time.Duration(hours)*time.Hour
}
