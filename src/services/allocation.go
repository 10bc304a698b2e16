package services

import (
	"sort"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/utils"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxQuantityPrecision is the scale of stored quantities. Finer precisions are
// clamped so a floored quantity is never rounded up on write.
const MaxQuantityPrecision int32 = 18

// AllocationCalculator splits an investment across the assets of a rule.
type AllocationCalculator struct {
	defaultPrecision int32
	maxPriceAge      time.Duration
	now              func() time.Time
}

// NewAllocationCalculator rounds quantities down to defaultPrecision decimal
// places unless the price carries its own precision. Prices older than
// maxPriceAge count as unavailable; zero disables the check.
func NewAllocationCalculator(defaultPrecision int32, maxPriceAge time.Duration, now func() time.Time) *AllocationCalculator {
	if now == nil {
		now = time.Now
	}
	return &AllocationCalculator{defaultPrecision: clampPrecision(defaultPrecision), maxPriceAge: maxPriceAge, now: now}
}

func clampPrecision(p int32) int32 {
	if p > MaxQuantityPrecision {
		return MaxQuantityPrecision
	}
	if p < 0 {
		return 0
	}
	return p
}

func (c *AllocationCalculator) usable(p models.AssetPrice, ok bool) bool {
	if !ok || !p.CurrentPrice.IsPositive() {
		return false
	}
	if c.maxPriceAge > 0 && c.now().Sub(p.UpdatedAt) > c.maxPriceAge {
		return false
	}
	return true
}

// Apportion returns one allocation per asset ordered by asset id. It fails as a
// whole when any asset lacks a usable price. Assets whose quantity rounds down
// to zero are left out.
func (c *AllocationCalculator) Apportion(total decimal.Decimal, allocation map[string]decimal.Decimal, prices map[string]models.AssetPrice) ([]models.Allocation, error) {
	assetIDs := make([]string, 0, len(allocation))
	for id := range allocation {
		assetIDs = append(assetIDs, id)
	}
	sort.Strings(assetIDs)

	var missing []string
	for _, id := range assetIDs {
		if p, ok := prices[id]; !c.usable(p, ok) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &utils.PriceUnavailableError{AssetIDs: missing}
	}

	result := make([]models.Allocation, 0, len(assetIDs))
	for _, id := range assetIDs {
		price := prices[id]
		amount := total.Mul(allocation[id]).Div(hundred)

		precision := c.defaultPrecision
		if price.QuantityPrecision != nil {
			precision = clampPrecision(*price.QuantityPrecision)
		}
		quantity, _ := amount.QuoRem(price.CurrentPrice, precision)
		if !quantity.IsPositive() {
			continue
		}

		result = append(result, models.Allocation{
			AssetID:  id,
			Amount:   amount,
			Quantity: quantity,
			Price:    price.CurrentPrice,
		})
	}
	return result, nil
}

// AllocatedTotal sums the amounts that were actually allocated.
func AllocatedTotal(allocations []models.Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}
