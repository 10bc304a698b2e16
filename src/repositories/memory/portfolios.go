package memory

import (
	"context"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/utils"

	"github.com/google/uuid"
)

type portfolioRepo struct {
	s *Store
}

func (r *portfolioRepo) Create(ctx context.Context, p *models.Portfolio) error {
	release, err := r.s.acquire(ctx, "portfolios.Create")
	if err != nil {
		return err
	}
	defer release()

	now := r.s.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.data.portfolios[p.ID] = *p
	return nil
}

func (r *portfolioRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Portfolio, error) {
	release, err := r.s.acquire(ctx, "portfolios.GetByID")
	if err != nil {
		return nil, err
	}
	defer release()

	p, ok := r.s.data.portfolios[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &p, nil
}

func (r *portfolioRepo) UpdateAggregates(ctx context.Context, id uuid.UUID, v models.Valuation, at time.Time) error {
	release, err := r.s.acquire(ctx, "portfolios.UpdateAggregates")
	if err != nil {
		return err
	}
	defer release()

	p, ok := r.s.data.portfolios[id]
	if !ok {
		return utils.ErrNotFound
	}
	p.TotalValue = v.TotalValue
	p.TotalInvested = v.TotalInvested
	p.TotalReturns = v.TotalReturns
	p.ReturnsPercentage = v.ReturnsPercentage
	p.UpdatedAt = at
	r.s.data.portfolios[id] = p
	return nil
}

// LockForUpdate only checks existence. Transactions already run one at a time.
func (r *portfolioRepo) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	release, err := r.s.acquire(ctx, "portfolios.LockForUpdate")
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.s.data.portfolios[id]; !ok {
		return utils.ErrNotFound
	}
	return nil
}

type executionRepo struct {
	s *Store
}

func (r *executionRepo) Create(ctx context.Context, e *models.ExecutionRecord) error {
	release, err := r.s.acquire(ctx, "executions.Create")
	if err != nil {
		return err
	}
	defer release()

	r.s.data.executions = append(r.s.data.executions, *e)
	return nil
}

func (r *executionRepo) ListByRule(ctx context.Context, ruleID uuid.UUID, limit int) ([]models.ExecutionRecord, error) {
	release, err := r.s.acquire(ctx, "executions.ListByRule")
	if err != nil {
		return nil, err
	}
	defer release()

	var records []models.ExecutionRecord
	for i := len(r.s.data.executions) - 1; i >= 0 && (limit <= 0 || len(records) < limit); i-- {
		if e := r.s.data.executions[i]; e.RuleID == ruleID {
			records = append(records, e)
		}
	}
	return records, nil
}

type priceRepo struct {
	s *Store
}

func (r *priceRepo) GetPrices(ctx context.Context, assetIDs []string) (map[string]models.AssetPrice, error) {
	release, err := r.s.acquire(ctx, "prices.GetPrices")
	if err != nil {
		return nil, err
	}
	defer release()

	prices := make(map[string]models.AssetPrice, len(assetIDs))
	for _, id := range assetIDs {
		if p, ok := r.s.data.prices[id]; ok {
			prices[id] = p
		}
	}
	return prices, nil
}
