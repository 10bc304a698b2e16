package memory

import (
	"context"
	"sort"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/repositories"
	"autoinvest/src/utils"

	"github.com/google/uuid"
)

type holdingRepo struct {
	s *Store
}

func (r *holdingRepo) Get(ctx context.Context, portfolioID uuid.UUID, assetID string) (*models.Holding, error) {
	release, err := r.s.acquire(ctx, "holdings.Get")
	if err != nil {
		return nil, err
	}
	defer release()

	h, ok := r.s.data.holdings[holdingKey{portfolioID, assetID}]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (r *holdingRepo) Insert(ctx context.Context, h *models.Holding) (bool, error) {
	release, err := r.s.acquire(ctx, "holdings.Insert")
	if err != nil {
		return false, err
	}
	defer release()

	key := holdingKey{h.PortfolioID, h.AssetID}
	if _, exists := r.s.data.holdings[key]; exists {
		return false, nil
	}
	now := r.s.Now()
	h.CreatedAt, h.UpdatedAt = now, now
	r.s.data.holdings[key] = *h
	return true, nil
}

func (r *holdingRepo) Update(ctx context.Context, h *models.Holding) error {
	release, err := r.s.acquire(ctx, "holdings.Update")
	if err != nil {
		return err
	}
	defer release()

	key := holdingKey{h.PortfolioID, h.AssetID}
	stored, ok := r.s.data.holdings[key]
	if !ok {
		return utils.ErrNotFound
	}
	stored.Quantity = h.Quantity
	stored.AverageCost = h.AverageCost
	stored.TotalInvested = h.TotalInvested
	stored.UpdatedAt = r.s.Now()
	r.s.data.holdings[key] = stored
	h.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *holdingRepo) Delete(ctx context.Context, portfolioID uuid.UUID, assetID string) error {
	release, err := r.s.acquire(ctx, "holdings.Delete")
	if err != nil {
		return err
	}
	defer release()

	delete(r.s.data.holdings, holdingKey{portfolioID, assetID})
	return nil
}

func (r *holdingRepo) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.Holding, error) {
	release, err := r.s.acquire(ctx, "holdings.ListByPortfolio")
	if err != nil {
		return nil, err
	}
	defer release()

	var holdings []models.Holding
	for key, h := range r.s.data.holdings {
		if key.portfolioID == portfolioID {
			holdings = append(holdings, h)
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].AssetID < holdings[j].AssetID })
	return holdings, nil
}

type transactionRepo struct {
	s *Store
}

func (r *transactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	release, err := r.s.acquire(ctx, "transactions.Create")
	if err != nil {
		return err
	}
	defer release()

	now := r.s.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.data.transactions = append(r.s.data.transactions, *t)
	return nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, change repositories.StatusChange) (bool, error) {
	release, err := r.s.acquire(ctx, "transactions.UpdateStatus")
	if err != nil {
		return false, err
	}
	defer release()

	for i := range r.s.data.transactions {
		t := &r.s.data.transactions[i]
		if t.ID != id {
			continue
		}
		if t.Status != change.From {
			return false, nil
		}
		t.Status = change.To
		if change.ExecutedAt != nil {
			executedAt := *change.ExecutedAt
			t.ExecutedAt = &executedAt
		}
		if change.Error != nil {
			msg := *change.Error
			t.Error = &msg
		}
		t.UpdatedAt = r.s.Now()
		return true, nil
	}
	return false, nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	release, err := r.s.acquire(ctx, "transactions.GetByID")
	if err != nil {
		return nil, err
	}
	defer release()

	for _, t := range r.s.data.transactions {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *transactionRepo) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.Transaction, error) {
	release, err := r.s.acquire(ctx, "transactions.ListByPortfolio")
	if err != nil {
		return nil, err
	}
	defer release()

	var transactions []models.Transaction
	for i := len(r.s.data.transactions) - 1; i >= 0; i-- {
		if t := r.s.data.transactions[i]; t.PortfolioID == portfolioID {
			transactions = append(transactions, t)
		}
	}
	return transactions, nil
}

type roundUpRepo struct {
	s *Store
}

func (r *roundUpRepo) Insert(ctx context.Context, e *models.RoundUpBufferEntry) (bool, error) {
	release, err := r.s.acquire(ctx, "roundups.Insert")
	if err != nil {
		return false, err
	}
	defer release()

	for _, existing := range r.s.data.roundUps {
		if existing.RuleID == e.RuleID && existing.SourceTransactionID == e.SourceTransactionID {
			return false, nil
		}
	}
	e.CreatedAt = r.s.Now()
	e.Consumed = false
	r.s.data.roundUps = append(r.s.data.roundUps, *e)
	return true, nil
}

func (r *roundUpRepo) ListUnconsumed(ctx context.Context, ruleID uuid.UUID) ([]models.RoundUpBufferEntry, error) {
	release, err := r.s.acquire(ctx, "roundups.ListUnconsumed")
	if err != nil {
		return nil, err
	}
	defer release()

	var entries []models.RoundUpBufferEntry
	for _, e := range r.s.data.roundUps {
		if e.RuleID == ruleID && !e.Consumed {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (r *roundUpRepo) MarkConsumed(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	release, err := r.s.acquire(ctx, "roundups.MarkConsumed")
	if err != nil {
		return 0, err
	}
	defer release()

	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var n int64
	for i := range r.s.data.roundUps {
		e := &r.s.data.roundUps[i]
		if wanted[e.ID] && !e.Consumed {
			consumedAt := at
			e.Consumed = true
			e.ConsumedAt = &consumedAt
			n++
		}
	}
	return n, nil
}
