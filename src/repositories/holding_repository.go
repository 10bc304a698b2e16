package repositories

import (
	"context"
	"errors"

	"autoinvest/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HoldingRepository interface {
	// Get returns nil when the portfolio does not hold the asset. Inside a
	// transaction the row stays locked until commit.
	Get(ctx context.Context, portfolioID uuid.UUID, assetID string) (*models.Holding, error)
	// Insert reports false when a concurrent writer created the row first.
	Insert(ctx context.Context, h *models.Holding) (bool, error)
	Update(ctx context.Context, h *models.Holding) error
	Delete(ctx context.Context, portfolioID uuid.UUID, assetID string) error
	ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.Holding, error)
}

type holdingRepo struct {
	db *pgxpool.Pool
}

func NewHoldingRepository(db *pgxpool.Pool) HoldingRepository {
	return &holdingRepo{db: db}
}

func (r *holdingRepo) Get(ctx context.Context, portfolioID uuid.UUID, assetID string) (*models.Holding, error) {
	query := `
		SELECT portfolio_id, asset_id, quantity, average_cost, total_invested, created_at, updated_at
		FROM holdings
		WHERE portfolio_id = $1 AND asset_id = $2`
	if _, ok := txFromContext(ctx); ok {
		query += " FOR UPDATE"
	}

	var h models.Holding
	err := conn(ctx, r.db).QueryRow(ctx, query, portfolioID, assetID).Scan(
		&h.PortfolioID, &h.AssetID, &h.Quantity, &h.AverageCost, &h.TotalInvested, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *holdingRepo) Insert(ctx context.Context, h *models.Holding) (bool, error) {
	query := `
		INSERT INTO holdings (portfolio_id, asset_id, quantity, average_cost, total_invested, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (portfolio_id, asset_id) DO NOTHING
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		h.PortfolioID, h.AssetID, h.Quantity, h.AverageCost, h.TotalInvested,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *holdingRepo) Update(ctx context.Context, h *models.Holding) error {
	query := `
		UPDATE holdings
		SET quantity = $1, average_cost = $2, total_invested = $3, updated_at = NOW()
		WHERE portfolio_id = $4 AND asset_id = $5
		RETURNING updated_at`

	return conn(ctx, r.db).QueryRow(ctx, query,
		h.Quantity, h.AverageCost, h.TotalInvested, h.PortfolioID, h.AssetID,
	).Scan(&h.UpdatedAt)
}

func (r *holdingRepo) Delete(ctx context.Context, portfolioID uuid.UUID, assetID string) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`DELETE FROM holdings WHERE portfolio_id = $1 AND asset_id = $2`, portfolioID, assetID)
	return err
}

func (r *holdingRepo) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.Holding, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT portfolio_id, asset_id, quantity, average_cost, total_invested, created_at, updated_at
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY asset_id`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.PortfolioID, &h.AssetID, &h.Quantity, &h.AverageCost, &h.TotalInvested, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}
