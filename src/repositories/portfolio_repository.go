package repositories

import (
	"context"
	"errors"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PortfolioRepository interface {
	Create(ctx context.Context, p *models.Portfolio) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Portfolio, error)
	UpdateAggregates(ctx context.Context, id uuid.UUID, v models.Valuation, at time.Time) error
	// LockForUpdate holds the portfolio row until the surrounding transaction
	// ends. Outside a transaction the lock is released immediately.
	LockForUpdate(ctx context.Context, id uuid.UUID) error
}

type portfolioRepo struct {
	db *pgxpool.Pool
}

func NewPortfolioRepository(db *pgxpool.Pool) PortfolioRepository {
	return &portfolioRepo{db: db}
}

func (r *portfolioRepo) Create(ctx context.Context, p *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (id, user_id, name, total_value, total_invested, total_returns, returns_percentage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`

	return conn(ctx, r.db).QueryRow(ctx, query,
		p.ID, p.UserID, p.Name, p.TotalValue, p.TotalInvested, p.TotalReturns, p.ReturnsPercentage,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *portfolioRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Portfolio, error) {
	var p models.Portfolio
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, name, total_value, total_invested, total_returns, returns_percentage, created_at, updated_at
		FROM portfolios
		WHERE id = $1`, id).Scan(
		&p.ID, &p.UserID, &p.Name, &p.TotalValue, &p.TotalInvested, &p.TotalReturns, &p.ReturnsPercentage, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *portfolioRepo) UpdateAggregates(ctx context.Context, id uuid.UUID, v models.Valuation, at time.Time) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE portfolios
		SET total_value = $1, total_invested = $2, total_returns = $3, returns_percentage = $4, updated_at = $5
		WHERE id = $6`,
		v.TotalValue, v.TotalInvested, v.TotalReturns, v.ReturnsPercentage, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *portfolioRepo) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	var one int
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT 1 FROM portfolios WHERE id = $1 FOR UPDATE`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return utils.ErrNotFound
	}
	return err
}
