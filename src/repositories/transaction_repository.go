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

// StatusChange moves a transaction out of From. ExecutedAt and Error are only
// written when set.
type StatusChange struct {
	From       models.TransactionStatus
	To         models.TransactionStatus
	ExecutedAt *time.Time
	Error      *string
}

type TransactionRepository interface {
	Create(ctx context.Context, t *models.Transaction) error
	// UpdateStatus reports false when the transaction is no longer in change.From.
	UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.Transaction, error)
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = `id, portfolio_id, asset_id, transaction_type, quantity, price, total_amount, fee,
	status, automation_rule_id, error, created_at, updated_at, executed_at`

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.PortfolioID, &t.AssetID, &t.TransactionType, &t.Quantity, &t.Price, &t.TotalAmount, &t.Fee,
		&t.Status, &t.AutomationRuleID, &t.Error, &t.CreatedAt, &t.UpdatedAt, &t.ExecutedAt,
	)
	return t, err
}

func (r *transactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, portfolio_id, asset_id, transaction_type, quantity, price, total_amount, fee, status, automation_rule_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at`

	return conn(ctx, r.db).QueryRow(ctx, query,
		t.ID, t.PortfolioID, t.AssetID, t.TransactionType, t.Quantity, t.Price, t.TotalAmount, t.Fee, t.Status, t.AutomationRuleID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange) (bool, error) {
	query := `
		UPDATE transactions
		SET
			status = $1,
			executed_at = COALESCE($2, executed_at),
			error = COALESCE($3, error),
			updated_at = NOW()
		WHERE id = $4 AND status = $5`

	tag, err := conn(ctx, r.db).Exec(ctx, query, change.To, change.ExecutedAt, change.Error, id, change.From)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.Transaction, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY created_at DESC, id`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
