package repositories

import (
	"context"

	"autoinvest/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExecutionRepository interface {
	Create(ctx context.Context, e *models.ExecutionRecord) error
	ListByRule(ctx context.Context, ruleID uuid.UUID, limit int) ([]models.ExecutionRecord, error)
}

type executionRepo struct {
	db *pgxpool.Pool
}

func NewExecutionRepository(db *pgxpool.Pool) ExecutionRepository {
	return &executionRepo{db: db}
}

func (r *executionRepo) Create(ctx context.Context, e *models.ExecutionRecord) error {
	query := `
		INSERT INTO automation_executions (id, rule_id, user_id, portfolio_id, trigger_type, status, total_amount, allocations, transaction_ids, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		e.ID, e.RuleID, e.UserID, e.PortfolioID, e.TriggerType, e.Status, e.TotalAmount,
		e.Allocations, e.TransactionIDs, e.Error, e.ExecutedAt)
	return err
}

func (r *executionRepo) ListByRule(ctx context.Context, ruleID uuid.UUID, limit int) ([]models.ExecutionRecord, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id, rule_id, user_id, portfolio_id, trigger_type, status, total_amount, allocations, transaction_ids, error, executed_at
		FROM automation_executions
		WHERE rule_id = $1
		ORDER BY executed_at DESC
		LIMIT $2`, ruleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ExecutionRecord
	for rows.Next() {
		var e models.ExecutionRecord
		if err := rows.Scan(&e.ID, &e.RuleID, &e.UserID, &e.PortfolioID, &e.TriggerType, &e.Status, &e.TotalAmount,
			&e.Allocations, &e.TransactionIDs, &e.Error, &e.ExecutedAt); err != nil {
			return nil, err
		}
		records = append(records, e)
	}
	return records, rows.Err()
}
