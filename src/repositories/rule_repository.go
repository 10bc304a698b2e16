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

type RuleRepository interface {
	Create(ctx context.Context, r *models.AutomationRule) error
	Update(ctx context.Context, r *models.AutomationRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AutomationRule, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]models.AutomationRule, error)
	ListActiveByTrigger(ctx context.Context, trigger models.TriggerType) ([]models.AutomationRule, error)
	ListActiveByUserAndTrigger(ctx context.Context, userID uuid.UUID, trigger models.TriggerType) ([]models.AutomationRule, error)
	RecordExecution(ctx context.Context, id uuid.UUID, update models.RuleExecutionUpdate) error
}

type ruleRepo struct {
	db *pgxpool.Pool
}

func NewRuleRepository(db *pgxpool.Pool) RuleRepository {
	return &ruleRepo{db: db}
}

const ruleColumns = `id, user_id, portfolio_id, name, active, investment_amount, frequency, trigger_type,
	allocation_strategy, asset_allocation, round_up_multiplier, market_dip_threshold,
	market_dip_cooldown_hours, last_market_dip_trigger, next_execution, last_execution,
	total_invested, execution_count, created_at, updated_at`

func scanRule(row rowScanner) (models.AutomationRule, error) {
	var r models.AutomationRule
	err := row.Scan(
		&r.ID, &r.UserID, &r.PortfolioID, &r.Name, &r.Active, &r.InvestmentAmount, &r.Frequency, &r.TriggerType,
		&r.AllocationStrategy, &r.AssetAllocation, &r.RoundUpMultiplier, &r.MarketDipThreshold,
		&r.MarketDipCooldownHours, &r.LastMarketDipTrigger, &r.NextExecution, &r.LastExecution,
		&r.TotalInvested, &r.ExecutionCount, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (r *ruleRepo) list(ctx context.Context, query string, args ...any) ([]models.AutomationRule, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *ruleRepo) Create(ctx context.Context, rule *models.AutomationRule) error {
	query := `
		INSERT INTO automation_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		RETURNING created_at, updated_at`

	return conn(ctx, r.db).QueryRow(ctx, query,
		rule.ID, rule.UserID, rule.PortfolioID, rule.Name, rule.Active, rule.InvestmentAmount, rule.Frequency, rule.TriggerType,
		rule.AllocationStrategy, rule.AssetAllocation, rule.RoundUpMultiplier, rule.MarketDipThreshold,
		rule.MarketDipCooldownHours, rule.LastMarketDipTrigger, rule.NextExecution, rule.LastExecution,
		rule.TotalInvested, rule.ExecutionCount,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

// Update writes the user editable fields and next_execution. Execution
// bookkeeping is only changed through RecordExecution.
func (r *ruleRepo) Update(ctx context.Context, rule *models.AutomationRule) error {
	query := `
		UPDATE automation_rules
		SET
			name = $1,
			active = $2,
			investment_amount = $3,
			frequency = $4,
			trigger_type = $5,
			allocation_strategy = $6,
			asset_allocation = $7,
			round_up_multiplier = $8,
			market_dip_threshold = $9,
			market_dip_cooldown_hours = $10,
			next_execution = $11,
			updated_at = NOW()
		WHERE id = $12
		RETURNING updated_at`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		rule.Name, rule.Active, rule.InvestmentAmount, rule.Frequency, rule.TriggerType,
		rule.AllocationStrategy, rule.AssetAllocation, rule.RoundUpMultiplier, rule.MarketDipThreshold,
		rule.MarketDipCooldownHours, rule.NextExecution, rule.ID,
	).Scan(&rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return utils.ErrNotFound
	}
	return err
}

func (r *ruleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM automation_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *ruleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	rule, err := scanRule(conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AutomationRule, error) {
	return r.list(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
}

func (r *ruleRepo) ListDueScheduled(ctx context.Context, now time.Time) ([]models.AutomationRule, error) {
	return r.list(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE active AND trigger_type = $1 AND next_execution <= $2
		ORDER BY next_execution, id`, models.TriggerSchedule, now)
}

func (r *ruleRepo) ListActiveByTrigger(ctx context.Context, trigger models.TriggerType) ([]models.AutomationRule, error) {
	return r.list(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE active AND trigger_type = $1
		ORDER BY created_at, id`, trigger)
}

func (r *ruleRepo) ListActiveByUserAndTrigger(ctx context.Context, userID uuid.UUID, trigger models.TriggerType) ([]models.AutomationRule, error) {
	return r.list(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE active AND user_id = $1 AND trigger_type = $2
		ORDER BY created_at, id`, userID, trigger)
}

func (r *ruleRepo) RecordExecution(ctx context.Context, id uuid.UUID, update models.RuleExecutionUpdate) error {
	query := `
		UPDATE automation_rules
		SET
			last_execution = $1,
			next_execution = COALESCE($2, next_execution),
			last_market_dip_trigger = COALESCE($3, last_market_dip_trigger),
			total_invested = total_invested + $4,
			execution_count = execution_count + 1,
			updated_at = NOW()
		WHERE id = $5`

	tag, err := conn(ctx, r.db).Exec(ctx, query,
		update.ExecutedAt, update.NextExecution, update.LastMarketDipTrigger, update.Amount, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNotFound
	}
	return nil
}
