package repositories

import (
	"context"
	"errors"
	"time"

	"autoinvest/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoundUpRepository interface {
	// Insert reports false when the source transaction was already buffered for the rule.
	Insert(ctx context.Context, e *models.RoundUpBufferEntry) (bool, error)
	ListUnconsumed(ctx context.Context, ruleID uuid.UUID) ([]models.RoundUpBufferEntry, error)
	// MarkConsumed flags the given entries that are still unconsumed and returns how many it flagged.
	MarkConsumed(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
}

type roundUpRepo struct {
	db *pgxpool.Pool
}

func NewRoundUpRepository(db *pgxpool.Pool) RoundUpRepository {
	return &roundUpRepo{db: db}
}

func (r *roundUpRepo) Insert(ctx context.Context, e *models.RoundUpBufferEntry) (bool, error) {
	query := `
		INSERT INTO round_up_buffer (id, user_id, rule_id, source_transaction_id, amount, consumed, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NOW())
		ON CONFLICT (rule_id, source_transaction_id) DO NOTHING
		RETURNING created_at`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		e.ID, e.UserID, e.RuleID, e.SourceTransactionID, e.Amount,
	).Scan(&e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *roundUpRepo) ListUnconsumed(ctx context.Context, ruleID uuid.UUID) ([]models.RoundUpBufferEntry, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id, user_id, rule_id, source_transaction_id, amount, consumed, created_at, consumed_at
		FROM round_up_buffer
		WHERE rule_id = $1 AND NOT consumed
		ORDER BY created_at, id`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.RoundUpBufferEntry
	for rows.Next() {
		var e models.RoundUpBufferEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.RuleID, &e.SourceTransactionID, &e.Amount, &e.Consumed, &e.CreatedAt, &e.ConsumedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *roundUpRepo) MarkConsumed(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE round_up_buffer
		SET consumed = TRUE, consumed_at = $1
		WHERE id = ANY($2) AND NOT consumed`, at, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
