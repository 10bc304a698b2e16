package services

import (
	"context"
	"fmt"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/repositories"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleLocker gives one owner at a time per key, across goroutines or across
// engine instances depending on the implementation.
type RuleLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
	TryLock(ctx context.Context, key string) (func(), bool, error)
}

// roundUpExecutor runs a round-up investment. consume is called inside the
// execution's storage transaction.
type roundUpExecutor interface {
	executeRoundUp(ctx context.Context, rule *models.AutomationRule, amount decimal.Decimal, consume func(ctx context.Context) error) models.ExecutionResult
}

// RoundUpAmount is the spare change needed to reach the next whole unit.
func RoundUpAmount(amount decimal.Decimal) decimal.Decimal {
	amount = amount.Abs()
	return amount.Ceil().Sub(amount)
}

// RoundUpAccumulator buffers spare change per rule until it is worth investing.
type RoundUpAccumulator struct {
	rules     repositories.RuleRepository
	roundUps  repositories.RoundUpRepository
	locker    RuleLocker
	threshold decimal.Decimal
	executor  roundUpExecutor
	now       func() time.Time
}

func newRoundUpAccumulator(
	rules repositories.RuleRepository,
	roundUps repositories.RoundUpRepository,
	locker RuleLocker,
	threshold decimal.Decimal,
	executor roundUpExecutor,
	now func() time.Time,
) *RoundUpAccumulator {
	return &RoundUpAccumulator{
		rules:     rules,
		roundUps:  roundUps,
		locker:    locker,
		threshold: threshold,
		executor:  executor,
		now:       now,
	}
}

// AddAndMaybeTrigger buffers the round-up of a purchase for the user's first
// active round-up rule. It returns nil while the buffered sum stays below the
// threshold. Once the sum reaches it, the whole sum is invested and every
// buffered entry is consumed in the same storage transaction. The sequence
// holds the rule's round-up lock from insert to consume.
func (a *RoundUpAccumulator) AddAndMaybeTrigger(ctx context.Context, event models.PurchaseEvent) (*models.ExecutionResult, error) {
	if event.TransactionID == "" {
		return nil, utils.NewValidationError("transaction_id", "is required")
	}
	if event.UserID == uuid.Nil {
		return nil, utils.NewValidationError("user_id", "is required")
	}
	if !event.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be positive")
	}

	rules, err := a.rules.ListActiveByUserAndTrigger(ctx, event.UserID, models.TriggerRoundUp)
	if err != nil {
		return nil, utils.Persistence("list round-up rules", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}
	rule := rules[0]

	raw := RoundUpAmount(event.Amount)
	if raw.IsZero() {
		return nil, nil
	}
	multiplier := rule.RoundUpMultiplier
	if !multiplier.IsPositive() {
		multiplier = decimal.NewFromInt(1)
	}

	log := utils.LoggerFromContext(ctx).WithField("rule_id", rule.ID).WithField("source_transaction_id", event.TransactionID)

	unlock, err := a.locker.Lock(ctx, utils.RoundUpLockPrefix+rule.ID.String())
	if err != nil {
		return nil, fmt.Errorf("lock round-up rule %s: %w", rule.ID, err)
	}
	defer unlock()

	inserted, err := a.roundUps.Insert(ctx, &models.RoundUpBufferEntry{
		ID:                  uuid.New(),
		UserID:              event.UserID,
		RuleID:              rule.ID,
		SourceTransactionID: event.TransactionID,
		Amount:              raw.Mul(multiplier),
	})
	if err != nil {
		return nil, utils.Persistence("buffer round-up", err)
	}
	if !inserted {
		log.Info("round-up already buffered for this transaction")
		return nil, nil
	}

	entries, err := a.roundUps.ListUnconsumed(ctx, rule.ID)
	if err != nil {
		return nil, utils.Persistence("list round-up buffer", err)
	}
	sum := decimal.Zero
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		sum = sum.Add(e.Amount)
		ids = append(ids, e.ID)
	}
	if sum.LessThan(a.threshold) {
		log.WithField("buffered", sum.String()).Debug("round-up threshold not reached")
		return nil, nil
	}

	result := a.executor.executeRoundUp(ctx, &rule, sum, func(ctx context.Context) error {
		n, err := a.roundUps.MarkConsumed(ctx, ids, a.now())
		if err != nil {
			return utils.Persistence("consume round-up buffer", err)
		}
		if n != int64(len(ids)) {
			return fmt.Errorf("consumed %d of %d entries: %w", n, len(ids), utils.ErrBufferChanged)
		}
		return nil
	})
	return &result, nil
}
