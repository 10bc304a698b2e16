package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/repositories"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

type ExecutionEngineI interface {
	RunScheduled(ctx context.Context) ([]models.ExecutionResult, error)
	ProcessRoundUp(ctx context.Context, event models.PurchaseEvent) (*models.ExecutionResult, error)
	CheckMarketDips(ctx context.Context) ([]models.ExecutionResult, error)
}

// EngineDeps wires the engine to its collaborators.
type EngineDeps struct {
	Repositories *repositories.Registry
	Prices       PriceFeed
	Allocator    *AllocationCalculator
	Ledger       TransactionLedgerI
	Valuation    PortfolioValuationI
	Schedule     *ScheduleCalculator
	Detector     *MarketDipDetector
	Locker       RuleLocker
	Workers      int
	// RoundUpThreshold is the buffered amount that triggers a round-up investment.
	RoundUpThreshold decimal.Decimal
	Now              func() time.Time
}

// ExecutionEngine turns due or triggered rules into trades.
type ExecutionEngine struct {
	transactor  repositories.Transactor
	rules       repositories.RuleRepository
	portfolios  repositories.PortfolioRepository
	executions  repositories.ExecutionRepository
	prices      PriceFeed
	allocator   *AllocationCalculator
	ledger      TransactionLedgerI
	valuation   PortfolioValuationI
	schedule    *ScheduleCalculator
	detector    *MarketDipDetector
	locker      RuleLocker
	accumulator *RoundUpAccumulator
	workers     int
	now         func() time.Time
}

func NewExecutionEngine(deps EngineDeps) *ExecutionEngine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	workers := deps.Workers
	if workers < 1 {
		workers = 1
	}
	e := &ExecutionEngine{
		transactor: deps.Repositories.Transactor,
		rules:      deps.Repositories.Rules,
		portfolios: deps.Repositories.Portfolios,
		executions: deps.Repositories.Executions,
		prices:     deps.Prices,
		allocator:  deps.Allocator,
		ledger:     deps.Ledger,
		valuation:  deps.Valuation,
		schedule:   deps.Schedule,
		detector:   deps.Detector,
		locker:     deps.Locker,
		workers:    workers,
		now:        now,
	}
	e.accumulator = newRoundUpAccumulator(deps.Repositories.Rules, deps.Repositories.RoundUps, deps.Locker, deps.RoundUpThreshold, e, now)
	return e
}

type executeOptions struct {
	advanceSchedule bool
	marketDip       bool
	inTx            func(ctx context.Context) error
}

func skipped(rule *models.AutomationRule, reason string) models.ExecutionResult {
	return models.ExecutionResult{
		RuleID:      rule.ID,
		TriggerType: rule.TriggerType,
		Status:      models.ExecutionSkipped,
		TotalAmount: decimal.Zero,
		Reason:      reason,
	}
}

func failed(rule *models.AutomationRule, amount decimal.Decimal, err error) models.ExecutionResult {
	return models.ExecutionResult{
		RuleID:      rule.ID,
		TriggerType: rule.TriggerType,
		Status:      models.ExecutionFailed,
		TotalAmount: amount,
		Error:       err.Error(),
	}
}

// RunScheduled executes every active schedule rule whose next execution has come.
// A failing rule keeps its next execution and is retried on the next tick.
func (e *ExecutionEngine) RunScheduled(ctx context.Context) ([]models.ExecutionResult, error) {
	now := e.now()
	rules, err := e.rules.ListDueScheduled(ctx, now)
	if err != nil {
		return nil, utils.Persistence("list due rules", err)
	}

	results := e.runBatch(ctx, rules, func(ctx context.Context, rule *models.AutomationRule) models.ExecutionResult {
		if rule.TriggerType != models.TriggerSchedule {
			return skipped(rule, "not a scheduled rule")
		}
		if rule.NextExecution.After(now) {
			return skipped(rule, "not due")
		}
		if !rule.InvestmentAmount.Valid {
			return e.fail(ctx, rule, decimal.Zero, utils.NewValidationError("investment_amount", "is required for scheduled rules"))
		}
		return e.execute(ctx, rule, rule.InvestmentAmount.Decimal, executeOptions{advanceSchedule: true})
	})
	logBatch(ctx, "scheduled", results)
	return results, nil
}

// CheckMarketDips executes active market dip rules whose basket dipped past the
// rule threshold and whose cooldown has elapsed.
func (e *ExecutionEngine) CheckMarketDips(ctx context.Context) ([]models.ExecutionResult, error) {
	rules, err := e.rules.ListActiveByTrigger(ctx, models.TriggerMarketDip)
	if err != nil {
		return nil, utils.Persistence("list market dip rules", err)
	}

	results := e.runBatch(ctx, rules, func(ctx context.Context, rule *models.AutomationRule) models.ExecutionResult {
		if rule.TriggerType != models.TriggerMarketDip {
			return skipped(rule, "not a market dip rule")
		}
		if !e.detector.CooldownElapsed(rule, e.now()) {
			return skipped(rule, "cooldown active")
		}
		triggered, err := e.detector.IsTriggered(ctx, rule.AssetAllocation, rule.MarketDipThreshold)
		if err != nil {
			return e.fail(ctx, rule, decimal.Zero, utils.Persistence("read prices", err))
		}
		if !triggered {
			return skipped(rule, "no dip")
		}
		if !rule.InvestmentAmount.Valid {
			return e.fail(ctx, rule, decimal.Zero, utils.NewValidationError("investment_amount", "is required for market dip rules"))
		}
		return e.execute(ctx, rule, rule.InvestmentAmount.Decimal, executeOptions{marketDip: true})
	})
	logBatch(ctx, "market_dip", results)
	return results, nil
}

// ProcessRoundUp buffers the spare change of a purchase and invests the buffer
// once it reaches the threshold. A nil result means nothing was invested.
func (e *ExecutionEngine) ProcessRoundUp(ctx context.Context, event models.PurchaseEvent) (*models.ExecutionResult, error) {
	return e.accumulator.AddAndMaybeTrigger(ctx, event)
}

func (e *ExecutionEngine) executeRoundUp(ctx context.Context, rule *models.AutomationRule, amount decimal.Decimal, consume func(ctx context.Context) error) models.ExecutionResult {
	return e.execute(ctx, rule, amount, executeOptions{inTx: consume})
}

// runBatch processes rules on a bounded pool. Each rule is claimed through the
// locker and re-read under the claim, so a rule is never executed by two
// workers at once. A panic is turned into a failed result for that rule only.
func (e *ExecutionEngine) runBatch(ctx context.Context, rules []models.AutomationRule, process func(ctx context.Context, rule *models.AutomationRule) models.ExecutionResult) []models.ExecutionResult {
	results := make([]models.ExecutionResult, len(rules))
	p := pool.New().WithMaxGoroutines(e.workers)
	for i := range rules {
		i := i
		p.Go(func() {
			rule := &rules[i]
			defer func() {
				if r := recover(); r != nil {
					results[i] = e.fail(ctx, rule, decimal.Zero, fmt.Errorf("panic while executing rule: %v", r))
				}
			}()
			results[i] = e.claim(ctx, rule, process)
		})
	}
	p.Wait()
	return results
}

func (e *ExecutionEngine) claim(ctx context.Context, rule *models.AutomationRule, process func(ctx context.Context, rule *models.AutomationRule) models.ExecutionResult) models.ExecutionResult {
	unlock, ok, err := e.locker.TryLock(ctx, utils.RuleLockPrefix+rule.ID.String())
	if err != nil {
		return failed(rule, decimal.Zero, fmt.Errorf("claim rule: %w", err))
	}
	if !ok {
		return skipped(rule, "claimed by another worker")
	}
	defer unlock()

	fresh, err := e.rules.GetByID(ctx, rule.ID)
	if errors.Is(err, utils.ErrNotFound) {
		return skipped(rule, "rule deleted")
	}
	if err != nil {
		return failed(rule, decimal.Zero, utils.Persistence("read rule", err))
	}
	if !fresh.Active {
		return skipped(fresh, "rule inactive")
	}
	return process(ctx, fresh)
}

// execute allocates amount across the rule's assets and, in one storage
// transaction, records every buy, revalues the portfolio and updates the rule.
// Any failure rolls the whole allocation back and is reported as a failed
// execution record. A buy the ledger failed is kept as a failed transaction.
func (e *ExecutionEngine) execute(ctx context.Context, rule *models.AutomationRule, amount decimal.Decimal, opts executeOptions) models.ExecutionResult {
	if !amount.IsPositive() {
		return e.fail(ctx, rule, amount, utils.NewValidationError("investment_amount", "must be positive"))
	}

	prices, err := e.prices.GetPrices(ctx, rule.AssetIDs())
	if err != nil {
		return e.fail(ctx, rule, amount, utils.Persistence("read prices", err))
	}
	allocations, err := e.allocator.Apportion(amount, rule.AssetAllocation, prices)
	if err != nil {
		return e.fail(ctx, rule, amount, err)
	}
	if len(allocations) == 0 {
		return e.fail(ctx, rule, amount, utils.ErrEmptyAllocation)
	}
	allocated := AllocatedTotal(allocations)

	now := e.now()
	var transactions []*models.Transaction
	var failedBuy *models.Transaction
	err = e.transactor.RunInTx(ctx, func(ctx context.Context) error {
		transactions = transactions[:0]
		failedBuy = nil
		// runs on the same portfolio are serialized until commit
		if err := e.portfolios.LockForUpdate(ctx, rule.PortfolioID); err != nil {
			return utils.Persistence("lock portfolio", err)
		}
		if opts.inTx != nil {
			if err := opts.inTx(ctx); err != nil {
				return err
			}
		}

		for _, a := range allocations {
			txn, err := e.ledger.Record(ctx, RecordRequest{
				PortfolioID: rule.PortfolioID,
				AssetID:     a.AssetID,
				Type:        models.TransactionBuy,
				Quantity:    a.Quantity,
				Price:       a.Price,
				RuleID:      &rule.ID,
			})
			if err != nil {
				if txn != nil && txn.Status == models.TransactionFailed {
					failedBuy = txn
				}
				return fmt.Errorf("buy %s: %w", a.AssetID, err)
			}
			transactions = append(transactions, txn)
		}

		if _, err := e.valuation.Recalculate(ctx, rule.PortfolioID); err != nil {
			return fmt.Errorf("revalue portfolio: %w", err)
		}

		spent := decimal.Zero
		for _, txn := range transactions {
			spent = spent.Add(txn.TotalAmount)
		}
		update := models.RuleExecutionUpdate{ExecutedAt: now, Amount: spent}
		if opts.advanceSchedule {
			next := e.nextAfter(rule, now)
			update.NextExecution = &next
		}
		if opts.marketDip {
			update.LastMarketDipTrigger = &now
		}
		if err := e.rules.RecordExecution(ctx, rule.ID, update); err != nil {
			return utils.Persistence("update rule", err)
		}
		return nil
	})
	if err != nil {
		result := failed(rule, amount, err)
		result.Allocations = allocations
		// the rollback dropped the failed buy's row, so it is stored again
		if failedBuy != nil {
			if rerr := e.ledger.RetainFailed(ctx, failedBuy); rerr != nil {
				utils.LoggerFromContext(ctx).WithError(rerr).WithField("transaction_id", failedBuy.ID).
					Error("failed to retain failed transaction")
			} else {
				result.Transactions = []*models.Transaction{failedBuy}
			}
		}
		e.record(ctx, rule, result, e.now())
		return result
	}

	result := models.ExecutionResult{
		RuleID:       rule.ID,
		TriggerType:  rule.TriggerType,
		Status:       models.ExecutionSuccess,
		TotalAmount:  allocated,
		Allocations:  allocations,
		Transactions: transactions,
	}
	e.record(ctx, rule, result, now)
	return result
}

// nextAfter steps the schedule forward from the stored next execution until it
// lands in the future, so an outage does not cause a burst of catch-up runs.
func (e *ExecutionEngine) nextAfter(rule *models.AutomationRule, now time.Time) time.Time {
	next := rule.NextExecution
	if next.IsZero() {
		next = now
	}
	for i := 0; i < 1000 && !next.After(now); i++ {
		next = e.schedule.Next(rule.Frequency, rule.TriggerType, next)
	}
	if !next.After(now) {
		next = e.schedule.Next(rule.Frequency, rule.TriggerType, now)
	}
	return next
}

func (e *ExecutionEngine) fail(ctx context.Context, rule *models.AutomationRule, amount decimal.Decimal, err error) models.ExecutionResult {
	result := failed(rule, amount, err)
	e.record(ctx, rule, result, e.now())
	return result
}

func (e *ExecutionEngine) record(ctx context.Context, rule *models.AutomationRule, result models.ExecutionResult, at time.Time) {
	log := utils.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"trigger": rule.TriggerType,
		"status":  result.Status,
		"amount":  result.TotalAmount.String(),
	})

	transactionIDs := make([]uuid.UUID, 0, len(result.Transactions))
	for _, t := range result.Transactions {
		transactionIDs = append(transactionIDs, t.ID)
	}
	record := &models.ExecutionRecord{
		ID:             uuid.New(),
		RuleID:         rule.ID,
		UserID:         rule.UserID,
		PortfolioID:    rule.PortfolioID,
		TriggerType:    rule.TriggerType,
		Status:         result.Status,
		TotalAmount:    result.TotalAmount,
		Allocations:    result.Allocations,
		TransactionIDs: transactionIDs,
		Error:          result.Error,
		ExecutedAt:     at,
	}
	if err := e.executions.Create(ctx, record); err != nil {
		log.WithError(err).Error("failed to store execution record")
	}

	if result.Status == models.ExecutionFailed {
		log.WithField("error", result.Error).Warn("rule execution failed")
		return
	}
	log.Info("rule executed")
}

func logBatch(ctx context.Context, batch string, results []models.ExecutionResult) {
	counts := map[models.ExecutionStatus]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	utils.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"batch":   batch,
		"rules":   len(results),
		"success": counts[models.ExecutionSuccess],
		"failed":  counts[models.ExecutionFailed],
		"skipped": counts[models.ExecutionSkipped],
	}).Info("batch finished")
}
