package memory

import (
	"context"
	"sort"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/utils"

	"github.com/google/uuid"
)

type ruleRepo struct {
	s *Store
}

func copyRule(r models.AutomationRule) models.AutomationRule {
	r.AssetAllocation = cloneAllocation(r.AssetAllocation)
	return r
}

func (r *ruleRepo) Create(ctx context.Context, rule *models.AutomationRule) error {
	release, err := r.s.acquire(ctx, "rules.Create")
	if err != nil {
		return err
	}
	defer release()

	now := r.s.Now()
	rule.CreatedAt, rule.UpdatedAt = now, now
	r.s.data.rules[rule.ID] = copyRule(*rule)
	r.s.data.ruleOrder = append(r.s.data.ruleOrder, rule.ID)
	return nil
}

func (r *ruleRepo) Update(ctx context.Context, rule *models.AutomationRule) error {
	release, err := r.s.acquire(ctx, "rules.Update")
	if err != nil {
		return err
	}
	defer release()

	stored, ok := r.s.data.rules[rule.ID]
	if !ok {
		return utils.ErrNotFound
	}
	stored.Name = rule.Name
	stored.Active = rule.Active
	stored.InvestmentAmount = rule.InvestmentAmount
	stored.Frequency = rule.Frequency
	stored.TriggerType = rule.TriggerType
	stored.AllocationStrategy = rule.AllocationStrategy
	stored.AssetAllocation = cloneAllocation(rule.AssetAllocation)
	stored.RoundUpMultiplier = rule.RoundUpMultiplier
	stored.MarketDipThreshold = rule.MarketDipThreshold
	stored.MarketDipCooldownHours = rule.MarketDipCooldownHours
	stored.NextExecution = rule.NextExecution
	stored.UpdatedAt = r.s.Now()
	r.s.data.rules[rule.ID] = stored
	rule.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *ruleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	release, err := r.s.acquire(ctx, "rules.Delete")
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.s.data.rules[id]; !ok {
		return utils.ErrNotFound
	}
	delete(r.s.data.rules, id)
	order := r.s.data.ruleOrder[:0:0]
	for _, ruleID := range r.s.data.ruleOrder {
		if ruleID != id {
			order = append(order, ruleID)
		}
	}
	r.s.data.ruleOrder = order
	return nil
}

func (r *ruleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	release, err := r.s.acquire(ctx, "rules.GetByID")
	if err != nil {
		return nil, err
	}
	defer release()

	rule, ok := r.s.data.rules[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	rule = copyRule(rule)
	return &rule, nil
}

// filter walks rules in creation order.
func (r *ruleRepo) filter(ctx context.Context, op string, keep func(models.AutomationRule) bool) ([]models.AutomationRule, error) {
	release, err := r.s.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer release()

	var rules []models.AutomationRule
	for _, id := range r.s.data.ruleOrder {
		rule := r.s.data.rules[id]
		if keep(rule) {
			rules = append(rules, copyRule(rule))
		}
	}
	return rules, nil
}

func (r *ruleRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AutomationRule, error) {
	return r.filter(ctx, "rules.ListByUser", func(rule models.AutomationRule) bool {
		return rule.UserID == userID
	})
}

func (r *ruleRepo) ListDueScheduled(ctx context.Context, now time.Time) ([]models.AutomationRule, error) {
	rules, err := r.filter(ctx, "rules.ListDueScheduled", func(rule models.AutomationRule) bool {
		return rule.Active && rule.TriggerType == models.TriggerSchedule && !rule.NextExecution.After(now)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].NextExecution.Before(rules[j].NextExecution)
	})
	return rules, nil
}

func (r *ruleRepo) ListActiveByTrigger(ctx context.Context, trigger models.TriggerType) ([]models.AutomationRule, error) {
	return r.filter(ctx, "rules.ListActiveByTrigger", func(rule models.AutomationRule) bool {
		return rule.Active && rule.TriggerType == trigger
	})
}

func (r *ruleRepo) ListActiveByUserAndTrigger(ctx context.Context, userID uuid.UUID, trigger models.TriggerType) ([]models.AutomationRule, error) {
	return r.filter(ctx, "rules.ListActiveByUserAndTrigger", func(rule models.AutomationRule) bool {
		return rule.Active && rule.UserID == userID && rule.TriggerType == trigger
	})
}

func (r *ruleRepo) RecordExecution(ctx context.Context, id uuid.UUID, update models.RuleExecutionUpdate) error {
	release, err := r.s.acquire(ctx, "rules.RecordExecution")
	if err != nil {
		return err
	}
	defer release()

	rule, ok := r.s.data.rules[id]
	if !ok {
		return utils.ErrNotFound
	}
	executedAt := update.ExecutedAt
	rule.LastExecution = &executedAt
	if update.NextExecution != nil {
		rule.NextExecution = *update.NextExecution
	}
	if update.LastMarketDipTrigger != nil {
		dipAt := *update.LastMarketDipTrigger
		rule.LastMarketDipTrigger = &dipAt
	}
	rule.TotalInvested = rule.TotalInvested.Add(update.Amount)
	rule.ExecutionCount++
	rule.UpdatedAt = r.s.Now()
	r.s.data.rules[id] = rule
	return nil
}
