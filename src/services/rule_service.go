package services

import (
	"context"
	"fmt"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/repositories"
	"autoinvest/src/schemas"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RuleServiceI interface {
	Create(ctx context.Context, req *schemas.CreateRuleRequest) (*models.AutomationRule, error)
	Update(ctx context.Context, req *schemas.UpdateRuleRequest) (*models.AutomationRule, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AutomationRule, error)
}

// RuleService validates and stores automation rules.
type RuleService struct {
	rules    repositories.RuleRepository
	schedule *ScheduleCalculator
	now      func() time.Time
}

func NewRuleService(rules repositories.RuleRepository, schedule *ScheduleCalculator, now func() time.Time) *RuleService {
	if now == nil {
		now = time.Now
	}
	return &RuleService{rules: rules, schedule: schedule, now: now}
}

func (s *RuleService) Create(ctx context.Context, req *schemas.CreateRuleRequest) (*models.AutomationRule, error) {
	now := s.now()
	rule := &models.AutomationRule{
		ID:                 uuid.New(),
		UserID:             req.UserID,
		PortfolioID:        req.PortfolioID,
		Name:               req.Name,
		Active:             true,
		InvestmentAmount:   req.InvestmentAmount,
		Frequency:          models.Frequency(req.Frequency),
		TriggerType:        models.TriggerType(req.TriggerType),
		AllocationStrategy: req.AllocationStrategy,
		AssetAllocation:    req.AssetAllocation,
		RoundUpMultiplier:  decimal.NewFromInt(1),
		TotalInvested:      decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if req.RoundUpMultiplier != nil {
		rule.RoundUpMultiplier = *req.RoundUpMultiplier
	}
	if req.MarketDipThreshold != nil {
		rule.MarketDipThreshold = *req.MarketDipThreshold
	}
	if req.MarketDipCooldownHours != nil {
		rule.MarketDipCooldownHours = *req.MarketDipCooldownHours
	}
	if rule.UserID == uuid.Nil {
		return nil, utils.NewValidationError("user_id", "is required")
	}
	if rule.PortfolioID == uuid.Nil {
		return nil, utils.NewValidationError("portfolio_id", "is required")
	}

	if err := normalize(rule); err != nil {
		return nil, err
	}
	rule.NextExecution = s.schedule.Next(rule.Frequency, rule.TriggerType, now)

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, utils.Persistence("create rule", err)
	}
	utils.LoggerFromContext(ctx).WithField("rule_id", rule.ID).WithField("trigger", rule.TriggerType).Info("rule created")
	return rule, nil
}

// Update applies the present fields. next_execution is recomputed from now
// when the frequency or trigger type changes.
func (s *RuleService) Update(ctx context.Context, req *schemas.UpdateRuleRequest) (*models.AutomationRule, error) {
	rule, err := s.owned(ctx, req.ID, req.UserID)
	if err != nil {
		return nil, err
	}

	reschedule := false
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if req.InvestmentAmount != nil {
		rule.InvestmentAmount = decimal.NewNullDecimal(*req.InvestmentAmount)
	}
	if req.Frequency != nil && models.Frequency(*req.Frequency) != rule.Frequency {
		rule.Frequency = models.Frequency(*req.Frequency)
		reschedule = true
	}
	if req.TriggerType != nil && models.TriggerType(*req.TriggerType) != rule.TriggerType {
		rule.TriggerType = models.TriggerType(*req.TriggerType)
		reschedule = true
	}
	if req.AllocationStrategy != nil {
		rule.AllocationStrategy = *req.AllocationStrategy
	}
	if req.AssetAllocation != nil {
		rule.AssetAllocation = req.AssetAllocation
	}
	if req.RoundUpMultiplier != nil {
		rule.RoundUpMultiplier = *req.RoundUpMultiplier
	}
	if req.MarketDipThreshold != nil {
		rule.MarketDipThreshold = *req.MarketDipThreshold
	}
	if req.MarketDipCooldownHours != nil {
		rule.MarketDipCooldownHours = *req.MarketDipCooldownHours
	}

	if err := normalize(rule); err != nil {
		return nil, err
	}
	now := s.now()
	if reschedule {
		rule.NextExecution = s.schedule.Next(rule.Frequency, rule.TriggerType, now)
	}
	rule.UpdatedAt = now

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, utils.Persistence("update rule", err)
	}
	return rule, nil
}

func (s *RuleService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return utils.Persistence("delete rule", err)
	}
	return nil
}

func (s *RuleService) Get(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, utils.Persistence("read rule", err)
	}
	return rule, nil
}

func (s *RuleService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AutomationRule, error) {
	if userID == uuid.Nil {
		return nil, utils.NewValidationError("user_id", "is required")
	}
	rules, err := s.rules.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.Persistence("list rules", err)
	}
	return rules, nil
}

// owned loads a rule and hides it from anyone but its owner.
func (s *RuleService) owned(ctx context.Context, id, userID uuid.UUID) (*models.AutomationRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil && rule.UserID != userID {
		return nil, fmt.Errorf("rule %s: %w", id, utils.ErrNotFound)
	}
	return rule, nil
}

// normalize validates a rule and fills in trigger specific defaults.
func normalize(rule *models.AutomationRule) error {
	if !rule.TriggerType.Valid() {
		return utils.NewValidationError("trigger_type", fmt.Sprintf("unknown trigger type %q", rule.TriggerType))
	}
	if len(rule.AssetAllocation) == 0 {
		return utils.NewValidationError("asset_allocation", "must name at least one asset")
	}
	for id, pct := range rule.AssetAllocation {
		if id == "" {
			return utils.NewValidationError("asset_allocation", "asset id must not be empty")
		}
		if !pct.IsPositive() {
			return utils.NewValidationError("asset_allocation", fmt.Sprintf("percentage of %s must be positive", id))
		}
	}

	switch rule.AllocationStrategy {
	case "":
		rule.AllocationStrategy = models.StrategyCustom
	case models.StrategyCustom:
	case models.StrategyEqualWeight:
		share := hundred.Div(decimal.NewFromInt(int64(len(rule.AssetAllocation))))
		equal := make(map[string]decimal.Decimal, len(rule.AssetAllocation))
		for id := range rule.AssetAllocation {
			equal[id] = share
		}
		rule.AssetAllocation = equal
	default:
		return utils.NewValidationError("allocation_strategy", fmt.Sprintf("unknown strategy %q", rule.AllocationStrategy))
	}

	if rule.InvestmentAmount.Valid && !rule.InvestmentAmount.Decimal.IsPositive() {
		return utils.NewValidationError("investment_amount", "must be positive")
	}
	if rule.MarketDipCooldownHours < 0 {
		return utils.NewValidationError("market_dip_cooldown_hours", "must not be negative")
	}

	switch rule.TriggerType {
	case models.TriggerSchedule:
		if !rule.Frequency.Valid() {
			return utils.NewValidationError("frequency", fmt.Sprintf("unknown frequency %q", rule.Frequency))
		}
		if !rule.InvestmentAmount.Valid {
			return utils.NewValidationError("investment_amount", "is required for scheduled rules")
		}
	case models.TriggerMarketDip:
		if !rule.InvestmentAmount.Valid {
			return utils.NewValidationError("investment_amount", "is required for market dip rules")
		}
		if !rule.MarketDipThreshold.IsPositive() {
			return utils.NewValidationError("market_dip_threshold", "must be positive")
		}
	case models.TriggerRoundUp:
		if !rule.RoundUpMultiplier.IsPositive() {
			return utils.NewValidationError("round_up_multiplier", "must be positive")
		}
	}
	if rule.Frequency != "" && !rule.Frequency.Valid() {
		return utils.NewValidationError("frequency", fmt.Sprintf("unknown frequency %q", rule.Frequency))
	}
	return nil
}
