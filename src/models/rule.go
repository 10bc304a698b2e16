package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

type TriggerType string

const (
	TriggerSchedule  TriggerType = "schedule"
	TriggerRoundUp   TriggerType = "round_up"
	TriggerGoalBased TriggerType = "goal_based"
	TriggerMarketDip TriggerType = "market_dip"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerSchedule, TriggerRoundUp, TriggerGoalBased, TriggerMarketDip:
		return true
	}
	return false
}

const (
	StrategyCustom      = "custom"
	StrategyEqualWeight = "equal_weight"
)

// AutomationRule describes when and how much a user invests into a portfolio.
// NextExecution only gates schedule rules; every other trigger type stores the
// time the rule was last (re)computed.
type AutomationRule struct {
	ID                     uuid.UUID                  `db:"id" json:"id"`
	UserID                 uuid.UUID                  `db:"user_id" json:"user_id"`
	PortfolioID            uuid.UUID                  `db:"portfolio_id" json:"portfolio_id"`
	Name                   string                     `db:"name" json:"name"`
	Active                 bool                       `db:"active" json:"active"`
	InvestmentAmount       decimal.NullDecimal        `db:"investment_amount" json:"investment_amount"`
	Frequency              Frequency                  `db:"frequency" json:"frequency"`
	TriggerType            TriggerType                `db:"trigger_type" json:"trigger_type"`
	AllocationStrategy     string                     `db:"allocation_strategy" json:"allocation_strategy"`
	AssetAllocation        map[string]decimal.Decimal `db:"asset_allocation" json:"asset_allocation"`
	RoundUpMultiplier      decimal.Decimal            `db:"round_up_multiplier" json:"round_up_multiplier"`
	MarketDipThreshold     decimal.Decimal            `db:"market_dip_threshold" json:"market_dip_threshold"`
	MarketDipCooldownHours int                        `db:"market_dip_cooldown_hours" json:"market_dip_cooldown_hours"`
	LastMarketDipTrigger   *time.Time                 `db:"last_market_dip_trigger" json:"last_market_dip_trigger"`
	NextExecution          time.Time                  `db:"next_execution" json:"next_execution"`
	LastExecution          *time.Time                 `db:"last_execution" json:"last_execution"`
	TotalInvested          decimal.Decimal            `db:"total_invested" json:"total_invested"`
	ExecutionCount         int                        `db:"execution_count" json:"execution_count"`
	CreatedAt              time.Time                  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time                  `db:"updated_at" json:"updated_at"`
}

// AssetIDs returns the allocation keys in no particular order.
func (r *AutomationRule) AssetIDs() []string {
	ids := make([]string, 0, len(r.AssetAllocation))
	for id := range r.AssetAllocation {
		ids = append(ids, id)
	}
	return ids
}

// RuleExecutionUpdate is the bookkeeping applied to a rule after a successful run.
// A nil NextExecution leaves the stored value untouched.
type RuleExecutionUpdate struct {
	ExecutedAt           time.Time
	NextExecution        *time.Time
	Amount               decimal.Decimal
	LastMarketDipTrigger *time.Time
}
