package schemas

import (
	"time"

	"autoinvest/src/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateRuleRequest represents the request schema for creating an automation rule.
type CreateRuleRequest struct {
	UserID                 uuid.UUID                  `json:"user_id"`
	PortfolioID            uuid.UUID                  `json:"portfolio_id"`
	Name                   string                     `json:"name"`
	Active                 *bool                      `json:"active"`
	InvestmentAmount       decimal.NullDecimal        `json:"investment_amount"`
	Frequency              string                     `json:"frequency"`
	TriggerType            string                     `json:"trigger_type"`
	AllocationStrategy     string                     `json:"allocation_strategy"`
	AssetAllocation        map[string]decimal.Decimal `json:"asset_allocation"`
	RoundUpMultiplier      *decimal.Decimal           `json:"round_up_multiplier"`
	MarketDipThreshold     *decimal.Decimal           `json:"market_dip_threshold"`
	MarketDipCooldownHours *int                       `json:"market_dip_cooldown_hours"`
}

// UpdateRuleRequest only changes the fields that are present.
type UpdateRuleRequest struct {
	ID                     uuid.UUID                  `json:"-"`
	UserID                 uuid.UUID                  `json:"user_id"`
	Name                   *string                    `json:"name"`
	Active                 *bool                      `json:"active"`
	InvestmentAmount       *decimal.Decimal           `json:"investment_amount"`
	Frequency              *string                    `json:"frequency"`
	TriggerType            *string                    `json:"trigger_type"`
	AllocationStrategy     *string                    `json:"allocation_strategy"`
	AssetAllocation        map[string]decimal.Decimal `json:"asset_allocation"`
	RoundUpMultiplier      *decimal.Decimal           `json:"round_up_multiplier"`
	MarketDipThreshold     *decimal.Decimal           `json:"market_dip_threshold"`
	MarketDipCooldownHours *int                       `json:"market_dip_cooldown_hours"`
}

// PurchaseWebhookRequest is the card transaction notification that feeds round-ups.
type PurchaseWebhookRequest struct {
	TransactionID string          `json:"transaction_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type RoundUpResponse struct {
	Triggered bool                    `json:"triggered"`
	Execution *models.ExecutionResult `json:"execution,omitempty"`
}

type ExecutionBatchResponse struct {
	StartedAt time.Time                `json:"started_at"`
	Results   []models.ExecutionResult `json:"results"`
}
