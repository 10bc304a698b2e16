package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExecutionStatus string

const (
	ExecutionSkipped ExecutionStatus = "skipped"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Allocation is the share of an investment assigned to one asset.
type Allocation struct {
	AssetID  string          `json:"asset_id"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ExecutionRecord is the persisted outcome of one attempted rule execution.
// Skipped outcomes are never stored.
type ExecutionRecord struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	RuleID         uuid.UUID       `db:"rule_id" json:"rule_id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	PortfolioID    uuid.UUID       `db:"portfolio_id" json:"portfolio_id"`
	TriggerType    TriggerType     `db:"trigger_type" json:"trigger_type"`
	Status         ExecutionStatus `db:"status" json:"status"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	Allocations    []Allocation    `db:"allocations" json:"allocations"`
	TransactionIDs []uuid.UUID     `db:"transaction_ids" json:"transaction_ids"`
	Error          string          `db:"error" json:"error,omitempty"`
	ExecutedAt     time.Time       `db:"executed_at" json:"executed_at"`
}

// ExecutionResult is what the engine reports for a rule on one tick.
type ExecutionResult struct {
	RuleID       uuid.UUID       `json:"rule_id"`
	TriggerType  TriggerType     `json:"trigger_type"`
	Status       ExecutionStatus `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Allocations  []Allocation    `json:"allocations,omitempty"`
	Transactions []*Transaction  `json:"transactions,omitempty"`
	Error        string          `json:"error,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}
