package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionBuy      TransactionType = "buy"
	TransactionSell     TransactionType = "sell"
	TransactionDividend TransactionType = "dividend"
	TransactionFee      TransactionType = "fee"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionBuy, TransactionSell, TransactionDividend, TransactionFee:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

type Transaction struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	PortfolioID      uuid.UUID         `db:"portfolio_id" json:"portfolio_id"`
	AssetID          *string           `db:"asset_id" json:"asset_id"`
	TransactionType  TransactionType   `db:"transaction_type" json:"transaction_type"`
	Quantity         decimal.Decimal   `db:"quantity" json:"quantity"`
	Price            decimal.Decimal   `db:"price" json:"price"`
	TotalAmount      decimal.Decimal   `db:"total_amount" json:"total_amount"`
	Fee              decimal.Decimal   `db:"fee" json:"fee"`
	Status           TransactionStatus `db:"status" json:"status"`
	AutomationRuleID *uuid.UUID        `db:"automation_rule_id" json:"automation_rule_id"`
	Error            *string           `db:"error" json:"error,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
	ExecutedAt       *time.Time        `db:"executed_at" json:"executed_at"`
}
