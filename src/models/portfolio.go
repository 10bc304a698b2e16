package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Portfolio struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	UserID            uuid.UUID       `db:"user_id" json:"user_id"`
	Name              string          `db:"name" json:"name"`
	TotalValue        decimal.Decimal `db:"total_value" json:"total_value"`
	TotalInvested     decimal.Decimal `db:"total_invested" json:"total_invested"`
	TotalReturns      decimal.Decimal `db:"total_returns" json:"total_returns"`
	ReturnsPercentage decimal.Decimal `db:"returns_percentage" json:"returns_percentage"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Valuation holds the aggregates derived from a portfolio's holdings.
type Valuation struct {
	TotalValue        decimal.Decimal `json:"total_value"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	TotalReturns      decimal.Decimal `json:"total_returns"`
	ReturnsPercentage decimal.Decimal `json:"returns_percentage"`
}
