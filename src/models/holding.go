package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Holding is the position of one asset inside a portfolio.
type Holding struct {
	PortfolioID   uuid.UUID       `db:"portfolio_id" json:"portfolio_id"`
	AssetID       string          `db:"asset_id" json:"asset_id"`
	Quantity      decimal.Decimal `db:"quantity" json:"quantity"`
	AverageCost   decimal.Decimal `db:"average_cost" json:"average_cost"`
	TotalInvested decimal.Decimal `db:"total_invested" json:"total_invested"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
