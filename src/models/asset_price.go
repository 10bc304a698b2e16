package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetPrice is maintained by the market data collaborator and only read here.
// QuantityPrecision is the number of decimal places of the minimum tradable increment.
type AssetPrice struct {
	AssetID           string          `db:"asset_id" json:"asset_id"`
	CurrentPrice      decimal.Decimal `db:"current_price" json:"current_price"`
	PreviousClose     decimal.Decimal `db:"previous_close" json:"previous_close"`
	QuantityPrecision *int32          `db:"quantity_precision" json:"quantity_precision"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}
