package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundUpBufferEntry is the scaled spare change of one purchase waiting to be invested.
type RoundUpBufferEntry struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	UserID              uuid.UUID       `db:"user_id" json:"user_id"`
	RuleID              uuid.UUID       `db:"rule_id" json:"rule_id"`
	SourceTransactionID string          `db:"source_transaction_id" json:"source_transaction_id"`
	Amount              decimal.Decimal `db:"amount" json:"amount"`
	Consumed            bool            `db:"consumed" json:"consumed"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	ConsumedAt          *time.Time      `db:"consumed_at" json:"consumed_at"`
}

// PurchaseEvent is an everyday card or bank purchase reported by the ingestion webhook.
type PurchaseEvent struct {
	TransactionID string          `json:"transaction_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
}
