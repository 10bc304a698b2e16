package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/repositories"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordRequest describes one trade or cash event. Fee is computed from the
// ledger fee rate when nil.
type RecordRequest struct {
	PortfolioID uuid.UUID
	AssetID     string
	Type        models.TransactionType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Fee         *decimal.Decimal
	RuleID      *uuid.UUID
}

func (r RecordRequest) validate() error {
	if !r.Type.Valid() {
		return utils.NewValidationError("transaction_type", fmt.Sprintf("unknown type %q", r.Type))
	}
	if r.Quantity.IsNegative() {
		return utils.NewValidationError("quantity", "must not be negative")
	}
	if r.Price.IsNegative() {
		return utils.NewValidationError("price", "must not be negative")
	}
	if r.Fee != nil && r.Fee.IsNegative() {
		return utils.NewValidationError("fee", "must not be negative")
	}
	if r.Type == models.TransactionBuy || r.Type == models.TransactionSell {
		if r.AssetID == "" {
			return utils.NewValidationError("asset_id", "is required for trades")
		}
		if !r.Quantity.IsPositive() {
			return utils.NewValidationError("quantity", "must be positive for trades")
		}
		if !r.Price.IsPositive() {
			return utils.NewValidationError("price", "must be positive for trades")
		}
	}
	return nil
}

type TransactionLedgerI interface {
	Record(ctx context.Context, req RecordRequest) (*models.Transaction, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.Transaction, error)
	RetainFailed(ctx context.Context, txn *models.Transaction) error
}

// TransactionLedger records trades and keeps holdings in step with them.
type TransactionLedger struct {
	transactor   repositories.Transactor
	transactions repositories.TransactionRepository
	holdings     repositories.HoldingRepository
	feeRate      decimal.Decimal
	now          func() time.Time
}

func NewTransactionLedger(
	transactor repositories.Transactor,
	transactions repositories.TransactionRepository,
	holdings repositories.HoldingRepository,
	feeRate decimal.Decimal,
	now func() time.Time,
) *TransactionLedger {
	if now == nil {
		now = time.Now
	}
	return &TransactionLedger{
		transactor:   transactor,
		transactions: transactions,
		holdings:     holdings,
		feeRate:      feeRate,
		now:          now,
	}
}

// Record writes a pending transaction, applies it to the holding and completes
// it. When the holding cannot be updated the transaction is kept as failed and
// returned together with the error.
func (l *TransactionLedger) Record(ctx context.Context, req RecordRequest) (*models.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	total := req.Quantity.Mul(req.Price)
	fee := total.Mul(l.feeRate)
	if req.Fee != nil {
		fee = *req.Fee
	}

	txn := &models.Transaction{
		ID:               uuid.New(),
		PortfolioID:      req.PortfolioID,
		TransactionType:  req.Type,
		Quantity:         req.Quantity,
		Price:            req.Price,
		TotalAmount:      total,
		Fee:              fee,
		Status:           models.TransactionPending,
		AutomationRuleID: req.RuleID,
	}
	if req.AssetID != "" {
		assetID := req.AssetID
		txn.AssetID = &assetID
	}

	if err := l.transactions.Create(ctx, txn); err != nil {
		return nil, utils.Persistence("create transaction", err)
	}

	err := l.transactor.RunInTx(ctx, func(ctx context.Context) error {
		if err := l.apply(ctx, txn); err != nil {
			return err
		}
		executedAt := l.now()
		ok, err := l.transactions.UpdateStatus(ctx, txn.ID, repositories.StatusChange{
			From:       models.TransactionPending,
			To:         models.TransactionCompleted,
			ExecutedAt: &executedAt,
		})
		if err != nil {
			return utils.Persistence("complete transaction", err)
		}
		if !ok {
			return fmt.Errorf("complete transaction %s: %w", txn.ID, utils.ErrTransactionNotPending)
		}
		txn.Status = models.TransactionCompleted
		txn.ExecutedAt = &executedAt
		return nil
	})
	if err != nil {
		msg := err.Error()
		if _, markErr := l.transactions.UpdateStatus(ctx, txn.ID, repositories.StatusChange{
			From:  models.TransactionPending,
			To:    models.TransactionFailed,
			Error: &msg,
		}); markErr != nil {
			utils.LoggerFromContext(ctx).WithError(markErr).WithField("transaction_id", txn.ID).
				Error("failed to mark transaction as failed")
		}
		txn.Status = models.TransactionFailed
		txn.Error = &msg
		return txn, err
	}
	return txn, nil
}

func (l *TransactionLedger) apply(ctx context.Context, txn *models.Transaction) error {
	switch txn.TransactionType {
	case models.TransactionBuy:
		return l.applyBuy(ctx, txn)
	case models.TransactionSell:
		return l.applySell(ctx, txn)
	default:
		// dividends and fees are cash events
		return nil
	}
}

func (l *TransactionLedger) applyBuy(ctx context.Context, txn *models.Transaction) error {
	cost := txn.Quantity.Mul(txn.Price)

	h, err := l.holdings.Get(ctx, txn.PortfolioID, *txn.AssetID)
	if err != nil {
		return utils.Persistence("read holding", err)
	}
	if h == nil {
		created, err := l.holdings.Insert(ctx, &models.Holding{
			PortfolioID:   txn.PortfolioID,
			AssetID:       *txn.AssetID,
			Quantity:      txn.Quantity,
			AverageCost:   txn.Price,
			TotalInvested: cost,
		})
		if err != nil {
			return utils.Persistence("create holding", err)
		}
		if created {
			return nil
		}
		// lost the insert race, fold into the row the other writer created
		if h, err = l.holdings.Get(ctx, txn.PortfolioID, *txn.AssetID); err != nil {
			return utils.Persistence("read holding", err)
		}
		if h == nil {
			return utils.Persistence("read holding", errors.New("holding disappeared during insert"))
		}
	}

	// TotalInvested tracks quantity x average cost, so this is the weighted mean
	// of every buy price.
	newQuantity := h.Quantity.Add(txn.Quantity)
	h.TotalInvested = h.TotalInvested.Add(cost)
	h.AverageCost = h.TotalInvested.Div(newQuantity)
	h.Quantity = newQuantity
	if err := l.holdings.Update(ctx, h); err != nil {
		return utils.Persistence("update holding", err)
	}
	return nil
}

func (l *TransactionLedger) applySell(ctx context.Context, txn *models.Transaction) error {
	h, err := l.holdings.Get(ctx, txn.PortfolioID, *txn.AssetID)
	if err != nil {
		return utils.Persistence("read holding", err)
	}
	if h == nil || txn.Quantity.GreaterThan(h.Quantity) {
		held := decimal.Zero
		if h != nil {
			held = h.Quantity
		}
		return fmt.Errorf("sell %s of %s, holding %s: %w", txn.Quantity, *txn.AssetID, held, utils.ErrInsufficientHoldings)
	}

	newQuantity := h.Quantity.Sub(txn.Quantity)
	if newQuantity.IsZero() {
		if err := l.holdings.Delete(ctx, txn.PortfolioID, *txn.AssetID); err != nil {
			return utils.Persistence("delete holding", err)
		}
		return nil
	}

	h.Quantity = newQuantity
	h.TotalInvested = newQuantity.Mul(h.AverageCost)
	if err := l.holdings.Update(ctx, h); err != nil {
		return utils.Persistence("update holding", err)
	}
	return nil
}

// RetainFailed stores a failed transaction again after the caller's storage
// transaction, which held the original row, was rolled back.
func (l *TransactionLedger) RetainFailed(ctx context.Context, txn *models.Transaction) error {
	msg := ""
	if txn.Error != nil {
		msg = *txn.Error
	}
	row := *txn
	row.Status = models.TransactionPending
	row.ExecutedAt = nil
	row.Error = nil
	if err := l.transactions.Create(ctx, &row); err != nil {
		return utils.Persistence("create transaction", err)
	}
	if _, err := l.transactions.UpdateStatus(ctx, row.ID, repositories.StatusChange{
		From:  models.TransactionPending,
		To:    models.TransactionFailed,
		Error: &msg,
	}); err != nil {
		return utils.Persistence("fail transaction", err)
	}
	txn.Status = models.TransactionFailed
	txn.CreatedAt = row.CreatedAt
	txn.UpdatedAt = row.UpdatedAt
	return nil
}

// Cancel moves a pending transaction to cancelled. Any other status is final.
func (l *TransactionLedger) Cancel(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	ok, err := l.transactions.UpdateStatus(ctx, id, repositories.StatusChange{
		From: models.TransactionPending,
		To:   models.TransactionCancelled,
	})
	if err != nil {
		return nil, utils.Persistence("cancel transaction", err)
	}

	txn, err := l.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, utils.Persistence("read transaction", err)
	}
	if !ok {
		return txn, fmt.Errorf("cancel transaction %s in status %s: %w", id, txn.Status, utils.ErrTransactionNotPending)
	}
	return txn, nil
}

func (l *TransactionLedger) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]models.Transaction, error) {
	transactions, err := l.transactions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, utils.Persistence("list transactions", err)
	}
	return transactions, nil
}
