package services_test

import (
	"errors"
	"testing"

	"autoinvest/src/models"
	"autoinvest/src/services"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buy(f *fixture, assetID, quantity, price string) (*models.Transaction, error) {
	return f.ledger.Record(f.ctx, services.RecordRequest{
		PortfolioID: f.portfolio,
		AssetID:     assetID,
		Type:        models.TransactionBuy,
		Quantity:    dec(quantity),
		Price:       dec(price),
	})
}

func sell(f *fixture, assetID, quantity, price string) (*models.Transaction, error) {
	return f.ledger.Record(f.ctx, services.RecordRequest{
		PortfolioID: f.portfolio,
		AssetID:     assetID,
		Type:        models.TransactionSell,
		Quantity:    dec(quantity),
		Price:       dec(price),
	})
}

func TestTransactionLedger(t *testing.T) {
	t.Run("should complete a buy and open the holding", func(t *testing.T) {
		f := newFixture(t)

		txn, err := buy(f, "AAPL", "10", "10")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionCompleted, txn.Status)
		require.NotNil(t, txn.ExecutedAt)
		assert.Equal(t, baseTime, *txn.ExecutedAt)
		assertDecimal(t, "100", txn.TotalAmount)
		assertDecimal(t, "0.1", txn.Fee)

		h := f.holding(t, "AAPL")
		require.NotNil(t, h)
		assertDecimal(t, "10", h.Quantity)
		assertDecimal(t, "10", h.AverageCost)
		assertDecimal(t, "100", h.TotalInvested)

		stored, err := f.repos.Transactions.GetByID(f.ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionCompleted, stored.Status)
	})

	t.Run("should use the supplied fee", func(t *testing.T) {
		f := newFixture(t)
		fee := dec("2.5")

		txn, err := f.ledger.Record(f.ctx, services.RecordRequest{
			PortfolioID: f.portfolio, AssetID: "AAPL", Type: models.TransactionBuy,
			Quantity: dec("1"), Price: dec("100"), Fee: &fee,
		})
		require.NoError(t, err)
		assertDecimal(t, "2.5", txn.Fee)
	})

	t.Run("should keep the weighted average cost independent of buy order", func(t *testing.T) {
		buys := [][2]string{{"10", "10"}, {"5", "40"}, {"2.5", "8"}}
		orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}

		for _, order := range orders {
			f := newFixture(t)
			for _, i := range order {
				_, err := buy(f, "AAPL", buys[i][0], buys[i][1])
				require.NoError(t, err)
			}
			h := f.holding(t, "AAPL")
			require.NotNil(t, h)
			// (10*10 + 5*40 + 2.5*8) / 17.5
			assertDecimal(t, "17.5", h.Quantity)
			assertDecimal(t, "320", h.TotalInvested)
			assert.True(t, h.AverageCost.Round(8).Equal(dec("18.28571429")), h.AverageCost.String())
		}
	})

	t.Run("should reduce a holding on a partial sell without touching the average cost", func(t *testing.T) {
		f := newFixture(t)
		_, err := buy(f, "AAPL", "10", "10")
		require.NoError(t, err)
		_, err = buy(f, "AAPL", "10", "20")
		require.NoError(t, err)

		txn, err := sell(f, "AAPL", "5", "30")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionCompleted, txn.Status)

		h := f.holding(t, "AAPL")
		require.NotNil(t, h)
		assertDecimal(t, "15", h.Quantity)
		assertDecimal(t, "15", h.AverageCost)
		assertDecimal(t, "225", h.TotalInvested)
	})

	t.Run("should delete the holding when selling exactly what is held", func(t *testing.T) {
		f := newFixture(t)
		_, err := buy(f, "AAPL", "3", "10")
		require.NoError(t, err)

		_, err = sell(f, "AAPL", "3", "12")
		require.NoError(t, err)
		assert.Nil(t, f.holding(t, "AAPL"))
	})

	t.Run("should fail an oversized sell and leave the holding untouched", func(t *testing.T) {
		f := newFixture(t)
		_, err := buy(f, "AAPL", "3", "10")
		require.NoError(t, err)

		txn, err := sell(f, "AAPL", "4", "12")
		require.ErrorIs(t, err, utils.ErrInsufficientHoldings)
		require.NotNil(t, txn)
		assert.Equal(t, models.TransactionFailed, txn.Status)

		stored, err := f.repos.Transactions.GetByID(f.ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionFailed, stored.Status)
		require.NotNil(t, stored.Error)
		assert.Contains(t, *stored.Error, "insufficient holdings")

		h := f.holding(t, "AAPL")
		require.NotNil(t, h)
		assertDecimal(t, "3", h.Quantity)
		assertDecimal(t, "30", h.TotalInvested)
	})

	t.Run("should fail a sell of an asset that is not held", func(t *testing.T) {
		f := newFixture(t)
		_, err := sell(f, "AAPL", "1", "12")
		assert.ErrorIs(t, err, utils.ErrInsufficientHoldings)
		assert.Nil(t, f.holding(t, "AAPL"))
	})

	t.Run("should not touch holdings for cash events", func(t *testing.T) {
		f := newFixture(t)
		txn, err := f.ledger.Record(f.ctx, services.RecordRequest{
			PortfolioID: f.portfolio, Type: models.TransactionDividend, Quantity: dec("0"), Price: dec("12.5"),
		})
		require.NoError(t, err)
		assert.Equal(t, models.TransactionCompleted, txn.Status)
		assert.Nil(t, txn.AssetID)

		holdings, err := f.repos.Holdings.ListByPortfolio(f.ctx, f.portfolio)
		require.NoError(t, err)
		assert.Empty(t, holdings)
	})

	t.Run("should surface storage failures and keep the failed transaction", func(t *testing.T) {
		f := newFixture(t)
		_, err := buy(f, "AAPL", "1", "10")
		require.NoError(t, err)

		f.store.FailOn("holdings.Update", errors.New("disk full"))
		txn, err := buy(f, "AAPL", "1", "20")
		require.ErrorIs(t, err, utils.ErrPersistence)
		assert.Contains(t, err.Error(), "disk full")
		assert.Equal(t, models.TransactionFailed, txn.Status)
		f.store.FailOn("holdings.Update", nil)

		h := f.holding(t, "AAPL")
		assertDecimal(t, "1", h.Quantity)
		assertDecimal(t, "10", h.AverageCost)

		transactions, err := f.ledger.ListByPortfolio(f.ctx, f.portfolio)
		require.NoError(t, err)
		require.Len(t, transactions, 2)
		assert.Equal(t, models.TransactionFailed, transactions[0].Status)
	})

	t.Run("should reject malformed requests", func(t *testing.T) {
		f := newFixture(t)
		_, err := buy(f, "AAPL", "-1", "10")
		assert.ErrorIs(t, err, utils.ErrValidation)
		_, err = buy(f, "", "1", "10")
		assert.ErrorIs(t, err, utils.ErrValidation)
		_, err = f.ledger.Record(f.ctx, services.RecordRequest{PortfolioID: f.portfolio, Type: "swap"})
		assert.ErrorIs(t, err, utils.ErrValidation)
	})

	t.Run("should cancel only pending transactions", func(t *testing.T) {
		f := newFixture(t)
		assetID := "AAPL"
		pending := &models.Transaction{
			ID: uuid.New(), PortfolioID: f.portfolio, AssetID: &assetID, TransactionType: models.TransactionBuy,
			Quantity: dec("1"), Price: dec("10"), TotalAmount: dec("10"), Status: models.TransactionPending,
		}
		require.NoError(t, f.repos.Transactions.Create(f.ctx, pending))

		cancelled, err := f.ledger.Cancel(f.ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionCancelled, cancelled.Status)

		_, err = f.ledger.Cancel(f.ctx, pending.ID)
		assert.ErrorIs(t, err, utils.ErrTransactionNotPending)

		completed, err := buy(f, "AAPL", "1", "10")
		require.NoError(t, err)
		_, err = f.ledger.Cancel(f.ctx, completed.ID)
		assert.ErrorIs(t, err, utils.ErrTransactionNotPending)

		_, err = f.ledger.Cancel(f.ctx, uuid.New())
		assert.ErrorIs(t, err, utils.ErrNotFound)
	})
}
