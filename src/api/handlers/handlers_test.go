package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"autoinvest/src/api"
	"autoinvest/src/api/handlers"
	"autoinvest/src/models"
	"autoinvest/src/repositories"
	"autoinvest/src/repositories/memory"
	"autoinvest/src/schemas"
	"autoinvest/src/services"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	server    *api.Server
	store     *memory.Store
	repos     *repositories.Registry
	ledger    *services.TransactionLedger
	userID    uuid.UUID
	portfolio uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	store := memory.NewStore()
	repos := store.Registry()
	userID, portfolioID := uuid.New(), uuid.New()
	require.NoError(t, repos.Portfolios.Create(context.Background(), &models.Portfolio{ID: portfolioID, UserID: userID, Name: "main"}))

	schedule := services.NewScheduleCalculator(nil)
	ledger := services.NewTransactionLedger(repos.Transactor, repos.Transactions, repos.Holdings, decimal.Zero, nil)
	valuation := services.NewPortfolioValuation(repos.Holdings, repos.Portfolios, repos.Prices, nil)
	engine := services.NewExecutionEngine(services.EngineDeps{
		Repositories:     repos,
		Prices:           repos.Prices,
		Allocator:        services.NewAllocationCalculator(8, 0, nil),
		Ledger:           ledger,
		Valuation:        valuation,
		Schedule:         schedule,
		Detector:         services.NewMarketDipDetector(repos.Prices, 24),
		Locker:           utils.NewKeyedMutex(),
		Workers:          2,
		RoundUpThreshold: decimal.NewFromInt(5),
	})
	rules := services.NewRuleService(repos.Rules, schedule, nil)

	handler := handlers.NewHandler(rules, ledger, valuation, engine, logger)
	return &testServer{
		server:    api.NewServer(handler),
		store:     store,
		repos:     repos,
		ledger:    ledger,
		userID:    userID,
		portfolio: portfolioID,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) scheduleRule() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           s.userID,
		"portfolio_id":      s.portfolio,
		"name":              "weekly tech",
		"investment_amount": "100",
		"frequency":         "weekly",
		"trigger_type":      "schedule",
		"asset_allocation":  map[string]string{"AAPL": "60", "GOOGL": "40"},
	}
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/alive", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Im alive!", rec.Body.String())
}

func TestRuleEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/rules/", s.scheduleRule())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.AutomationRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Active)
	assert.Equal(t, models.StrategyCustom, created.AllocationStrategy)
	assert.False(t, created.NextExecution.IsZero())

	t.Run("should reject an unknown frequency", func(t *testing.T) {
		body := s.scheduleRule()
		body["frequency"] = "hourly"
		rec := s.do(t, http.MethodPost, "/api/rules/", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "frequency")
	})

	t.Run("should reject a malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/rules/", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		s.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should require a user to list rules", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/rules/", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should list the user's rules", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/rules/?user_id="+s.userID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var rules []models.AutomationRule
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
		require.Len(t, rules, 1)
		assert.Equal(t, created.ID, rules[0].ID)
	})

	t.Run("should update present fields only", func(t *testing.T) {
		rec := s.do(t, http.MethodPut, "/api/rules/"+created.ID.String(), map[string]interface{}{
			"user_id": s.userID,
			"active":  false,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var updated models.AutomationRule
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.False(t, updated.Active)
		assert.Equal(t, models.FrequencyWeekly, updated.Frequency)
	})

	t.Run("should answer 404 for unknown or foreign rules", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/rules/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = s.do(t, http.MethodDelete, "/api/rules/"+created.ID.String()+"?user_id="+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("should reject a malformed id", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/rules/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should delete the rule", func(t *testing.T) {
		rec := s.do(t, http.MethodDelete, "/api/rules/"+created.ID.String()+"?user_id="+s.userID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/rules/"+created.ID.String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPurchaseWebhook(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/rules/", map[string]interface{}{
		"user_id":             s.userID,
		"portfolio_id":        s.portfolio,
		"trigger_type":        "round_up",
		"round_up_multiplier": "1",
		"asset_allocation":    map[string]string{"AAPL": "100"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	purchase := func(id, amount string) *httptest.ResponseRecorder {
		return s.do(t, http.MethodPost, "/api/webhooks/transactions", schemas.PurchaseWebhookRequest{
			TransactionID: id,
			UserID:        s.userID,
			Amount:        decimal.RequireFromString(amount),
		})
	}

	t.Run("should buffer spare change below the threshold", func(t *testing.T) {
		rec := purchase("card-1", "4.10")
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		var res schemas.RoundUpResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.False(t, res.Triggered)
		assert.Nil(t, res.Execution)
	})

	t.Run("should accept a redelivered purchase", func(t *testing.T) {
		rec := purchase("card-1", "4.10")
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("should reject a purchase without amount", func(t *testing.T) {
		rec := purchase("card-2", "0")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPortfolioEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	txn, err := s.ledger.Record(ctx, services.RecordRequest{
		PortfolioID: s.portfolio,
		AssetID:     "AAPL",
		Type:        models.TransactionBuy,
		Quantity:    decimal.NewFromInt(2),
		Price:       decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	s.store.SetPrice(models.AssetPrice{AssetID: "AAPL", CurrentPrice: decimal.NewFromInt(110), PreviousClose: decimal.NewFromInt(105)})

	t.Run("should list the portfolio's transactions", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/portfolios/"+s.portfolio.String()+"/transactions", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var transactions []models.Transaction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transactions))
		require.Len(t, transactions, 1)
		assert.Equal(t, models.TransactionCompleted, transactions[0].Status)
	})

	t.Run("should recalculate the valuation", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/portfolios/"+s.portfolio.String()+"/valuation", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var valuation models.Valuation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &valuation))
		assert.True(t, valuation.TotalValue.Equal(decimal.NewFromInt(220)))
		assert.True(t, valuation.TotalInvested.Equal(decimal.NewFromInt(200)))
		assert.True(t, valuation.ReturnsPercentage.Equal(decimal.NewFromInt(10)))
	})

	t.Run("should refuse to cancel a completed transaction", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/transactions/"+txn.ID.String()+"/cancel", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("should answer 404 for an unknown transaction", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/transactions/"+uuid.NewString()+"/cancel", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
