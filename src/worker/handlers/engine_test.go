package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"autoinvest/src/config"
	"autoinvest/src/models"
	"autoinvest/src/schemas"
	"autoinvest/src/worker"
	"autoinvest/src/worker/controllers"
	"autoinvest/src/worker/handlers"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	results []models.ExecutionResult
	err     error
	calls   int
}

func (f *fakeEngine) RunScheduled(ctx context.Context) ([]models.ExecutionResult, error) {
	f.calls++
	return f.results, f.err
}

func (f *fakeEngine) ProcessRoundUp(ctx context.Context, event models.PurchaseEvent) (*models.ExecutionResult, error) {
	return nil, nil
}

func (f *fakeEngine) CheckMarketDips(ctx context.Context) ([]models.ExecutionResult, error) {
	f.calls++
	return f.results, f.err
}

func newServer(engine *fakeEngine) *worker.Server {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	controller := controllers.NewController(engine, config.EngineConfig{}, logger)
	return worker.NewServer(handlers.NewHandler(controller))
}

func TestEngineEndpoints(t *testing.T) {
	result := models.ExecutionResult{
		RuleID:      uuid.New(),
		TriggerType: models.TriggerSchedule,
		Status:      models.ExecutionSuccess,
		TotalAmount: decimal.NewFromInt(100),
	}

	for _, path := range []string{"/api/engine/scheduled", "/api/engine/market-dips"} {
		t.Run("should return the batch results for "+path, func(t *testing.T) {
			engine := &fakeEngine{results: []models.ExecutionResult{result}}
			rec := httptest.NewRecorder()
			newServer(engine).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var res schemas.ExecutionBatchResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.Len(t, res.Results, 1)
			assert.Equal(t, result.RuleID, res.Results[0].RuleID)
			assert.Equal(t, 1, engine.calls)
		})
	}

	t.Run("should report engine failures", func(t *testing.T) {
		engine := &fakeEngine{err: errors.New("database down")}
		rec := httptest.NewRecorder()
		newServer(engine).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/engine/scheduled", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "database down")
	})

	t.Run("should not route GET requests to the engine", func(t *testing.T) {
		engine := &fakeEngine{}
		rec := httptest.NewRecorder()
		newServer(engine).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/engine/scheduled", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Zero(t, engine.calls)
	})
}
