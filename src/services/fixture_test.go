package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/repositories"
	"autoinvest/src/repositories/memory"
	"autoinvest/src/services"
	"autoinvest/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx       context.Context
	clock     *clock
	store     *memory.Store
	repos     *repositories.Registry
	locker    *utils.KeyedMutex
	ledger    *services.TransactionLedger
	valuation *services.PortfolioValuation
	schedule  *services.ScheduleCalculator
	rules     *services.RuleService
	engine    *services.ExecutionEngine
	userID    uuid.UUID
	portfolio uuid.UUID
}

type fixtureOption func(*services.EngineDeps)

func withPrices(feed services.PriceFeed) fixtureOption {
	return func(d *services.EngineDeps) { d.Prices = feed }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	c := &clock{now: baseTime}
	store := memory.NewStore()
	store.Now = c.Now
	repos := store.Registry()

	f := &fixture{
		ctx:       utils.WithLogger(context.Background(), logger),
		clock:     c,
		store:     store,
		repos:     repos,
		locker:    utils.NewKeyedMutex(),
		userID:    uuid.New(),
		portfolio: uuid.New(),
	}
	require.NoError(t, repos.Portfolios.Create(f.ctx, &models.Portfolio{ID: f.portfolio, UserID: f.userID, Name: "main"}))

	f.schedule = services.NewScheduleCalculator(c.Now)
	f.ledger = services.NewTransactionLedger(repos.Transactor, repos.Transactions, repos.Holdings, dec("0.001"), c.Now)
	f.valuation = services.NewPortfolioValuation(repos.Holdings, repos.Portfolios, repos.Prices, c.Now)
	f.rules = services.NewRuleService(repos.Rules, f.schedule, c.Now)

	deps := services.EngineDeps{
		Repositories:     repos,
		Prices:           repos.Prices,
		Allocator:        services.NewAllocationCalculator(8, 0, c.Now),
		Ledger:           f.ledger,
		Valuation:        f.valuation,
		Schedule:         f.schedule,
		Detector:         services.NewMarketDipDetector(repos.Prices, 24),
		Locker:           f.locker,
		Workers:          4,
		RoundUpThreshold: dec("5.00"),
		Now:              c.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.engine = services.NewExecutionEngine(deps)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func (f *fixture) setPrice(assetID, current, previous string) {
	f.store.SetPrice(models.AssetPrice{
		AssetID:       assetID,
		CurrentPrice:  dec(current),
		PreviousClose: dec(previous),
		UpdatedAt:     f.clock.Now(),
	})
}

func (f *fixture) rule(t *testing.T, mutate func(r *models.AutomationRule)) *models.AutomationRule {
	t.Helper()
	r := &models.AutomationRule{
		ID:                 uuid.New(),
		UserID:             f.userID,
		PortfolioID:        f.portfolio,
		Name:               "rule",
		Active:             true,
		InvestmentAmount:   decimal.NewNullDecimal(dec("100")),
		Frequency:          models.FrequencyDaily,
		TriggerType:        models.TriggerSchedule,
		AllocationStrategy: models.StrategyCustom,
		AssetAllocation:    map[string]decimal.Decimal{"AAPL": dec("100")},
		RoundUpMultiplier:  dec("1"),
		NextExecution:      f.clock.Now().Add(-time.Minute),
	}
	if mutate != nil {
		mutate(r)
	}
	require.NoError(t, f.repos.Rules.Create(f.ctx, r))
	return r
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.AutomationRule {
	t.Helper()
	r, err := f.repos.Rules.GetByID(f.ctx, id)
	require.NoError(t, err)
	return r
}

func (f *fixture) holding(t *testing.T, assetID string) *models.Holding {
	t.Helper()
	h, err := f.repos.Holdings.Get(f.ctx, f.portfolio, assetID)
	require.NoError(t, err)
	return h
}
