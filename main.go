package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autoinvest/src/api"
	apihandlers "autoinvest/src/api/handlers"
	"autoinvest/src/config"
	"autoinvest/src/database"
	"autoinvest/src/repositories"
	"autoinvest/src/repositories/memory"
	"autoinvest/src/services"
	"autoinvest/src/utils"
	aws_handler "autoinvest/src/utils/aws"
	redis_utils "autoinvest/src/utils/redis"
	"autoinvest/src/worker"
	"autoinvest/src/worker/controllers"
	workerhandlers "autoinvest/src/worker/handlers"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig("./settings", os.Getenv("ENV"))
	if err != nil {
		log.Println(err, "Error while loading config")
		return
	}
	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Println(err, "Error while building logger")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errC, cleanup, err := run(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Couldn't run")
		return
	}
	defer cleanup()

	if err := <-errC; err != nil {
		logger.WithError(err).Error("Error while running")
	}
}

type app struct {
	rules     *services.RuleService
	ledger    *services.TransactionLedger
	valuation *services.PortfolioValuation
	engine    *services.ExecutionEngine
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	a := &app{}

	var registry *repositories.Registry
	switch cfg.Databases.SQL.Driver {
	case "memory":
		logger.Warn("using the in-memory store, data is lost on restart")
		registry = memory.NewStore().Registry()
	default:
		if err := aws_handler.ResolveSQLPassword(cfg); err != nil {
			return nil, err
		}
		pool, err := database.SetupDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		registry = repositories.NewPostgresRegistry(pool)
	}

	var locker services.RuleLocker
	switch cfg.Engine.Locker {
	case "redis":
		redisLocker, err := redis_utils.NewRedisLocker(cfg, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = redisLocker.Close() })
		locker = redisLocker
	default:
		locker = utils.NewKeyedMutex()
	}

	var prices services.PriceFeed = registry.Prices
	if cfg.Engine.PriceCacheTTL > 0 {
		prices = services.NewCachedPriceFeed(prices, cfg.Engine.PriceCacheTTL)
	}

	threshold, err := decimal.NewFromString(cfg.Engine.RoundUpThreshold)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("invalid engine.round_up_threshold: %w", err)
	}
	feeRate, err := decimal.NewFromString(cfg.Engine.FeeRate)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("invalid engine.fee_rate: %w", err)
	}

	schedule := services.NewScheduleCalculator(time.Now)
	a.ledger = services.NewTransactionLedger(registry.Transactor, registry.Transactions, registry.Holdings, feeRate, time.Now)
	a.valuation = services.NewPortfolioValuation(registry.Holdings, registry.Portfolios, prices, time.Now)
	a.rules = services.NewRuleService(registry.Rules, schedule, time.Now)
	a.engine = services.NewExecutionEngine(services.EngineDeps{
		Repositories:     registry,
		Prices:           prices,
		Allocator:        services.NewAllocationCalculator(cfg.Engine.QuantityPrecision, cfg.Engine.MaxPriceAge, time.Now),
		Ledger:           a.ledger,
		Valuation:        a.valuation,
		Schedule:         schedule,
		Detector:         services.NewMarketDipDetector(prices, cfg.Engine.DefaultCooldownHours),
		Locker:           locker,
		Workers:          cfg.Engine.Workers,
		RoundUpThreshold: threshold,
		Now:              time.Now,
	})
	return a, nil
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (<-chan error, func(), error) {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var httpServer *http.Server
	if cfg.Service.Type == config.WORKER {
		controller := controllers.NewController(a.engine, cfg.Engine, logger)
		if err := controller.StartSchedules(); err != nil {
			a.close()
			return nil, nil, err
		}
		a.closers = append(a.closers, controller.StopSchedules)
		httpServer = worker.NewHTTPServer(worker.NewServer(workerhandlers.NewHandler(controller)), cfg.Service.Port)
	} else {
		handler := apihandlers.NewHandler(a.rules, a.ledger, a.valuation, a.engine, logger)
		httpServer = api.NewHTTPServer(api.NewServer(handler), cfg.Service.Port)
	}

	errC := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		errC <- httpServer.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.WithField("service", cfg.Service.Type).Info("Starting server on port ", cfg.Service.Port)

		// "ListenAndServe always returns a non-nil error. After Shutdown or Close, the returned error is
		// ErrServerClosed."
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()
	return errC, a.close, nil
}
