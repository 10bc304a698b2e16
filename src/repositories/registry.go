package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry groups every repository the services need, backed by one store.
type Registry struct {
	Transactor   Transactor
	Rules        RuleRepository
	Holdings     HoldingRepository
	Transactions TransactionRepository
	RoundUps     RoundUpRepository
	Portfolios   PortfolioRepository
	Executions   ExecutionRepository
	Prices       PriceRepository
}

func NewPostgresRegistry(db *pgxpool.Pool) *Registry {
	return &Registry{
		Transactor:   NewTransactor(db),
		Rules:        NewRuleRepository(db),
		Holdings:     NewHoldingRepository(db),
		Transactions: NewTransactionRepository(db),
		RoundUps:     NewRoundUpRepository(db),
		Portfolios:   NewPortfolioRepository(db),
		Executions:   NewExecutionRepository(db),
		Prices:       NewPriceRepository(db),
	}
}
