// Package memory keeps every repository in process memory. Transactions are
// serialized and rolled back by restoring a snapshot, which is enough for
// tests and single instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"autoinvest/src/models"
	"autoinvest/src/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type holdingKey struct {
	portfolioID uuid.UUID
	assetID     string
}

type state struct {
	rules        map[uuid.UUID]models.AutomationRule
	ruleOrder    []uuid.UUID
	holdings     map[holdingKey]models.Holding
	transactions []models.Transaction
	roundUps     []models.RoundUpBufferEntry
	portfolios   map[uuid.UUID]models.Portfolio
	executions   []models.ExecutionRecord
	prices       map[string]models.AssetPrice
}

func newState() *state {
	return &state{
		rules:      make(map[uuid.UUID]models.AutomationRule),
		holdings:   make(map[holdingKey]models.Holding),
		portfolios: make(map[uuid.UUID]models.Portfolio),
		prices:     make(map[string]models.AssetPrice),
	}
}

// clone copies the tables. Stored values own their maps and slices, so a
// shallow copy of each row is enough.
func (s *state) clone() *state {
	c := &state{
		rules:        make(map[uuid.UUID]models.AutomationRule, len(s.rules)),
		ruleOrder:    append([]uuid.UUID(nil), s.ruleOrder...),
		holdings:     make(map[holdingKey]models.Holding, len(s.holdings)),
		transactions: append([]models.Transaction(nil), s.transactions...),
		roundUps:     append([]models.RoundUpBufferEntry(nil), s.roundUps...),
		portfolios:   make(map[uuid.UUID]models.Portfolio, len(s.portfolios)),
		executions:   append([]models.ExecutionRecord(nil), s.executions...),
		prices:       make(map[string]models.AssetPrice, len(s.prices)),
	}
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.holdings {
		c.holdings[k] = v
	}
	for k, v := range s.portfolios {
		c.portfolios[k] = v
	}
	for k, v := range s.prices {
		c.prices[k] = v
	}
	return c
}

type txKey struct{}

type Store struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	data     *state
	failures map[string]error

	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		data:     newState(),
		failures: make(map[string]error),
		Now:      time.Now,
	}
}

// Registry exposes the store through the repository interfaces.
func (s *Store) Registry() *repositories.Registry {
	return &repositories.Registry{
		Transactor:   s,
		Rules:        &ruleRepo{s: s},
		Holdings:     &holdingRepo{s: s},
		Transactions: &transactionRepo{s: s},
		RoundUps:     &roundUpRepo{s: s},
		Portfolios:   &portfolioRepo{s: s},
		Executions:   &executionRepo{s: s},
		Prices:       &priceRepo{s: s},
	}
}

// FailOn makes the named operation (e.g. "holdings.Update") return err until
// cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetPrice stands in for the market data collaborator.
func (s *Store) SetPrice(p models.AssetPrice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.Now()
	}
	s.data.prices[p.AssetID] = p
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// acquire serializes an autocommit operation against running transactions.
func (s *Store) acquire(ctx context.Context, op string) (func(), error) {
	if s.inTx(ctx) {
		s.mu.Lock()
		if err := s.failures[op]; err != nil {
			s.mu.Unlock()
			return nil, err
		}
		return s.mu.Unlock, nil
	}

	s.txMu.Lock()
	s.mu.Lock()
	if err := s.failures[op]; err != nil {
		s.mu.Unlock()
		s.txMu.Unlock()
		return nil, err
	}
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	rollback := func() {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		rollback()
	}
	return err
}

func cloneAllocation(src map[string]decimal.Decimal) map[string]decimal.Decimal {
	if src == nil {
		return nil
	}
	dst := make(map[string]decimal.Decimal, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
