package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Store holds every record the engine reads or writes.
type Store interface {
	TokenStore
	VaultStore
	TotalStore
	BalanceStore
	MasterContractStore
	StrategyDataStore
	BaseStrategyInfoStore
	ExecutorInfoStore
	CauldronStore
	UserBalanceStore
	LiquidatorAccountStore

	// Transaction runs fn atomically. When fn fails every write made
	// through the ctx it received is discarded.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine runs vault and cauldron operations. Each exported operation is one
// atomic call against the store.
type Engine struct {
	clk    clock.Clock
	store  Store
	events EventStore

	strategies map[string]Strategy
	swappers   map[string]Swapper
	oracles    map[string]PriceOracle
}

type EngineOption func(e *Engine)

func WithClock(clk clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clk = clk
	}
}

func WithEventStore(events EventStore) EngineOption {
	return func(e *Engine) {
		e.events = events
	}
}

func WithStrategy(strategy Strategy) EngineOption {
	return func(e *Engine) {
		e.RegisterStrategy(strategy)
	}
}

func WithSwapper(id string, swapper Swapper) EngineOption {
	return func(e *Engine) {
		e.RegisterSwapper(id, swapper)
	}
}

func WithOracle(id string, oracle PriceOracle) EngineOption {
	return func(e *Engine) {
		e.RegisterOracle(id, oracle)
	}
}

func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		clk:        clock.New(),
		store:      store,
		strategies: map[string]Strategy{},
		swappers:   map[string]Swapper{},
		oracles:    map[string]PriceOracle{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) RegisterStrategy(strategy Strategy) {
	e.strategies[strategy.Id()] = strategy
}

func (e *Engine) RegisterSwapper(id string, swapper Swapper) {
	e.swappers[id] = swapper
}

func (e *Engine) RegisterOracle(id string, oracle PriceOracle) {
	e.oracles[id] = oracle
}

func (e *Engine) Clock() clock.Clock {
	return e.clk
}

func (e *Engine) now() int64 {
	return e.clk.Now().Unix()
}

// run executes fn in one transaction and publishes its events once the
// transaction has committed.
func (e *Engine) run(ctx context.Context, log Log, fn func(ctx context.Context, rec *recorder) error) error {
	rec := &recorder{clk: e.clk}
	if err := e.store.Transaction(ctx, func(ctx context.Context) error {
		return fn(ctx, rec)
	}); err != nil {
		return err
	}
	e.publish(ctx, log, rec.events)
	return nil
}

func (e *Engine) publish(ctx context.Context, log Log, events []*Event) {
	if e.events == nil {
		return
	}
	for _, event := range events {
		if err := e.events.CreateEvent(ctx, event); err != nil {
			log.Error().Err(err).Str("kind", string(event.Kind)).Msg("persist event")
		}
	}
}

func (e *Engine) strategy(id string) (Strategy, error) {
	strategy, ok := e.strategies[id]
	if !ok {
		return nil, errors.Wrapf(ErrStrategyNotSet, "strategy %s not registered", id)
	}
	return strategy, nil
}

func (e *Engine) loadVault(ctx context.Context, vaultId uuid.UUID) (*Vault, error) {
	vault, err := e.store.GetVaultById(ctx, vaultId)
	if err != nil {
		return nil, errors.Wrapf(err, "vault %s", vaultId)
	}
	return vault, nil
}

func (e *Engine) loadTotal(ctx context.Context, vaultId uuid.UUID, mint string) (*Total, error) {
	total, err := e.store.GetTotal(ctx, vaultId, mint)
	if err != nil {
		return nil, errors.Wrapf(err, "vault %s total %s", vaultId, mint)
	}
	return total, nil
}

func (e *Engine) loadStrategyData(ctx context.Context, vaultId uuid.UUID, mint string) (*StrategyData, error) {
	data, err := e.store.GetStrategyData(ctx, vaultId, mint)
	if err != nil {
		return nil, errors.Wrapf(err, "vault %s strategy data %s", vaultId, mint)
	}
	return data, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
