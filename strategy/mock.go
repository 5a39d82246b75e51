package strategy

import (
	"context"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Store is what a strategy keeps its state in.
type Store interface {
	core.TokenStore
	core.BaseStrategyInfoStore
	core.ExecutorInfoStore
}

// MockStrategy parks invested tokens in a pool token account. Anything
// added to the pool from outside shows up as profit on the next harvest,
// anything removed as a loss.
type MockStrategy struct {
	id        string
	mint      string
	authority string
	store     Store

	tokenAccount string
	poolAccount  string
}

// NewMockStrategy binds a strategy to its records in store. Call Init once
// to create them.
func NewMockStrategy(store Store, id, mint, authority string) *MockStrategy {
	return &MockStrategy{
		id:           id,
		mint:         mint,
		authority:    authority,
		store:        store,
		tokenAccount: utils.DeriveAddress("strategy-token", id, mint),
		poolAccount:  utils.DeriveAddress("strategy-pool", id, mint),
	}
}

// Init creates the strategy's token accounts and info, and makes the
// authority an executor.
func (s *MockStrategy) Init(ctx context.Context) error {
	if _, err := s.store.GetBaseStrategyInfo(ctx, s.id); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := s.store.UpsertTokenAccount(ctx, core.NewTokenAccount(s.tokenAccount, s.mint, s.id)); err != nil {
		return err
	}
	if err := s.store.UpsertTokenAccount(ctx, core.NewTokenAccount(s.poolAccount, s.mint, s.id)); err != nil {
		return err
	}
	if err := s.store.UpsertBaseStrategyInfo(ctx, &core.BaseStrategyInfo{
		StrategyId:    s.id,
		StrategyToken: s.mint,
	}); err != nil {
		return err
	}
	return s.store.UpsertExecutorInfo(ctx, &core.ExecutorInfo{
		StrategyId: s.id,
		User:       s.authority,
		IsExecutor: true,
	})
}

func (s *MockStrategy) Id() string {
	return s.id
}

func (s *MockStrategy) TokenAccount() string {
	return s.tokenAccount
}

// PoolAccount holds the invested tokens.
func (s *MockStrategy) PoolAccount() string {
	return s.poolAccount
}

func (s *MockStrategy) Info(ctx context.Context) (*core.BaseStrategyInfo, error) {
	info, err := s.store.GetBaseStrategyInfo(ctx, s.id)
	if err != nil {
		return nil, errors.Wrapf(err, "strategy %s info", s.id)
	}
	return info, nil
}

func (s *MockStrategy) IsExecutor(ctx context.Context, user string) (bool, error) {
	info, err := s.store.GetExecutorInfo(ctx, s.id, user)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return info.IsExecutor, nil
}

func (s *MockStrategy) SetStrategyExecutor(ctx context.Context, signer, executor string, value bool) error {
	if signer != s.authority {
		return core.ErrUnauthorized
	}
	return s.store.UpsertExecutorInfo(ctx, &core.ExecutorInfo{
		StrategyId: s.id,
		User:       executor,
		IsExecutor: value,
	})
}

func (s *MockStrategy) Skim(ctx context.Context, amount uint64) error {
	return core.TransferTokens(ctx, s.store, s.tokenAccount, s.poolAccount, amount)
}

// Harvest reports the pool's gain or loss against balance and moves a
// gain into the idle account.
func (s *MockStrategy) Harvest(ctx context.Context, balance uint64) (int64, error) {
	pool, err := core.TokenAmount(ctx, s.store, s.poolAccount)
	if err != nil {
		return 0, err
	}
	if pool > 1<<63-1 || balance > 1<<63-1 {
		return 0, core.ErrTryIntoConversion
	}
	amount := int64(pool) - int64(balance)
	if amount > 0 {
		if err := core.TransferTokens(ctx, s.store, s.poolAccount, s.tokenAccount, uint64(amount)); err != nil {
			return 0, err
		}
	}
	return amount, nil
}

func (s *MockStrategy) Withdraw(ctx context.Context, amount uint64) (uint64, error) {
	if err := core.TransferTokens(ctx, s.store, s.poolAccount, s.tokenAccount, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Exit latches the strategy as exited and drains the pool into the idle
// account. Calling it again only drains what is left.
func (s *MockStrategy) Exit(ctx context.Context) error {
	info, err := s.Info(ctx)
	if err != nil {
		return err
	}
	if !info.Exited {
		info.Exited = true
		if err := s.store.UpsertBaseStrategyInfo(ctx, info); err != nil {
			return err
		}
	}
	pool, err := core.TokenAmount(ctx, s.store, s.poolAccount)
	if err != nil {
		return err
	}
	return core.TransferTokens(ctx, s.store, s.poolAccount, s.tokenAccount, pool)
}

func (s *MockStrategy) HarvestRewards(ctx context.Context) error {
	return nil
}

// SafeHarvest sets the vault balance ceiling above which harvests are
// skipped. Zero keeps the current ceiling.
func (s *MockStrategy) SafeHarvest(ctx context.Context, maxBalance uint64) error {
	if maxBalance == 0 {
		return nil
	}
	info, err := s.Info(ctx)
	if err != nil {
		return err
	}
	info.MaxBentoboxBalance = maxBalance
	return s.store.UpsertBaseStrategyInfo(ctx, info)
}

// Transfer sends idle tokens back to the vault token account to.
func (s *MockStrategy) Transfer(ctx context.Context, to string, amount uint64) error {
	return core.TransferTokens(ctx, s.store, s.tokenAccount, to, amount)
}

var _ core.Strategy = (*MockStrategy)(nil)
