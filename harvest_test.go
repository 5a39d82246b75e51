package core_test

import (
	"context"
	"testing"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/SmonkeyMonkey/abracadabra/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	strategyId    = "mock"
	strategyDelay = 3600
)

// activeStrategy registers a mock strategy for debtMint, activates it and
// sets the target percentage.
func (f *fixture) activeStrategy(t *testing.T, target uint64) *strategy.MockStrategy {
	t.Helper()
	s := strategy.NewMockStrategy(f.store, strategyId, debtMint, authority)
	require.NoError(t, s.Init(f.ctx))
	f.engine.RegisterStrategy(s)

	require.NoError(t, f.engine.SetStrategyDelay(f.ctx, f.log, f.vault.Id, authority, strategyDelay))
	require.NoError(t, f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, strategyId))
	f.clk.Add(strategyDelay * 1e9)
	require.NoError(t, f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, strategyId))
	require.NoError(t, f.engine.SetStrategyTargetPercentage(f.ctx, f.log, f.vault.Id, debtMint, authority, target))
	return s
}

func (f *fixture) strategyData(t *testing.T) *core.StrategyData {
	t.Helper()
	data, err := f.store.GetStrategyData(f.ctx, f.vault.Id, debtMint)
	require.NoError(t, err)
	return data
}

func TestSetStrategyDelay(t *testing.T) {
	f := newFixture(t)
	s := strategy.NewMockStrategy(f.store, strategyId, debtMint, authority)
	require.NoError(t, s.Init(f.ctx))
	f.engine.RegisterStrategy(s)
	require.NoError(t, f.engine.SetStrategyDelay(f.ctx, f.log, f.vault.Id, authority, strategyDelay))

	require.NoError(t, f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, strategyId))
	data := f.strategyData(t)
	assert.Equal(t, core.StrategyPending, data.State.Kind)
	assert.Equal(t, f.clk.Now().Unix()+strategyDelay, data.State.ReadyAt)

	f.clk.Add((strategyDelay - 1) * 1e9)
	err := f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, strategyId)
	assert.ErrorIs(t, err, core.ErrTooEarlyStrategyStartDate)

	f.clk.Add(1e9)
	require.NoError(t, f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, strategyId))
	data = f.strategyData(t)
	assert.Equal(t, core.StrategyState{Kind: core.StrategyActive, Target: strategyId}, data.State)
}

func TestSetStrategyChecks(t *testing.T) {
	f := newFixture(t)
	other := strategy.NewMockStrategy(f.store, "other", collateralMint, authority)
	require.NoError(t, other.Init(f.ctx))
	f.engine.RegisterStrategy(other)

	err := f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, "other")
	assert.ErrorIs(t, err, core.ErrStrategyTokenMismatch)

	err = f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, "missing")
	assert.ErrorIs(t, err, core.ErrStrategyNotSet)

	err = f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, collateralMint, mallory, "other")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	err = f.engine.SetStrategyTargetPercentage(f.ctx, f.log, f.vault.Id, debtMint, authority, 96)
	assert.ErrorIs(t, err, core.ErrStrategyTargetPercentageTooHigh)

	err = f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 0)
	assert.ErrorIs(t, err, core.ErrStrategyNotSet)
}

func TestHarvestInvestsAndRealizesProfit(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, debtMint, 1_000_000)
	s := f.activeStrategy(t, 50)

	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 0))
	assert.Equal(t, uint64(500_000), f.tokens(t, s.PoolAccount()))
	assert.Equal(t, uint64(500_000), f.tokens(t, f.totals[debtMint].TokenAccount))
	assert.Equal(t, uint64(500_000), f.strategyData(t).Balance)

	// the pool earns 1000
	require.NoError(t, core.TransferTokens(f.ctx, f.store, f.wallet(t, bob, debtMint, 1000), s.PoolAccount(), 1000))

	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, false, 0))
	total := f.total(t, debtMint)
	assert.Equal(t, uint64(1_001_000), total.Amount.Elastic.Uint64())
	assert.Equal(t, uint64(1_000_000), total.Amount.Base.Uint64())
	assert.Equal(t, uint64(501_000), f.tokens(t, f.totals[debtMint].TokenAccount))
	assert.Equal(t, uint64(500_000), f.strategyData(t).Balance)

	// nothing left to realize
	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, false, 0))
	assert.Equal(t, uint64(1_001_000), f.total(t, debtMint).Amount.Elastic.Uint64())

	// alice's shares are now worth the profit
	amount, err := f.engine.ToAmount(f.ctx, f.vault.Id, debtMint, 1_000_000, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_001_000), amount)
}

func TestHarvestRebalanceDivests(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, debtMint, 1_000_000)
	s := f.activeStrategy(t, 50)
	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 0))

	require.NoError(t, f.engine.SetStrategyTargetPercentage(f.ctx, f.log, f.vault.Id, debtMint, authority, 20))
	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 100_000))
	assert.Equal(t, uint64(400_000), f.strategyData(t).Balance)
	assert.Equal(t, uint64(400_000), f.tokens(t, s.PoolAccount()))

	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 0))
	assert.Equal(t, uint64(200_000), f.strategyData(t).Balance)
	assert.Equal(t, uint64(800_000), f.tokens(t, f.totals[debtMint].TokenAccount))
	assert.Equal(t, uint64(1_000_000), f.total(t, debtMint).Amount.Elastic.Uint64())
}

func TestHarvestLoss(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, debtMint, 1_000_000)
	s := f.activeStrategy(t, 50)
	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 0))

	// the pool loses 100_000
	require.NoError(t, core.TransferTokens(f.ctx, f.store, s.PoolAccount(), f.wallet(t, mallory, debtMint, 0), 100_000))

	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, false, 0))
	assert.Equal(t, uint64(900_000), f.total(t, debtMint).Amount.Elastic.Uint64())
	assert.Equal(t, uint64(400_000), f.strategyData(t).Balance)
}

// lossyStrategy reports a fixed result from Harvest whatever its pool holds.
type lossyStrategy struct {
	*strategy.MockStrategy
	result int64
}

func (s *lossyStrategy) Harvest(ctx context.Context, balance uint64) (int64, error) {
	return s.result, nil
}

func TestHarvestLossBeyondBalance(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, debtMint, 1000)
	s := f.activeStrategy(t, 50)
	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 0))
	require.Equal(t, uint64(500), f.strategyData(t).Balance)

	f.engine.RegisterStrategy(&lossyStrategy{MockStrategy: s, result: -700})
	err := f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, false, 0)
	assert.ErrorIs(t, err, core.ErrWrongIntegerSubtraction)

	assert.Equal(t, uint64(1000), f.total(t, debtMint).Amount.Elastic.Uint64())
	assert.Equal(t, uint64(500), f.strategyData(t).Balance)
}

func TestSafeHarvest(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, debtMint, 1_000_000)
	s := f.activeStrategy(t, 50)

	err := f.engine.SafeHarvest(f.ctx, f.log, f.vault.Id, debtMint, mallory, 0, true, 0, false)
	assert.ErrorIs(t, err, core.ErrUnauthorizedSafeHarvest)

	require.NoError(t, s.SetStrategyExecutor(f.ctx, authority, bob, true))
	require.NoError(t, f.engine.SafeHarvest(f.ctx, f.log, f.vault.Id, debtMint, bob, 0, true, 0, true))
	assert.Equal(t, uint64(500_000), f.strategyData(t).Balance)

	// above the ceiling harvests realize nothing
	require.NoError(t, core.TransferTokens(f.ctx, f.store, f.wallet(t, bob, debtMint, 1000), s.PoolAccount(), 1000))
	require.NoError(t, f.engine.SafeHarvest(f.ctx, f.log, f.vault.Id, debtMint, bob, 999_999, false, 0, false))
	assert.Equal(t, uint64(1_000_000), f.total(t, debtMint).Amount.Elastic.Uint64())

	info, err := s.Info(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(999_999), info.MaxBentoboxBalance)
}

func TestExitStrategy(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, debtMint, 1_000_000)
	s := f.activeStrategy(t, 50)
	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 0))
	require.NoError(t, core.TransferTokens(f.ctx, f.store, f.wallet(t, bob, debtMint, 1000), s.PoolAccount(), 1000))

	assert.ErrorIs(t, f.engine.ExitStrategy(f.ctx, f.log, f.vault.Id, debtMint, mallory), core.ErrUnauthorized)
	require.NoError(t, f.engine.ExitStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority))

	assert.Equal(t, uint64(0), f.tokens(t, s.PoolAccount()))
	assert.Equal(t, uint64(1_001_000), f.tokens(t, f.totals[debtMint].TokenAccount))
	assert.Equal(t, uint64(1_001_000), f.total(t, debtMint).Amount.Elastic.Uint64())
	data := f.strategyData(t)
	assert.Equal(t, core.StrategyNone, data.State.Kind)
	assert.Equal(t, uint64(0), data.Balance)

	info, err := s.Info(f.ctx)
	require.NoError(t, err)
	assert.True(t, info.Exited)

	err = f.engine.ExitStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority)
	assert.ErrorIs(t, err, core.ErrStrategyNotSet)
}

func TestReplaceStrategyExitsPrevious(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, debtMint, 1_000_000)
	s := f.activeStrategy(t, 50)
	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, true, 0))

	next := strategy.NewMockStrategy(f.store, "next", debtMint, authority)
	require.NoError(t, next.Init(f.ctx))
	f.engine.RegisterStrategy(next)

	require.NoError(t, f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, "next"))
	// the running strategy keeps working while the replacement waits
	require.NoError(t, f.engine.Harvest(f.ctx, f.log, f.vault.Id, debtMint, false, 0))

	f.clk.Add(strategyDelay * 1e9)
	require.NoError(t, f.engine.SetStrategy(f.ctx, f.log, f.vault.Id, debtMint, authority, "next"))

	assert.Equal(t, uint64(0), f.tokens(t, s.PoolAccount()))
	assert.Equal(t, uint64(1_000_000), f.tokens(t, f.totals[debtMint].TokenAccount))
	data := f.strategyData(t)
	assert.Equal(t, core.StrategyState{Kind: core.StrategyActive, Target: "next"}, data.State)
	assert.Equal(t, uint64(0), data.Balance)
}
