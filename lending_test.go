package core_test

import (
	"context"
	"testing"
	"time"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/SmonkeyMonkey/abracadabra/oracle"
	"github.com/SmonkeyMonkey/abracadabra/swapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	lender           = "lender"
	supply           = 10_000_000
	collateralAmount = 1_000_000
)

func lendingConstants() core.CauldronConstants {
	return core.CauldronConstants{
		CollaterizationRate:            75000,
		CollaterizationRatePrecision:   100000,
		LiquidationMultiplier:          112500,
		LiquidationMultiplierPrecision: 100000,
		DistributionPart:               10,
		DistributionPrecision:          100,
		BorrowOpeningFee:               50,
		BorrowOpeningFeePrecision:      100000,
		OnePercentRate:                 100,
		StaleAfter:                     60,
		CompleteLiquidationDuration:    60,
	}
}

// openCauldron creates a cauldron the lender supplies with debt tokens and
// alice posts collateral to.
func (f *fixture) openCauldron(t *testing.T, interestPerSecond uint64) *core.Cauldron {
	t.Helper()
	cauldron, err := f.engine.CreateCauldron(f.ctx, f.log, f.vault.Id, "cauldron", authority, collateralMint, debtMint, oracleId, lendingConstants(), interestPerSecond)
	require.NoError(t, err)
	require.NoError(t, f.engine.WhitelistMasterContract(f.ctx, f.log, f.vault.Id, authority, cauldron.Address(), true))

	from := f.wallet(t, lender, debtMint, supply)
	_, err = f.engine.Deposit(f.ctx, f.log, f.vault.Id, debtMint, from, lender, cauldron.Address(), supply, 0)
	require.NoError(t, err)

	f.approve(t, alice, cauldron)
	f.deposit(t, alice, collateralMint, collateralAmount)
	require.NoError(t, f.engine.AddCollateral(f.ctx, f.log, cauldron.Id, alice, alice, collateralAmount, false))
	return cauldron
}

func (f *fixture) approve(t *testing.T, user string, cauldron *core.Cauldron) {
	t.Helper()
	require.NoError(t, f.engine.SetMasterContractApproval(f.ctx, f.log, f.vault.Id, user, cauldron.Address(), true))
}

func (f *fixture) position(t *testing.T, cauldron *core.Cauldron, user string) *core.UserBalance {
	t.Helper()
	balance, err := f.engine.GetUserBalance(f.ctx, cauldron.Id, user)
	require.NoError(t, err)
	return balance
}

func (f *fixture) cauldronTotal(t *testing.T, cauldron *core.Cauldron) (*core.Cauldron, *core.CauldronTotal) {
	t.Helper()
	c, total, err := f.engine.GetCauldron(f.ctx, cauldron.Id)
	require.NoError(t, err)
	return c, total
}

func TestCreateCauldron(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateCauldron(f.ctx, f.log, f.vault.Id, "cauldron", authority, collateralMint, debtMint, "missing", lendingConstants(), 0)
	assert.ErrorIs(t, err, core.ErrOracleNotFound)

	constants := lendingConstants()
	constants.LiquidationMultiplier = 99999
	_, err = f.engine.CreateCauldron(f.ctx, f.log, f.vault.Id, "cauldron", authority, collateralMint, debtMint, oracleId, constants, 0)
	assert.Error(t, err)

	_, err = f.engine.CreateCauldron(f.ctx, f.log, f.vault.Id, "cauldron", authority, collateralMint, "unknown", oracleId, lendingConstants(), 0)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	cauldron := f.openCauldron(t, 0)
	_, err = f.engine.CreateCauldron(f.ctx, f.log, f.vault.Id, "cauldron", authority, collateralMint, debtMint, oracleId, lendingConstants(), 0)
	assert.ErrorIs(t, err, core.ErrAssetExists)

	_, total := f.cauldronTotal(t, cauldron)
	assert.Equal(t, uint64(collateralAmount), total.CollateralShare)
	assert.Equal(t, uint64(collateralAmount), f.position(t, cauldron, alice).CollateralShare)
	assert.Equal(t, uint64(supply), f.shares(t, debtMint, cauldron.Address()))
}

func TestAddCollateralNeedsApproval(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	f.deposit(t, bob, collateralMint, 5000)
	err := f.engine.AddCollateral(f.ctx, f.log, cauldron.Id, bob, bob, 5000, false)
	assert.ErrorIs(t, err, core.ErrMasterContractNotApproved)
	assert.Equal(t, uint64(0), f.position(t, cauldron, bob).CollateralShare)
}

func TestAddCollateralSkim(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	// shares sent straight to the cauldron can be claimed by anyone
	f.deposit(t, bob, collateralMint, 5000)
	require.NoError(t, f.engine.Transfer(f.ctx, f.log, f.vault.Id, collateralMint, bob, bob, cauldron.Address(), 5000))

	err := f.engine.AddCollateral(f.ctx, f.log, cauldron.Id, bob, bob, 5001, true)
	assert.ErrorIs(t, err, core.ErrSkimTooMuch)

	require.NoError(t, f.engine.AddCollateral(f.ctx, f.log, cauldron.Id, bob, bob, 5000, true))
	assert.Equal(t, uint64(5000), f.position(t, cauldron, bob).CollateralShare)
	_, total := f.cauldronTotal(t, cauldron)
	assert.Equal(t, uint64(collateralAmount+5000), total.CollateralShare)
}

func TestBorrowAndRepay(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	part, share, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_250), part)
	assert.Equal(t, uint64(500_000), share)
	assert.Equal(t, uint64(500_000), f.shares(t, debtMint, alice))
	assert.Equal(t, uint64(500_250), f.position(t, cauldron, alice).BorrowPart)

	c, total := f.cauldronTotal(t, cauldron)
	assert.Equal(t, uint64(500_250), total.Borrow.Elastic.Uint64())
	assert.Equal(t, uint64(500_250), total.Borrow.Base.Uint64())
	assert.Equal(t, uint64(250), c.AccrueInfo.FeesEarned.Uint64())

	repayShare, err := f.engine.GetRepayShare(f.ctx, cauldron.Id, part)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_250), repayShare)

	// alice needs the opening fee on top of what she borrowed
	f.deposit(t, alice, debtMint, 250)
	amount, err := f.engine.Repay(f.ctx, f.log, cauldron.Id, alice, alice, part)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_250), amount)

	assert.Equal(t, uint64(0), f.shares(t, debtMint, alice))
	assert.Equal(t, uint64(0), f.position(t, cauldron, alice).BorrowPart)
	assert.Equal(t, uint64(supply+250), f.shares(t, debtMint, cauldron.Address()))
	_, total = f.cauldronTotal(t, cauldron)
	assert.True(t, total.Borrow.Elastic.IsZero())
	assert.True(t, total.Borrow.Base.IsZero())
}

func TestPositionHealth(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	h, err := f.engine.PositionHealth(f.ctx, cauldron.Id, alice)
	require.NoError(t, err)
	assert.True(t, h.Solvent)
	assert.True(t, h.BorrowAmount.IsZero())
	assert.True(t, h.LiquidationPrice.IsZero())

	_, _, err = f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 500_000)
	require.NoError(t, err)

	h, err = f.engine.PositionHealth(f.ctx, cauldron.Id, alice)
	require.NoError(t, err)
	assert.True(t, h.Solvent)
	assert.Equal(t, "1000000", h.CollateralAmount.String())
	assert.Equal(t, "500250", h.BorrowAmount.String())
	assert.Equal(t, "750000", h.CollateralValue.String())
	assert.Equal(t, "500250", h.DebtValue.String())
	assert.Equal(t, "1.4993", h.LiquidationPrice.StringFixed(4))
	assert.Equal(t, "0.50025", h.LTV().String())

	// just past the liquidation price
	f.feed.Publish(149930, 5)
	h, err = f.engine.PositionHealth(f.ctx, cauldron.Id, alice)
	require.NoError(t, err)
	assert.False(t, h.Solvent)
}

func TestRepayMoreThanBorrowed(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	part, _, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 100_000)
	require.NoError(t, err)

	_, err = f.engine.Repay(f.ctx, f.log, cauldron.Id, alice, alice, part+1)
	assert.Error(t, err)
	assert.Equal(t, part, f.position(t, cauldron, alice).BorrowPart)
}

func TestBorrowInsolvent(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	_, _, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 800_000)
	assert.ErrorIs(t, err, core.ErrUserInsolvent)

	assert.Equal(t, uint64(0), f.shares(t, debtMint, alice))
	assert.Equal(t, uint64(supply), f.shares(t, debtMint, cauldron.Address()))
	c, total := f.cauldronTotal(t, cauldron)
	assert.True(t, total.Borrow.Elastic.IsZero())
	assert.True(t, c.AccrueInfo.FeesEarned.IsZero())
}

func TestBorrowLimit(t *testing.T) {
	tests := []struct {
		name       string
		total      uint64
		perAddress uint64
		err        error
	}{
		{name: "total", total: 400_000, perAddress: 1 << 63, err: core.ErrBorrowLimitReached},
		{name: "per address", total: 1 << 63, perAddress: 100_000, err: core.ErrBorrowLimitReached},
		{name: "inclusive", total: 500_250, perAddress: 500_250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cauldron := f.openCauldron(t, 0)

			assert.ErrorIs(t, f.engine.ChangeBorrowLimit(f.ctx, f.log, cauldron.Id, mallory, 0, 0), core.ErrUnauthorized)
			require.NoError(t, f.engine.ChangeBorrowLimit(f.ctx, f.log, cauldron.Id, authority, tt.total, tt.perAddress))

			_, _, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 500_000)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Equal(t, uint64(0), f.shares(t, debtMint, alice))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRemoveCollateral(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)
	_, _, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 500_000)
	require.NoError(t, err)

	err = f.engine.RemoveCollateral(f.ctx, f.log, cauldron.Id, alice, alice, 400_000)
	assert.ErrorIs(t, err, core.ErrUserInsolvent)
	assert.Equal(t, uint64(collateralAmount), f.position(t, cauldron, alice).CollateralShare)

	require.NoError(t, f.engine.RemoveCollateral(f.ctx, f.log, cauldron.Id, alice, alice, 300_000))
	assert.Equal(t, uint64(700_000), f.position(t, cauldron, alice).CollateralShare)
	assert.Equal(t, uint64(300_000), f.shares(t, collateralMint, alice))
	_, total := f.cauldronTotal(t, cauldron)
	assert.Equal(t, uint64(700_000), total.CollateralShare)
}

func TestChangeInterestRate(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 1000)

	err := f.engine.ChangeInterestRate(f.ctx, f.log, cauldron.Id, mallory, 1100)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	err = f.engine.ChangeInterestRate(f.ctx, f.log, cauldron.Id, authority, 1750)
	assert.ErrorIs(t, err, core.ErrNotValidInterestRate)

	require.NoError(t, f.engine.ChangeInterestRate(f.ctx, f.log, cauldron.Id, authority, 1749))
	c, _ := f.cauldronTotal(t, cauldron)
	assert.Equal(t, uint64(1749), c.AccrueInfo.InterestPerSecond)
	assert.Equal(t, f.clk.Now().Unix(), c.LastInterestUpdate)

	err = f.engine.ChangeInterestRate(f.ctx, f.log, cauldron.Id, authority, 1000)
	assert.ErrorIs(t, err, core.ErrTooSoonToUpdateInterestRate)

	f.clk.Add(core.INTEREST_RATE_UPDATE_INTERVAL * time.Second)
	err = f.engine.ChangeInterestRate(f.ctx, f.log, cauldron.Id, authority, 1000)
	assert.ErrorIs(t, err, core.ErrTooSoonToUpdateInterestRate)

	f.clk.Add(time.Second)
	require.NoError(t, f.engine.ChangeInterestRate(f.ctx, f.log, cauldron.Id, authority, 1000))
}

func TestAccrueAndWithdrawFees(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 1_000_000_000_000)
	_, _, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 500_000)
	require.NoError(t, err)

	f.clk.Add(1000 * time.Second)
	require.NoError(t, f.engine.Accrue(f.ctx, f.log, cauldron.Id))

	c, total := f.cauldronTotal(t, cauldron)
	assert.Equal(t, uint64(500_750), total.Borrow.Elastic.Uint64())
	assert.Equal(t, uint64(500_250), total.Borrow.Base.Uint64())
	assert.Equal(t, uint64(750), c.AccrueInfo.FeesEarned.Uint64())
	assert.Equal(t, f.clk.Now().Unix(), c.AccrueInfo.LastAccrued)
	assert.Contains(t, f.events.kinds(), core.EventAccrue)

	// accruing twice in the same second adds nothing
	require.NoError(t, f.engine.Accrue(f.ctx, f.log, cauldron.Id))
	_, total = f.cauldronTotal(t, cauldron)
	assert.Equal(t, uint64(500_750), total.Borrow.Elastic.Uint64())

	share, err := f.engine.WithdrawFees(f.ctx, f.log, cauldron.Id)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), share)
	assert.Equal(t, uint64(750), f.shares(t, debtMint, authority))
	c, _ = f.cauldronTotal(t, cauldron)
	assert.True(t, c.AccrueInfo.FeesEarned.IsZero())

	require.NoError(t, f.engine.SetFeeTo(f.ctx, f.log, cauldron.Id, authority, bob))
	f.clk.Add(1000 * time.Second)
	share, err = f.engine.WithdrawFees(f.ctx, f.log, cauldron.Id)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), share)
	assert.Equal(t, uint64(500), f.shares(t, debtMint, bob))
}

func TestReduceSupply(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)
	to := f.wallet(t, authority, debtMint, 0)

	_, err := f.engine.ReduceSupply(f.ctx, f.log, cauldron.Id, mallory, to, 1)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	out, err := f.engine.ReduceSupply(f.ctx, f.log, cauldron.Id, authority, to, 4_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000_000), out.AmountOut)
	assert.Equal(t, uint64(6_000_000), f.shares(t, debtMint, cauldron.Address()))

	out, err = f.engine.ReduceSupply(f.ctx, f.log, cauldron.Id, authority, to, 100_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000_000), out.AmountOut)
	assert.Equal(t, uint64(supply), f.tokens(t, to))
	assert.Equal(t, uint64(0), f.shares(t, debtMint, cauldron.Address()))
}

func TestStalePrice(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	f.clk.Add(60 * time.Second)
	_, _, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 1000)
	assert.ErrorIs(t, err, core.ErrStalePrice)

	f.feed.Publish(100000, 5)
	_, _, err = f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 1000)
	assert.NoError(t, err)

	price, err := f.engine.OraclePrice(f.ctx, cauldron.Id)
	require.NoError(t, err)
	assert.Equal(t, "1", price.String())
}

func TestUpdateOracle(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	feed := oracle.NewFeed(oracle.WithClock(f.clk))
	feed.Publish(200000, 5)
	f.engine.RegisterOracle("feed-2", feed)

	err := f.engine.UpdateOracle(f.ctx, f.log, cauldron.Id, authority, "missing")
	assert.ErrorIs(t, err, core.ErrOracleNotFound)
	err = f.engine.UpdateOracle(f.ctx, f.log, cauldron.Id, alice, "feed-2")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	require.NoError(t, f.engine.UpdateOracle(f.ctx, f.log, cauldron.Id, authority, "feed-2"))
	price, err := f.engine.OraclePrice(f.ctx, cauldron.Id)
	require.NoError(t, err)
	assert.Equal(t, "2", price.String())
}

// underwater opens a 700_000 loan for alice and moves the price so that
// the position can be liquidated.
func (f *fixture) underwater(t *testing.T, cauldron *core.Cauldron) {
	t.Helper()
	part, _, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 700_000)
	require.NoError(t, err)
	require.Equal(t, uint64(700_350), part)
	f.feed.Publish(120000, 5)
}

func TestLiquidate(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)

	_, _, err := f.engine.Borrow(f.ctx, f.log, cauldron.Id, alice, alice, 700_000)
	require.NoError(t, err)
	_, err = f.engine.Liquidate(f.ctx, f.log, cauldron.Id, bob, alice, 100_000, bob)
	assert.ErrorIs(t, err, core.ErrUserIsSolvent)

	f.feed.Publish(120000, 5)
	f.approve(t, bob, cauldron)
	f.deposit(t, bob, debtMint, 1_000_000)

	l, err := f.engine.Liquidate(f.ctx, f.log, cauldron.Id, bob, alice, 100_000, bob)
	require.NoError(t, err)
	assert.Equal(t, &core.Liquidation{
		BorrowPart:      100_000,
		BorrowAmount:    101_250,
		BorrowShare:     101_250,
		CollateralShare: 135_000,
	}, l)

	assert.Equal(t, uint64(135_000), f.shares(t, collateralMint, bob))
	assert.Equal(t, uint64(1_000_000-101_250), f.shares(t, debtMint, bob))

	position := f.position(t, cauldron, alice)
	assert.Equal(t, uint64(865_000), position.CollateralShare)
	assert.Equal(t, uint64(600_350), position.BorrowPart)

	c, total := f.cauldronTotal(t, cauldron)
	assert.Equal(t, uint64(600_350), total.Borrow.Elastic.Uint64())
	assert.Equal(t, uint64(600_350), total.Borrow.Base.Uint64())
	assert.Equal(t, uint64(865_000), total.CollateralShare)
	assert.Equal(t, uint64(350+1250), c.AccrueInfo.FeesEarned.Uint64())
}

func TestSwapLiquidation(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)
	pool := swapper.NewOrca(f.store, collateralMint, debtMint)
	require.NoError(t, pool.Init(f.ctx, 10_000_000, 10_000_000))
	f.engine.RegisterSwapper("orca", pool)
	f.underwater(t, cauldron)

	account, err := f.engine.BeginLiquidate(f.ctx, f.log, cauldron.Id, bob, alice, 100_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(135_000), account.CollateralAmount)
	assert.Equal(t, uint64(101_250), account.BorrowAmount)
	assert.Equal(t, uint64(101_250), account.BorrowShare)
	assert.Equal(t, uint64(135_000), f.tokens(t, cauldron.CollateralTokenAccount))

	_, err = f.engine.BeginLiquidate(f.ctx, f.log, cauldron.Id, bob, alice, 100_000)
	assert.ErrorIs(t, err, core.ErrLiquidationInProgress)

	_, err = f.engine.CompleteLiquidate(f.ctx, f.log, cauldron.Id, bob, alice)
	assert.ErrorIs(t, err, core.ErrSwapNotCompleted)

	_, err = f.engine.LiquidateSwap(f.ctx, f.log, cauldron.Id, mallory, alice, "orca")
	assert.ErrorIs(t, err, core.ErrTooSoon)

	_, err = f.engine.LiquidateSwap(f.ctx, f.log, cauldron.Id, bob, alice, "missing")
	assert.ErrorIs(t, err, core.ErrInvalidSwapper)

	account, err = f.engine.LiquidateSwap(f.ctx, f.log, cauldron.Id, bob, alice, "orca")
	require.NoError(t, err)
	assert.True(t, account.Swapped)
	assert.Equal(t, uint64(132_807), account.RealAmount)
	assert.Equal(t, uint64(132_807), f.tokens(t, cauldron.DebtTokenAccount))

	_, err = f.engine.LiquidateSwap(f.ctx, f.log, cauldron.Id, bob, alice, "orca")
	assert.ErrorIs(t, err, core.ErrSwapAlreadyCompleted)

	_, err = f.engine.CompleteLiquidate(f.ctx, f.log, cauldron.Id, mallory, alice)
	assert.ErrorIs(t, err, core.ErrTooSoon)

	bonus, err := f.engine.CompleteLiquidate(f.ctx, f.log, cauldron.Id, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(132_807-101_250), bonus)
	assert.Equal(t, bonus, f.shares(t, debtMint, bob))
	assert.Equal(t, uint64(0), f.tokens(t, cauldron.DebtTokenAccount))

	_, err = f.engine.GetLiquidatorAccount(f.ctx, cauldron.Id, alice)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Contains(t, f.events.kinds(), core.EventLiquidateComplete)
}

// fixedSwapper takes every collateral token offered and pays out a fixed
// amount of the debt asset from its own wallet.
type fixedSwapper struct {
	store   core.TokenStore
	sink    string
	reserve string
	out     uint64
}

func (s *fixedSwapper) Swap(ctx context.Context, source, destination string, amountIn, minimumOut uint64) error {
	if err := core.TransferTokens(ctx, s.store, source, s.sink, amountIn); err != nil {
		return err
	}
	return core.TransferTokens(ctx, s.store, s.reserve, destination, s.out)
}

func TestSwapLiquidationShortfall(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)
	f.underwater(t, cauldron)

	// one debt token for every hundred collateral tokens
	skewed := swapper.NewOrca(f.store, collateralMint, debtMint)
	require.NoError(t, skewed.Init(f.ctx, 10_000_000, 100_000))
	f.engine.RegisterSwapper("skewed", skewed)

	sink := f.wallet(t, "maker", collateralMint, 0)
	reserve := f.wallet(t, "maker", debtMint, 1_000_000)
	f.engine.RegisterSwapper("exact", &fixedSwapper{store: f.store, sink: sink, reserve: reserve, out: 101_250})
	f.engine.RegisterSwapper("above", &fixedSwapper{store: f.store, sink: sink, reserve: reserve, out: 101_251})

	begun, err := f.engine.BeginLiquidate(f.ctx, f.log, cauldron.Id, bob, alice, 100_000)
	require.NoError(t, err)
	require.Equal(t, uint64(101_250), begun.BorrowShare)
	cauldronShares := f.shares(t, debtMint, cauldron.Address())

	tests := []struct {
		name        string
		swapperId   string
		expectedErr error
	}{
		{name: "pool output below the borrow share", swapperId: "skewed", expectedErr: swapper.ErrSlippageExceeded},
		{name: "output equal to the borrow share", swapperId: "exact", expectedErr: core.ErrInvalidSwapper},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.LiquidateSwap(f.ctx, f.log, cauldron.Id, bob, alice, tt.swapperId)
			assert.ErrorIs(t, err, tt.expectedErr)

			reserveIn, reserveOut, err := skewed.Reserves(f.ctx, collateralMint)
			require.NoError(t, err)
			assert.Equal(t, uint64(10_000_000), reserveIn)
			assert.Equal(t, uint64(100_000), reserveOut)
			assert.Equal(t, uint64(0), f.tokens(t, sink))
			assert.Equal(t, uint64(1_000_000), f.tokens(t, reserve))

			assert.Equal(t, uint64(135_000), f.tokens(t, cauldron.CollateralTokenAccount))
			assert.Equal(t, uint64(0), f.tokens(t, cauldron.DebtTokenAccount))
			assert.Equal(t, cauldronShares, f.shares(t, debtMint, cauldron.Address()))

			account, err := f.engine.GetLiquidatorAccount(f.ctx, cauldron.Id, alice)
			require.NoError(t, err)
			assert.False(t, account.Swapped)
			assert.Equal(t, uint64(0), account.RealAmount)
			assert.Equal(t, begun.Timestamp, account.Timestamp)
			assert.Equal(t, bob, account.OriginLiquidator)
		})
	}

	account, err := f.engine.LiquidateSwap(f.ctx, f.log, cauldron.Id, bob, alice, "above")
	require.NoError(t, err)
	assert.True(t, account.Swapped)
	assert.Equal(t, uint64(101_251), account.RealAmount)

	bonus, err := f.engine.CompleteLiquidate(f.ctx, f.log, cauldron.Id, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bonus)
}

func TestSwapLiquidationOpensAfterWindow(t *testing.T) {
	f := newFixture(t)
	cauldron := f.openCauldron(t, 0)
	pool := swapper.NewRaydium(f.store, collateralMint, debtMint)
	require.NoError(t, pool.Init(f.ctx, 10_000_000, 10_000_000))
	f.engine.RegisterSwapper("raydium", pool)
	f.underwater(t, cauldron)

	_, err := f.engine.BeginLiquidate(f.ctx, f.log, cauldron.Id, bob, alice, 100_000)
	require.NoError(t, err)

	// the window is inclusive of its last second
	f.clk.Add(60 * time.Second)
	_, err = f.engine.LiquidateSwap(f.ctx, f.log, cauldron.Id, mallory, alice, "raydium")
	assert.ErrorIs(t, err, core.ErrTooSoon)

	f.clk.Add(time.Second)
	account, err := f.engine.LiquidateSwap(f.ctx, f.log, cauldron.Id, mallory, alice, "raydium")
	require.NoError(t, err)
	assert.Equal(t, mallory, account.OriginLiquidator)

	bonus, err := f.engine.CompleteLiquidate(f.ctx, f.log, cauldron.Id, mallory, alice)
	require.NoError(t, err)
	assert.Equal(t, bonus, f.shares(t, debtMint, mallory))
	assert.Equal(t, uint64(0), f.shares(t, debtMint, bob))
}
