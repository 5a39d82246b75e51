package main

import (
	"context"
	"fmt"
	"time"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/SmonkeyMonkey/abracadabra/config"
	"github.com/SmonkeyMonkey/abracadabra/metrics"
	"github.com/SmonkeyMonkey/abracadabra/oracle"
	"github.com/SmonkeyMonkey/abracadabra/reserve"
	"github.com/SmonkeyMonkey/abracadabra/store/memory"
	"github.com/SmonkeyMonkey/abracadabra/store/sqlite"
	"github.com/SmonkeyMonkey/abracadabra/strategy"
	"github.com/SmonkeyMonkey/abracadabra/swapper"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	collateralMint = "collateral"
	debtMint       = "debt"
	oracleId       = "feed"
	strategyId     = "mock-strategy"

	lender     = "lender"
	borrower   = "borrower"
	liquidator = "liquidator"
	yield      = "yield"
	arbitrager = "arbitrager"
)

const day = 24 * time.Hour

type simulation struct {
	log    core.Log
	cfg    *config.Config
	clk    *clock.Mock
	store  *memory.Store
	engine *core.Engine

	feed     *oracle.Feed
	strategy *strategy.MockStrategy
	pool     *swapper.Pool
	reserve  *reserve.Reserve
	events   *sqlite.EventStore
	registry *prometheus.Registry

	vault    *core.Vault
	cauldron *core.Cauldron
}

func simulate(ctx context.Context, log core.Log, cfg *config.Config) error {
	s := &simulation{
		log:      log,
		cfg:      cfg,
		clk:      clock.NewMock(),
		store:    memory.New(),
		registry: prometheus.NewRegistry(),
	}
	s.clk.Add(time.Now().Sub(s.clk.Now()))

	if err := s.setup(ctx); err != nil {
		return errors.Wrap(err, "setup")
	}
	defer s.events.Close()

	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"supply", s.supply},
		{"strategy", s.activateStrategy},
		{"borrow", s.borrow},
		{"days", s.runDays},
		{"liquidation", s.liquidate},
		{"flash loan", s.flashLoan},
		{"fees", s.withdrawFees},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.fn(ctx); err != nil {
			return errors.Wrap(err, step.name)
		}
	}
	return s.report(ctx)
}

func (s *simulation) setup(ctx context.Context) error {
	dsn := s.cfg.Events.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.Must(uuid.NewV4()))
	}
	events, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	s.events = events
	counted, err := metrics.NewEventStore(s.registry, events)
	if err != nil {
		return err
	}

	authority := s.cfg.Vault.Authority
	s.feed = oracle.NewFeed(oracle.WithClock(s.clk))
	s.feed.Publish(s.cfg.Oracle.Mantissa, s.cfg.Oracle.Scale)

	s.strategy = strategy.NewMockStrategy(s.store, strategyId, debtMint, authority)
	if err := s.strategy.Init(ctx); err != nil {
		return err
	}

	if s.cfg.Pool.Variant == "raydium" {
		s.pool = swapper.NewRaydium(s.store, collateralMint, debtMint)
	} else {
		s.pool = swapper.NewOrca(s.store, collateralMint, debtMint)
	}
	if err := s.pool.Init(ctx, s.cfg.Pool.CollateralReserve, s.cfg.Pool.DebtReserve); err != nil {
		return err
	}

	s.reserve = reserve.NewReserve(s.store, "reserve", debtMint, core.FeeSchedule{
		FlashLoanFeeWad:   s.cfg.Reserve.FlashLoanFeeWad,
		HostFeePercentage: s.cfg.Reserve.HostFeePercentage,
	})
	if err := s.reserve.Init(ctx, s.cfg.Reserve.Liquidity); err != nil {
		return err
	}

	s.engine = core.NewEngine(s.store,
		core.WithClock(s.clk),
		core.WithEventStore(counted),
		core.WithStrategy(s.strategy),
		core.WithSwapper(s.pool.Name(), s.pool),
		core.WithOracle(oracleId, s.feed),
	)

	vc := s.cfg.Vault
	if s.vault, err = s.engine.CreateVault(ctx, s.log, vc.Name, authority, vc.MinimumShareBalance, vc.MaxTargetPercentage); err != nil {
		return err
	}
	if err := s.engine.SetStrategyDelay(ctx, s.log, s.vault.Id, authority, vc.StrategyDelay); err != nil {
		return err
	}
	for _, mint := range []string{collateralMint, debtMint} {
		if _, err := s.engine.CreateTotal(ctx, s.log, s.vault.Id, authority, mint); err != nil {
			return err
		}
	}

	cc := s.cfg.Cauldron
	if s.cauldron, err = s.engine.CreateCauldron(ctx, s.log, s.vault.Id, cc.Name, authority, collateralMint, debtMint, oracleId, cc.Constants, cc.InterestPerSecond); err != nil {
		return err
	}
	if err := s.engine.ChangeBorrowLimit(ctx, s.log, s.cauldron.Id, authority, cc.BorrowLimitTotal, cc.BorrowLimitPerAddress); err != nil {
		return err
	}
	return s.engine.WhitelistMasterContract(ctx, s.log, s.vault.Id, authority, s.cauldron.Address(), true)
}

// wallet is the token account of owner for mint, funded with amount.
func (s *simulation) wallet(ctx context.Context, owner, mint string, amount uint64) (string, error) {
	address := owner + ":" + mint
	account, err := s.store.GetTokenAccount(ctx, address)
	if err != nil {
		account = core.NewTokenAccount(address, mint, owner)
	}
	account.Amount += amount
	return address, s.store.UpsertTokenAccount(ctx, account)
}

// supply deposits the lender's tokens into the vault on behalf of the
// cauldron, making them borrowable.
func (s *simulation) supply(ctx context.Context) error {
	from, err := s.wallet(ctx, lender, debtMint, s.cfg.Simulation.Deposit)
	if err != nil {
		return err
	}
	out, err := s.engine.Deposit(ctx, s.log, s.vault.Id, debtMint, from, lender, s.cauldron.Address(), s.cfg.Simulation.Deposit, 0)
	if err != nil {
		return err
	}
	s.log.Info().Msgf("lender supplied %d %s for %d shares", out.AmountOut, debtMint, out.ShareOut)
	return nil
}

func (s *simulation) activateStrategy(ctx context.Context) error {
	authority := s.cfg.Vault.Authority
	if err := s.engine.SetStrategy(ctx, s.log, s.vault.Id, debtMint, authority, strategyId); err != nil {
		return err
	}
	s.clk.Add(time.Duration(s.cfg.Vault.StrategyDelay) * time.Second)
	if err := s.engine.SetStrategy(ctx, s.log, s.vault.Id, debtMint, authority, strategyId); err != nil {
		return err
	}
	if err := s.engine.SetStrategyTargetPercentage(ctx, s.log, s.vault.Id, debtMint, authority, s.cfg.Vault.TargetPercentage); err != nil {
		return err
	}
	s.feed.Publish(s.cfg.Oracle.Mantissa, s.cfg.Oracle.Scale)
	return s.engine.Harvest(ctx, s.log, s.vault.Id, debtMint, true, 0)
}

func (s *simulation) borrow(ctx context.Context) error {
	amount := s.cfg.Simulation.Collateral
	from, err := s.wallet(ctx, borrower, collateralMint, amount)
	if err != nil {
		return err
	}
	out, err := s.engine.Deposit(ctx, s.log, s.vault.Id, collateralMint, from, borrower, borrower, amount, 0)
	if err != nil {
		return err
	}
	if err := s.engine.SetMasterContractApproval(ctx, s.log, s.vault.Id, borrower, s.cauldron.Address(), true); err != nil {
		return err
	}
	if err := s.engine.AddCollateral(ctx, s.log, s.cauldron.Id, borrower, borrower, out.ShareOut, false); err != nil {
		return err
	}
	part, share, err := s.engine.Borrow(ctx, s.log, s.cauldron.Id, borrower, borrower, s.cfg.Simulation.Borrow)
	if err != nil {
		return err
	}
	s.log.Info().Msgf("borrower took %d %s: part %d, %d shares", s.cfg.Simulation.Borrow, debtMint, part, share)
	return nil
}

// runDays advances the clock one day at a time, paying the strategy its
// daily yield and harvesting it.
func (s *simulation) runDays(ctx context.Context) error {
	authority := s.cfg.Vault.Authority
	for i := 1; i <= s.cfg.Simulation.Days; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.clk.Add(day)
		s.feed.Publish(s.cfg.Oracle.Mantissa, s.cfg.Oracle.Scale)

		if s.cfg.Simulation.StrategyYield > 0 {
			source, err := s.wallet(ctx, yield, debtMint, s.cfg.Simulation.StrategyYield)
			if err != nil {
				return err
			}
			if err := core.TransferTokens(ctx, s.store, source, s.strategy.PoolAccount(), s.cfg.Simulation.StrategyYield); err != nil {
				return err
			}
		}
		if err := s.engine.SafeHarvest(ctx, s.log, s.vault.Id, debtMint, authority, 0, true, 0, true); err != nil {
			return err
		}
		if err := s.engine.Accrue(ctx, s.log, s.cauldron.Id); err != nil {
			return err
		}

		// rates move at most once per update interval
		if i == 4 {
			cauldron, _, err := s.engine.GetCauldron(ctx, s.cauldron.Id)
			if err != nil {
				return err
			}
			rate := cauldron.AccrueInfo.InterestPerSecond * 3 / 2
			if err := s.engine.ChangeInterestRate(ctx, s.log, s.cauldron.Id, authority, rate); err != nil {
				return err
			}
		}
	}

	position, err := s.engine.GetUserBalance(ctx, s.cauldron.Id, borrower)
	if err != nil {
		return err
	}
	if part := position.BorrowPart / 10; part > 0 {
		amount, err := s.engine.Repay(ctx, s.log, s.cauldron.Id, borrower, borrower, part)
		if err != nil {
			return err
		}
		s.log.Info().Msgf("borrower repaid %d for part %d", amount, part)
	}
	return nil
}

// liquidate moves the oracle against the borrower, then runs the three
// phase liquidation of half its position through the AMM pool.
func (s *simulation) liquidate(ctx context.Context) error {
	s.feed.Publish(s.cfg.Simulation.CrashMantissa, s.cfg.Oracle.Scale)
	price, err := s.engine.OraclePrice(ctx, s.cauldron.Id)
	if err != nil {
		return err
	}
	s.log.Warn().Msgf("oracle moved to %s", price)

	position, err := s.engine.GetUserBalance(ctx, s.cauldron.Id, borrower)
	if err != nil {
		return err
	}
	account, err := s.engine.BeginLiquidate(ctx, s.log, s.cauldron.Id, liquidator, borrower, position.BorrowPart/2)
	if err != nil {
		if errors.Is(err, core.ErrUserIsSolvent) {
			s.log.Info().Msg("borrower is still solvent, nothing to liquidate")
			return nil
		}
		return err
	}
	if _, err := s.engine.LiquidateSwap(ctx, s.log, s.cauldron.Id, liquidator, borrower, s.pool.Name()); err != nil {
		return err
	}
	bonus, err := s.engine.CompleteLiquidate(ctx, s.log, s.cauldron.Id, liquidator, borrower)
	if err != nil {
		return err
	}
	s.log.Info().Msgf("liquidator seized %d %s and earned %d shares", account.CollateralAmount, collateralMint, bonus)
	return nil
}

// arbitrage borrows from the reserve and pays the loan back with fee out
// of its own wallet.
type arbitrage struct {
	store     core.TokenStore
	wallet    string
	liquidity string
}

func (a *arbitrage) Destination() string {
	return a.wallet
}

func (a *arbitrage) OnFlashLoan(ctx context.Context, amount, fee uint64) error {
	return core.TransferTokens(ctx, a.store, a.wallet, a.liquidity, amount+fee)
}

func (s *simulation) flashLoan(ctx context.Context) error {
	amount := s.cfg.Simulation.FlashLoan
	if amount == 0 {
		return nil
	}
	fee, _, err := s.reserve.FlashLoanFee(amount)
	if err != nil {
		return err
	}
	wallet, err := s.wallet(ctx, arbitrager, debtMint, fee)
	if err != nil {
		return err
	}
	receiver := &arbitrage{store: s.store, wallet: wallet, liquidity: s.reserve.LiquidityAccount()}
	return s.engine.FlashLoan(ctx, s.log, s.vault.Id, debtMint, s.reserve, receiver, amount)
}

func (s *simulation) withdrawFees(ctx context.Context) error {
	share, err := s.engine.WithdrawFees(ctx, s.log, s.cauldron.Id)
	if err != nil {
		return err
	}
	s.log.Info().Msgf("fees of %d shares paid to %s", share, s.cauldron.FeeTo)
	return nil
}

func (s *simulation) report(ctx context.Context) error {
	for _, mint := range []string{collateralMint, debtMint} {
		total, err := s.store.GetTotal(ctx, s.vault.Id, mint)
		if err != nil {
			return err
		}
		elastic := decimal.NewFromBigInt(total.Amount.Elastic.ToBig(), 0)
		base := decimal.NewFromBigInt(total.Amount.Base.ToBig(), 0)
		rate := decimal.Zero
		if !base.IsZero() {
			rate = elastic.Div(base)
		}
		s.log.Info().
			Str("mint", mint).
			Str("elastic", elastic.String()).
			Str("base", base.String()).
			Str("amountPerShare", rate.StringFixed(6)).
			Msg("vault total")
	}

	cauldron, borrow, err := s.engine.GetCauldron(ctx, s.cauldron.Id)
	if err != nil {
		return err
	}
	apr := cauldron.BorrowAPR()
	s.log.Info().
		Str("collateralShare", fmt.Sprint(borrow.CollateralShare)).
		Str("borrowElastic", borrow.Borrow.Elastic.Dec()).
		Str("borrowBase", borrow.Borrow.Base.Dec()).
		Str("apr", apr.StringFixed(6)).
		Str("apy", core.AprToApy(apr).StringFixed(6)).
		Msg("cauldron total")

	health, err := s.engine.PositionHealth(ctx, s.cauldron.Id, borrower)
	if err != nil {
		return err
	}
	s.log.Info().
		Str("collateral", health.CollateralAmount.String()).
		Str("debt", health.BorrowAmount.String()).
		Str("ltv", health.LTV().StringFixed(4)).
		Str("liquidationPrice", health.LiquidationPrice.StringFixed(8)).
		Bool("solvent", health.Solvent).
		Msg("borrower position")

	events, err := s.events.ListEvents(ctx, s.cauldron.Id, core.EventLiquidateComplete, 1)
	if err != nil {
		return err
	}
	for _, event := range events {
		s.log.Info().Str("to", event.To).Str("amount", event.Amount.String()).Str("bonus", event.Share.String()).Msg("last liquidation")
	}

	families, err := s.registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				s.log.Debug().Str("metric", family.GetName()).Str(label.GetName(), label.GetValue()).Float64("value", m.GetCounter().GetValue()).Msg("")
			}
		}
	}
	return nil
}
