package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// CreateCauldron opens a lending market on vault for collateralMint and
// debtMint. Both assets must already be registered with the vault.
func (e *Engine) CreateCauldron(ctx context.Context, log Log, vaultId uuid.UUID, name, authority, collateralMint, debtMint, oracleId string, constants CauldronConstants, interestPerSecond uint64) (*Cauldron, error) {
	if authority == "" {
		return nil, ErrEmptyAuthorityAddress
	}
	if err := constants.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.oracle(oracleId); err != nil {
		return nil, err
	}

	cauldron := NewCauldron(e.clk, vaultId, name, authority, collateralMint, debtMint, oracleId, constants, interestPerSecond)
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		if _, err := e.loadVault(ctx, vaultId); err != nil {
			return err
		}
		if _, err := e.loadTotal(ctx, vaultId, collateralMint); err != nil {
			return err
		}
		if _, err := e.loadTotal(ctx, vaultId, debtMint); err != nil {
			return err
		}
		if _, err := e.store.GetCauldronById(ctx, cauldron.Id); err == nil {
			return errors.Wrapf(ErrAssetExists, "cauldron %s", cauldron.Id)
		} else if !isNotFound(err) {
			return err
		}

		if err := e.store.UpsertTokenAccount(ctx, NewTokenAccount(cauldron.CollateralTokenAccount, collateralMint, cauldron.Address())); err != nil {
			return err
		}
		if err := e.store.UpsertTokenAccount(ctx, NewTokenAccount(cauldron.DebtTokenAccount, debtMint, cauldron.Address())); err != nil {
			return err
		}
		if err := e.store.CreateCauldron(ctx, cauldron); err != nil {
			return err
		}
		return e.store.UpsertCauldronTotal(ctx, NewCauldronTotal(cauldron.Id))
	})
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("cauldron %s created on vault %s: %s against %s", cauldron.Id, vaultId, debtMint, collateralMint)
	return cauldron, nil
}

func (c CauldronConstants) Validate() error {
	switch {
	case c.CollaterizationRatePrecision == 0:
		return errors.New("collaterization rate precision is zero")
	case c.LiquidationMultiplierPrecision == 0:
		return errors.New("liquidation multiplier precision is zero")
	case c.DistributionPrecision == 0:
		return errors.New("distribution precision is zero")
	case c.BorrowOpeningFeePrecision == 0:
		return errors.New("borrow opening fee precision is zero")
	case c.LiquidationMultiplier < c.LiquidationMultiplierPrecision:
		return errors.Errorf("liquidation multiplier %d below its precision %d", c.LiquidationMultiplier, c.LiquidationMultiplierPrecision)
	case c.StaleAfter <= 0:
		return errors.Errorf("invalid stale after %d", c.StaleAfter)
	case c.CompleteLiquidationDuration < 0:
		return errors.Errorf("invalid complete liquidation duration %d", c.CompleteLiquidationDuration)
	}
	return nil
}

func (e *Engine) SetFeeTo(ctx context.Context, log Log, cauldronId uuid.UUID, signer, feeTo string) error {
	return e.updateCauldron(ctx, log, cauldronId, signer, func(cauldron *Cauldron) error {
		cauldron.FeeTo = feeTo
		return nil
	})
}

func (e *Engine) ChangeBorrowLimit(ctx context.Context, log Log, cauldronId uuid.UUID, signer string, total, perAddress uint64) error {
	return e.updateCauldron(ctx, log, cauldronId, signer, func(cauldron *Cauldron) error {
		cauldron.BorrowLimit = BorrowCap{Total: total, PerAddress: perAddress}
		return nil
	})
}

func (e *Engine) UpdateOracle(ctx context.Context, log Log, cauldronId uuid.UUID, signer, oracleId string) error {
	if _, err := e.oracle(oracleId); err != nil {
		return err
	}
	return e.updateCauldron(ctx, log, cauldronId, signer, func(cauldron *Cauldron) error {
		cauldron.OracleId = oracleId
		return nil
	})
}

// ChangeInterestRate settles interest at the old rate, then switches to
// rate. A rate may grow by less than 75% per change unless it stays within
// the one percent rate, and changes are at least three days apart.
func (e *Engine) ChangeInterestRate(ctx context.Context, log Log, cauldronId uuid.UUID, signer string, rate uint64) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		if err := cauldron.CheckAuthority(signer); err != nil {
			return err
		}
		now := e.now()

		old := cauldron.AccrueInfo.InterestPerSecond
		if !validInterestRate(old, rate, cauldron.Constants.OnePercentRate) {
			return errors.Wrapf(ErrNotValidInterestRate, "from %d to %d", old, rate)
		}
		if cauldron.LastInterestUpdate+INTEREST_RATE_UPDATE_INTERVAL >= now {
			return ErrTooSoonToUpdateInterestRate
		}

		if err := e.accrue(rec, cauldron, total, now); err != nil {
			return err
		}
		cauldron.AccrueInfo.InterestPerSecond = rate
		cauldron.LastInterestUpdate = now
		if err := e.saveCauldron(ctx, cauldron, total); err != nil {
			return err
		}

		log.Info().Msgf("cauldron %s interest per second %d -> %d", cauldronId, old, rate)
		return nil
	})
}

func validInterestRate(old, rate, onePercentRate uint64) bool {
	if rate <= onePercentRate {
		return true
	}
	limit := new(uint256.Int).Mul(uint256.NewInt(old), uint256.NewInt(INTEREST_RATE_MAX_GROWTH_NUMERATOR))
	limit.Div(limit, uint256.NewInt(INTEREST_RATE_MAX_GROWTH_DENOMINATOR))
	limit.Add(limit, uint256.NewInt(old))
	return uint256.NewInt(rate).Lt(limit)
}

func (e *Engine) updateCauldron(ctx context.Context, log Log, cauldronId uuid.UUID, signer string, update func(cauldron *Cauldron) error) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, err := e.store.GetCauldronById(ctx, cauldronId)
		if err != nil {
			return errors.Wrapf(err, "cauldron %s", cauldronId)
		}
		if err := cauldron.CheckAuthority(signer); err != nil {
			return err
		}
		if err := update(cauldron); err != nil {
			return err
		}
		cauldron.UpdatedAt = e.now()
		return e.store.UpsertCauldron(ctx, cauldron)
	})
}

func (e *Engine) GetCauldron(ctx context.Context, cauldronId uuid.UUID) (*Cauldron, *CauldronTotal, error) {
	return e.loadCauldron(ctx, cauldronId)
}

func (e *Engine) GetUserBalance(ctx context.Context, cauldronId uuid.UUID, user string) (*UserBalance, error) {
	return FindOrCreateUserBalance(ctx, e.store, cauldronId, user)
}

func (e *Engine) loadCauldron(ctx context.Context, cauldronId uuid.UUID) (*Cauldron, *CauldronTotal, error) {
	cauldron, err := e.store.GetCauldronById(ctx, cauldronId)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cauldron %s", cauldronId)
	}
	total, err := e.store.GetCauldronTotal(ctx, cauldronId)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cauldron %s total", cauldronId)
	}
	return cauldron, total, nil
}

func (e *Engine) saveCauldron(ctx context.Context, cauldron *Cauldron, total *CauldronTotal) error {
	cauldron.UpdatedAt = e.now()
	if err := e.store.UpsertCauldron(ctx, cauldron); err != nil {
		return err
	}
	return e.store.UpsertCauldronTotal(ctx, total)
}

// cauldronVaultBalance is the share balance the cauldron holds in its vault.
func (e *Engine) cauldronVaultBalance(ctx context.Context, cauldron *Cauldron, mint string) (uint64, error) {
	return e.BalanceOf(ctx, cauldron.VaultId, mint, cauldron.Address())
}

// pullShares moves share of mint from owner to the cauldron, acting as
// the master contract owner approved.
func (e *Engine) pullShares(ctx context.Context, rec *recorder, cauldron *Cauldron, mint, owner string, share uint64) error {
	vault, err := e.loadVault(ctx, cauldron.VaultId)
	if err != nil {
		return err
	}
	if err := allowed(ctx, e.store, vault, owner, cauldron.Address()); err != nil {
		return err
	}
	return e.transfer(ctx, rec, cauldron.VaultId, mint, owner, cauldron.Address(), share)
}

// pushShares moves share of mint from the cauldron to holder to.
func (e *Engine) pushShares(ctx context.Context, rec *recorder, cauldron *Cauldron, mint, to string, share uint64) error {
	return e.transfer(ctx, rec, cauldron.VaultId, mint, cauldron.Address(), to, share)
}
