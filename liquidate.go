package core

import (
	"context"
	"strconv"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Liquidation is what a liquidation seizes from one position.
type Liquidation struct {
	BorrowPart      uint64 `json:"borrowPart"`
	BorrowAmount    uint64 `json:"borrowAmount"`
	BorrowShare     uint64 `json:"borrowShare"`
	CollateralShare uint64 `json:"collateralShare"`
}

// Liquidation computes the seizure of up to maxBorrowPart of an insolvent
// user position. user and total are updated in place; borrow amount and
// fees include the distribution cut. debt is only used to convert the
// borrow amount into shares.
func (c *Cauldron) Liquidation(user *UserBalance, total *CauldronTotal, collateral, debt *Total, price *Price, maxBorrowPart uint64) (*Liquidation, error) {
	solvent, err := c.IsSolvent(user, total, collateral, price)
	if err != nil {
		return nil, err
	}

	l := &Liquidation{}
	if !solvent {
		l.BorrowPart = utils.MinUint64(maxBorrowPart, user.BorrowPart)
		user.BorrowPart -= l.BorrowPart

		if l.BorrowAmount, err = total.Borrow.ToElastic(l.BorrowPart, false); err != nil {
			return nil, err
		}
		elastic, err := c.seizedCollateral(l.BorrowAmount, price)
		if err != nil {
			return nil, err
		}
		if l.CollateralShare, err = collateral.ToShare(elastic, false); err != nil {
			return nil, err
		}
		if user.CollateralShare, err = utils.SubUint64(user.CollateralShare, l.CollateralShare); err != nil {
			return nil, err
		}
	}
	if l.BorrowAmount == 0 {
		return nil, ErrUserIsSolvent
	}

	if _, err := total.Borrow.SubElasticBase(l.BorrowAmount, l.BorrowPart); err != nil {
		return nil, err
	}
	if total.CollateralShare, err = utils.SubUint64(total.CollateralShare, l.CollateralShare); err != nil {
		return nil, err
	}

	distribution, err := c.distribution(l.BorrowAmount)
	if err != nil {
		return nil, err
	}
	if l.BorrowAmount, err = utils.AddUint64(l.BorrowAmount, distribution); err != nil {
		return nil, err
	}
	if err := c.addFees(distribution); err != nil {
		return nil, err
	}

	if l.BorrowShare, err = debt.ToShare(l.BorrowAmount, true); err != nil {
		return nil, err
	}
	return l, nil
}

// seizedCollateral is borrowAmount * multiplier * mantissa / (precision * 10^scale).
func (c *Cauldron) seizedCollateral(borrowAmount uint64, price *Price) (uint64, error) {
	mantissa, err := price.mantissa()
	if err != nil {
		return 0, err
	}
	scale, err := price.precision()
	if err != nil {
		return 0, err
	}
	numerator, err := utils.CheckedMul(uint256.NewInt(borrowAmount), uint256.NewInt(c.Constants.LiquidationMultiplier))
	if err != nil {
		return 0, err
	}
	if numerator, err = utils.CheckedMul(numerator, mantissa); err != nil {
		return 0, err
	}
	denominator, err := utils.CheckedMul(uint256.NewInt(c.Constants.LiquidationMultiplierPrecision), scale)
	if err != nil {
		return 0, err
	}
	elastic, err := utils.CheckedDiv(numerator, denominator)
	if err != nil {
		return 0, err
	}
	return utils.ToUint64(elastic)
}

// distribution is the protocol cut of the liquidation bonus:
// (borrowAmount * multiplier / precision - borrowAmount) * part / precision.
func (c *Cauldron) distribution(borrowAmount uint64) (uint64, error) {
	bonus, err := utils.MulDiv(uint256.NewInt(borrowAmount), uint256.NewInt(c.Constants.LiquidationMultiplier), uint256.NewInt(c.Constants.LiquidationMultiplierPrecision))
	if err != nil {
		return 0, err
	}
	if bonus, err = utils.CheckedSub(bonus, uint256.NewInt(borrowAmount)); err != nil {
		return 0, err
	}
	cut, err := utils.MulDiv(bonus, uint256.NewInt(c.Constants.DistributionPart), uint256.NewInt(c.Constants.DistributionPrecision))
	if err != nil {
		return 0, err
	}
	return utils.ToUint64(cut)
}

func (e *Engine) liquidate(ctx context.Context, log Log, cauldron *Cauldron, total *CauldronTotal, user string, maxBorrowPart uint64) (*Liquidation, error) {
	price, err := e.price(ctx, cauldron)
	if err != nil {
		return nil, err
	}
	position, err := FindOrCreateUserBalance(ctx, e.store, cauldron.Id, user)
	if err != nil {
		return nil, err
	}
	collateral, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.CollateralMint)
	if err != nil {
		return nil, err
	}
	debt, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.DebtMint)
	if err != nil {
		return nil, err
	}

	l, err := cauldron.Liquidation(position, total, collateral, debt, price, maxBorrowPart)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpsertUserBalance(ctx, position); err != nil {
		return nil, err
	}
	if err := e.saveCauldron(ctx, cauldron, total); err != nil {
		return nil, err
	}

	log.Info().
		Str("cauldron", cauldron.Id.String()).
		Str("user", user).
		Uint64("part", l.BorrowPart).
		Uint64("borrowAmount", l.BorrowAmount).
		Uint64("collateralShare", l.CollateralShare).
		Msg("position liquidated")
	return l, nil
}

// Liquidate closes up to maxBorrowPart of an insolvent position of user
// in one step. signer repays the debt out of its vault balance and the
// seized collateral shares go to holder to.
func (e *Engine) Liquidate(ctx context.Context, log Log, cauldronId uuid.UUID, signer, user string, maxBorrowPart uint64, to string) (*Liquidation, error) {
	var liquidation *Liquidation
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		if err := e.accrue(rec, cauldron, total, e.now()); err != nil {
			return err
		}
		if liquidation, err = e.liquidate(ctx, log, cauldron, total, user, maxBorrowPart); err != nil {
			return err
		}
		if err := e.pushShares(ctx, rec, cauldron, cauldron.CollateralMint, to, liquidation.CollateralShare); err != nil {
			return err
		}
		if err := e.pullShares(ctx, rec, cauldron, cauldron.DebtMint, signer, liquidation.BorrowShare); err != nil {
			return err
		}

		rec.record(EventLiquidate, cauldronId, cauldron.CollateralMint).WithParties(user, to).
			WithAmounts(liquidation.BorrowAmount, liquidation.CollateralShare).
			With("liquidator", signer).
			With("part", strconv.FormatUint(liquidation.BorrowPart, 10)).
			With("borrowShare", strconv.FormatUint(liquidation.BorrowShare, 10))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return liquidation, nil
}

// BeginLiquidate seizes up to maxBorrowPart of user's position, withdraws
// the collateral into the cauldron's collateral token account and opens a
// swap liquidation signer holds exclusively for the configured duration.
func (e *Engine) BeginLiquidate(ctx context.Context, log Log, cauldronId uuid.UUID, signer, user string, maxBorrowPart uint64) (*LiquidatorAccount, error) {
	var account *LiquidatorAccount
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		if _, err := e.store.GetLiquidatorAccount(ctx, cauldronId, user); err == nil {
			return errors.Wrapf(ErrLiquidationInProgress, "user %s", user)
		} else if !isNotFound(err) {
			return err
		}

		now := e.now()
		if err := e.accrue(rec, cauldron, total, now); err != nil {
			return err
		}
		liquidation, err := e.liquidate(ctx, log, cauldron, total, user, maxBorrowPart)
		if err != nil {
			return err
		}
		out, err := e.withdraw(ctx, rec, cauldron.VaultId, cauldron.CollateralMint, cauldron.Address(), cauldron.Address(), cauldron.CollateralTokenAccount, 0, liquidation.CollateralShare)
		if err != nil {
			return err
		}

		account = &LiquidatorAccount{
			CauldronId:       cauldronId,
			User:             user,
			OriginLiquidator: signer,
			CollateralAmount: out.AmountOut,
			BorrowAmount:     liquidation.BorrowAmount,
			BorrowShare:      liquidation.BorrowShare,
			Timestamp:        now + cauldron.Constants.CompleteLiquidationDuration,
		}
		if err := e.store.UpsertLiquidatorAccount(ctx, account); err != nil {
			return err
		}

		rec.record(EventLiquidateBegin, cauldronId, cauldron.CollateralMint).WithParties(user, signer).
			WithAmounts(out.AmountOut, liquidation.CollateralShare).
			With("borrowAmount", strconv.FormatUint(liquidation.BorrowAmount, 10)).
			With("borrowShare", strconv.FormatUint(liquidation.BorrowShare, 10))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// LiquidateSwap swaps the seized collateral of user's liquidation into the
// debt asset through swapperId. The amount received is measured on the
// cauldron's debt token account and must cover the borrow share.
func (e *Engine) LiquidateSwap(ctx context.Context, log Log, cauldronId uuid.UUID, signer, user, swapperId string) (*LiquidatorAccount, error) {
	var account *LiquidatorAccount
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, err := e.store.GetCauldronById(ctx, cauldronId)
		if err != nil {
			return errors.Wrapf(err, "cauldron %s", cauldronId)
		}
		if account, err = e.loadLiquidatorAccount(ctx, cauldronId, user); err != nil {
			return err
		}
		now := e.now()
		if account.exclusive(signer, now) {
			return ErrTooSoon
		}
		if account.Swapped {
			return ErrSwapAlreadyCompleted
		}
		swapper, err := e.swapper(swapperId)
		if err != nil {
			return err
		}

		before, err := TokenAmount(ctx, e.store, cauldron.DebtTokenAccount)
		if err != nil {
			return err
		}
		if err := swapper.Swap(ctx, cauldron.CollateralTokenAccount, cauldron.DebtTokenAccount, account.CollateralAmount, account.BorrowShare); err != nil {
			return err
		}
		after, err := TokenAmount(ctx, e.store, cauldron.DebtTokenAccount)
		if err != nil {
			return err
		}
		realAmount, err := utils.SubUint64(after, before)
		if err != nil {
			return err
		}
		if realAmount <= account.BorrowShare {
			return errors.Wrapf(ErrInvalidSwapper, "swap returned %d, need %d", realAmount, account.BorrowShare)
		}

		account.OriginLiquidator = signer
		account.Timestamp += cauldron.Constants.CompleteLiquidationDuration
		account.RealAmount = realAmount
		account.Swapped = true
		if err := e.store.UpsertLiquidatorAccount(ctx, account); err != nil {
			return err
		}

		rec.record(EventLiquidateSwap, cauldronId, cauldron.DebtMint).WithParties(cauldron.CollateralTokenAccount, cauldron.DebtTokenAccount).
			WithAmounts(realAmount, 0).
			With("swapper", swapperId).
			With("collateralAmount", strconv.FormatUint(account.CollateralAmount, 10))
		log.Info().Msgf("liquidation of %s swapped %d collateral for %d", user, account.CollateralAmount, realAmount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CompleteLiquidate deposits the swapped debt asset back into the vault
// for the cauldron, pays the liquidator the shares above the borrow amount
// and closes the liquidation. Returns the bonus shares paid.
func (e *Engine) CompleteLiquidate(ctx context.Context, log Log, cauldronId uuid.UUID, signer, user string) (uint64, error) {
	var bonus uint64
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, err := e.store.GetCauldronById(ctx, cauldronId)
		if err != nil {
			return errors.Wrapf(err, "cauldron %s", cauldronId)
		}
		account, err := e.loadLiquidatorAccount(ctx, cauldronId, user)
		if err != nil {
			return err
		}
		if account.exclusive(signer, e.now()) {
			return ErrTooSoon
		}
		if !account.Swapped {
			return ErrSwapNotCompleted
		}

		out, err := e.deposit(ctx, rec, cauldron.VaultId, cauldron.DebtMint, cauldron.DebtTokenAccount, cauldron.Address(), cauldron.Address(), account.RealAmount, 0)
		if err != nil {
			return err
		}
		debt, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.DebtMint)
		if err != nil {
			return err
		}
		borrowShare, err := debt.ToShare(account.BorrowAmount, true)
		if err != nil {
			return err
		}
		if bonus, err = utils.SubUint64(out.ShareOut, borrowShare); err != nil {
			return errors.Wrapf(err, "swap proceeds %d below borrow share %d", out.ShareOut, borrowShare)
		}
		if bonus > 0 {
			if err := e.pushShares(ctx, rec, cauldron, cauldron.DebtMint, signer, bonus); err != nil {
				return err
			}
		}
		if err := e.store.DeleteLiquidatorAccount(ctx, cauldronId, user); err != nil {
			return err
		}

		rec.record(EventLiquidateComplete, cauldronId, cauldron.DebtMint).WithParties(cauldron.Address(), signer).
			WithAmounts(account.RealAmount, bonus).
			With("user", user)
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Msgf("liquidation of %s completed, bonus %d shares to %s", user, bonus, signer)
	return bonus, nil
}

func (e *Engine) GetLiquidatorAccount(ctx context.Context, cauldronId uuid.UUID, user string) (*LiquidatorAccount, error) {
	return e.loadLiquidatorAccount(ctx, cauldronId, user)
}

func (e *Engine) loadLiquidatorAccount(ctx context.Context, cauldronId uuid.UUID, user string) (*LiquidatorAccount, error) {
	account, err := e.store.GetLiquidatorAccount(ctx, cauldronId, user)
	if err != nil {
		return nil, errors.Wrapf(err, "liquidator account %s", user)
	}
	return account, nil
}
