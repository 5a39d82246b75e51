package core

import (
	"context"
	"strconv"
	"time"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Borrow lends amount of the debt asset to signer, paying the shares to
// holder to. The opening fee is added to the debt. Returns the debt part
// taken and the shares paid out.
func (e *Engine) Borrow(ctx context.Context, log Log, cauldronId uuid.UUID, signer, to string, amount uint64) (uint64, uint64, error) {
	var part, share uint64
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		if err := e.accrue(rec, cauldron, total, e.now()); err != nil {
			return err
		}
		user, err := FindOrCreateUserBalance(ctx, e.store, cauldronId, signer)
		if err != nil {
			return err
		}

		fee, err := utils.MulDivUint64(amount, cauldron.Constants.BorrowOpeningFee, cauldron.Constants.BorrowOpeningFeePrecision)
		if err != nil {
			return err
		}
		due, err := utils.AddUint64(amount, fee)
		if err != nil {
			return err
		}
		if part, err = total.Borrow.ToBase(due, true); err != nil {
			return err
		}
		if _, err := total.Borrow.AddElasticBase(due, part); err != nil {
			return err
		}
		if total.Borrow.Elastic.Gt(uint256.NewInt(cauldron.BorrowLimit.Total)) {
			return errors.Wrapf(ErrBorrowLimitReached, "total debt %s above %d", total.Borrow.Elastic.Dec(), cauldron.BorrowLimit.Total)
		}
		if err := cauldron.addFees(fee); err != nil {
			return err
		}
		if user.BorrowPart, err = utils.AddUint64(user.BorrowPart, part); err != nil {
			return err
		}
		if user.BorrowPart > cauldron.BorrowLimit.PerAddress {
			return errors.Wrapf(ErrBorrowLimitReached, "part %d above %d per address", user.BorrowPart, cauldron.BorrowLimit.PerAddress)
		}

		debt, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.DebtMint)
		if err != nil {
			return err
		}
		if share, err = debt.ToShare(amount, false); err != nil {
			return err
		}
		if err := e.pushShares(ctx, rec, cauldron, cauldron.DebtMint, to, share); err != nil {
			return err
		}

		if err := e.solvent(ctx, cauldron, total, user); err != nil {
			return err
		}
		if err := e.store.UpsertUserBalance(ctx, user); err != nil {
			return err
		}
		if err := e.saveCauldron(ctx, cauldron, total); err != nil {
			return err
		}

		rec.record(EventBorrow, cauldronId, cauldron.DebtMint).WithParties(signer, to).WithAmounts(amount, share).
			With("part", strconv.FormatUint(part, 10)).
			With("fee", strconv.FormatUint(fee, 10))
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	log.Debug().Msgf("cauldron %s: %s borrowed %d for part %d", cauldronId, signer, amount, part)
	return part, share, nil
}

// Repay pays back part of the debt of to out of signer's vault balance and
// returns the amount repaid.
func (e *Engine) Repay(ctx context.Context, log Log, cauldronId uuid.UUID, signer, to string, part uint64) (uint64, error) {
	var amount uint64
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		if err := e.accrue(rec, cauldron, total, e.now()); err != nil {
			return err
		}

		if _, amount, err = total.Borrow.SubBase(part, true); err != nil {
			return err
		}
		user, err := FindOrCreateUserBalance(ctx, e.store, cauldronId, to)
		if err != nil {
			return err
		}
		if user.BorrowPart, err = utils.SubUint64(user.BorrowPart, part); err != nil {
			return err
		}

		debt, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.DebtMint)
		if err != nil {
			return err
		}
		share, err := debt.ToShare(amount, true)
		if err != nil {
			return err
		}
		if err := e.pullShares(ctx, rec, cauldron, cauldron.DebtMint, signer, share); err != nil {
			return err
		}

		if err := e.store.UpsertUserBalance(ctx, user); err != nil {
			return err
		}
		if err := e.saveCauldron(ctx, cauldron, total); err != nil {
			return err
		}

		rec.record(EventRepay, cauldronId, cauldron.DebtMint).WithParties(signer, to).WithAmounts(amount, share).
			With("part", strconv.FormatUint(part, 10))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// AddCollateral credits share collateral shares to to. With skim the
// shares must already sit unaccounted in the cauldron's vault balance,
// otherwise they are pulled from signer.
func (e *Engine) AddCollateral(ctx context.Context, log Log, cauldronId uuid.UUID, signer, to string, share uint64, skim bool) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		user, err := FindOrCreateUserBalance(ctx, e.store, cauldronId, to)
		if err != nil {
			return err
		}
		if user.CollateralShare, err = utils.AddUint64(user.CollateralShare, share); err != nil {
			return err
		}
		old := total.CollateralShare
		if total.CollateralShare, err = utils.AddUint64(total.CollateralShare, share); err != nil {
			return err
		}

		from := signer
		if skim {
			held, err := e.cauldronVaultBalance(ctx, cauldron, cauldron.CollateralMint)
			if err != nil {
				return err
			}
			skimmable, err := utils.SubUint64(held, old)
			if err != nil {
				return err
			}
			if share > skimmable {
				return ErrSkimTooMuch
			}
			from = cauldron.Address()
		} else if err := e.pullShares(ctx, rec, cauldron, cauldron.CollateralMint, signer, share); err != nil {
			return err
		}

		if err := e.store.UpsertUserBalance(ctx, user); err != nil {
			return err
		}
		if err := e.store.UpsertCauldronTotal(ctx, total); err != nil {
			return err
		}
		rec.record(EventAddCollateral, cauldronId, cauldron.CollateralMint).WithParties(from, to).WithAmounts(0, share)
		return nil
	})
}

// RemoveCollateral sends share of signer's collateral to holder to. signer
// must stay solvent.
func (e *Engine) RemoveCollateral(ctx context.Context, log Log, cauldronId uuid.UUID, signer, to string, share uint64) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		if err := e.accrue(rec, cauldron, total, e.now()); err != nil {
			return err
		}
		user, err := FindOrCreateUserBalance(ctx, e.store, cauldronId, signer)
		if err != nil {
			return err
		}
		if user.CollateralShare, err = utils.SubUint64(user.CollateralShare, share); err != nil {
			return err
		}
		if total.CollateralShare, err = utils.SubUint64(total.CollateralShare, share); err != nil {
			return err
		}
		if err := e.pushShares(ctx, rec, cauldron, cauldron.CollateralMint, to, share); err != nil {
			return err
		}

		if err := e.solvent(ctx, cauldron, total, user); err != nil {
			return err
		}
		if err := e.store.UpsertUserBalance(ctx, user); err != nil {
			return err
		}
		if err := e.saveCauldron(ctx, cauldron, total); err != nil {
			return err
		}
		rec.record(EventRemoveCollateral, cauldronId, cauldron.CollateralMint).WithParties(signer, to).WithAmounts(0, share)
		return nil
	})
}

// WithdrawFees pays the accrued fees to the cauldron's fee receiver as
// debt asset shares.
func (e *Engine) WithdrawFees(ctx context.Context, log Log, cauldronId uuid.UUID) (uint64, error) {
	var share uint64
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		if err := e.accrue(rec, cauldron, total, e.now()); err != nil {
			return err
		}
		fees, err := utils.ToUint64(&cauldron.AccrueInfo.FeesEarned)
		if err != nil {
			return err
		}
		debt, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.DebtMint)
		if err != nil {
			return err
		}
		if share, err = debt.ToShare(fees, false); err != nil {
			return err
		}
		if err := e.pushShares(ctx, rec, cauldron, cauldron.DebtMint, cauldron.FeeTo, share); err != nil {
			return err
		}
		cauldron.AccrueInfo.FeesEarned.Clear()
		if err := e.saveCauldron(ctx, cauldron, total); err != nil {
			return err
		}

		rec.record(EventWithdrawFees, cauldronId, cauldron.DebtMint).WithParties(cauldron.Address(), cauldron.FeeTo).WithAmounts(fees, share)
		log.Info().Msgf("cauldron %s paid %d fees to %s", cauldronId, fees, cauldron.FeeTo)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return share, nil
}

// ReduceSupply withdraws up to amount of the debt asset the cauldron holds
// in the vault into the to token account.
func (e *Engine) ReduceSupply(ctx context.Context, log Log, cauldronId uuid.UUID, signer, to string, amount uint64) (*AmountShareOut, error) {
	out := &AmountShareOut{}
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, err := e.store.GetCauldronById(ctx, cauldronId)
		if err != nil {
			return errors.Wrapf(err, "cauldron %s", cauldronId)
		}
		if err := cauldron.CheckAuthority(signer); err != nil {
			return err
		}
		held, err := e.cauldronVaultBalance(ctx, cauldron, cauldron.DebtMint)
		if err != nil {
			return err
		}
		debt, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.DebtMint)
		if err != nil {
			return err
		}
		available, err := debt.ToAmount(held, false)
		if err != nil {
			return err
		}
		reduce := utils.MinUint64(amount, available)

		result, err := e.withdraw(ctx, rec, cauldron.VaultId, cauldron.DebtMint, cauldron.Address(), cauldron.Address(), to, reduce, 0)
		if err != nil {
			return err
		}
		*out = *result
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msgf("cauldron %s reduced supply by %d", cauldronId, out.AmountOut)
	return out, nil
}

// GetRepayShare is the debt asset share needed to repay part.
func (e *Engine) GetRepayShare(ctx context.Context, cauldronId uuid.UUID, part uint64) (uint64, error) {
	cauldron, total, err := e.loadCauldron(ctx, cauldronId)
	if err != nil {
		return 0, err
	}
	elastic, err := total.Borrow.ToElastic(part, true)
	if err != nil {
		return 0, err
	}
	debt, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.DebtMint)
	if err != nil {
		return 0, err
	}
	return debt.ToShare(elastic, true)
}

// GetRepayPart is the debt part amount repays.
func (e *Engine) GetRepayPart(ctx context.Context, cauldronId uuid.UUID, amount uint64) (uint64, error) {
	_, total, err := e.loadCauldron(ctx, cauldronId)
	if err != nil {
		return 0, err
	}
	return total.Borrow.ToBase(amount, false)
}

func (e *Engine) OraclePrice(ctx context.Context, cauldronId uuid.UUID) (*Price, error) {
	cauldron, err := e.store.GetCauldronById(ctx, cauldronId)
	if err != nil {
		return nil, errors.Wrapf(err, "cauldron %s", cauldronId)
	}
	return e.price(ctx, cauldron)
}

// IsValidPrice reports whether the oracle price lies within [min, max].
func (e *Engine) IsValidPrice(ctx context.Context, cauldronId uuid.UUID, min, max decimal.Decimal) (bool, error) {
	price, err := e.OraclePrice(ctx, cauldronId)
	if err != nil {
		return false, err
	}
	value := price.Decimal()
	return value.GreaterThanOrEqual(min) && value.LessThanOrEqual(max), nil
}

func (e *Engine) price(ctx context.Context, cauldron *Cauldron) (*Price, error) {
	oracle, err := e.oracle(cauldron.OracleId)
	if err != nil {
		return nil, err
	}
	price, err := oracle.GetPrice(ctx, time.Duration(cauldron.Constants.StaleAfter)*time.Second)
	if err != nil {
		return nil, err
	}
	if _, err := price.mantissa(); err != nil {
		return nil, err
	}
	return price, nil
}

func (c *Cauldron) addFees(amount uint64) error {
	fees, err := utils.CheckedAdd(&c.AccrueInfo.FeesEarned, uint256.NewInt(amount))
	if err != nil {
		return err
	}
	if err := utils.CheckUint128(fees); err != nil {
		return err
	}
	c.AccrueInfo.FeesEarned = *fees
	return nil
}
