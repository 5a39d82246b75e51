package core

import (
	"context"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
)

// AccrueInterest charges interest on total.Borrow for the seconds elapsed
// since the last accrual and returns the interest added. Calling it twice
// at the same now changes nothing the second time.
func (c *Cauldron) AccrueInterest(total *CauldronTotal, now int64) (*uint256.Int, error) {
	elapsed := now - c.AccrueInfo.LastAccrued
	if elapsed <= 0 {
		return new(uint256.Int), nil
	}
	c.AccrueInfo.LastAccrued = now

	if total.Borrow.Base.IsZero() {
		return new(uint256.Int), nil
	}

	precision, err := utils.Pow10(INTEREST_PRECISION_EXP)
	if err != nil {
		return nil, err
	}
	extra, err := utils.CheckedMul(&total.Borrow.Elastic, uint256.NewInt(c.AccrueInfo.InterestPerSecond))
	if err != nil {
		return nil, err
	}
	if extra, err = utils.CheckedMul(extra, uint256.NewInt(uint64(elapsed))); err != nil {
		return nil, err
	}
	if extra, err = utils.CheckedDiv(extra, precision); err != nil {
		return nil, err
	}

	fees, err := utils.CheckedAdd(&c.AccrueInfo.FeesEarned, extra)
	if err != nil {
		return nil, err
	}
	if err := utils.CheckUint128(fees); err != nil {
		return nil, err
	}
	if err := total.Borrow.AddElasticOnly(extra); err != nil {
		return nil, err
	}
	c.AccrueInfo.FeesEarned = *fees
	return extra, nil
}

// IsSolvent reports whether the collateral of user, valued at price and
// discounted by the collaterization rate, covers its debt. Interest must
// already be accrued. The boundary is inclusive.
func (c *Cauldron) IsSolvent(user *UserBalance, total *CauldronTotal, collateral *Total, price *Price) (bool, error) {
	if user.BorrowPart == 0 {
		return true, nil
	}
	if user.CollateralShare == 0 {
		return false, nil
	}

	mantissa, err := price.mantissa()
	if err != nil {
		return false, err
	}
	scale, err := price.precision()
	if err != nil {
		return false, err
	}

	// share * (10^scale / precision) * rate
	factor, err := utils.CheckedDiv(scale, uint256.NewInt(c.Constants.CollaterizationRatePrecision))
	if err != nil {
		return false, err
	}
	share, err := utils.CheckedMul(uint256.NewInt(user.CollateralShare), factor)
	if err != nil {
		return false, err
	}
	if share, err = utils.CheckedMul(share, uint256.NewInt(c.Constants.CollaterizationRate)); err != nil {
		return false, err
	}
	shareValue, err := utils.ToUint64(share)
	if err != nil {
		return false, err
	}
	amount, err := collateral.ToAmount(shareValue, false)
	if err != nil {
		return false, err
	}

	borrow, err := utils.CheckedMul(uint256.NewInt(user.BorrowPart), &total.Borrow.Elastic)
	if err != nil {
		return false, err
	}
	if borrow, err = utils.CheckedMul(borrow, mantissa); err != nil {
		return false, err
	}
	if borrow, err = utils.CheckedDiv(borrow, &total.Borrow.Base); err != nil {
		return false, err
	}

	return !uint256.NewInt(amount).Lt(borrow), nil
}

// Accrue settles the interest of cauldronId up to now.
func (e *Engine) Accrue(ctx context.Context, log Log, cauldronId uuid.UUID) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		cauldron, total, err := e.loadCauldron(ctx, cauldronId)
		if err != nil {
			return err
		}
		if err := e.accrue(rec, cauldron, total, e.now()); err != nil {
			return err
		}
		return e.saveCauldron(ctx, cauldron, total)
	})
}

func (e *Engine) accrue(rec *recorder, cauldron *Cauldron, total *CauldronTotal, now int64) error {
	extra, err := cauldron.AccrueInterest(total, now)
	if err != nil {
		return err
	}
	if !extra.IsZero() {
		rec.record(EventAccrue, cauldron.Id, cauldron.DebtMint).With("extra", extra.Dec())
	}
	return nil
}

// solvent fails with ErrUserInsolvent unless user is solvent at the
// current oracle price.
func (e *Engine) solvent(ctx context.Context, cauldron *Cauldron, total *CauldronTotal, user *UserBalance) error {
	price, err := e.price(ctx, cauldron)
	if err != nil {
		return err
	}
	collateral, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.CollateralMint)
	if err != nil {
		return err
	}
	ok, err := cauldron.IsSolvent(user, total, collateral, price)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserInsolvent
	}
	return nil
}
