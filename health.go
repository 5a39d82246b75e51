package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PositionHealth is a decimal view of one cauldron position, valued as of
// the last accrual. Values are in collateral units.
type PositionHealth struct {
	CollateralAmount decimal.Decimal `json:"collateralAmount"`
	BorrowAmount     decimal.Decimal `json:"borrowAmount"`
	// collateral weighted by the collaterization rate
	CollateralValue decimal.Decimal `json:"collateralValue"`
	DebtValue       decimal.Decimal `json:"debtValue"`
	// oracle price at which the position stops being solvent
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	Solvent          bool            `json:"solvent"`
}

func (e *Engine) PositionHealth(ctx context.Context, cauldronId uuid.UUID, user string) (*PositionHealth, error) {
	cauldron, total, err := e.loadCauldron(ctx, cauldronId)
	if err != nil {
		return nil, err
	}
	position, err := FindOrCreateUserBalance(ctx, e.store, cauldronId, user)
	if err != nil {
		return nil, err
	}
	collateral, err := e.loadTotal(ctx, cauldron.VaultId, cauldron.CollateralMint)
	if err != nil {
		return nil, err
	}
	price, err := e.price(ctx, cauldron)
	if err != nil {
		return nil, err
	}

	collateralAmount, err := collateral.ToAmount(position.CollateralShare, false)
	if err != nil {
		return nil, err
	}
	borrowAmount, err := total.Borrow.ToElastic(position.BorrowPart, true)
	if err != nil {
		return nil, err
	}
	solvent, err := cauldron.IsSolvent(position, total, collateral, price)
	if err != nil {
		return nil, err
	}

	h := &PositionHealth{
		CollateralAmount: decimalFromUint64(collateralAmount),
		BorrowAmount:     decimalFromUint64(borrowAmount),
		LiquidationPrice: decimal.Zero,
		Solvent:          solvent,
	}
	weight := decimalFromUint64(cauldron.Constants.CollaterizationRate).
		Div(decimalFromUint64(cauldron.Constants.CollaterizationRatePrecision))
	if h.CollateralValue, err = CalcValue(h.CollateralAmount, ONE, &weight); err != nil {
		return nil, err
	}
	if h.DebtValue, err = CalcValue(h.BorrowAmount, price.Decimal(), nil); err != nil {
		return nil, err
	}
	if !h.BorrowAmount.IsZero() {
		if h.LiquidationPrice, err = CalcAmount(h.CollateralValue, h.BorrowAmount); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// LTV is the debt value over the unweighted collateral amount.
func (h *PositionHealth) LTV() decimal.Decimal {
	if h.CollateralAmount.IsZero() {
		return decimal.Zero
	}
	return h.DebtValue.Div(h.CollateralAmount)
}

func CalcValue(amount decimal.Decimal, price decimal.Decimal, weight *decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	if price.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrInvalidPrice, "price %s", price)
	}

	weighted := amount
	if weight != nil {
		weighted = amount.Mul(*weight)
	}
	return weighted.Mul(price), nil
}

func CalcAmount(value decimal.Decimal, price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsZero() {
		return decimal.Zero, errors.New("price is zero")
	}
	return value.Div(price), nil
}

// BorrowAPR is the simple annual rate charged at the current interest per
// second.
func (c *Cauldron) BorrowAPR() decimal.Decimal {
	return decimalFromUint64(c.AccrueInfo.InterestPerSecond).
		Mul(decimal.NewFromInt(SECONDS_PER_YEAR)).
		Shift(-INTEREST_PRECISION_EXP)
}

// AprToApy compounds apr hourly:
//
//	(1 + apr / HOURS_PER_YEAR) ^ HOURS_PER_YEAR - 1
func AprToApy(apr decimal.Decimal) decimal.Decimal {
	hoursPerYear := decimal.NewFromInt(HOURS_PER_YEAR)
	return ONE.Add(apr.Div(hoursPerYear)).Pow(hoursPerYear).Sub(ONE).Round(8)
}
