package core

import (
	"context"
	"math/big"
	"time"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PriceOracle reports the price of one debt unit in collateral units.
// GetPrice fails with ErrStalePrice once the latest round is staleAfter
// old, and with ErrInvalidPrice for a negative mantissa.
type PriceOracle interface {
	GetPrice(ctx context.Context, staleAfter time.Duration) (*Price, error)
}

// Price is mantissa * 10^-scale.
type Price struct {
	Mantissa *big.Int `json:"mantissa"`
	Scale    uint32   `json:"scale"`
}

func NewPrice(mantissa int64, scale uint32) *Price {
	return &Price{Mantissa: big.NewInt(mantissa), Scale: scale}
}

func (p *Price) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(p.Mantissa, -int32(p.Scale))
}

func (p *Price) String() string {
	return p.Decimal().String()
}

// mantissa returns the mantissa as a 256-bit unsigned integer.
func (p *Price) mantissa() (*uint256.Int, error) {
	if p.Mantissa == nil || p.Mantissa.Sign() < 0 {
		return nil, ErrInvalidPrice
	}
	m, overflow := uint256.FromBig(p.Mantissa)
	if overflow {
		return nil, ErrInvalidPrice
	}
	return m, nil
}

// precision returns 10^scale.
func (p *Price) precision() (*uint256.Int, error) {
	return utils.Pow10(p.Scale)
}

func (e *Engine) oracle(id string) (PriceOracle, error) {
	oracle, ok := e.oracles[id]
	if !ok {
		return nil, errors.Wrapf(ErrOracleNotFound, "oracle %s", id)
	}
	return oracle, nil
}
