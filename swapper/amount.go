package swapper

import (
	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

const BPS = 10_000

var (
	ErrInsufficientInputAmount  = errors.New("insufficient input amount")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
)

// GetAmountOut is the constant product output for amountIn, after a fee of
// feeBps:
//
//	amountInWithFee = amountIn * (10000 - feeBps)
//	amountOut = amountInWithFee * reserveOut / (reserveIn * 10000 + amountInWithFee)
func GetAmountOut(amountIn, reserveIn, reserveOut, feeBps uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrInsufficientInputAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInsufficientLiquidity
	}
	amountInWithFee := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(BPS-feeBps))
	numerator := new(uint256.Int).Mul(amountInWithFee, uint256.NewInt(reserveOut))
	denominator := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(BPS))
	denominator.Add(denominator, amountInWithFee)
	return utils.ToUint64(numerator.Div(numerator, denominator))
}

// GetAmountIn is the input needed to receive amountOut:
//
//	amountIn = reserveIn * amountOut * 10000 / ((reserveOut - amountOut) * (10000 - feeBps)) + 1
func GetAmountIn(amountOut, reserveIn, reserveOut, feeBps uint64) (uint64, error) {
	if amountOut == 0 {
		return 0, ErrInsufficientOutputAmount
	}
	if reserveIn == 0 || reserveOut <= amountOut {
		return 0, ErrInsufficientLiquidity
	}
	numerator := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(amountOut))
	numerator.Mul(numerator, uint256.NewInt(BPS))
	denominator := new(uint256.Int).Mul(uint256.NewInt(reserveOut-amountOut), uint256.NewInt(BPS-feeBps))
	amountIn := numerator.Div(numerator, denominator)
	amountIn.Add(amountIn, utils.U256One)
	return utils.ToUint64(amountIn)
}
