package utils

import (
	"math"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	ErrWrongIntegerAddition       = errors.New("wrong integer addition")
	ErrWrongIntegerSubtraction    = errors.New("wrong integer subtraction")
	ErrWrongIntegerMultiplication = errors.New("wrong integer multiplication")
	ErrWrongIntegerDivision       = errors.New("wrong integer division")
	ErrTryIntoConversion          = errors.New("try into conversion error")
)

var (
	U256Zero = uint256.NewInt(0)
	U256One  = uint256.NewInt(1)

	// MaxUint128 bounds every rebase field.
	MaxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(U256One, 128), U256One)
)

func CheckedAdd(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrWrongIntegerAddition
	}
	return z, nil
}

func CheckedSub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrWrongIntegerSubtraction
	}
	return z, nil
}

func CheckedMul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrWrongIntegerMultiplication
	}
	return z, nil
}

func CheckedDiv(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, ErrWrongIntegerDivision
	}
	return new(uint256.Int).Div(x, y), nil
}

// MulDiv computes x*y/z, failing instead of wrapping.
func MulDiv(x, y, z *uint256.Int) (*uint256.Int, error) {
	product, err := CheckedMul(x, y)
	if err != nil {
		return nil, err
	}
	return CheckedDiv(product, z)
}

// Pow10 returns 10^exp or an overflow error past 10^77.
func Pow10(exp uint32) (*uint256.Int, error) {
	result := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint32(0); i < exp; i++ {
		next, err := CheckedMul(result, ten)
		if err != nil {
			return nil, err
		}
		result = next
	}
	return result, nil
}

func ToUint64(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, ErrTryIntoConversion
	}
	return x.Uint64(), nil
}

// CheckUint128 rejects values that would not fit a 128-bit ledger field.
func CheckUint128(x *uint256.Int) error {
	if x.Gt(MaxUint128) {
		return ErrWrongIntegerAddition
	}
	return nil
}

func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrWrongIntegerAddition
	}
	return a + b, nil
}

func SubUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrWrongIntegerSubtraction
	}
	return a - b, nil
}

func MulDivUint64(a, b, c uint64) (uint64, error) {
	result, err := MulDiv(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(c))
	if err != nil {
		return 0, err
	}
	return ToUint64(result)
}

func MinUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
