package core

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	MAX_TARGET_PERCENTAGE = 100

	// interest_per_second is scaled by 1e18
	INTEREST_PRECISION_EXP = 18

	// interest rate changes are throttled to once every three days
	INTEREST_RATE_UPDATE_INTERVAL = 3 * 24 * 60 * 60

	// flash loan fee rates are expressed in WAD
	WAD_EXP = 18

	MAX_BORROW_LIMIT = math.MaxUint64

	SECONDS_PER_YEAR = 31_536_000

	// compounding periods used when quoting APY
	HOURS_PER_YEAR = 365.25 * 24
)

var (
	ONE = decimal.NewFromInt(1)

	// growth allowed on a single interest rate change: new < old * 7/4
	INTEREST_RATE_MAX_GROWTH_NUMERATOR   uint64 = 3
	INTEREST_RATE_MAX_GROWTH_DENOMINATOR uint64 = 4
)
