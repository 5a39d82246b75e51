package core

import (
	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/pkg/errors"
)

// arithmetic
var (
	ErrWrongIntegerAddition       = utils.ErrWrongIntegerAddition
	ErrWrongIntegerSubtraction    = utils.ErrWrongIntegerSubtraction
	ErrWrongIntegerMultiplication = utils.ErrWrongIntegerMultiplication
	ErrWrongIntegerDivision       = utils.ErrWrongIntegerDivision
	ErrTryIntoConversion          = utils.ErrTryIntoConversion
)

// vault
var (
	ErrUnauthorized                 = errors.New("unauthorized")
	ErrEmptyAuthorityAddress        = errors.New("empty authority address")
	ErrEmptyPendingAuthorityAddress = errors.New("empty pending authority address")
	ErrMasterContractNotWhitelisted = errors.New("master contract not whitelisted")
	ErrMasterContractNotApproved    = errors.New("master contract not approved")
	ErrInvalidMasterContract        = errors.New("invalid master contract")
	ErrBentoBoxNoTokens             = errors.New("vault has no tokens")
	ErrDepositSkimTooMuch           = errors.New("deposit skims more than the unaccounted balance")
	ErrDepositZeroShare             = errors.New("deposit would mint zero shares")
	ErrWithdrawCannotEmpty          = errors.New("withdraw would leave fewer shares than the minimum")
	ErrBentoBoxWrongAmount          = errors.New("vault balance below total after flash loan")
	ErrInvalidTokenAccount          = errors.New("invalid token account")
	ErrInsufficientFunds            = errors.New("insufficient token funds")
	ErrMintMismatch                 = errors.New("token account mint mismatch")
	ErrAssetExists                  = errors.New("asset already registered")
	ErrFlashLoanTooSmall            = errors.New("flash loan amount too small to cover its fee")
)

// strategy
var (
	ErrStrategyNotSet                  = errors.New("strategy not set")
	ErrStrategyIsExited                = errors.New("strategy is exited")
	ErrStrategyTargetPercentageTooHigh = errors.New("strategy target percentage too high")
	ErrTooEarlyStrategyStartDate       = errors.New("too early strategy start date")
	ErrUnauthorizedSafeHarvest         = errors.New("only executors may safe harvest")
	ErrStrategyTokenMismatch           = errors.New("strategy token does not match asset")
	ErrInvalidStrategyState            = errors.New("invalid strategy state transition")
)

// cauldron
var (
	ErrBorrowLimitReached          = errors.New("borrow limit reached")
	ErrUserInsolvent               = errors.New("user insolvent")
	ErrSkimTooMuch                 = errors.New("skim too much")
	ErrNotValidInterestRate        = errors.New("not valid interest rate")
	ErrTooSoonToUpdateInterestRate = errors.New("too soon to update interest rate")
	ErrUserIsSolvent               = errors.New("user is solvent")
	ErrTooSoon                     = errors.New("liquidation window still exclusive")
	ErrLiquidationInProgress       = errors.New("liquidation already in progress")
	ErrSwapNotCompleted            = errors.New("liquidation swap not completed")
	ErrSwapAlreadyCompleted        = errors.New("liquidation swap already completed")
	ErrInvalidSwapper              = errors.New("invalid swapper")
)

// oracle
var (
	ErrOracleNotFound = errors.New("oracle not found")
	ErrStalePrice     = errors.New("stale price feed result")
	ErrInvalidPrice   = errors.New("invalid price")
)
