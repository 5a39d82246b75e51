package core

import (
	"context"

	"github.com/SmonkeyMonkey/abracadabra/rebase"
	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
)

type (
	CauldronStore interface {
		CreateCauldron(ctx context.Context, cauldron *Cauldron) error
		UpsertCauldron(ctx context.Context, cauldron *Cauldron) error
		GetCauldronById(ctx context.Context, cauldronId uuid.UUID) (*Cauldron, error)
		GetCauldronTotal(ctx context.Context, cauldronId uuid.UUID) (*CauldronTotal, error)
		UpsertCauldronTotal(ctx context.Context, total *CauldronTotal) error
	}

	UserBalanceStore interface {
		FindUserBalance(ctx context.Context, cauldronId uuid.UUID, user string) (*UserBalance, error)
		UpsertUserBalance(ctx context.Context, balance *UserBalance) error
		ListUserBalances(ctx context.Context, cauldronId uuid.UUID) ([]*UserBalance, error)
	}

	LiquidatorAccountStore interface {
		GetLiquidatorAccount(ctx context.Context, cauldronId uuid.UUID, user string) (*LiquidatorAccount, error)
		UpsertLiquidatorAccount(ctx context.Context, account *LiquidatorAccount) error
		DeleteLiquidatorAccount(ctx context.Context, cauldronId uuid.UUID, user string) error
	}

	CauldronConstants struct {
		CollaterizationRate            uint64 `json:"collaterizationRate" toml:"collaterization_rate"`
		CollaterizationRatePrecision   uint64 `json:"collaterizationRatePrecision" toml:"collaterization_rate_precision"`
		LiquidationMultiplier          uint64 `json:"liquidationMultiplier" toml:"liquidation_multiplier"`
		LiquidationMultiplierPrecision uint64 `json:"liquidationMultiplierPrecision" toml:"liquidation_multiplier_precision"`
		DistributionPart               uint64 `json:"distributionPart" toml:"distribution_part"`
		DistributionPrecision          uint64 `json:"distributionPrecision" toml:"distribution_precision"`
		BorrowOpeningFee               uint64 `json:"borrowOpeningFee" toml:"borrow_opening_fee"`
		BorrowOpeningFeePrecision      uint64 `json:"borrowOpeningFeePrecision" toml:"borrow_opening_fee_precision"`
		OnePercentRate                 uint64 `json:"onePercentRate" toml:"one_percent_rate"`
		// seconds after which an oracle round is considered stale
		StaleAfter int64 `json:"staleAfter" toml:"stale_after"`
		// seconds the origin liquidator keeps exclusive access to a swap liquidation
		CompleteLiquidationDuration int64 `json:"completeLiquidationDuration" toml:"complete_liquidation_duration"`
	}

	BorrowCap struct {
		Total      uint64 `json:"total"`
		PerAddress uint64 `json:"perAddress"`
	}

	AccrueInfo struct {
		LastAccrued       int64       `json:"lastAccrued"`
		FeesEarned        uint256.Int `json:"feesEarned"`
		InterestPerSecond uint64      `json:"interestPerSecond"`
	}

	// Cauldron is a lending market borrowing DebtMint against
	// CollateralMint, both held as shares of the same vault.
	Cauldron struct {
		Id             uuid.UUID `json:"id"`
		Name           string    `json:"name"`
		Authority      string    `json:"authority"`
		VaultId        uuid.UUID `json:"vaultId"`
		CollateralMint string    `json:"collateralMint"`
		DebtMint       string    `json:"debtMint"`
		OracleId       string    `json:"oracleId"`

		Constants          CauldronConstants `json:"constants"`
		BorrowLimit        BorrowCap         `json:"borrowLimit"`
		AccrueInfo         AccrueInfo        `json:"accrueInfo"`
		LastInterestUpdate int64             `json:"lastInterestUpdate"`
		FeeTo              string            `json:"feeTo"`

		// token accounts owned by the cauldron, used by swap liquidations
		CollateralTokenAccount string `json:"collateralTokenAccount"`
		DebtTokenAccount       string `json:"debtTokenAccount"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}

	CauldronTotal struct {
		CauldronId      uuid.UUID     `json:"cauldronId"`
		CollateralShare uint64        `json:"collateralShare"`
		Borrow          rebase.Rebase `json:"borrow"`
	}

	UserBalance struct {
		CauldronId      uuid.UUID `json:"cauldronId"`
		User            string    `json:"user"`
		CollateralShare uint64    `json:"collateralShare"`
		BorrowPart      uint64    `json:"borrowPart"`
	}

	// LiquidatorAccount tracks a swap liquidation of User between its
	// begin and complete phases.
	LiquidatorAccount struct {
		CauldronId       uuid.UUID `json:"cauldronId"`
		User             string    `json:"user"`
		OriginLiquidator string    `json:"originLiquidator"`
		// collateral tokens withdrawn from the vault for the swap
		CollateralAmount uint64 `json:"collateralAmount"`
		BorrowAmount     uint64 `json:"borrowAmount"`
		BorrowShare      uint64 `json:"borrowShare"`
		RealAmount       uint64 `json:"realAmount"`
		Swapped          bool   `json:"swapped"`
		Timestamp        int64  `json:"timestamp"`
	}
)

func NewCauldron(clk clock.Clock, vaultId uuid.UUID, name, authority, collateralMint, debtMint, oracleId string, constants CauldronConstants, interestPerSecond uint64) *Cauldron {
	now := clk.Now().Unix()
	c := &Cauldron{
		Id:             utils.DeriveId(vaultId.String(), authority, name),
		Name:           name,
		Authority:      authority,
		VaultId:        vaultId,
		CollateralMint: collateralMint,
		DebtMint:       debtMint,
		OracleId:       oracleId,
		Constants:      constants,
		BorrowLimit: BorrowCap{
			Total:      MAX_BORROW_LIMIT,
			PerAddress: MAX_BORROW_LIMIT,
		},
		AccrueInfo: AccrueInfo{
			LastAccrued:       now,
			InterestPerSecond: interestPerSecond,
		},
		FeeTo:     authority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.CollateralTokenAccount = utils.DeriveAddress("cauldron-token", c.Id.String(), collateralMint)
	c.DebtTokenAccount = utils.DeriveAddress("cauldron-token", c.Id.String(), debtMint)
	return c
}

func (c *Cauldron) Clone() *Cauldron {
	clone := *c
	return &clone
}

// Address is the identity the cauldron holds vault shares and token
// accounts under, and the master contract users approve.
func (c *Cauldron) Address() string {
	return "cauldron:" + c.Id.String()
}

func (c *Cauldron) CheckAuthority(signer string) error {
	if signer == "" || signer != c.Authority {
		return ErrUnauthorized
	}
	return nil
}

func NewCauldronTotal(cauldronId uuid.UUID) *CauldronTotal {
	return &CauldronTotal{CauldronId: cauldronId}
}

func (t *CauldronTotal) Clone() *CauldronTotal {
	clone := *t
	return &clone
}

func NewUserBalance(cauldronId uuid.UUID, user string) *UserBalance {
	return &UserBalance{CauldronId: cauldronId, User: user}
}

func (b *UserBalance) Clone() *UserBalance {
	clone := *b
	return &clone
}

func FindOrCreateUserBalance(ctx context.Context, store UserBalanceStore, cauldronId uuid.UUID, user string) (*UserBalance, error) {
	balance, err := store.FindUserBalance(ctx, cauldronId, user)
	if err != nil {
		if isNotFound(err) {
			return NewUserBalance(cauldronId, user), nil
		}
		return nil, err
	}
	return balance, nil
}

func (a *LiquidatorAccount) Clone() *LiquidatorAccount {
	clone := *a
	return &clone
}

// exclusive reports whether caller is locked out of advancing the
// liquidation at now.
func (a *LiquidatorAccount) exclusive(caller string, now int64) bool {
	return a.OriginLiquidator != caller && a.Timestamp >= now
}
