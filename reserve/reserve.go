package reserve

import (
	"context"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/pkg/errors"
)

var ErrFlashLoanNotRepaid = errors.New("flash loan not repaid")

// Reserve is a token lending reserve that offers flash loans out of its
// liquidity account and shares the fee with the host that routed the loan.
type Reserve struct {
	name  string
	mint  string
	store core.TokenStore
	fees  core.FeeSchedule

	liquidity  string
	feeAccount string
}

func NewReserve(store core.TokenStore, name, mint string, fees core.FeeSchedule) *Reserve {
	return &Reserve{
		name:       name,
		mint:       mint,
		store:      store,
		fees:       fees,
		liquidity:  utils.DeriveAddress("reserve-liquidity", name, mint),
		feeAccount: utils.DeriveAddress("reserve-fee", name, mint),
	}
}

// Init creates the liquidity and fee accounts, seeding liquidity.
func (r *Reserve) Init(ctx context.Context, liquidity uint64) error {
	account := core.NewTokenAccount(r.liquidity, r.mint, r.name)
	account.Amount = liquidity
	if err := r.store.UpsertTokenAccount(ctx, account); err != nil {
		return err
	}
	return r.store.UpsertTokenAccount(ctx, core.NewTokenAccount(r.feeAccount, r.mint, r.name))
}

func (r *Reserve) LiquidityAccount() string {
	return r.liquidity
}

func (r *Reserve) FeeAccount() string {
	return r.feeAccount
}

func (r *Reserve) FlashLoanFee(amount uint64) (uint64, uint64, error) {
	return r.fees.FlashLoanFee(amount)
}

// FlashLoan lends amount to receiver, which must return amount plus fee
// to the liquidity account before OnFlashLoan returns. The fee is then
// split between the reserve's fee account and hostFeeReceiver.
func (r *Reserve) FlashLoan(ctx context.Context, amount uint64, receiver core.FlashLoanReceiver, hostFeeReceiver string) error {
	fee, hostFee, err := r.FlashLoanFee(amount)
	if err != nil {
		return err
	}
	before, err := core.TokenAmount(ctx, r.store, r.liquidity)
	if err != nil {
		return err
	}

	if err := core.TransferTokens(ctx, r.store, r.liquidity, receiver.Destination(), amount); err != nil {
		return err
	}
	if err := receiver.OnFlashLoan(ctx, amount, fee); err != nil {
		return err
	}

	after, err := core.TokenAmount(ctx, r.store, r.liquidity)
	if err != nil {
		return err
	}
	expected, err := utils.AddUint64(before, fee)
	if err != nil {
		return err
	}
	if after < expected {
		return errors.Wrapf(ErrFlashLoanNotRepaid, "liquidity %d, expected %d", after, expected)
	}

	if hostFee > 0 {
		if err := core.TransferTokens(ctx, r.store, r.liquidity, hostFeeReceiver, hostFee); err != nil {
			return err
		}
	}
	return core.TransferTokens(ctx, r.store, r.liquidity, r.feeAccount, fee-hostFee)
}

var _ core.FlashLender = (*Reserve)(nil)
