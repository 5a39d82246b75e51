package swapper

import (
	"context"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/pkg/errors"
)

const (
	OrcaFeeBps    = 30
	RaydiumFeeBps = 25
)

var (
	ErrSlippageExceeded = errors.New("swap output below minimum")
	ErrUnknownMint      = errors.New("mint not traded by pool")
)

// Pool is a constant product pool between two mints whose reserves live
// in token accounts.
type Pool struct {
	name   string
	feeBps uint64
	store  core.TokenStore

	mintA, mintB       string
	reserveA, reserveB string
}

// NewPool binds a pool to its reserve accounts. Call Init to create them.
func NewPool(store core.TokenStore, name string, feeBps uint64, mintA, mintB string) *Pool {
	return &Pool{
		name:     name,
		feeBps:   feeBps,
		store:    store,
		mintA:    mintA,
		mintB:    mintB,
		reserveA: utils.DeriveAddress("pool-reserve", name, mintA),
		reserveB: utils.DeriveAddress("pool-reserve", name, mintB),
	}
}

// NewOrca is a pool with the 30 bps fee of Orca token swap pools.
func NewOrca(store core.TokenStore, mintA, mintB string) *Pool {
	return NewPool(store, "orca", OrcaFeeBps, mintA, mintB)
}

// NewRaydium is a pool with the 25 bps fee of Raydium AMM pools.
func NewRaydium(store core.TokenStore, mintA, mintB string) *Pool {
	return NewPool(store, "raydium", RaydiumFeeBps, mintA, mintB)
}

func (p *Pool) Name() string {
	return p.name
}

func (p *Pool) FeeBps() uint64 {
	return p.feeBps
}

// Init creates the reserve accounts, seeded with reserveA and reserveB.
func (p *Pool) Init(ctx context.Context, reserveA, reserveB uint64) error {
	a := core.NewTokenAccount(p.reserveA, p.mintA, p.name)
	a.Amount = reserveA
	if err := p.store.UpsertTokenAccount(ctx, a); err != nil {
		return err
	}
	b := core.NewTokenAccount(p.reserveB, p.mintB, p.name)
	b.Amount = reserveB
	return p.store.UpsertTokenAccount(ctx, b)
}

// Reserves returns the reserves for a swap selling mintIn.
func (p *Pool) Reserves(ctx context.Context, mintIn string) (uint64, uint64, error) {
	in, out, err := p.accounts(mintIn)
	if err != nil {
		return 0, 0, err
	}
	reserveIn, err := core.TokenAmount(ctx, p.store, in)
	if err != nil {
		return 0, 0, err
	}
	reserveOut, err := core.TokenAmount(ctx, p.store, out)
	if err != nil {
		return 0, 0, err
	}
	return reserveIn, reserveOut, nil
}

// Quote is the output of selling amountIn of mintIn.
func (p *Pool) Quote(ctx context.Context, mintIn string, amountIn uint64) (uint64, error) {
	reserveIn, reserveOut, err := p.Reserves(ctx, mintIn)
	if err != nil {
		return 0, err
	}
	return GetAmountOut(amountIn, reserveIn, reserveOut, p.feeBps)
}

func (p *Pool) Swap(ctx context.Context, source, destination string, amountIn, minimumOut uint64) error {
	account, err := p.store.GetTokenAccount(ctx, source)
	if err != nil {
		return errors.Wrapf(err, "source %s", source)
	}
	in, out, err := p.accounts(account.Mint)
	if err != nil {
		return err
	}
	amountOut, err := p.Quote(ctx, account.Mint, amountIn)
	if err != nil {
		return err
	}
	if amountOut < minimumOut {
		return errors.Wrapf(ErrSlippageExceeded, "%s quoted %d, minimum %d", p.name, amountOut, minimumOut)
	}

	if err := core.TransferTokens(ctx, p.store, source, in, amountIn); err != nil {
		return err
	}
	return core.TransferTokens(ctx, p.store, out, destination, amountOut)
}

func (p *Pool) accounts(mintIn string) (string, string, error) {
	switch mintIn {
	case p.mintA:
		return p.reserveA, p.reserveB, nil
	case p.mintB:
		return p.reserveB, p.reserveA, nil
	default:
		return "", "", errors.Wrapf(ErrUnknownMint, "%s does not trade %s", p.name, mintIn)
	}
}

var _ core.Swapper = (*Pool)(nil)
