package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
)

// Feed is an aggregator style price feed: a publisher pushes rounds and
// readers reject rounds that are too old.
type Feed struct {
	clk clock.Clock

	mu        sync.RWMutex
	mantissa  *big.Int
	scale     uint32
	updatedAt time.Time
}

type FeedOption func(f *Feed)

func WithClock(clk clock.Clock) FeedOption {
	return func(f *Feed) {
		f.clk = clk
	}
}

func NewFeed(opts ...FeedOption) *Feed {
	f := &Feed{
		clk:      clock.New(),
		mantissa: new(big.Int),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish records a new round at the current time.
func (f *Feed) Publish(mantissa int64, scale uint32) {
	f.PublishBig(big.NewInt(mantissa), scale)
}

func (f *Feed) PublishBig(mantissa *big.Int, scale uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mantissa = new(big.Int).Set(mantissa)
	f.scale = scale
	f.updatedAt = f.clk.Now()
}

func (f *Feed) GetPrice(ctx context.Context, staleAfter time.Duration) (*core.Price, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.updatedAt.IsZero() {
		return nil, errors.Wrap(core.ErrInvalidPrice, "no round published")
	}
	if age := f.clk.Now().Sub(f.updatedAt); age >= staleAfter {
		return nil, errors.Wrapf(core.ErrStalePrice, "round is %s old", age)
	}
	if f.mantissa.Sign() < 0 {
		return nil, core.ErrInvalidPrice
	}
	return &core.Price{Mantissa: new(big.Int).Set(f.mantissa), Scale: f.scale}, nil
}

var _ core.PriceOracle = (*Feed)(nil)
