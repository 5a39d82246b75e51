package core

import (
	"context"

	"github.com/pkg/errors"
)

// Swapper exchanges amountIn tokens of the source token account into the
// destination token account. What actually arrived is measured by the
// caller through the destination balance, never taken from the swapper.
type Swapper interface {
	Swap(ctx context.Context, source, destination string, amountIn, minimumOut uint64) error
}

func (e *Engine) swapper(id string) (Swapper, error) {
	swapper, ok := e.swappers[id]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidSwapper, "swapper %s", id)
	}
	return swapper, nil
}
