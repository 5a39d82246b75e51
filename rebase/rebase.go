package rebase

import (
	"fmt"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/holiman/uint256"
)

// Rebase converts between base (shares) and elastic (native amounts).
// Both fields are bounded to 128 bits.
type Rebase struct {
	Base    uint256.Int `json:"base"`
	Elastic uint256.Int `json:"elastic"`
}

func New(base, elastic uint64) Rebase {
	var r Rebase
	r.Base.SetUint64(base)
	r.Elastic.SetUint64(elastic)
	return r
}

func (r Rebase) String() string {
	return fmt.Sprintf("{base: %s, elastic: %s}", r.Base.Dec(), r.Elastic.Dec())
}

func (r Rebase) IsZero() bool {
	return r.Base.IsZero() && r.Elastic.IsZero()
}

// ToBase converts an elastic amount into base units. With roundUp the
// result is bumped by one when converting back would undershoot elastic.
func (r Rebase) ToBase(elastic uint64, roundUp bool) (uint64, error) {
	if r.Elastic.IsZero() {
		return elastic, nil
	}
	return convert(elastic, &r.Base, &r.Elastic, roundUp)
}

// ToElastic converts base units into an elastic amount.
func (r Rebase) ToElastic(base uint64, roundUp bool) (uint64, error) {
	if r.Base.IsZero() {
		return base, nil
	}
	return convert(base, &r.Elastic, &r.Base, roundUp)
}

// convert fails when numerator is zero: the ratio is undefined once one
// side of the rebase is drained while the other is not.
func convert(amount uint64, numerator, denominator *uint256.Int, roundUp bool) (uint64, error) {
	if numerator.IsZero() {
		return 0, utils.ErrWrongIntegerDivision
	}
	in := uint256.NewInt(amount)
	out, err := utils.MulDiv(numerator, in, denominator)
	if err != nil {
		return 0, err
	}
	if roundUp {
		back, err := utils.MulDiv(out, denominator, numerator)
		if err != nil {
			return 0, err
		}
		if back.Lt(in) {
			if out, err = utils.CheckedAdd(out, utils.U256One); err != nil {
				return 0, err
			}
		}
	}
	return utils.ToUint64(out)
}

// AddElastic adds elastic and the matching base, returning the new total
// and the elastic used.
func (r *Rebase) AddElastic(elastic uint64, roundUp bool) (Rebase, uint64, error) {
	base, err := r.ToBase(elastic, roundUp)
	if err != nil {
		return *r, 0, err
	}
	if _, err := r.AddElasticBase(elastic, base); err != nil {
		return *r, 0, err
	}
	return *r, elastic, nil
}

// AddElasticBase adds explicit elastic and base amounts.
func (r *Rebase) AddElasticBase(elastic, base uint64) (Rebase, error) {
	newElastic, err := utils.CheckedAdd(&r.Elastic, uint256.NewInt(elastic))
	if err != nil {
		return *r, err
	}
	newBase, err := utils.CheckedAdd(&r.Base, uint256.NewInt(base))
	if err != nil {
		return *r, err
	}
	if err := utils.CheckUint128(newElastic); err != nil {
		return *r, err
	}
	if err := utils.CheckUint128(newBase); err != nil {
		return *r, err
	}
	r.Elastic.Set(newElastic)
	r.Base.Set(newBase)
	return *r, nil
}

// SubBase removes base and the matching elastic, returning the new total
// and the elastic removed.
func (r *Rebase) SubBase(base uint64, roundUp bool) (Rebase, uint64, error) {
	elastic, err := r.ToElastic(base, roundUp)
	if err != nil {
		return *r, 0, err
	}
	if _, err := r.SubElasticBase(elastic, base); err != nil {
		return *r, 0, err
	}
	return *r, elastic, nil
}

// SubElasticBase removes explicit elastic and base amounts.
func (r *Rebase) SubElasticBase(elastic, base uint64) (Rebase, error) {
	newElastic, err := utils.CheckedSub(&r.Elastic, uint256.NewInt(elastic))
	if err != nil {
		return *r, err
	}
	newBase, err := utils.CheckedSub(&r.Base, uint256.NewInt(base))
	if err != nil {
		return *r, err
	}
	r.Elastic.Set(newElastic)
	r.Base.Set(newBase)
	return *r, nil
}

// AddElasticOnly grows elastic without minting base, e.g. fees and profit.
func (r *Rebase) AddElasticOnly(elastic *uint256.Int) error {
	newElastic, err := utils.CheckedAdd(&r.Elastic, elastic)
	if err != nil {
		return err
	}
	if err := utils.CheckUint128(newElastic); err != nil {
		return err
	}
	r.Elastic.Set(newElastic)
	return nil
}

// SubElasticOnly shrinks elastic without burning base, e.g. strategy loss.
func (r *Rebase) SubElasticOnly(elastic *uint256.Int) error {
	newElastic, err := utils.CheckedSub(&r.Elastic, elastic)
	if err != nil {
		return err
	}
	r.Elastic.Set(newElastic)
	return nil
}
