package core

import (
	"context"
	"strconv"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// FlashLender is an external lending reserve. The vault earns the host
// fee of loans it routes: the lender pays it into hostFeeReceiver.
type FlashLender interface {
	FlashLoanFee(amount uint64) (fee uint64, hostFee uint64, err error)
	FlashLoan(ctx context.Context, amount uint64, receiver FlashLoanReceiver, hostFeeReceiver string) error
}

// FlashLoanReceiver gets amount at destination and must pay back amount
// plus fee before returning.
type FlashLoanReceiver interface {
	Destination() string
	OnFlashLoan(ctx context.Context, amount, fee uint64) error
}

// FeeSchedule computes flash loan fees the way token lending reserves do:
// fee rate in WAD, at least 1 (2 with a host fee), host fee a percentage
// of the fee and at least 1.
type FeeSchedule struct {
	FlashLoanFeeWad   uint64 `json:"flashLoanFeeWad"`
	HostFeePercentage uint8  `json:"hostFeePercentage"`
}

func (s FeeSchedule) FlashLoanFee(amount uint64) (uint64, uint64, error) {
	if s.FlashLoanFeeWad == 0 || amount == 0 {
		return 0, 0, nil
	}
	if s.HostFeePercentage > 100 {
		return 0, 0, errors.Errorf("host fee percentage %d above 100", s.HostFeePercentage)
	}
	assessHostFee := s.HostFeePercentage > 0
	minimumFee := uint64(1)
	if assessHostFee {
		minimumFee = 2
	}

	wad, err := utils.Pow10(WAD_EXP)
	if err != nil {
		return 0, 0, err
	}
	// round half up
	scaled, err := utils.CheckedMul(uint256.NewInt(amount), uint256.NewInt(s.FlashLoanFeeWad))
	if err != nil {
		return 0, 0, err
	}
	scaled, err = utils.CheckedAdd(scaled, new(uint256.Int).Rsh(wad, 1))
	if err != nil {
		return 0, 0, err
	}
	feeAmount, err := utils.ToUint64(new(uint256.Int).Div(scaled, wad))
	if err != nil {
		return 0, 0, err
	}
	if feeAmount < minimumFee {
		feeAmount = minimumFee
	}
	if feeAmount >= amount {
		return 0, 0, ErrFlashLoanTooSmall
	}

	var hostFee uint64
	if assessHostFee {
		host := new(uint256.Int).Mul(uint256.NewInt(feeAmount), uint256.NewInt(uint64(s.HostFeePercentage)))
		host.Add(host, uint256.NewInt(50))
		hostFee = host.Div(host, uint256.NewInt(100)).Uint64()
		if hostFee == 0 {
			hostFee = 1
		}
	}
	return feeAmount, hostFee, nil
}

// FlashLoan routes a loan of amount from lender to receiver. The host fee
// lands in the vault and is added to Total.elastic; afterwards the vault
// must still hold at least Total.elastic.
func (e *Engine) FlashLoan(ctx context.Context, log Log, vaultId uuid.UUID, mint string, lender FlashLender, receiver FlashLoanReceiver, amount uint64) error {
	var hostFee uint64
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		total, err := e.loadTotal(ctx, vaultId, mint)
		if err != nil {
			return err
		}

		var fee uint64
		if fee, hostFee, err = lender.FlashLoanFee(amount); err != nil {
			return err
		}
		if err := lender.FlashLoan(ctx, amount, receiver, total.TokenAccount); err != nil {
			return err
		}

		if err := total.Amount.AddElasticOnly(uint256.NewInt(hostFee)); err != nil {
			return err
		}

		held, err := e.tokenBalanceOf(ctx, total)
		if err != nil {
			return err
		}
		if held.Lt(&total.Amount.Elastic) {
			return ErrBentoBoxWrongAmount
		}

		total.UpdatedAt = e.now()
		if err := e.store.UpsertTotal(ctx, total); err != nil {
			return err
		}

		rec.record(EventFlashLoan, vaultId, mint).
			WithParties(total.TokenAccount, receiver.Destination()).
			WithAmounts(amount, 0).
			With("fee", strconv.FormatUint(fee, 10)).
			With("hostFee", strconv.FormatUint(hostFee, 10))
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Msgf("flash loan of %d %s earned host fee %d", amount, mint, hostFee)
	return nil
}
