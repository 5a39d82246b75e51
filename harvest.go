package core

import (
	"context"
	"strconv"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

func (e *Engine) SetStrategyTargetPercentage(ctx context.Context, log Log, vaultId uuid.UUID, mint, signer string, targetPercentage uint64) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		vault, err := e.loadVault(ctx, vaultId)
		if err != nil {
			return err
		}
		if err := vault.CheckAuthority(signer); err != nil {
			return err
		}
		if targetPercentage > vault.MaxTargetPercentage {
			return ErrStrategyTargetPercentageTooHigh
		}
		data, err := e.loadStrategyData(ctx, vaultId, mint)
		if err != nil {
			return err
		}
		data.TargetPercentage = targetPercentage
		return e.store.UpsertStrategyData(ctx, data)
	})
}

// SetStrategy queues target on the first call and activates it on a
// second call with the same target once the vault's strategy delay has
// passed. Activation fully exits the previous strategy.
func (e *Engine) SetStrategy(ctx context.Context, log Log, vaultId uuid.UUID, mint, signer, target string) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		vault, err := e.loadVault(ctx, vaultId)
		if err != nil {
			return err
		}
		if err := vault.CheckAuthority(signer); err != nil {
			return err
		}
		if target != "" {
			if err := e.checkStrategyToken(ctx, target, mint); err != nil {
				return err
			}
		}
		data, err := e.loadStrategyData(ctx, vaultId, mint)
		if err != nil {
			return err
		}
		now := e.now()

		if !data.State.IsPending(target) {
			data.State = data.State.Queue(target, now+vault.StrategyDelay)
			rec.record(EventStrategyQueued, vaultId, mint).With("strategy", target).
				With("readyAt", strconv.FormatInt(data.State.ReadyAt, 10))
			log.Info().Msgf("strategy %s queued for %s, ready at %d", target, mint, data.State.ReadyAt)
			return e.store.UpsertStrategyData(ctx, data)
		}

		next, err := data.State.Activate(target, now)
		if err != nil {
			return err
		}
		if previous, ok := data.State.Current(); ok {
			if err := e.exitStrategy(ctx, log, rec, vaultId, mint, previous, data); err != nil {
				return err
			}
		}
		data.State = next
		data.Balance = 0

		rec.record(EventStrategyActivated, vaultId, mint).With("strategy", target)
		log.Info().Msgf("strategy %s activated for %s", target, mint)
		return e.store.UpsertStrategyData(ctx, data)
	})
}

// ExitStrategy pulls everything out of the running strategy of mint and
// leaves the asset without one. A queued replacement stays queued.
func (e *Engine) ExitStrategy(ctx context.Context, log Log, vaultId uuid.UUID, mint, signer string) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		vault, err := e.loadVault(ctx, vaultId)
		if err != nil {
			return err
		}
		if err := vault.CheckAuthority(signer); err != nil {
			return err
		}
		data, err := e.loadStrategyData(ctx, vaultId, mint)
		if err != nil {
			return err
		}
		current, ok := data.State.Current()
		if !ok {
			return ErrStrategyNotSet
		}
		if err := e.exitStrategy(ctx, log, rec, vaultId, mint, current, data); err != nil {
			return err
		}
		data.State = data.State.Retire()
		data.Balance = 0
		return e.store.UpsertStrategyData(ctx, data)
	})
}

// exitStrategy exits strategyId and folds the difference between what came
// back and data.Balance into Total.elastic.
func (e *Engine) exitStrategy(ctx context.Context, log Log, rec *recorder, vaultId uuid.UUID, mint, strategyId string, data *StrategyData) error {
	strategy, err := e.strategy(strategyId)
	if err != nil {
		return err
	}
	total, err := e.loadTotal(ctx, vaultId, mint)
	if err != nil {
		return err
	}

	change, err := e.baseExit(ctx, strategy, total, data.Balance)
	if err != nil {
		return err
	}
	if err := e.applyBalanceChange(rec, total, change); err != nil {
		return err
	}
	total.UpdatedAt = e.now()
	if err := e.store.UpsertTotal(ctx, total); err != nil {
		return err
	}

	rec.record(EventStrategyDivest, vaultId, mint).WithAmounts(data.Balance, 0).With("strategy", strategyId)
	log.Info().Msgf("strategy %s exited for %s, balance change %d", strategyId, mint, change)
	return nil
}

// Harvest realizes the profit or loss of the active strategy and, when
// rebalance is set, moves funds toward the target percentage.
func (e *Engine) Harvest(ctx context.Context, log Log, vaultId uuid.UUID, mint string, rebalance bool, maxChangeAmount uint64) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		strategy, data, err := e.activeStrategy(ctx, vaultId, mint)
		if err != nil {
			return err
		}
		return e.harvestInternal(ctx, log, rec, strategy, data, rebalance, maxChangeAmount)
	})
}

// SafeHarvest is the executor-only harvest. maxBalance, when non zero,
// becomes the strategy's ceiling on Total.elastic above which harvests are
// skipped.
func (e *Engine) SafeHarvest(ctx context.Context, log Log, vaultId uuid.UUID, mint, executor string, maxBalance uint64, rebalance bool, maxChangeAmount uint64, harvestRewards bool) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		strategy, data, err := e.activeStrategy(ctx, vaultId, mint)
		if err != nil {
			return err
		}
		isExecutor, err := strategy.IsExecutor(ctx, executor)
		if err != nil {
			return err
		}
		if !isExecutor {
			return ErrUnauthorizedSafeHarvest
		}
		if harvestRewards {
			if err := strategy.HarvestRewards(ctx); err != nil {
				return err
			}
		}
		if err := strategy.SafeHarvest(ctx, maxBalance); err != nil {
			return err
		}
		return e.harvestInternal(ctx, log, rec, strategy, data, rebalance, maxChangeAmount)
	})
}

func (e *Engine) activeStrategy(ctx context.Context, vaultId uuid.UUID, mint string) (Strategy, *StrategyData, error) {
	data, err := e.loadStrategyData(ctx, vaultId, mint)
	if err != nil {
		return nil, nil, err
	}
	current, ok := data.State.Current()
	if !ok {
		return nil, nil, ErrStrategyNotSet
	}
	strategy, err := e.strategy(current)
	if err != nil {
		return nil, nil, err
	}
	return strategy, data, nil
}

func (e *Engine) checkStrategyToken(ctx context.Context, strategyId, mint string) error {
	strategy, err := e.strategy(strategyId)
	if err != nil {
		return err
	}
	info, err := strategy.Info(ctx)
	if err != nil {
		return err
	}
	if info.StrategyToken != mint {
		return errors.Wrapf(ErrStrategyTokenMismatch, "strategy %s holds %s", strategyId, info.StrategyToken)
	}
	return nil
}

func (e *Engine) harvestInternal(ctx context.Context, log Log, rec *recorder, strategy Strategy, data *StrategyData, rebalance bool, maxChangeAmount uint64) error {
	total, err := e.loadTotal(ctx, data.VaultId, data.Mint)
	if err != nil {
		return err
	}

	change, err := e.baseHarvest(ctx, strategy, total, data.Balance)
	if err != nil {
		return err
	}
	if change == 0 && !rebalance {
		return nil
	}

	if err := e.applyBalanceChange(rec, total, change); err != nil {
		return err
	}
	if change < 0 {
		if data.Balance, err = utils.SubUint64(data.Balance, uint64(-change)); err != nil {
			return errors.Wrapf(err, "strategy loss %d exceeds balance %d", -change, data.Balance)
		}
	}
	if change != 0 {
		log.Info().Msgf("harvest %s: balance change %d, total elastic %s", data.Mint, change, total.Amount.Elastic.Dec())
	}

	if rebalance {
		if err := e.rebalance(ctx, log, rec, strategy, total, data, maxChangeAmount); err != nil {
			return err
		}
	}

	total.UpdatedAt = e.now()
	if err := e.store.UpsertTotal(ctx, total); err != nil {
		return err
	}
	return e.store.UpsertStrategyData(ctx, data)
}

func (e *Engine) rebalance(ctx context.Context, log Log, rec *recorder, strategy Strategy, total *Total, data *StrategyData, maxChangeAmount uint64) error {
	target, err := utils.MulDiv(&total.Amount.Elastic, uint256.NewInt(data.TargetPercentage), uint256.NewInt(100))
	if err != nil {
		return err
	}
	balance := uint256.NewInt(data.Balance)

	switch {
	case balance.Lt(target):
		amountOut, err := utils.ToUint64(new(uint256.Int).Sub(target, balance))
		if err != nil {
			return err
		}
		if maxChangeAmount != 0 && amountOut > maxChangeAmount {
			amountOut = maxChangeAmount
		}
		if err := TransferTokens(ctx, e.store, total.TokenAccount, strategy.TokenAccount(), amountOut); err != nil {
			return err
		}
		if data.Balance, err = utils.AddUint64(data.Balance, amountOut); err != nil {
			return err
		}
		if err := e.baseSkim(ctx, strategy, amountOut); err != nil {
			return err
		}
		rec.record(EventStrategyInvest, data.VaultId, data.Mint).WithAmounts(amountOut, 0).With("strategy", strategy.Id())
		log.Info().Msgf("invest %d %s into %s", amountOut, data.Mint, strategy.Id())

	case balance.Gt(target):
		amountIn, err := utils.ToUint64(new(uint256.Int).Sub(balance, target))
		if err != nil {
			return err
		}
		if maxChangeAmount != 0 && amountIn > maxChangeAmount {
			amountIn = maxChangeAmount
		}
		actual, err := e.baseWithdraw(ctx, strategy, total, amountIn)
		if err != nil {
			return err
		}
		if data.Balance, err = utils.SubUint64(data.Balance, actual); err != nil {
			return err
		}
		// the actual amount is authoritative, the request is kept for audit
		rec.record(EventStrategyDivest, data.VaultId, data.Mint).WithAmounts(actual, 0).
			With("strategy", strategy.Id()).
			With("requested", strconv.FormatUint(amountIn, 10))
		log.Info().Msgf("divest %d %s from %s, requested %d", actual, data.Mint, strategy.Id(), amountIn)
	}
	return nil
}

// applyBalanceChange folds a strategy profit or loss into Total.elastic.
func (e *Engine) applyBalanceChange(rec *recorder, total *Total, change int64) error {
	switch {
	case change > 0:
		if err := total.Amount.AddElasticOnly(uint256.NewInt(uint64(change))); err != nil {
			return err
		}
		rec.record(EventStrategyProfit, total.VaultId, total.Mint).WithAmounts(uint64(change), 0)
	case change < 0:
		if err := total.Amount.SubElasticOnly(uint256.NewInt(uint64(-change))); err != nil {
			return err
		}
		rec.record(EventStrategyLoss, total.VaultId, total.Mint).WithAmounts(uint64(-change), 0)
	}
	return nil
}

func (e *Engine) checkNotExited(ctx context.Context, strategy Strategy) (*BaseStrategyInfo, error) {
	info, err := strategy.Info(ctx)
	if err != nil {
		return nil, err
	}
	if info.Exited {
		return nil, ErrStrategyIsExited
	}
	return info, nil
}

func (e *Engine) baseSkim(ctx context.Context, strategy Strategy, amount uint64) error {
	if _, err := e.checkNotExited(ctx, strategy); err != nil {
		return err
	}
	return strategy.Skim(ctx, amount)
}

// baseHarvest asks the strategy to harvest and reconciles its report with
// the tokens actually sitting in the strategy's idle account.
func (e *Engine) baseHarvest(ctx context.Context, strategy Strategy, total *Total, balance uint64) (int64, error) {
	info, err := e.checkNotExited(ctx, strategy)
	if err != nil {
		return 0, err
	}
	if info.MaxBentoboxBalance != 0 && total.Amount.Elastic.Gt(uint256.NewInt(info.MaxBentoboxBalance)) {
		return 0, nil
	}
	if balance == 0 {
		return 0, nil
	}

	amount, err := strategy.Harvest(ctx, balance)
	if err != nil {
		return 0, err
	}
	contractBalance, err := TokenAmount(ctx, e.store, strategy.TokenAccount())
	if err != nil {
		return 0, err
	}
	if contractBalance > uint64(1<<63-1) {
		return 0, ErrTryIntoConversion
	}

	switch {
	case amount >= 0:
		if contractBalance > 0 {
			if err := strategy.Transfer(ctx, total.TokenAccount, contractBalance); err != nil {
				return 0, err
			}
		}
		return int64(contractBalance), nil
	case contractBalance > 0:
		diff := amount + int64(contractBalance)
		if diff > 0 {
			if err := strategy.Transfer(ctx, total.TokenAccount, uint64(diff)); err != nil {
				return 0, err
			}
			if err := strategy.Skim(ctx, uint64(-amount)); err != nil {
				return 0, err
			}
		} else {
			if err := strategy.Skim(ctx, contractBalance); err != nil {
				return 0, err
			}
		}
		return diff, nil
	default:
		return amount, nil
	}
}

// baseWithdraw pulls amount out of the strategy and forwards whatever
// actually arrived in its idle account to the vault.
func (e *Engine) baseWithdraw(ctx context.Context, strategy Strategy, total *Total, amount uint64) (uint64, error) {
	if _, err := e.checkNotExited(ctx, strategy); err != nil {
		return 0, err
	}
	if _, err := strategy.Withdraw(ctx, amount); err != nil {
		return 0, err
	}
	actual, err := TokenAmount(ctx, e.store, strategy.TokenAccount())
	if err != nil {
		return 0, err
	}
	if actual > 0 {
		if err := strategy.Transfer(ctx, total.TokenAccount, actual); err != nil {
			return 0, err
		}
	}
	return actual, nil
}

// baseExit exits the strategy, forwards everything it returned to the
// vault and reports the difference to balance.
func (e *Engine) baseExit(ctx context.Context, strategy Strategy, total *Total, balance uint64) (int64, error) {
	if err := strategy.Exit(ctx); err != nil {
		return 0, err
	}
	actual, err := TokenAmount(ctx, e.store, strategy.TokenAccount())
	if err != nil {
		return 0, err
	}
	if actual > 0 {
		if err := strategy.Transfer(ctx, total.TokenAccount, actual); err != nil {
			return 0, err
		}
	}
	if actual > uint64(1<<63-1) || balance > uint64(1<<63-1) {
		return 0, ErrTryIntoConversion
	}
	return int64(actual) - int64(balance), nil
}
