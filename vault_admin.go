package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

func (e *Engine) CreateVault(ctx context.Context, log Log, name, authority string, minimumShareBalance, maxTargetPercentage uint64) (*Vault, error) {
	if authority == "" {
		return nil, ErrEmptyAuthorityAddress
	}
	if maxTargetPercentage > MAX_TARGET_PERCENTAGE {
		return nil, ErrStrategyTargetPercentageTooHigh
	}

	vault := NewVault(e.clk, name, authority, minimumShareBalance, maxTargetPercentage)
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		if _, err := e.store.GetVaultById(ctx, vault.Id); err == nil {
			return errors.Wrapf(ErrAssetExists, "vault %s", vault.Id)
		} else if !isNotFound(err) {
			return err
		}
		return e.store.CreateVault(ctx, vault)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("vault %s created by %s, minimum share balance %d", vault.Id, authority, minimumShareBalance)
	return vault, nil
}

// CreateTotal registers mint with the vault: its ledger, token account and
// strategy data.
func (e *Engine) CreateTotal(ctx context.Context, log Log, vaultId uuid.UUID, signer, mint string) (*Total, error) {
	var total *Total
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		vault, err := e.loadVault(ctx, vaultId)
		if err != nil {
			return err
		}
		if err := vault.CheckAuthority(signer); err != nil {
			return err
		}
		if _, err := e.store.GetTotal(ctx, vaultId, mint); err == nil {
			return errors.Wrapf(ErrAssetExists, "vault %s mint %s", vaultId, mint)
		} else if !isNotFound(err) {
			return err
		}

		total = NewTotal(e.clk, vault, mint)
		if err := e.store.UpsertTokenAccount(ctx, NewTokenAccount(total.TokenAccount, mint, vault.Address())); err != nil {
			return err
		}
		if err := e.store.CreateTotal(ctx, total); err != nil {
			return err
		}
		return e.store.UpsertStrategyData(ctx, NewStrategyData(vaultId, mint))
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

func (e *Engine) SetStrategyDelay(ctx context.Context, log Log, vaultId uuid.UUID, signer string, delay int64) error {
	return e.updateVault(ctx, log, vaultId, signer, func(vault *Vault) error {
		if delay < 0 {
			return errors.Errorf("negative strategy delay %d", delay)
		}
		vault.StrategyDelay = delay
		return nil
	})
}

func (e *Engine) TransferAuthority(ctx context.Context, log Log, vaultId uuid.UUID, signer, newAuthority string, direct, renounce bool) error {
	return e.updateVault(ctx, log, vaultId, signer, func(vault *Vault) error {
		return vault.TransferAuthority(newAuthority, direct, renounce)
	})
}

func (e *Engine) ClaimAuthority(ctx context.Context, log Log, vaultId uuid.UUID, signer string) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		vault, err := e.loadVault(ctx, vaultId)
		if err != nil {
			return err
		}
		if err := vault.ClaimAuthority(signer); err != nil {
			return err
		}
		vault.UpdatedAt = e.now()
		return e.store.UpsertVault(ctx, vault)
	})
}

func (e *Engine) updateVault(ctx context.Context, log Log, vaultId uuid.UUID, signer string, update func(vault *Vault) error) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		vault, err := e.loadVault(ctx, vaultId)
		if err != nil {
			return err
		}
		if err := vault.CheckAuthority(signer); err != nil {
			return err
		}
		if err := update(vault); err != nil {
			return err
		}
		vault.UpdatedAt = e.now()
		return e.store.UpsertVault(ctx, vault)
	})
}

func (e *Engine) WhitelistMasterContract(ctx context.Context, log Log, vaultId uuid.UUID, signer, masterContract string, whitelisted bool) error {
	if masterContract == "" {
		return ErrInvalidMasterContract
	}
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		vault, err := e.loadVault(ctx, vaultId)
		if err != nil {
			return err
		}
		if err := vault.CheckAuthority(signer); err != nil {
			return err
		}
		return e.store.UpsertMasterContractWhitelist(ctx, &MasterContractWhitelist{
			VaultId:        vaultId,
			MasterContract: masterContract,
			Whitelisted:    whitelisted,
		})
	})
}

// SetMasterContractApproval lets user delegate its balances to a
// whitelisted master contract, or revoke that delegation.
func (e *Engine) SetMasterContractApproval(ctx context.Context, log Log, vaultId uuid.UUID, user, masterContract string, approved bool) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		if _, err := e.loadVault(ctx, vaultId); err != nil {
			return err
		}
		if approved {
			whitelist, err := e.store.GetMasterContractWhitelist(ctx, vaultId, masterContract)
			if err != nil && !isNotFound(err) {
				return err
			}
			if whitelist == nil || !whitelist.Whitelisted {
				return ErrMasterContractNotWhitelisted
			}
		}
		return e.store.UpsertMasterContractApproval(ctx, &MasterContractApproval{
			VaultId:        vaultId,
			MasterContract: masterContract,
			User:           user,
			Approved:       approved,
		})
	})
}

func (e *Engine) ToShare(ctx context.Context, vaultId uuid.UUID, mint string, amount uint64, roundUp bool) (uint64, error) {
	total, err := e.loadTotal(ctx, vaultId, mint)
	if err != nil {
		return 0, err
	}
	return total.ToShare(amount, roundUp)
}

func (e *Engine) ToAmount(ctx context.Context, vaultId uuid.UUID, mint string, share uint64, roundUp bool) (uint64, error) {
	total, err := e.loadTotal(ctx, vaultId, mint)
	if err != nil {
		return 0, err
	}
	return total.ToAmount(share, roundUp)
}

func (e *Engine) BalanceOf(ctx context.Context, vaultId uuid.UUID, mint, owner string) (uint64, error) {
	balance, err := e.store.FindBalance(ctx, vaultId, mint, owner)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return balance.Amount, nil
}
