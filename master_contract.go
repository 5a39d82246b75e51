package core

import (
	"context"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type (
	MasterContractStore interface {
		GetMasterContractWhitelist(ctx context.Context, vaultId uuid.UUID, masterContract string) (*MasterContractWhitelist, error)
		UpsertMasterContractWhitelist(ctx context.Context, whitelist *MasterContractWhitelist) error
		GetMasterContractApproval(ctx context.Context, vaultId uuid.UUID, masterContract, user string) (*MasterContractApproval, error)
		UpsertMasterContractApproval(ctx context.Context, approval *MasterContractApproval) error
	}

	// MasterContractWhitelist marks a program, e.g. a cauldron, as one users
	// may delegate their vault balances to.
	MasterContractWhitelist struct {
		VaultId        uuid.UUID `json:"vaultId"`
		MasterContract string    `json:"masterContract"`
		Whitelisted    bool      `json:"whitelisted"`
	}

	MasterContractApproval struct {
		VaultId        uuid.UUID `json:"vaultId"`
		MasterContract string    `json:"masterContract"`
		User           string    `json:"user"`
		Approved       bool      `json:"approved"`
	}
)

// allowed reports whether signer may move the vault balance of owner.
func allowed(ctx context.Context, store MasterContractStore, vault *Vault, owner, signer string) error {
	if owner == signer || owner == vault.Address() {
		return nil
	}

	whitelist, err := store.GetMasterContractWhitelist(ctx, vault.Id, signer)
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if whitelist == nil || !whitelist.Whitelisted {
		return ErrMasterContractNotWhitelisted
	}

	approval, err := store.GetMasterContractApproval(ctx, vault.Id, signer, owner)
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if approval == nil || !approval.Approved {
		return ErrMasterContractNotApproved
	}
	return nil
}
