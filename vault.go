package core

import (
	"context"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
)

type (
	VaultStore interface {
		CreateVault(ctx context.Context, vault *Vault) error
		UpsertVault(ctx context.Context, vault *Vault) error
		GetVaultById(ctx context.Context, vaultId uuid.UUID) (*Vault, error)
	}

	Vault struct {
		Id               uuid.UUID `json:"id"`
		Name             string    `json:"name"`
		Authority        string    `json:"authority"`
		PendingAuthority string    `json:"pendingAuthority"`

		// seconds a queued strategy waits before it can be activated
		StrategyDelay       int64  `json:"strategyDelay"`
		MinimumShareBalance uint64 `json:"minimumShareBalance"`
		MaxTargetPercentage uint64 `json:"maxTargetPercentage"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

func NewVault(clk clock.Clock, name, authority string, minimumShareBalance, maxTargetPercentage uint64) *Vault {
	now := clk.Now().Unix()
	return &Vault{
		Id:                  utils.DeriveId(authority, name),
		Name:                name,
		Authority:           authority,
		MinimumShareBalance: minimumShareBalance,
		MaxTargetPercentage: maxTargetPercentage,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (v *Vault) Clone() *Vault {
	return &Vault{
		Id:                  v.Id,
		Name:                v.Name,
		Authority:           v.Authority,
		PendingAuthority:    v.PendingAuthority,
		StrategyDelay:       v.StrategyDelay,
		MinimumShareBalance: v.MinimumShareBalance,
		MaxTargetPercentage: v.MaxTargetPercentage,
		CreatedAt:           v.CreatedAt,
		UpdatedAt:           v.UpdatedAt,
	}
}

// Address is the owner of every token account held by the vault.
func (v *Vault) Address() string {
	return "vault:" + v.Id.String()
}

// TokenAccountAddress is the vault's token account for mint.
func (v *Vault) TokenAccountAddress(mint string) string {
	return utils.DeriveAddress("vault-token", v.Id.String(), mint)
}

func (v *Vault) CheckAuthority(signer string) error {
	if signer == "" || signer != v.Authority {
		return ErrUnauthorized
	}
	return nil
}

// TransferAuthority hands the vault over directly or queues newAuthority
// for a later claim.
func (v *Vault) TransferAuthority(newAuthority string, direct, renounce bool) error {
	if direct {
		if newAuthority == "" && !renounce {
			return ErrEmptyAuthorityAddress
		}
		v.Authority = newAuthority
		v.PendingAuthority = ""
		return nil
	}
	v.PendingAuthority = newAuthority
	return nil
}

func (v *Vault) ClaimAuthority(signer string) error {
	if v.PendingAuthority == "" {
		return ErrEmptyPendingAuthorityAddress
	}
	if signer != v.PendingAuthority {
		return ErrUnauthorized
	}
	v.Authority = v.PendingAuthority
	v.PendingAuthority = ""
	return nil
}
