package core

import (
	"context"

	"github.com/gofrs/uuid"
)

// Strategy is a yield source the vault invests idle tokens into. Every
// call may move tokens, so callers re-read token accounts afterwards.
type Strategy interface {
	Id() string
	// TokenAccount is the idle account the strategy returns tokens through.
	TokenAccount() string
	Info(ctx context.Context) (*BaseStrategyInfo, error)
	IsExecutor(ctx context.Context, user string) (bool, error)

	Skim(ctx context.Context, amount uint64) error
	// Harvest reports the profit or loss relative to balance.
	Harvest(ctx context.Context, balance uint64) (int64, error)
	Withdraw(ctx context.Context, amount uint64) (uint64, error)
	Exit(ctx context.Context) error
	HarvestRewards(ctx context.Context) error
	SafeHarvest(ctx context.Context, maxBalance uint64) error
	Transfer(ctx context.Context, to string, amount uint64) error
}

type (
	StrategyDataStore interface {
		GetStrategyData(ctx context.Context, vaultId uuid.UUID, mint string) (*StrategyData, error)
		UpsertStrategyData(ctx context.Context, data *StrategyData) error
	}

	BaseStrategyInfoStore interface {
		GetBaseStrategyInfo(ctx context.Context, strategyId string) (*BaseStrategyInfo, error)
		UpsertBaseStrategyInfo(ctx context.Context, info *BaseStrategyInfo) error
	}

	ExecutorInfoStore interface {
		GetExecutorInfo(ctx context.Context, strategyId, user string) (*ExecutorInfo, error)
		UpsertExecutorInfo(ctx context.Context, info *ExecutorInfo) error
	}

	// StrategyData is the vault's view of the strategy of one asset. Balance
	// is what the vault believes the strategy holds, reconciled on harvest.
	StrategyData struct {
		VaultId          uuid.UUID     `json:"vaultId"`
		Mint             string        `json:"mint"`
		State            StrategyState `json:"state"`
		TargetPercentage uint64        `json:"targetPercentage"`
		Balance          uint64        `json:"balance"`
	}

	BaseStrategyInfo struct {
		StrategyId         string `json:"strategyId"`
		StrategyToken      string `json:"strategyToken"`
		Exited             bool   `json:"exited"`
		MaxBentoboxBalance uint64 `json:"maxBentoboxBalance"`
	}

	ExecutorInfo struct {
		StrategyId string `json:"strategyId"`
		User       string `json:"user"`
		IsExecutor bool   `json:"isExecutor"`
	}
)

func NewStrategyData(vaultId uuid.UUID, mint string) *StrategyData {
	return &StrategyData{
		VaultId: vaultId,
		Mint:    mint,
		State:   StrategyState{Kind: StrategyNone},
	}
}

func (s *StrategyData) Clone() *StrategyData {
	return &StrategyData{
		VaultId:          s.VaultId,
		Mint:             s.Mint,
		State:            s.State,
		TargetPercentage: s.TargetPercentage,
		Balance:          s.Balance,
	}
}

type StrategyStateKind uint8

const (
	StrategyNone StrategyStateKind = iota
	StrategyPending
	StrategyActive
)

func (k StrategyStateKind) String() string {
	switch k {
	case StrategyNone:
		return "None"
	case StrategyPending:
		return "Pending"
	case StrategyActive:
		return "Active"
	default:
		return "Unknown"
	}
}

// StrategyState is the two phase strategy switch of an asset.
//
//	None    -> Pending{Target, ReadyAt}
//	Active  -> Pending{Target, ReadyAt, Active}
//	Pending -> Active{Target} once ReadyAt has passed
//
// While a replacement is pending the previous strategy keeps running and
// stays in Active. An empty Target retires the strategy without a
// replacement.
type StrategyState struct {
	Kind    StrategyStateKind `json:"kind"`
	Target  string            `json:"target"`
	ReadyAt int64             `json:"readyAt"`
	Active  string            `json:"active"`
}

// Current returns the strategy presently holding vault funds.
func (s StrategyState) Current() (string, bool) {
	switch s.Kind {
	case StrategyActive:
		return s.Target, true
	case StrategyPending:
		return s.Active, s.Active != ""
	default:
		return "", false
	}
}

// IsPending reports whether target is queued.
func (s StrategyState) IsPending(target string) bool {
	return s.Kind == StrategyPending && s.Target == target
}

// Queue starts or restarts the delay for target.
func (s StrategyState) Queue(target string, readyAt int64) StrategyState {
	active, _ := s.Current()
	return StrategyState{
		Kind:    StrategyPending,
		Target:  target,
		ReadyAt: readyAt,
		Active:  active,
	}
}

// Activate promotes the pending target once now has reached ReadyAt.
func (s StrategyState) Activate(target string, now int64) (StrategyState, error) {
	if !s.IsPending(target) {
		return s, ErrInvalidStrategyState
	}
	if now < s.ReadyAt {
		return s, ErrTooEarlyStrategyStartDate
	}
	if target == "" {
		return StrategyState{Kind: StrategyNone}, nil
	}
	return StrategyState{Kind: StrategyActive, Target: target}, nil
}

// Retire drops the running strategy, keeping a queued replacement queued.
func (s StrategyState) Retire() StrategyState {
	switch s.Kind {
	case StrategyPending:
		s.Active = ""
		return s
	default:
		return StrategyState{Kind: StrategyNone}
	}
}
