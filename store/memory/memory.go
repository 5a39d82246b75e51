package memory

import (
	"context"
	"sort"
	"sync"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type txKey struct{}

// Store keeps every engine record in maps. Transactions are serialized and
// roll back by restoring a snapshot taken when they start.
type Store struct {
	txMu sync.Mutex

	mu sync.RWMutex
	s  *state
}

type state struct {
	tokens       map[string]*core.TokenAccount
	vaults       map[uuid.UUID]*core.Vault
	totals       map[string]*core.Total
	balances     map[string]*core.Balance
	whitelists   map[string]*core.MasterContractWhitelist
	approvals    map[string]*core.MasterContractApproval
	strategyData map[string]*core.StrategyData
	infos        map[string]*core.BaseStrategyInfo
	executors    map[string]*core.ExecutorInfo
	cauldrons    map[uuid.UUID]*core.Cauldron
	cauldronTots map[uuid.UUID]*core.CauldronTotal
	userBalances map[string]*core.UserBalance
	liquidators  map[string]*core.LiquidatorAccount
}

func New() *Store {
	return &Store{s: newState()}
}

func newState() *state {
	return &state{
		tokens:       map[string]*core.TokenAccount{},
		vaults:       map[uuid.UUID]*core.Vault{},
		totals:       map[string]*core.Total{},
		balances:     map[string]*core.Balance{},
		whitelists:   map[string]*core.MasterContractWhitelist{},
		approvals:    map[string]*core.MasterContractApproval{},
		strategyData: map[string]*core.StrategyData{},
		infos:        map[string]*core.BaseStrategyInfo{},
		executors:    map[string]*core.ExecutorInfo{},
		cauldrons:    map[uuid.UUID]*core.Cauldron{},
		cauldronTots: map[uuid.UUID]*core.CauldronTotal{},
		userBalances: map[string]*core.UserBalance{},
		liquidators:  map[string]*core.LiquidatorAccount{},
	}
}

// clone copies every record; records are only ever replaced, never
// mutated in place, so copying the pointers is enough.
func (s *state) clone() *state {
	c := newState()
	copyMap(c.tokens, s.tokens)
	copyMap(c.vaults, s.vaults)
	copyMap(c.totals, s.totals)
	copyMap(c.balances, s.balances)
	copyMap(c.whitelists, s.whitelists)
	copyMap(c.approvals, s.approvals)
	copyMap(c.strategyData, s.strategyData)
	copyMap(c.infos, s.infos)
	copyMap(c.executors, s.executors)
	copyMap(c.cauldrons, s.cauldrons)
	copyMap(c.cauldronTots, s.cauldronTots)
	copyMap(c.userBalances, s.userBalances)
	copyMap(c.liquidators, s.liquidators)
	return c
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

func key(parts ...string) string {
	k := ""
	for i, p := range parts {
		if i > 0 {
			k += "/"
		}
		k += p
	}
	return k
}

// Transaction runs fn atomically. A Transaction started from inside fn
// joins the outer one.
func (m *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.s.clone()
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.mu.Lock()
		m.s = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func get[K comparable, V any](m *Store, pick func(s *state) map[K]*V, k K, clone func(*V) *V) (*V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := pick(m.s)[k]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return clone(v), nil
}

func put[K comparable, V any](m *Store, pick func(s *state) map[K]*V, k K, v *V, clone func(*V) *V) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pick(m.s)[k] = clone(v)
	return nil
}

func list[K comparable, V any](m *Store, pick func(s *state) map[K]*V, match func(*V) bool, clone func(*V) *V) []*V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*V
	for _, v := range pick(m.s) {
		if match(v) {
			out = append(out, clone(v))
		}
	}
	return out
}

func (m *Store) GetTokenAccount(ctx context.Context, address string) (*core.TokenAccount, error) {
	return get(m, tokens, address, (*core.TokenAccount).Clone)
}

func (m *Store) UpsertTokenAccount(ctx context.Context, account *core.TokenAccount) error {
	return put(m, tokens, account.Address, account, (*core.TokenAccount).Clone)
}

func (m *Store) MintSupply(ctx context.Context, mint string) (uint64, error) {
	var supply uint64
	for _, account := range list(m, tokens, func(a *core.TokenAccount) bool { return a.Mint == mint }, (*core.TokenAccount).Clone) {
		var err error
		if supply, err = utils.AddUint64(supply, account.Amount); err != nil {
			return 0, err
		}
	}
	return supply, nil
}

func (m *Store) CreateVault(ctx context.Context, vault *core.Vault) error {
	return put(m, vaults, vault.Id, vault, (*core.Vault).Clone)
}

func (m *Store) UpsertVault(ctx context.Context, vault *core.Vault) error {
	return put(m, vaults, vault.Id, vault, (*core.Vault).Clone)
}

func (m *Store) GetVaultById(ctx context.Context, vaultId uuid.UUID) (*core.Vault, error) {
	return get(m, vaults, vaultId, (*core.Vault).Clone)
}

func (m *Store) CreateTotal(ctx context.Context, total *core.Total) error {
	return m.UpsertTotal(ctx, total)
}

func (m *Store) UpsertTotal(ctx context.Context, total *core.Total) error {
	return put(m, totals, key(total.VaultId.String(), total.Mint), total, (*core.Total).Clone)
}

func (m *Store) GetTotal(ctx context.Context, vaultId uuid.UUID, mint string) (*core.Total, error) {
	return get(m, totals, key(vaultId.String(), mint), (*core.Total).Clone)
}

func (m *Store) ListTotals(ctx context.Context, vaultId uuid.UUID) ([]*core.Total, error) {
	out := list(m, totals, func(t *core.Total) bool { return t.VaultId == vaultId }, (*core.Total).Clone)
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out, nil
}

func (m *Store) FindBalance(ctx context.Context, vaultId uuid.UUID, mint, owner string) (*core.Balance, error) {
	return get(m, balances, key(vaultId.String(), mint, owner), (*core.Balance).Clone)
}

func (m *Store) UpsertBalance(ctx context.Context, balance *core.Balance) error {
	return put(m, balances, key(balance.VaultId.String(), balance.Mint, balance.Owner), balance, (*core.Balance).Clone)
}

func (m *Store) ListBalances(ctx context.Context, vaultId uuid.UUID, mint string) ([]*core.Balance, error) {
	out := list(m, balances, func(b *core.Balance) bool { return b.VaultId == vaultId && b.Mint == mint }, (*core.Balance).Clone)
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out, nil
}

func (m *Store) GetMasterContractWhitelist(ctx context.Context, vaultId uuid.UUID, masterContract string) (*core.MasterContractWhitelist, error) {
	return get(m, whitelists, key(vaultId.String(), masterContract), cloneWhitelist)
}

func (m *Store) UpsertMasterContractWhitelist(ctx context.Context, whitelist *core.MasterContractWhitelist) error {
	return put(m, whitelists, key(whitelist.VaultId.String(), whitelist.MasterContract), whitelist, cloneWhitelist)
}

func (m *Store) GetMasterContractApproval(ctx context.Context, vaultId uuid.UUID, masterContract, user string) (*core.MasterContractApproval, error) {
	return get(m, approvals, key(vaultId.String(), masterContract, user), cloneApproval)
}

func (m *Store) UpsertMasterContractApproval(ctx context.Context, approval *core.MasterContractApproval) error {
	return put(m, approvals, key(approval.VaultId.String(), approval.MasterContract, approval.User), approval, cloneApproval)
}

func (m *Store) GetStrategyData(ctx context.Context, vaultId uuid.UUID, mint string) (*core.StrategyData, error) {
	return get(m, strategyData, key(vaultId.String(), mint), (*core.StrategyData).Clone)
}

func (m *Store) UpsertStrategyData(ctx context.Context, data *core.StrategyData) error {
	return put(m, strategyData, key(data.VaultId.String(), data.Mint), data, (*core.StrategyData).Clone)
}

func (m *Store) GetBaseStrategyInfo(ctx context.Context, strategyId string) (*core.BaseStrategyInfo, error) {
	return get(m, infos, strategyId, cloneInfo)
}

func (m *Store) UpsertBaseStrategyInfo(ctx context.Context, info *core.BaseStrategyInfo) error {
	return put(m, infos, info.StrategyId, info, cloneInfo)
}

func (m *Store) GetExecutorInfo(ctx context.Context, strategyId, user string) (*core.ExecutorInfo, error) {
	return get(m, executors, key(strategyId, user), cloneExecutor)
}

func (m *Store) UpsertExecutorInfo(ctx context.Context, info *core.ExecutorInfo) error {
	return put(m, executors, key(info.StrategyId, info.User), info, cloneExecutor)
}

func (m *Store) CreateCauldron(ctx context.Context, cauldron *core.Cauldron) error {
	return put(m, cauldrons, cauldron.Id, cauldron, (*core.Cauldron).Clone)
}

func (m *Store) UpsertCauldron(ctx context.Context, cauldron *core.Cauldron) error {
	return put(m, cauldrons, cauldron.Id, cauldron, (*core.Cauldron).Clone)
}

func (m *Store) GetCauldronById(ctx context.Context, cauldronId uuid.UUID) (*core.Cauldron, error) {
	return get(m, cauldrons, cauldronId, (*core.Cauldron).Clone)
}

func (m *Store) GetCauldronTotal(ctx context.Context, cauldronId uuid.UUID) (*core.CauldronTotal, error) {
	return get(m, cauldronTotals, cauldronId, (*core.CauldronTotal).Clone)
}

func (m *Store) UpsertCauldronTotal(ctx context.Context, total *core.CauldronTotal) error {
	return put(m, cauldronTotals, total.CauldronId, total, (*core.CauldronTotal).Clone)
}

func (m *Store) FindUserBalance(ctx context.Context, cauldronId uuid.UUID, user string) (*core.UserBalance, error) {
	return get(m, userBalances, key(cauldronId.String(), user), (*core.UserBalance).Clone)
}

func (m *Store) UpsertUserBalance(ctx context.Context, balance *core.UserBalance) error {
	return put(m, userBalances, key(balance.CauldronId.String(), balance.User), balance, (*core.UserBalance).Clone)
}

func (m *Store) ListUserBalances(ctx context.Context, cauldronId uuid.UUID) ([]*core.UserBalance, error) {
	out := list(m, userBalances, func(b *core.UserBalance) bool { return b.CauldronId == cauldronId }, (*core.UserBalance).Clone)
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out, nil
}

func (m *Store) GetLiquidatorAccount(ctx context.Context, cauldronId uuid.UUID, user string) (*core.LiquidatorAccount, error) {
	return get(m, liquidators, key(cauldronId.String(), user), (*core.LiquidatorAccount).Clone)
}

func (m *Store) UpsertLiquidatorAccount(ctx context.Context, account *core.LiquidatorAccount) error {
	return put(m, liquidators, key(account.CauldronId.String(), account.User), account, (*core.LiquidatorAccount).Clone)
}

func (m *Store) DeleteLiquidatorAccount(ctx context.Context, cauldronId uuid.UUID, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(cauldronId.String(), user)
	if _, ok := m.s.liquidators[k]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.liquidators, k)
	return nil
}

func tokens(s *state) map[string]*core.TokenAccount { return s.tokens }
func vaults(s *state) map[uuid.UUID]*core.Vault { return s.vaults }
func totals(s *state) map[string]*core.Total { return s.totals }
func balances(s *state) map[string]*core.Balance { return s.balances }
func whitelists(s *state) map[string]*core.MasterContractWhitelist { return s.whitelists }
func approvals(s *state) map[string]*core.MasterContractApproval { return s.approvals }
func strategyData(s *state) map[string]*core.StrategyData { return s.strategyData }
func infos(s *state) map[string]*core.BaseStrategyInfo { return s.infos }
func executors(s *state) map[string]*core.ExecutorInfo { return s.executors }
func cauldrons(s *state) map[uuid.UUID]*core.Cauldron { return s.cauldrons }
func cauldronTotals(s *state) map[uuid.UUID]*core.CauldronTotal { return s.cauldronTots }
func userBalances(s *state) map[string]*core.UserBalance { return s.userBalances }
func liquidators(s *state) map[string]*core.LiquidatorAccount { return s.liquidators }

func cloneWhitelist(w *core.MasterContractWhitelist) *core.MasterContractWhitelist {
	c := *w
	return &c
}

func cloneApproval(a *core.MasterContractApproval) *core.MasterContractApproval {
	c := *a
	return &c
}

func cloneInfo(i *core.BaseStrategyInfo) *core.BaseStrategyInfo {
	c := *i
	return &c
}

func cloneExecutor(e *core.ExecutorInfo) *core.ExecutorInfo {
	c := *e
	return &c
}

var _ core.Store = (*Store)(nil)
