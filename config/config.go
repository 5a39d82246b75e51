package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type (
	Config struct {
		Log        LogConfig        `toml:"log"`
		Vault      VaultConfig      `toml:"vault"`
		Cauldron   CauldronConfig   `toml:"cauldron"`
		Oracle     OracleConfig     `toml:"oracle"`
		Pool       PoolConfig       `toml:"pool"`
		Reserve    ReserveConfig    `toml:"reserve"`
		Events     EventsConfig     `toml:"events"`
		Simulation SimulationConfig `toml:"simulation"`
	}

	LogConfig struct {
		Level string `toml:"level"`
	}

	VaultConfig struct {
		Name                string `toml:"name"`
		Authority           string `toml:"authority"`
		MinimumShareBalance uint64 `toml:"minimum_share_balance"`
		MaxTargetPercentage uint64 `toml:"max_target_percentage"`
		TargetPercentage    uint64 `toml:"target_percentage"`
		// seconds
		StrategyDelay int64 `toml:"strategy_delay"`
	}

	CauldronConfig struct {
		Name                  string                 `toml:"name"`
		InterestPerSecond     uint64                 `toml:"interest_per_second"`
		BorrowLimitTotal      uint64                 `toml:"borrow_limit_total"`
		BorrowLimitPerAddress uint64                 `toml:"borrow_limit_per_address"`
		Constants             core.CauldronConstants `toml:"constants"`
	}

	OracleConfig struct {
		Mantissa int64  `toml:"mantissa"`
		Scale    uint32 `toml:"scale"`
	}

	PoolConfig struct {
		// orca or raydium
		Variant           string `toml:"variant"`
		CollateralReserve uint64 `toml:"collateral_reserve"`
		DebtReserve       uint64 `toml:"debt_reserve"`
	}

	ReserveConfig struct {
		Liquidity         uint64 `toml:"liquidity"`
		FlashLoanFeeWad   uint64 `toml:"flash_loan_fee_wad"`
		HostFeePercentage uint8  `toml:"host_fee_percentage"`
	}

	// EventsConfig selects where audit events are kept. An empty DSN keeps
	// them in a private in-memory sqlite database.
	EventsConfig struct {
		DSN string `toml:"dsn"`
	}

	SimulationConfig struct {
		Deposit       uint64 `toml:"deposit"`
		Collateral    uint64 `toml:"collateral"`
		Borrow        uint64 `toml:"borrow"`
		Days          int    `toml:"days"`
		StrategyYield uint64 `toml:"strategy_yield"`
		// oracle mantissa the simulation moves to before liquidating
		CrashMantissa int64  `toml:"crash_mantissa"`
		FlashLoan     uint64 `toml:"flash_loan"`
	}
)

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Vault: VaultConfig{
			Name:                "bentobox",
			Authority:           "authority",
			MinimumShareBalance: 1000,
			MaxTargetPercentage: 95,
			TargetPercentage:    80,
			StrategyDelay:       2 * 24 * 60 * 60,
		},
		Cauldron: CauldronConfig{
			Name:                  "cauldron",
			InterestPerSecond:     10000,
			BorrowLimitTotal:      core.MAX_BORROW_LIMIT,
			BorrowLimitPerAddress: core.MAX_BORROW_LIMIT,
			Constants: core.CauldronConstants{
				CollaterizationRate:            75000,
				CollaterizationRatePrecision:   100000,
				LiquidationMultiplier:          112500,
				LiquidationMultiplierPrecision: 100000,
				DistributionPart:               10,
				DistributionPrecision:          100,
				BorrowOpeningFee:               1000,
				BorrowOpeningFeePrecision:      100000,
				OnePercentRate:                 317097920,
				StaleAfter:                     60,
				CompleteLiquidationDuration:    60,
			},
		},
		Oracle: OracleConfig{
			Mantissa: 100000000,
			Scale:    8,
		},
		Pool: PoolConfig{
			Variant:           "orca",
			CollateralReserve: 1_000_000_000,
			DebtReserve:       1_000_000_000,
		},
		Reserve: ReserveConfig{
			Liquidity:         10_000_000,
			FlashLoanFeeWad:   3_000_000_000_000_000,
			HostFeePercentage: 20,
		},
		Simulation: SimulationConfig{
			Deposit:       10_000_000,
			Collateral:    1_000_000,
			Borrow:        500_000,
			Days:          30,
			StrategyYield: 50_000,
			CrashMantissa: 200000000,
			FlashLoan:     1_000_000,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("config %s: unknown key %s", path, undecoded[0].String())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	if c.Vault.Authority == "" {
		return errors.Wrap(core.ErrEmptyAuthorityAddress, "vault.authority")
	}
	if c.Vault.MaxTargetPercentage > core.MAX_TARGET_PERCENTAGE {
		return errors.Errorf("vault.max_target_percentage %d above %d", c.Vault.MaxTargetPercentage, core.MAX_TARGET_PERCENTAGE)
	}
	if c.Vault.TargetPercentage > c.Vault.MaxTargetPercentage {
		return errors.Errorf("vault.target_percentage %d above max %d", c.Vault.TargetPercentage, c.Vault.MaxTargetPercentage)
	}
	if c.Vault.StrategyDelay < 0 {
		return errors.Errorf("vault.strategy_delay %d is negative", c.Vault.StrategyDelay)
	}
	if err := c.Cauldron.Constants.Validate(); err != nil {
		return errors.Wrap(err, "cauldron.constants")
	}
	if c.Oracle.Mantissa <= 0 {
		return errors.Errorf("oracle.mantissa %d must be positive", c.Oracle.Mantissa)
	}
	if c.Oracle.Scale > 36 {
		return errors.Errorf("oracle.scale %d above 36", c.Oracle.Scale)
	}
	switch c.Pool.Variant {
	case "orca", "raydium":
	default:
		return errors.Errorf("pool.variant %q unknown", c.Pool.Variant)
	}
	if c.Pool.CollateralReserve == 0 || c.Pool.DebtReserve == 0 {
		return errors.New("pool reserves must be non zero")
	}
	if c.Reserve.HostFeePercentage > 100 {
		return errors.Errorf("reserve.host_fee_percentage %d above 100", c.Reserve.HostFeePercentage)
	}
	if c.Simulation.Days < 0 {
		return errors.Errorf("simulation.days %d is negative", c.Simulation.Days)
	}
	return nil
}
