package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"

[vault]
target_percentage = 50
strategy_delay = 3600

[cauldron]
interest_per_second = 42

[cauldron.constants]
collaterization_rate = 90000

[pool]
variant = "raydium"

[simulation]
days = 7
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, uint64(50), cfg.Vault.TargetPercentage)
	assert.Equal(t, int64(3600), cfg.Vault.StrategyDelay)
	assert.Equal(t, uint64(42), cfg.Cauldron.InterestPerSecond)
	assert.Equal(t, uint64(90000), cfg.Cauldron.Constants.CollaterizationRate)
	assert.Equal(t, "raydium", cfg.Pool.Variant)
	assert.Equal(t, 7, cfg.Simulation.Days)

	// untouched keys keep their defaults
	assert.Equal(t, uint64(95), cfg.Vault.MaxTargetPercentage)
	assert.Equal(t, uint64(100000), cfg.Cauldron.Constants.CollaterizationRatePrecision)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown key", content: "[vault]\ncolour = \"blue\"\n"},
		{name: "unknown pool", content: "[pool]\nvariant = \"uniswap\"\n"},
		{name: "target above max", content: "[vault]\ntarget_percentage = 96\n"},
		{name: "bad level", content: "[log]\nlevel = \"loud\"\n"},
		{name: "zero precision", content: "[cauldron.constants]\ndistribution_precision = 0\n"},
		{name: "host fee", content: "[reserve]\nhost_fee_percentage = 101\n"},
		{name: "syntax", content: "[vault\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
