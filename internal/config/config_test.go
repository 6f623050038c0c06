package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Simulation)
	assert.Equal(t, []string{"btc"}, cfg.Markets)
	assert.True(t, cfg.Shares.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.SumTarget.Equal(decimal.RequireFromString("0.95")))
	assert.True(t, cfg.MoveThreshold.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, 2, cfg.WindowMinutes)
	assert.Equal(t, 5, cfg.StopLossMaxWaitMin)
	assert.Equal(t, 2, cfg.SignatureType)
	assert.Equal(t, "1s", cfg.CheckInterval.String())
	assert.Equal(t, "20s", cfg.SettlementInterval.String())
}

func TestLoadParsesMarketList(t *testing.T) {
	t.Setenv("MARKETS", "btc, eth ,sol")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"btc", "eth", "sol"}, cfg.Markets)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DUMP_HEDGE_SHARES", "25")
	t.Setenv("DUMP_HEDGE_SUM_TARGET", "0.9")
	t.Setenv("CHECK_INTERVAL_MS", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Shares.Equal(decimal.NewFromInt(25)))
	assert.True(t, cfg.SumTarget.Equal(decimal.RequireFromString("0.9")))
	assert.Equal(t, "500ms", cfg.CheckInterval.String())
}

func TestLiveModeRequiresPrivateKey(t *testing.T) {
	t.Setenv("PRODUCTION", "true")
	t.Setenv("PRIVATE_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIVATE_KEY")
}

func TestLiveModeWithKeyLoads(t *testing.T) {
	t.Setenv("PRODUCTION", "true")
	t.Setenv("PRIVATE_KEY", "abc123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Simulation)
}
