package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/adapters/logger"
)

var configKeys = []string{
	"LEDGER_CONFIG_FILE", "LOG_LEVEL", "CANDLE_PERIOD_SECONDS", "CANDLE_HISTORY_LIMIT", "INITIAL_CAPACITY",
	"TICK_INTERVAL_SECONDS", "MAX_FLUCTUATION", "RANDOM_SEED", "PRICE_SOURCE", "BINANCE_API_KEY",
	"BINANCE_API_SECRET", "IS_TESTNET", "BINANCE_REQUESTS_PER_SECOND", "JOURNAL_PATH", "INITIAL_WALLET",
}

// clearEnv blanks every key LoadConfig reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.InitialCapacity)
	assert.Equal(t, 10.0, cfg.CandlePeriod)
	assert.Equal(t, 50, cfg.CandleHistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.Equal(t, 0.05, cfg.MaxFluctuation)
	assert.Equal(t, int64(0), cfg.RandomSeed)
	assert.Equal(t, PriceSourceRandom, cfg.PriceSource)
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	assert.Equal(t, ":memory:", cfg.JournalPath)
	assert.Equal(t, 10000.0, cfg.InitialWallet)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.IsTestnet)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CANDLE_PERIOD_SECONDS", "60")
	t.Setenv("MAX_FLUCTUATION", "0.1")
	t.Setenv("PRICE_SOURCE", " Binance ")
	t.Setenv("RANDOM_SEED", "1234")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("IS_TESTNET", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 60.0, cfg.CandlePeriod)
	assert.Equal(t, 0.1, cfg.MaxFluctuation)
	assert.Equal(t, PriceSourceBinance, cfg.PriceSource)
	assert.Equal(t, int64(1234), cfg.RandomSeed)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.IsTestnet)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{name: "fluctuation at one", env: map[string]string{"MAX_FLUCTUATION": "1"}, wantMsg: "MAX_FLUCTUATION must be in"},
		{name: "negative fluctuation", env: map[string]string{"MAX_FLUCTUATION": "-0.1"}, wantMsg: "MAX_FLUCTUATION must be in"},
		{name: "non-numeric period", env: map[string]string{"CANDLE_PERIOD_SECONDS": "ten"}, wantMsg: "invalid CANDLE_PERIOD_SECONDS"},
		{name: "zero period", env: map[string]string{"CANDLE_PERIOD_SECONDS": "0"}, wantMsg: "CANDLE_PERIOD_SECONDS must be positive"},
		{name: "zero history", env: map[string]string{"CANDLE_HISTORY_LIMIT": "0"}, wantMsg: "CANDLE_HISTORY_LIMIT must be at least 1"},
		{name: "unknown price source", env: map[string]string{"PRICE_SOURCE": "kraken"}, wantMsg: "PRICE_SOURCE must be"},
		{name: "zero tick", env: map[string]string{"TICK_INTERVAL_SECONDS": "0"}, wantMsg: "TICK_INTERVAL_SECONDS must be positive"},
		{name: "bad seed", env: map[string]string{"RANDOM_SEED": "x"}, wantMsg: "invalid RANDOM_SEED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadConfig_CollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_FLUCTUATION", "2")
	t.Setenv("INITIAL_CAPACITY", "0")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_FLUCTUATION")
	assert.Contains(t, err.Error(), "INITIAL_CAPACITY")
	assert.Contains(t, err.Error(), "; ")
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	content := []byte("candle_period_seconds: 30\ncandle_history_limit: 20\nprice_source: binance\nlog_level: warn\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	t.Setenv("LEDGER_CONFIG_FILE", path)
	t.Setenv("CANDLE_HISTORY_LIMIT", "40")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.CandlePeriod)
	assert.Equal(t, 40, cfg.CandleHistoryLimit, "environment wins over the file")
	assert.Equal(t, PriceSourceBinance, cfg.PriceSource)
	assert.Equal(t, logger.LevelWarn, cfg.LogLevel)
	assert.Equal(t, 0.05, cfg.MaxFluctuation, "unset file keys keep defaults")
}

func TestLoadConfig_YAMLFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("candle_period_seconds: [oops"), 0o644))
	t.Setenv("LEDGER_CONFIG_FILE", bad)
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "failed to parse config file")
}
