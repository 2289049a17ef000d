package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradeledger/internal/adapters/logger" // Import the logger package for LogLevel
)

// Price sources understood by the tick driver.
const (
	PriceSourceRandom  = "random"
	PriceSourceBinance = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Ledger
	InitialCapacity    int
	CandlePeriod       float64 // Candle bucket width in seconds
	CandleHistoryLimit int     // Candles kept per symbol

	// Price simulation
	TickInterval   time.Duration
	MaxFluctuation float64 // Fraction in [0,1), e.g. 0.05 for ±5%
	RandomSeed     int64   // 0 seeds from the clock
	PriceSource    string  // "random" or "binance"

	// Binance API (public market data only)
	APIKey            string
	SecretKey         string
	IsTestnet         bool
	RequestsPerSecond float64

	// Journal
	JournalPath string

	// Wallet
	InitialWallet float64

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// fileConfig mirrors the optional YAML file. Unset keys keep the built-in defaults.
type fileConfig struct {
	LogLevel           *string  `yaml:"log_level"`
	CandlePeriod       *float64 `yaml:"candle_period_seconds"`
	CandleHistoryLimit *int     `yaml:"candle_history_limit"`
	InitialCapacity    *int     `yaml:"initial_capacity"`
	TickInterval       *int     `yaml:"tick_interval_seconds"`
	MaxFluctuation     *float64 `yaml:"max_fluctuation"`
	RandomSeed         *int64   `yaml:"random_seed"`
	PriceSource        *string  `yaml:"price_source"`
	IsTestnet          *bool    `yaml:"is_testnet"`
	RequestsPerSecond  *float64 `yaml:"binance_requests_per_second"`
	JournalPath        *string  `yaml:"journal_path"`
	InitialWallet      *float64 `yaml:"initial_wallet"`
}

// LoadConfig loads configuration from an optional YAML file, the .env file and
// environment variables. Environment variables win over the YAML file.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	fc := &fileConfig{}
	if path := os.Getenv("LEDGER_CONFIG_FILE"); path != "" {
		var err error
		fc, err = loadFile(path)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Ledger
	cfg.InitialCapacity, err = getEnvAsIntRequired("INITIAL_CAPACITY", orDefault(fc.InitialCapacity, 2))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CAPACITY: %v", err))
	} else if cfg.InitialCapacity < 1 {
		errs = append(errs, "INITIAL_CAPACITY must be at least 1")
	}

	cfg.CandlePeriod, err = getEnvAsFloatRequired("CANDLE_PERIOD_SECONDS", orDefault(fc.CandlePeriod, 10.0))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CANDLE_PERIOD_SECONDS: %v", err))
	} else if cfg.CandlePeriod <= 0 {
		errs = append(errs, "CANDLE_PERIOD_SECONDS must be positive")
	}

	cfg.CandleHistoryLimit, err = getEnvAsIntRequired("CANDLE_HISTORY_LIMIT", orDefault(fc.CandleHistoryLimit, 50))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CANDLE_HISTORY_LIMIT: %v", err))
	} else if cfg.CandleHistoryLimit < 1 {
		errs = append(errs, "CANDLE_HISTORY_LIMIT must be at least 1")
	}

	// Price simulation
	tickSeconds, err := getEnvAsIntRequired("TICK_INTERVAL_SECONDS", orDefault(fc.TickInterval, 5))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TICK_INTERVAL_SECONDS: %v", err))
	} else if tickSeconds <= 0 {
		errs = append(errs, "TICK_INTERVAL_SECONDS must be positive")
	}
	cfg.TickInterval = time.Duration(tickSeconds) * time.Second

	cfg.MaxFluctuation, err = getEnvAsFloatRequired("MAX_FLUCTUATION", orDefault(fc.MaxFluctuation, 0.05))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_FLUCTUATION: %v", err))
	} else if cfg.MaxFluctuation < 0 || cfg.MaxFluctuation >= 1.0 {
		errs = append(errs, "MAX_FLUCTUATION must be in [0.0, 1.0)")
	}

	cfg.RandomSeed, err = getEnvAsInt64Required("RANDOM_SEED", orDefault(fc.RandomSeed, 0))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RANDOM_SEED: %v", err))
	}

	cfg.PriceSource = strings.ToLower(strings.TrimSpace(getEnv("PRICE_SOURCE", orDefault(fc.PriceSource, PriceSourceRandom))))
	if cfg.PriceSource != PriceSourceRandom && cfg.PriceSource != PriceSourceBinance {
		errs = append(errs, fmt.Sprintf("PRICE_SOURCE must be %q or %q", PriceSourceRandom, PriceSourceBinance))
	}

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", orDefault(fc.IsTestnet, false))

	cfg.RequestsPerSecond, err = getEnvAsFloatRequired("BINANCE_REQUESTS_PER_SECOND", orDefault(fc.RequestsPerSecond, 5.0))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BINANCE_REQUESTS_PER_SECOND: %v", err))
	} else if cfg.RequestsPerSecond <= 0 {
		errs = append(errs, "BINANCE_REQUESTS_PER_SECOND must be positive")
	}

	// Journal
	cfg.JournalPath = getEnv("JOURNAL_PATH", orDefault(fc.JournalPath, ":memory:"))

	// Wallet
	cfg.InitialWallet, err = getEnvAsFloatRequired("INITIAL_WALLET", orDefault(fc.InitialWallet, 10000.0))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_WALLET: %v", err))
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", orDefault(fc.LogLevel, "INFO"))
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	fc := &fileConfig{}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return fc, nil
}

func orDefault[T any](value *T, defaultValue T) T {
	if value == nil {
		return defaultValue
	}
	return *value
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsInt64Required(key string, defaultValue int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
