package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"geoVenue/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Engine parameters
	MaxLeverage             int    // Upper bound on position leverage
	FeeBps                  uint64 // Execution fee in basis points of the payment
	MaxPositionsPerTrader   int    // Cap on concurrently open positions per trader
	LiquidationThresholdBps uint64 // Margin-ratio floor for forced closes
	LiquidationBonusBps     uint64 // Liquidator bonus as bps of initial margin
	OrderTTL                time.Duration

	// Identities
	OwnerAccount string // Manages the registry allow-list

	// Oracle
	OracleKind    string            // "pseudo" or "binance"
	BinanceAPIKey string            //
	BinanceSecret string            //
	OracleSymbols map[string]string // market id -> exchange symbol
	OracleScale   int               // decimal places kept in integer price units

	// HTTP binding
	HTTPAddr string

	// Journal database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Engine parameters
	cfg.MaxLeverage, err = getEnvAsIntRequired("MAX_LEVERAGE", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_LEVERAGE: %v", err))
	} else if cfg.MaxLeverage < 1 {
		errs = append(errs, "MAX_LEVERAGE must be at least 1")
	}

	feeBps, err := getEnvAsIntRequired("FEE_BPS", 30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEE_BPS: %v", err))
	} else if feeBps < 0 || feeBps >= 10000 {
		errs = append(errs, "FEE_BPS must be between 0 and 9999")
	} else {
		cfg.FeeBps = uint64(feeBps)
	}

	cfg.MaxPositionsPerTrader, err = getEnvAsIntRequired("MAX_POSITIONS_PER_TRADER", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITIONS_PER_TRADER: %v", err))
	} else if cfg.MaxPositionsPerTrader < 1 {
		errs = append(errs, "MAX_POSITIONS_PER_TRADER must be at least 1")
	}

	thresholdBps, err := getEnvAsIntRequired("LIQUIDATION_THRESHOLD_BPS", 8000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LIQUIDATION_THRESHOLD_BPS: %v", err))
	} else if thresholdBps < 1 || thresholdBps >= 10000 {
		errs = append(errs, "LIQUIDATION_THRESHOLD_BPS must be between 1 and 9999")
	} else {
		cfg.LiquidationThresholdBps = uint64(thresholdBps)
	}

	bonusBps, err := getEnvAsIntRequired("LIQUIDATION_BONUS_BPS", 500)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LIQUIDATION_BONUS_BPS: %v", err))
	} else if bonusBps < 0 || bonusBps >= 10000 {
		errs = append(errs, "LIQUIDATION_BONUS_BPS must be between 0 and 9999")
	} else {
		cfg.LiquidationBonusBps = uint64(bonusBps)
	}

	ttlSeconds := getEnvAsInt("ORDER_TTL_SECONDS", 86400)
	if ttlSeconds <= 0 {
		errs = append(errs, "ORDER_TTL_SECONDS must be positive")
	}
	cfg.OrderTTL = time.Duration(ttlSeconds) * time.Second

	// Identities
	cfg.OwnerAccount = getEnv("OWNER_ACCOUNT", "venue-owner")
	if cfg.OwnerAccount == "" {
		errs = append(errs, "OWNER_ACCOUNT must be set")
	}

	// Oracle
	cfg.OracleKind = strings.ToLower(getEnv("ORACLE", "pseudo"))
	if cfg.OracleKind != "pseudo" && cfg.OracleKind != "binance" {
		errs = append(errs, "ORACLE must be 'pseudo' or 'binance'")
	}
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecret = getEnv("BINANCE_API_SECRET", "")
	cfg.OracleSymbols = parseSymbolMap(getEnv("ORACLE_SYMBOLS", ""))
	cfg.OracleScale = getEnvAsInt("ORACLE_SCALE", 4)
	if cfg.OracleKind == "binance" && len(cfg.OracleSymbols) == 0 {
		errs = append(errs, "ORACLE_SYMBOLS must be set when ORACLE=binance (e.g. 'BR=USDTBRL,TR=USDTTRY')")
	}

	// HTTP binding
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Journal database
	cfg.DBPath = getEnv("DB_PATH", "./data/venue.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// parseSymbolMap parses "BR=USDTBRL,TR=USDTTRY" into a map.
func parseSymbolMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(kv[0]))] = strings.ToUpper(strings.TrimSpace(kv[1]))
	}
	return out
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
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
