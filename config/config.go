package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"aiTraderBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Broker backend selection.
const (
	BrokerPaper   = "paper"
	BrokerBinance = "binance"
)

// Config holds all application configuration. Risk percentages are fractions
// (0.02 = 2%), the same convention the risk engine uses internally.
type Config struct {
	// Capital and cycle cadence
	InitialCapital  float64
	TradingInterval time.Duration
	Watchlist       []string

	// Risk limits
	MaxPositionSizePct    float64
	PerTradeRiskPct       float64
	DailyLossLimitPct     float64
	MaxDrawdownPct        float64
	ConcentrationLimitPct float64
	MinConfidence         float64

	// Broker
	Broker         string // "paper" or "binance"
	BinanceAPIKey  string
	BinanceSecret  string
	BinanceTestnet bool
	QuoteAsset     string
	PaperSeed      int64 // Zero means time-based

	// Advisor (any OpenAI-compatible endpoint)
	AIAPIKey      string
	AIBaseURL     string
	AIModel       string
	AITemperature float64
	AIMaxTokens   int
	AITimeout     time.Duration

	// Persistence
	StatePath string
	DBPath    string

	// Transient-failure retry bounds, used for market data fetches
	RetryMinWait time.Duration
	RetryMaxWait time.Duration
	RetryLimit   int

	// Observability
	LogLevel    logger.LogLevel
	MetricsAddr string // Empty disables the metrics endpoint
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.InitialCapital, err = getEnvAsFloatRequired("INITIAL_CAPITAL", 10000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CAPITAL: %v", err))
	} else if cfg.InitialCapital <= 0 {
		errs = append(errs, "INITIAL_CAPITAL must be positive")
	}

	intervalMinutes := getEnvAsInt("TRADING_INTERVAL_MINUTES", 30)
	if intervalMinutes <= 0 {
		errs = append(errs, "TRADING_INTERVAL_MINUTES must be positive")
	}
	cfg.TradingInterval = time.Duration(intervalMinutes) * time.Minute

	watchlist := getEnv("WATCHLIST", "BTCUSDT,ETHUSDT")
	for _, sym := range strings.Split(watchlist, ",") {
		if s := strings.TrimSpace(sym); s != "" {
			cfg.Watchlist = append(cfg.Watchlist, s)
		}
	}
	if len(cfg.Watchlist) == 0 {
		errs = append(errs, "WATCHLIST must name at least one symbol")
	}

	// Risk limits
	cfg.MaxPositionSizePct, err = getEnvAsFloatRequired("MAX_POSITION_SIZE_PCT", 0.20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_SIZE_PCT: %v", err))
	} else if cfg.MaxPositionSizePct <= 0 || cfg.MaxPositionSizePct > 1 {
		errs = append(errs, "MAX_POSITION_SIZE_PCT must be in (0,1]")
	}

	cfg.PerTradeRiskPct, err = getEnvAsFloatRequired("PER_TRADE_RISK_PCT", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PER_TRADE_RISK_PCT: %v", err))
	} else if cfg.PerTradeRiskPct <= 0 || cfg.PerTradeRiskPct > 1 {
		errs = append(errs, "PER_TRADE_RISK_PCT must be in (0,1]")
	}

	cfg.DailyLossLimitPct, err = getEnvAsFloatRequired("DAILY_LOSS_LIMIT_PCT", 0.03)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DAILY_LOSS_LIMIT_PCT: %v", err))
	} else if cfg.DailyLossLimitPct <= 0 || cfg.DailyLossLimitPct > 1 {
		errs = append(errs, "DAILY_LOSS_LIMIT_PCT must be in (0,1]")
	}

	cfg.MaxDrawdownPct, err = getEnvAsFloatRequired("MAX_DRAWDOWN_PCT", 0.10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DRAWDOWN_PCT: %v", err))
	} else if cfg.MaxDrawdownPct <= 0 || cfg.MaxDrawdownPct > 1 {
		errs = append(errs, "MAX_DRAWDOWN_PCT must be in (0,1]")
	}

	cfg.ConcentrationLimitPct, err = getEnvAsFloatRequired("CONCENTRATION_LIMIT_PCT", 0.25)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CONCENTRATION_LIMIT_PCT: %v", err))
	} else if cfg.ConcentrationLimitPct < cfg.MaxPositionSizePct {
		errs = append(errs, "CONCENTRATION_LIMIT_PCT must be at least MAX_POSITION_SIZE_PCT")
	}

	cfg.MinConfidence, err = getEnvAsFloatRequired("MIN_CONFIDENCE", 0.60)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_CONFIDENCE: %v", err))
	} else if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		errs = append(errs, "MIN_CONFIDENCE must be in [0,1]")
	}

	// Broker
	cfg.Broker = strings.ToLower(getEnv("BROKER", BrokerPaper))
	switch cfg.Broker {
	case BrokerPaper:
		// No credentials needed
	case BrokerBinance:
		cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
		cfg.BinanceSecret = getEnv("BINANCE_API_SECRET", "")
		if cfg.BinanceAPIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set when BROKER=binance")
		}
		if cfg.BinanceSecret == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set when BROKER=binance")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown BROKER %q (want %s or %s)", cfg.Broker, BrokerPaper, BrokerBinance))
	}
	cfg.BinanceTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	cfg.QuoteAsset = getEnv("QUOTE_ASSET", "USDT")
	cfg.PaperSeed = int64(getEnvAsInt("PAPER_SEED", 0))

	// Advisor
	cfg.AIAPIKey = getEnv("AI_API_KEY", "")
	if cfg.AIAPIKey == "" {
		errs = append(errs, "AI_API_KEY must be set")
	}
	cfg.AIBaseURL = getEnv("AI_BASE_URL", "https://api.openai.com/v1")
	cfg.AIModel = getEnv("AI_MODEL", "gpt-4o-mini")
	cfg.AITemperature = getEnvAsFloat("AI_TEMPERATURE", 0.2)
	cfg.AIMaxTokens = getEnvAsInt("AI_MAX_TOKENS", 1000)
	aiTimeoutSeconds := getEnvAsInt("AI_TIMEOUT_SECONDS", 30)
	if aiTimeoutSeconds <= 0 {
		errs = append(errs, "AI_TIMEOUT_SECONDS must be positive")
	}
	cfg.AITimeout = time.Duration(aiTimeoutSeconds) * time.Second

	// Persistence
	cfg.StatePath = getEnv("STATE_PATH", "./data/portfolio_state.json")
	if cfg.StatePath == "" {
		errs = append(errs, "STATE_PATH must be set")
	}
	cfg.DBPath = getEnv("DB_PATH", "./data/trade_journal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Retry bounds
	retryMinMs := getEnvAsInt("RETRY_MIN_WAIT_MS", 500)
	retryMaxMs := getEnvAsInt("RETRY_MAX_WAIT_MS", 5000)
	if retryMinMs <= 0 || retryMaxMs < retryMinMs {
		errs = append(errs, "RETRY_MIN_WAIT_MS must be positive and at most RETRY_MAX_WAIT_MS")
	}
	cfg.RetryMinWait = time.Duration(retryMinMs) * time.Millisecond
	cfg.RetryMaxWait = time.Duration(retryMaxMs) * time.Millisecond
	cfg.RetryLimit = getEnvAsInt("RETRY_LIMIT", 3)
	if cfg.RetryLimit < 0 {
		errs = append(errs, "RETRY_LIMIT cannot be negative")
	}

	// Observability
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
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
		// Log warning? For non-required fields, default is often acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
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
