package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot
type Config struct {
	// Mode
	Simulation bool
	Debug      bool

	// Polymarket API
	GammaAPIURL string
	CLOBAPIURL  string

	// CLOB credentials
	CLOBApiKey     string
	CLOBApiSecret  string
	CLOBPassphrase string

	// Wallet
	WalletPrivateKey string
	ProxyWallet      string // funder address when trading through a proxy
	SignatureType    int    // 0=EOA, 1=Magic/Email, 2=Proxy
	PolygonRPCURL    string

	// Dump-hedge strategy
	Markets               []string        // assets to trade, e.g. btc,eth
	Shares                decimal.Decimal // shares per leg
	SumTarget             decimal.Decimal // hedge when leg1 + opposite ask <= target
	MoveThreshold         decimal.Decimal // fractional drop that counts as a dump
	WindowMinutes         int             // post-open watch window
	StopLossMaxWaitMin    int             // force the hedge after this many minutes
	StopLossPercentage    decimal.Decimal // reserved, not used by settlement math
	CheckInterval         time.Duration   // poll cadence per market
	SettlementInterval    time.Duration   // closure sweep cadence

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Persistence
	DatabaseURL  string // postgres DSN; empty means sqlite
	DatabasePath string // sqlite file when DatabaseURL is empty

	// History log
	HistoryLogPath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Simulation: !getEnvBool("PRODUCTION", false),
		Debug:      getEnvBool("DEBUG", false),

		GammaAPIURL: getEnv("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		CLOBAPIURL:  getEnv("CLOB_API_URL", "https://clob.polymarket.com"),

		CLOBApiKey:     os.Getenv("API_KEY"),
		CLOBApiSecret:  os.Getenv("API_SECRET"),
		CLOBPassphrase: os.Getenv("API_PASSPHRASE"),

		WalletPrivateKey: os.Getenv("PRIVATE_KEY"),
		ProxyWallet:      os.Getenv("PROXY_WALLET_ADDRESS"),
		SignatureType:    getEnvInt("SIGNATURE_TYPE", 2),
		PolygonRPCURL:    getEnv("POLYGON_RPC_URL", "https://polygon-rpc.com"),

		Markets:            getEnvList("MARKETS", []string{"btc"}),
		Shares:             getEnvDecimal("DUMP_HEDGE_SHARES", decimal.NewFromInt(10)),
		SumTarget:          getEnvDecimal("DUMP_HEDGE_SUM_TARGET", decimal.NewFromFloat(0.95)),
		MoveThreshold:      getEnvDecimal("DUMP_HEDGE_MOVE_THRESHOLD", decimal.NewFromFloat(0.15)),
		WindowMinutes:      getEnvInt("DUMP_HEDGE_WINDOW_MINUTES", 2),
		StopLossMaxWaitMin: getEnvInt("DUMP_HEDGE_STOP_LOSS_MAX_WAIT_MINUTES", 5),
		StopLossPercentage: getEnvDecimal("DUMP_HEDGE_STOP_LOSS_PERCENTAGE", decimal.NewFromFloat(0.2)),
		CheckInterval:      time.Duration(getEnvInt("CHECK_INTERVAL_MS", 1000)) * time.Millisecond,
		SettlementInterval: time.Duration(getEnvInt("MARKET_CLOSURE_CHECK_INTERVAL_SECONDS", 20)) * time.Second,

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabasePath: getEnv("DATABASE_PATH", "data/hedgebot.db"),

		HistoryLogPath: getEnv("HISTORY_LOG_PATH", "history.toml"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if len(cfg.Markets) == 0 {
		return nil, fmt.Errorf("no markets configured, set MARKETS (e.g. MARKETS=btc,eth,sol,xrp)")
	}

	// Live trading must never start without signing credentials
	if !cfg.Simulation && cfg.WalletPrivateKey == "" {
		return nil, fmt.Errorf("PRIVATE_KEY is required when PRODUCTION=true")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
