package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger modes.
const (
	LedgerModeEthereum = "ethereum"
	LedgerModeMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	LedgerMode       string
	EthRPCURL        string
	FactoryAddress   string
	SignerPrivateKey string
	DeployBlock      uint64
	MemoryActor      string
	MemorySeedName   string

	AmountDecimals int
	UnitSymbol     string

	DatabaseURL         string
	IndexerSyncInterval time.Duration

	GeoIPDBPath        string
	DefaultLocale      string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	SubmitTimeout      time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		LedgerMode:          strings.ToLower(getEnv("LEDGER_MODE", LedgerModeEthereum)),
		EthRPCURL:           os.Getenv("ETH_RPC_URL"),
		FactoryAddress:      strings.TrimSpace(os.Getenv("FACTORY_ADDRESS")),
		SignerPrivateKey:    strings.TrimSpace(os.Getenv("SIGNER_PRIVATE_KEY")),
		DeployBlock:         uint64(getEnvInt("DEPLOY_BLOCK", 0)),
		MemoryActor:         getEnv("MEMORY_ACTOR", "0x00000000000000000000000000000000000a11ce"),
		MemorySeedName:      getEnv("MEMORY_SEED_CAMPAIGN", "Sample Campaign"),
		AmountDecimals:      getEnvInt("AMOUNT_DECIMALS", 18),
		UnitSymbol:          getEnv("UNIT_SYMBOL", "ETH"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		IndexerSyncInterval: time.Second * time.Duration(getEnvInt("INDEXER_SYNC_INTERVAL_SECONDS", 300)),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		SubmitTimeout:       time.Second * time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 90)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	switch cfg.LedgerMode {
	case LedgerModeEthereum:
		if cfg.EthRPCURL == "" {
			return nil, fmt.Errorf("ETH_RPC_URL is required")
		}
		if !common.IsHexAddress(cfg.FactoryAddress) {
			return nil, fmt.Errorf("FACTORY_ADDRESS must be a hex address")
		}
	case LedgerModeMemory:
	default:
		return nil, fmt.Errorf("LEDGER_MODE must be %q or %q, got %q", LedgerModeEthereum, LedgerModeMemory, cfg.LedgerMode)
	}

	if cfg.AmountDecimals < 0 || cfg.AmountDecimals > 36 {
		return nil, fmt.Errorf("AMOUNT_DECIMALS out of range: %d", cfg.AmountDecimals)
	}

	// A submission still waiting when the write deadline passes cannot be
	// answered at all.
	if cfg.SubmitTimeout <= 0 || cfg.SubmitTimeout >= cfg.HTTPWriteTimeout {
		return nil, fmt.Errorf("SUBMIT_TIMEOUT_SECONDS must be positive and below HTTP_WRITE_TIMEOUT_SECONDS")
	}

	return cfg, nil
}

// RequireDatabase reports an error when DATABASE_URL is missing. Only the
// indexer and the signer key tool need a database.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
