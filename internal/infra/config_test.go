package infra

import (
	"testing"
	"time"
)

func TestLoadConfigMemoryModeDefaults(t *testing.T) {
	t.Setenv("LEDGER_MODE", "memory")
	t.Setenv("PORT", "")
	t.Setenv("AMOUNT_DECIMALS", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
	if cfg.AmountDecimals != 18 || cfg.UnitSymbol != "ETH" {
		t.Fatalf("unit mismatch: %d %q", cfg.AmountDecimals, cfg.UnitSymbol)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.MemorySeedName != "Sample Campaign" {
		t.Fatalf("MemorySeedName mismatch: %q", cfg.MemorySeedName)
	}
	if cfg.SubmitTimeout != 90*time.Second {
		t.Fatalf("SubmitTimeout = %s", cfg.SubmitTimeout)
	}
}

func TestLoadConfigRejectsSubmitTimeoutPastWriteTimeout(t *testing.T) {
	t.Setenv("LEDGER_MODE", "memory")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "30")
	t.Setenv("SUBMIT_TIMEOUT_SECONDS", "30")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when SUBMIT_TIMEOUT_SECONDS is not below the write timeout")
	}
}

func TestLoadConfigEthereumRequiresEndpoint(t *testing.T) {
	t.Setenv("LEDGER_MODE", "ethereum")
	t.Setenv("ETH_RPC_URL", "")
	t.Setenv("FACTORY_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without ETH_RPC_URL")
	}
}

func TestLoadConfigEthereumRejectsBadFactory(t *testing.T) {
	t.Setenv("LEDGER_MODE", "ethereum")
	t.Setenv("ETH_RPC_URL", "ws://localhost:8545")
	t.Setenv("FACTORY_ADDRESS", "factory")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for invalid FACTORY_ADDRESS")
	}
}

func TestLoadConfigEthereum(t *testing.T) {
	t.Setenv("LEDGER_MODE", "Ethereum")
	t.Setenv("ETH_RPC_URL", "ws://localhost:8545")
	t.Setenv("FACTORY_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("DEPLOY_BLOCK", "1200")
	t.Setenv("INDEXER_SYNC_INTERVAL_SECONDS", "30")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LedgerMode != LedgerModeEthereum || cfg.DeployBlock != 1200 {
		t.Fatalf("unexpected ledger config: %+v", cfg)
	}
	if cfg.IndexerSyncInterval != 30*time.Second {
		t.Fatalf("IndexerSyncInterval = %s", cfg.IndexerSyncInterval)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("CORSAllowedOrigins[%d] = %q", i, cfg.CORSAllowedOrigins[i])
		}
	}
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	t.Setenv("LEDGER_MODE", "sqlite")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown LEDGER_MODE")
	}
}

func TestRequireDatabase(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireDatabase(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
	cfg.DatabaseURL = "postgres://example"
	if err := cfg.RequireDatabase(); err != nil {
		t.Fatalf("RequireDatabase: %v", err)
	}
}
