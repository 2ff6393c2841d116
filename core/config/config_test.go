package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Chain: ChainConfig{
			PrivateKey: testKey,
			RPCURL:     "https://eth-sepolia.g.alchemy.com/v2/key",
		},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return cfg
}

func TestValidateEmptyReportsEveryRequiredField(t *testing.T) {
	cfg := &Config{}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	res := Validate(cfg)
	if res.Valid {
		t.Fatal("expected invalid config")
	}
	want := []string{"TELEGRAM_BOT_TOKEN is required", "PRIVATE_KEY is required", "RPC_URL is required"}
	if len(res.Errors) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), res.Errors)
	}
	for i, w := range want {
		if !strings.HasPrefix(res.Errors[i], w) {
			t.Errorf("error %d = %q, want prefix %q", i, res.Errors[i], w)
		}
	}
}

func TestValidateValidHasEmptyNonNilErrors(t *testing.T) {
	res := Validate(validConfig(t))
	if !res.Valid {
		t.Fatalf("expected valid config, got %v", res.Errors)
	}
	if res.Errors == nil {
		t.Fatal("Errors must be non-nil")
	}
	if len(res.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", res.Errors)
	}
}

func TestValidateFormatErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Chain.PrivateKey = "0x1234"
	cfg.Chain.RPCURL = "not a url"
	cfg.Chain.ContractAddress = "0xnothex"
	cfg.Polling.OnExhausted = "panic"

	res := Validate(cfg)
	if res.Valid {
		t.Fatal("expected invalid config")
	}
	joined := strings.Join(res.Errors, "\n")
	for _, want := range []string{
		"PRIVATE_KEY format invalid - Must be 64 hex characters",
		"RPC_URL format invalid - Must be a valid URL",
		"CONTRACT_ADDRESS format invalid",
		"POLLING_ON_EXHAUSTED",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %v", want, res.Errors)
		}
	}
}

func TestValidateAcceptsKeyWithoutPrefix(t *testing.T) {
	cfg := validConfig(t)
	cfg.Chain.PrivateKey = strings.TrimPrefix(testKey, "0x")
	if res := Validate(cfg); !res.Valid {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
}

func TestValidateNilConfig(t *testing.T) {
	res := Validate(nil)
	if res.Valid || len(res.Errors) == 0 {
		t.Fatalf("nil config must be invalid, got %+v", res)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig(t)
	if cfg.Chain.ContractAddress != DefaultContractAddress {
		t.Errorf("contract = %s", cfg.Chain.ContractAddress)
	}
	if cfg.FHE.RelayerURL != DefaultRelayerURL {
		t.Errorf("relayer = %s", cfg.FHE.RelayerURL)
	}
	if cfg.Bid.MinAmount != 1 || cfg.Bid.MaxAmount != 1_000_000_000 {
		t.Errorf("bid limits = %d..%d", cfg.Bid.MinAmount, cfg.Bid.MaxAmount)
	}
	if !cfg.Bid.Strict() || !cfg.Bid.PreflightEnabled() {
		t.Error("strict integer and preflight default to true")
	}
	if cfg.Polling.RetryBase().Seconds() != 1 || cfg.Polling.MaxRetries != 10 {
		t.Errorf("polling defaults = %+v", cfg.Polling)
	}
	if cfg.Polling.OnExhausted != OnExhaustedExit {
		t.Errorf("on_exhausted = %s", cfg.Polling.OnExhausted)
	}
	if cfg.Ledger.Driver != LedgerMemory {
		t.Errorf("ledger driver = %s", cfg.Ledger.Driver)
	}
}

func TestNormalizeBuildsAlchemyURL(t *testing.T) {
	cfg := &Config{Chain: ChainConfig{AlchemyAPIKey: "k3y"}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Chain.RPCURL != "https://eth-sepolia.g.alchemy.com/v2/k3y" {
		t.Fatalf("rpc url = %s", cfg.Chain.RPCURL)
	}
}

func TestLoadMergesYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
telegram:
  token: "from-yaml"
chain:
  rpc_url: "https://rpc.example"
bid:
  max_amount: 500
  strict_integer: false
polling:
  on_exhausted: STOP
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("PRIVATE_KEY", testKey)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Errorf("env must override yaml, got %s", cfg.Telegram.Token)
	}
	if cfg.Chain.RPCURL != "https://rpc.example" {
		t.Errorf("rpc = %s", cfg.Chain.RPCURL)
	}
	if cfg.Bid.MaxAmount != 500 || cfg.Bid.Strict() {
		t.Errorf("bid = %+v", cfg.Bid)
	}
	if cfg.Polling.OnExhausted != OnExhaustedStop {
		t.Errorf("on_exhausted = %s", cfg.Polling.OnExhausted)
	}
	if res := Validate(cfg); !res.Valid {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
}

func TestLoadMissingFileUsesEnvOnly(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "t" {
		t.Fatalf("token = %s", cfg.Telegram.Token)
	}
}
