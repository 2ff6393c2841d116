package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultContractAddress is the sealed-bid auction deployed on Sepolia.
	DefaultContractAddress = "0xe9c1349c959f98f3d6e1c25b1bc3a4376921423d"
	// DefaultRelayerURL points to the public testnet relayer.
	DefaultRelayerURL = "https://relayer.testnet.zama.org"
	// DefaultExplorerURL is used to build transaction links.
	DefaultExplorerURL = "https://sepolia.etherscan.io"
	// DefaultTelegramAPIURL is the Bot API base used for raw calls such as deleteWebhook.
	DefaultTelegramAPIURL = "https://api.telegram.org"

	defaultAlchemyNetwork = "eth-sepolia"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int    `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	APIURL                 string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
}

// ChainConfig describes the wallet, RPC endpoint and auction contract.
type ChainConfig struct {
	PrivateKey      string `yaml:"private_key" envconfig:"PRIVATE_KEY"`
	RPCURL          string `yaml:"rpc_url" envconfig:"RPC_URL"`
	AlchemyAPIKey   string `yaml:"alchemy_api_key" envconfig:"ALCHEMY_API_KEY"`
	AlchemyNetwork  string `yaml:"alchemy_network" envconfig:"ALCHEMY_NETWORK"`
	ContractAddress string `yaml:"contract_address" envconfig:"CONTRACT_ADDRESS"`
	// ChainID of 0 means the node is asked at startup.
	ChainID               int64  `yaml:"chain_id" envconfig:"CHAIN_ID"`
	ExplorerURL           string `yaml:"explorer_url" envconfig:"EXPLORER_URL"`
	ConfirmTimeoutSeconds int    `yaml:"confirm_timeout_seconds" envconfig:"CHAIN_CONFIRM_TIMEOUT_SECONDS"`
}

// FHEConfig configures the encryption relayer.
type FHEConfig struct {
	RelayerURL         string `yaml:"relayer_url" envconfig:"RELAYER_URL"`
	InitTimeoutSeconds int    `yaml:"init_timeout_seconds" envconfig:"FHE_INIT_TIMEOUT_SECONDS"`
}

// BidConfig bounds accepted bid amounts and controls the bid flow.
type BidConfig struct {
	MinAmount uint64 `yaml:"min_amount" envconfig:"BID_MIN_AMOUNT"`
	MaxAmount uint64 `yaml:"max_amount" envconfig:"BID_MAX_AMOUNT"`
	// StrictInteger rejects fractional amounts instead of flooring them.
	StrictInteger *bool `yaml:"strict_integer" envconfig:"BID_STRICT_INTEGER"`
	// Preflight checks ended()/auctionEndTime() before encrypting.
	Preflight         *bool `yaml:"preflight" envconfig:"BID_PREFLIGHT"`
	PendingTTLSeconds int   `yaml:"pending_ttl_seconds" envconfig:"BID_PENDING_TTL_SECONDS"`
}

const (
	// OnExhaustedExit shuts the process down once conflict retries are used up.
	OnExhaustedExit = "exit"
	// OnExhaustedStop keeps the process alive with polling stopped.
	OnExhaustedStop = "stop"
)

// PollingConfig controls webhook cleanup and conflict backoff.
type PollingConfig struct {
	RetryBaseMS int    `yaml:"retry_base_ms" envconfig:"POLLING_RETRY_BASE_MS"`
	RetryMaxMS  int    `yaml:"retry_max_ms" envconfig:"POLLING_RETRY_MAX_MS"`
	MaxRetries  int    `yaml:"max_retries" envconfig:"POLLING_MAX_RETRIES"`
	SettleMS    int    `yaml:"settle_ms" envconfig:"POLLING_SETTLE_MS"`
	OnExhausted string `yaml:"on_exhausted" envconfig:"POLLING_ON_EXHAUSTED"`
}

const (
	// LedgerMemory keeps bid records in process memory.
	LedgerMemory = "memory"
	// LedgerBolt stores bid records in an embedded bolt file.
	LedgerBolt = "bolt"
	// LedgerPostgres stores bid records in PostgreSQL.
	LedgerPostgres = "postgres"
)

// LedgerConfig selects where bid submissions are recorded.
type LedgerConfig struct {
	Driver   string `yaml:"driver" envconfig:"LEDGER_DRIVER"`
	BoltPath string `yaml:"bolt_path" envconfig:"LEDGER_BOLT_PATH"`
}

// DatabaseConfig holds PostgreSQL settings for the postgres ledger driver.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order" envconfig:"LOG_KEYS_ORDER"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file" envconfig:"LOG_FILE"`
	MaxSizeMB   int    `yaml:"max_size_mb" envconfig:"LOG_MAX_SIZE_MB"`
	MaxBackups  int    `yaml:"max_backups" envconfig:"LOG_MAX_BACKUPS"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts "callback" and "message".
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates everything the bot reads at startup. It is not mutated
// after Load returns.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Chain     ChainConfig     `yaml:"chain"`
	FHE       FHEConfig       `yaml:"fhe"`
	Bid       BidConfig       `yaml:"bid"`
	Polling   PollingConfig   `yaml:"polling"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	DB        DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads .env files, an optional YAML file, and environment variables,
// then fills defaults. Validation is left to Validate so every problem can
// be reported at once.
func Load(path string) (*Config, error) {
	// Missing .env files are fine; real deployments use the environment.
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	var cfg Config

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize trims inputs, lowercases enumerations and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	cfg.Telegram.APIURL = strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIURL), "/")
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = DefaultTelegramAPIURL
	}

	ch := &cfg.Chain
	ch.PrivateKey = strings.TrimSpace(ch.PrivateKey)
	ch.RPCURL = strings.TrimSpace(ch.RPCURL)
	ch.AlchemyAPIKey = strings.TrimSpace(ch.AlchemyAPIKey)
	if strings.TrimSpace(ch.AlchemyNetwork) == "" {
		ch.AlchemyNetwork = defaultAlchemyNetwork
	}
	if ch.RPCURL == "" && ch.AlchemyAPIKey != "" {
		ch.RPCURL = fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", ch.AlchemyNetwork, ch.AlchemyAPIKey)
	}
	ch.ContractAddress = strings.TrimSpace(ch.ContractAddress)
	if ch.ContractAddress == "" {
		ch.ContractAddress = DefaultContractAddress
	}
	ch.ExplorerURL = strings.TrimRight(strings.TrimSpace(ch.ExplorerURL), "/")
	if ch.ExplorerURL == "" {
		ch.ExplorerURL = DefaultExplorerURL
	}
	if ch.ConfirmTimeoutSeconds <= 0 {
		ch.ConfirmTimeoutSeconds = 300
	}

	cfg.FHE.RelayerURL = strings.TrimRight(strings.TrimSpace(cfg.FHE.RelayerURL), "/")
	if cfg.FHE.RelayerURL == "" {
		cfg.FHE.RelayerURL = DefaultRelayerURL
	}
	if cfg.FHE.InitTimeoutSeconds <= 0 {
		cfg.FHE.InitTimeoutSeconds = 60
	}

	b := &cfg.Bid
	if b.MinAmount == 0 {
		b.MinAmount = 1
	}
	if b.MaxAmount == 0 {
		b.MaxAmount = 1_000_000_000
	}
	if b.StrictInteger == nil {
		b.StrictInteger = boolPtr(true)
	}
	if b.Preflight == nil {
		b.Preflight = boolPtr(true)
	}
	if b.PendingTTLSeconds <= 0 {
		b.PendingTTLSeconds = 300
	}

	p := &cfg.Polling
	if p.RetryBaseMS == 0 {
		p.RetryBaseMS = 1000
	}
	if p.RetryMaxMS == 0 {
		p.RetryMaxMS = 60_000
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 10
	}
	if p.SettleMS == 0 {
		p.SettleMS = 1000
	}
	p.OnExhausted = strings.ToLower(strings.TrimSpace(p.OnExhausted))
	if p.OnExhausted == "" {
		p.OnExhausted = OnExhaustedExit
	}

	cfg.Ledger.Driver = strings.ToLower(strings.TrimSpace(cfg.Ledger.Driver))
	if cfg.Ledger.Driver == "" {
		cfg.Ledger.Driver = LedgerMemory
	}
	if cfg.Ledger.Driver == LedgerBolt && strings.TrimSpace(cfg.Ledger.BoltPath) == "" {
		cfg.Ledger.BoltPath = "data/bids.db"
	}

	if cfg.DB.Port == "" {
		cfg.DB.Port = "5432"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConnections <= 0 {
		cfg.DB.MaxConnections = 5
	}

	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 50
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 5
	}

	for i, v := range cfg.RateLimit.ExcludeUpdates {
		cfg.RateLimit.ExcludeUpdates[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

// Strict reports whether fractional amounts are rejected.
func (b BidConfig) Strict() bool { return b.StrictInteger == nil || *b.StrictInteger }

// PreflightEnabled reports whether the auction state is checked before encrypting.
func (b BidConfig) PreflightEnabled() bool { return b.Preflight == nil || *b.Preflight }

// PendingTTL is how long a conversational /bid waits for an amount.
func (b BidConfig) PendingTTL() time.Duration {
	return time.Duration(b.PendingTTLSeconds) * time.Second
}

// RetryBase returns the first conflict backoff delay.
func (p PollingConfig) RetryBase() time.Duration { return ms(p.RetryBaseMS) }

// RetryMax caps the conflict backoff delay.
func (p PollingConfig) RetryMax() time.Duration { return ms(p.RetryMaxMS) }

// Settle is the pause between deleteWebhook and the first getUpdates.
func (p PollingConfig) Settle() time.Duration { return ms(p.SettleMS) }

// ConfirmTimeout bounds the wait for a mined receipt.
func (c ChainConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

// InitTimeout bounds relayer client construction.
func (f FHEConfig) InitTimeout() time.Duration {
	return time.Duration(f.InitTimeoutSeconds) * time.Second
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
