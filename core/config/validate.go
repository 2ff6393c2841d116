package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	privateKeyRe = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
	addressRe    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidationResult reports every configuration problem found. Errors is never nil.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate runs all checks without stopping at the first failure.
func Validate(cfg *Config) ValidationResult {
	if cfg == nil {
		return ValidationResult{Errors: []string{"configuration is missing"}}
	}

	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Telegram.Token == "" {
		add("TELEGRAM_BOT_TOKEN is required - Get from @BotFather on Telegram")
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		add("TELEGRAM_LONGPOLL_TIMEOUT_SECONDS must be >= 0")
	}

	switch {
	case cfg.Chain.PrivateKey == "":
		add("PRIVATE_KEY is required - Ethereum wallet private key")
	case !privateKeyRe.MatchString(cfg.Chain.PrivateKey):
		add("PRIVATE_KEY format invalid - Must be 64 hex characters")
	}

	switch {
	case cfg.Chain.RPCURL == "":
		add("RPC_URL is required - Ethereum RPC endpoint (e.g., Alchemy Sepolia URL)")
	case !IsAbsoluteURL(cfg.Chain.RPCURL):
		add("RPC_URL format invalid - Must be a valid URL")
	}

	if !ValidAddress(cfg.Chain.ContractAddress) {
		add("CONTRACT_ADDRESS format invalid - Must be 0x followed by 40 hex characters")
	}
	if cfg.Chain.ChainID < 0 {
		add("CHAIN_ID must be >= 0")
	}
	if !IsAbsoluteURL(cfg.Chain.ExplorerURL) {
		add("EXPLORER_URL format invalid - Must be a valid URL")
	}
	if !IsAbsoluteURL(cfg.FHE.RelayerURL) {
		add("RELAYER_URL format invalid - Must be a valid URL")
	}

	if cfg.Bid.MinAmount < 1 {
		add("BID_MIN_AMOUNT must be at least 1")
	}
	if cfg.Bid.MaxAmount < cfg.Bid.MinAmount {
		add("BID_MAX_AMOUNT (%d) must be >= BID_MIN_AMOUNT (%d)", cfg.Bid.MaxAmount, cfg.Bid.MinAmount)
	}

	p := cfg.Polling
	if p.RetryBaseMS <= 0 {
		add("POLLING_RETRY_BASE_MS must be > 0")
	}
	if p.RetryMaxMS < p.RetryBaseMS {
		add("POLLING_RETRY_MAX_MS must be >= POLLING_RETRY_BASE_MS")
	}
	if p.MaxRetries <= 0 {
		add("POLLING_MAX_RETRIES must be > 0")
	}
	if p.SettleMS < 0 {
		add("POLLING_SETTLE_MS must be >= 0")
	}
	if p.OnExhausted != OnExhaustedExit && p.OnExhausted != OnExhaustedStop {
		add("invalid POLLING_ON_EXHAUSTED %q; allowed: exit, stop", p.OnExhausted)
	}

	switch cfg.Ledger.Driver {
	case LedgerMemory:
	case LedgerBolt:
		if strings.TrimSpace(cfg.Ledger.BoltPath) == "" {
			add("LEDGER_BOLT_PATH is required when LEDGER_DRIVER is bolt")
		}
	case LedgerPostgres:
		if cfg.DB.Host == "" || cfg.DB.Name == "" {
			add("DB_HOST and DB_NAME are required when LEDGER_DRIVER is postgres")
		}
	default:
		add("invalid LEDGER_DRIVER %q; allowed: memory, bolt, postgres", cfg.Ledger.Driver)
	}

	for _, v := range cfg.RateLimit.ExcludeUpdates {
		if v != "" && v != UpdateCallback && v != UpdateMessage {
			add("invalid RATE_LIMIT_EXCLUDE_UPDATES value %q; allowed: callback, message", v)
		}
	}

	res := ValidationResult{Errors: []string{}}
	if merr := errs.ErrorOrNil(); merr != nil {
		var me *multierror.Error
		if errors.As(merr, &me) {
			for _, e := range me.Errors {
				res.Errors = append(res.Errors, e.Error())
			}
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// ValidAddress reports whether s looks like a 20-byte hex address.
func ValidAddress(s string) bool {
	return addressRe.MatchString(strings.TrimSpace(s))
}

// IsAbsoluteURL reports whether raw parses with both scheme and host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
