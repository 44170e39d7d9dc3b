package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Everything is read once at
// process start; there is no runtime reconfiguration.
type Config struct {
	RPC struct {
		URL string `yaml:"url"`
	} `yaml:"rpc"`
	Trade struct {
		SwapHost  string `yaml:"swap_host"`
		APIHost   string `yaml:"api_host"`
		TokensURL string `yaml:"tokens_url"`
	} `yaml:"trade"`
	Mints struct {
		GC   string `yaml:"gc"`
		USDC string `yaml:"usdc"`
		USDT string `yaml:"usdt"`
		SOL  string `yaml:"sol"`
	} `yaml:"mints"`
	Band struct {
		// Decimal strings in YAML ("0.14"); parsed once at load.
		USDLowerStr string          `yaml:"usd_lower"`
		USDUpperStr string          `yaml:"usd_upper"`
		USDLower    decimal.Decimal `yaml:"-"`
		USDUpper    decimal.Decimal `yaml:"-"`
	} `yaml:"band"`
	Limits struct {
		CapBps            int64           `yaml:"cap_bps"`
		DailyMaxBps       int64           `yaml:"daily_max_bps"`
		SlippageBps       int64           `yaml:"slippage_bps"`
		TreasuryGCMinStr  string          `yaml:"treasury_gc_min"`
		VaultStableMinStr string          `yaml:"vault_stable_min"`
		TreasuryGCMin     decimal.Decimal `yaml:"-"`
		VaultStableMin    decimal.Decimal `yaml:"-"`
		PreferredStable   string          `yaml:"preferred_stable"`
	} `yaml:"limits"`
	Health struct {
		MaxPriceImpactBps int64         `yaml:"max_price_impact_bps"`
		MaxSpotVsTwapBps  int64         `yaml:"max_spot_vs_twap_bps"`
		TwapSamples       int           `yaml:"twap_samples"`
		TwapPauseSec      float64       `yaml:"twap_pause_sec"`
		TwapPause         time.Duration `yaml:"-"`
	} `yaml:"health"`
	Schedule struct {
		CycleCron  string `yaml:"cycle_cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Relay struct {
		JitoURL  string `yaml:"jito_url"`
		JitoAuth string `yaml:"jito_auth"`
	} `yaml:"relay"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Wallet struct {
		Secret string `yaml:"-"` // env only, never from file
	} `yaml:"-"`
	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is fine; the whole surface is env-drivable.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// YAML decimal strings
	if err := parseDec(&cfg.Band.USDLower, cfg.Band.USDLowerStr, "band.usd_lower"); err != nil {
		return nil, err
	}
	if err := parseDec(&cfg.Band.USDUpper, cfg.Band.USDUpperStr, "band.usd_upper"); err != nil {
		return nil, err
	}
	if err := parseDec(&cfg.Limits.TreasuryGCMin, cfg.Limits.TreasuryGCMinStr, "limits.treasury_gc_min"); err != nil {
		return nil, err
	}
	if err := parseDec(&cfg.Limits.VaultStableMin, cfg.Limits.VaultStableMinStr, "limits.vault_stable_min"); err != nil {
		return nil, err
	}

	// Environment variable overrides
	setStr(&cfg.RPC.URL, "RPC_URL")
	setStr(&cfg.Trade.SwapHost, "RAY_SWAP_HOST")
	setStr(&cfg.Trade.APIHost, "RAY_API_V3")
	setStr(&cfg.Trade.TokensURL, "RAY_TOKENS_V2")
	setStr(&cfg.Mints.GC, "GC_MINT")
	setStr(&cfg.Mints.USDC, "USDC_MINT")
	setStr(&cfg.Mints.USDT, "USDT_MINT")
	setStr(&cfg.Mints.SOL, "SOL_MINT")
	setDec(&cfg.Band.USDLower, "BAND_USD_LOWER")
	setDec(&cfg.Band.USDUpper, "BAND_USD_UPPER")
	setInt(&cfg.Limits.CapBps, "CAP_BPS")
	setInt(&cfg.Limits.DailyMaxBps, "DAILY_MAX_BPS")
	setInt(&cfg.Limits.SlippageBps, "SLIPPAGE_BPS")
	setDec(&cfg.Limits.TreasuryGCMin, "TREASURY_GC_MIN")
	setDec(&cfg.Limits.VaultStableMin, "VAULT_STABLE_MIN")
	setStr(&cfg.Limits.PreferredStable, "PREFERRED_STABLE")
	setInt(&cfg.Health.MaxPriceImpactBps, "MAX_PRICE_IMPACT_BPS")
	setInt(&cfg.Health.MaxSpotVsTwapBps, "MAX_SPOT_VS_TWAP_BPS")
	if v := os.Getenv("TWAP_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Health.TwapSamples = n
		}
	}
	if v := os.Getenv("TWAP_PAUSE_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Health.TwapPauseSec = f
		}
	}
	setStr(&cfg.Schedule.CycleCron, "CYCLE_CRON")
	if v := os.Getenv("RUN_ON_START"); v != "" {
		cfg.Schedule.RunOnStart = v == "true" || v == "1"
	}
	setStr(&cfg.Relay.JitoURL, "JITO_URL")
	setStr(&cfg.Relay.JitoAuth, "JITO_AUTH")
	setStr(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setStr(&cfg.Database.SQLitePath, "SQLITE_PATH")
	setStr(&cfg.Metrics.Addr, "METRICS_ADDR")
	setStr(&cfg.Wallet.Secret, "WALLET_SECRET")
	setStr(&cfg.LogLevel, "LOG_LEVEL")

	// Defaults
	if cfg.Trade.SwapHost == "" {
		cfg.Trade.SwapHost = "https://transaction-v1.raydium.io"
	}
	if cfg.Trade.APIHost == "" {
		cfg.Trade.APIHost = "https://api-v3.raydium.io"
	}
	if cfg.Trade.TokensURL == "" {
		cfg.Trade.TokensURL = "https://api.raydium.io/v2/sdk/token/solana.mainnet.json"
	}
	if cfg.Band.USDLower.IsZero() {
		cfg.Band.USDLower = decimal.RequireFromString("0.14")
	}
	if cfg.Band.USDUpper.IsZero() {
		cfg.Band.USDUpper = decimal.RequireFromString("0.20")
	}
	if cfg.Limits.CapBps == 0 {
		cfg.Limits.CapBps = 100
	}
	if cfg.Limits.DailyMaxBps == 0 {
		cfg.Limits.DailyMaxBps = 400
	}
	if cfg.Limits.SlippageBps == 0 {
		cfg.Limits.SlippageBps = 500
	}
	if cfg.Limits.PreferredStable == "" {
		cfg.Limits.PreferredStable = "USDC"
	}
	cfg.Limits.PreferredStable = strings.ToUpper(cfg.Limits.PreferredStable)
	if cfg.Health.MaxPriceImpactBps == 0 {
		cfg.Health.MaxPriceImpactBps = 200
	}
	if cfg.Health.MaxSpotVsTwapBps == 0 {
		cfg.Health.MaxSpotVsTwapBps = 150
	}
	if cfg.Health.TwapSamples == 0 {
		cfg.Health.TwapSamples = 7
	}
	if cfg.Health.TwapPauseSec == 0 {
		cfg.Health.TwapPauseSec = 1
	}
	cfg.Health.TwapPause = time.Duration(cfg.Health.TwapPauseSec * float64(time.Second))
	if cfg.Schedule.CycleCron == "" {
		cfg.Schedule.CycleCron = "@every 6h"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/treasury_state.db"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9108"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and mutually consistent.
// It fails the process before any cycle runs.
func (c *Config) Validate() error {
	if c.RPC.URL == "" {
		return fmt.Errorf("rpc.url is required")
	}
	if c.Mints.GC == "" {
		return fmt.Errorf("mints.gc is required")
	}
	if c.Mints.USDC == "" || c.Mints.USDT == "" || c.Mints.SOL == "" {
		return fmt.Errorf("mints.usdc, mints.usdt and mints.sol are required")
	}
	if c.Wallet.Secret == "" {
		return fmt.Errorf("WALLET_SECRET is required")
	}
	if !c.Band.USDLower.IsPositive() {
		return fmt.Errorf("band.usd_lower must be positive")
	}
	if c.Band.USDLower.GreaterThanOrEqual(c.Band.USDUpper) {
		return fmt.Errorf("band.usd_lower (%s) must be below band.usd_upper (%s)",
			c.Band.USDLower, c.Band.USDUpper)
	}
	if c.Limits.CapBps < 0 || c.Limits.CapBps > 10000 {
		return fmt.Errorf("limits.cap_bps must be in [0, 10000]")
	}
	if c.Limits.DailyMaxBps < 0 || c.Limits.DailyMaxBps > 10000 {
		return fmt.Errorf("limits.daily_max_bps must be in [0, 10000]")
	}
	if s := c.Limits.PreferredStable; s != "USDC" && s != "USDT" {
		return fmt.Errorf("limits.preferred_stable must be USDC or USDT, got %q", s)
	}
	// Exactly one submission path: the relay is active iff its URL is set.
	// An auth token without a URL means the deployment intended the relay
	// but would silently fall back to direct RPC.
	if c.Relay.JitoAuth != "" && c.Relay.JitoURL == "" {
		return fmt.Errorf("relay.jito_auth set without relay.jito_url")
	}
	return nil
}

func parseDec(dst *decimal.Decimal, raw, name string) error {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDec(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}
