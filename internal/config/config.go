package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the bot.
// Loaded from YAML; secrets come from the environment (.env).
type Config struct {
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Risk      RiskConfig      `yaml:"risk"`
	Signals   SignalConfig    `yaml:"signals"`
	TPSL      TPSLConfig      `yaml:"tpsl"`
	AI        AIConfig        `yaml:"ai"`
	Logs      LogConfig       `yaml:"logs"`
	Storage   StorageConfig   `yaml:"storage"`
	Dashboard DashboardConfig `yaml:"dashboard"`

	// Secrets, env only
	APIKey        string `yaml:"-"`
	SecretKey     string `yaml:"-"`
	Passphrase    string `yaml:"-"`
	TelegramToken string `yaml:"-"`
	TelegramChat  int64  `yaml:"-"`
}

// ExchangeConfig selects the market and execution parameters
type ExchangeConfig struct {
	BaseURL         string  `yaml:"base_url"`
	Symbol          string  `yaml:"symbol"`
	Leverage        int     `yaml:"leverage"`
	PollSeconds     int     `yaml:"poll_seconds"`
	DataWindow      int     `yaml:"data_window"`
	LimitSlippage   float64 `yaml:"limit_slippage"` // limit price offset from market, e.g. 0.001
	DryRun          bool    `yaml:"dry_run"`
	Debug           bool    `yaml:"debug"`
	RequestTimeoutS int     `yaml:"request_timeout_seconds"`
}

// RiskConfig groups the static entry gates
type RiskConfig struct {
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"`  // halt when exceeded, e.g. 0.02
	CooldownSeconds int     `yaml:"cooldown_seconds"`  // between entries
	MaxPositionSize float64 `yaml:"max_position_size"` // contracts
	BaseSize        float64 `yaml:"base_size"`
	InitialEquity   float64 `yaml:"initial_equity"`
}

// SignalConfig tunes the classifier and filter thresholds
type SignalConfig struct {
	MinConfidence    float64 `yaml:"min_confidence"`     // 0.65
	TrendVolMin      float64 `yaml:"trend_vol_min"`      // 0.02
	RangeVolMax      float64 `yaml:"range_vol_max"`      // 0.01
	ExpansionVolMin  float64 `yaml:"expansion_vol_min"`  // 0.03
	SpikeVolMin      float64 `yaml:"spike_vol_min"`      // 0.10 arms the cooldown
	SpikeCooldown    int     `yaml:"spike_cooldown"`     // ticks, 2
	FuzzyBandWidth   float64 `yaml:"fuzzy_band_width"`   // 0.25 of threshold
	WarmupTicks      int     `yaml:"warmup_ticks"`       // 20
	VolatilityWindow int     `yaml:"volatility_window"`  // 10
	ATRPeriod        int     `yaml:"atr_period"`         // 14
}

// TPSLConfig is the multiplier table for protective orders.
// All distances are multiples of the effective ATR.
type TPSLConfig struct {
	MinATRPct      float64 `yaml:"min_atr_pct"`      // 0.012 floor, revised up from 0.003
	TP1Mult        float64 `yaml:"tp1_mult"`         // 1.5
	TP2Mult        float64 `yaml:"tp2_mult"`         // 2.5
	RunnerTPMult   float64 `yaml:"runner_tp_mult"`   // 4.5
	TrailMult      float64 `yaml:"trail_mult"`       // 1.0
	MinRiskReward  float64 `yaml:"min_risk_reward"`  // 1.2
	BaseSLMult     float64 `yaml:"base_sl_mult"`     // 1.0
	BaseTPMult     float64 `yaml:"base_tp_mult"`     // 2.0
}

// AIConfig is parsed for compatibility with the reasoning sidecar; the bot
// itself runs without inference.
type AIConfig struct {
	LLMEnabled  bool   `yaml:"llm_enabled"`
	LLMNThreads int    `yaml:"llm_n_threads"`
	LLMModel    string `yaml:"llm_model"`
}

// LogConfig controls the JSONL audit streams
type LogConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// StorageConfig controls optional trade persistence.
// A postgres:// DSN selects Postgres, anything else is a sqlite path,
// empty disables persistence.
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// DashboardConfig controls the read-only HTTP status server
type DashboardConfig struct {
	Port int `yaml:"port"` // 0 disables
}

// Defaults returns the hardcoded fallback configuration
func Defaults() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			BaseURL:         "https://api-contract.weex.com",
			Symbol:          "cmt_btcusdt",
			Leverage:        4,
			PollSeconds:     60,
			DataWindow:      100,
			LimitSlippage:   0.001,
			DryRun:          true,
			RequestTimeoutS: 10,
		},
		Risk: RiskConfig{
			MaxDrawdownPct:  0.02,
			CooldownSeconds: 180,
			MaxPositionSize: 0.001,
			BaseSize:        0.0001,
			InitialEquity:   1000,
		},
		Signals: SignalConfig{
			MinConfidence:    0.65,
			TrendVolMin:      0.02,
			RangeVolMax:      0.01,
			ExpansionVolMin:  0.03,
			SpikeVolMin:      0.10,
			SpikeCooldown:    2,
			FuzzyBandWidth:   0.25,
			WarmupTicks:      20,
			VolatilityWindow: 10,
			ATRPeriod:        14,
		},
		TPSL: TPSLConfig{
			MinATRPct:     0.012,
			TP1Mult:       1.5,
			TP2Mult:       2.5,
			RunnerTPMult:  4.5,
			TrailMult:     1.0,
			MinRiskReward: 1.2,
			BaseSLMult:    1.0,
			BaseTPMult:    2.0,
		},
		Logs: LogConfig{
			Dir:        "logs",
			MaxSizeMB:  50,
			MaxBackups: 5,
		},
	}
}

// Load reads the YAML config file (if present), applies env overrides for
// secrets, and validates. Unrecognized YAML keys are ignored; invalid values
// abort startup.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %q: %w", path, err)
			}
			// Missing file falls through to defaults
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	// Secrets from environment
	cfg.APIKey = os.Getenv("WEEX_API_KEY")
	cfg.SecretKey = os.Getenv("WEEX_SECRET_KEY")
	cfg.Passphrase = os.Getenv("WEEX_PASSPHRASE")
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChat = id
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		cfg.Exchange.DryRun = v == "true" || v == "1" || v == "yes"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("config: exchange.symbol is required")
	}
	if c.Exchange.Leverage < 1 || c.Exchange.Leverage > 20 {
		return fmt.Errorf("config: exchange.leverage must be 1-20, got %d", c.Exchange.Leverage)
	}
	if c.Exchange.PollSeconds <= 0 {
		return fmt.Errorf("config: exchange.poll_seconds must be positive")
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct >= 1 {
		return fmt.Errorf("config: risk.max_drawdown_pct must be in (0,1), got %v", c.Risk.MaxDrawdownPct)
	}
	if c.Signals.MinConfidence < 0 || c.Signals.MinConfidence > 1 {
		return fmt.Errorf("config: signals.min_confidence must be in [0,1]")
	}
	if c.TPSL.MinRiskReward < 1 {
		return fmt.Errorf("config: tpsl.min_risk_reward must be >= 1")
	}
	if c.Risk.BaseSize <= 0 || c.Risk.MaxPositionSize <= 0 {
		return fmt.Errorf("config: risk.base_size and risk.max_position_size must be positive")
	}
	if !c.Exchange.DryRun && (c.APIKey == "" || c.SecretKey == "" || c.Passphrase == "") {
		return fmt.Errorf("config: WEEX_API_KEY/WEEX_SECRET_KEY/WEEX_PASSPHRASE are required for live trading")
	}
	return nil
}

// PollInterval returns the tick interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Exchange.PollSeconds) * time.Second
}

// RequestTimeout returns the per-call exchange timeout
func (c *Config) RequestTimeout() time.Duration {
	if c.Exchange.RequestTimeoutS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Exchange.RequestTimeoutS) * time.Second
}

// Cooldown returns the entry cooldown as a duration
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Risk.CooldownSeconds) * time.Second
}

// BaseSizeDecimal returns risk.base_size as a decimal
func (c *Config) BaseSizeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Risk.BaseSize)
}

// MaxSizeDecimal returns risk.max_position_size as a decimal
func (c *Config) MaxSizeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Risk.MaxPositionSize)
}
