// Package config loads engine settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/enorith/hookbot/pkg/hook"
	"github.com/enorith/hookbot/pkg/model"
	"github.com/enorith/hookbot/pkg/strategy"
)

type Dynamic struct {
	Enabled  bool    `yaml:"enabled"`
	Period   int     `yaml:"period"`
	Scale    float64 `yaml:"scale"`
	MaxShift float64 `yaml:"max_shift"`
}

type RSI struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
	Dynamic    Dynamic `yaml:"dynamic"`
}

type Stochastic struct {
	KPeriod       int     `yaml:"k_period"`
	DPeriod       int     `yaml:"d_period"`
	Oversold      float64 `yaml:"oversold"`
	Overbought    float64 `yaml:"overbought"`
	ATRPeriod     int     `yaml:"atr_period"`
	ATRMultiplier float64 `yaml:"atr_multiplier"`
}

type Strategy struct {
	Kind       string     `yaml:"kind"`
	Size       float64    `yaml:"size"`
	RSI        RSI        `yaml:"rsi"`
	Stochastic Stochastic `yaml:"stochastic"`
}

// Hooks configures the built-in risk hooks. Zero values disable a hook.
type Hooks struct {
	MaxSize     float64 `yaml:"max_size"`
	MinPrice    float64 `yaml:"min_price"`
	MaxPrice    float64 `yaml:"max_price"`
	MaxNotional float64 `yaml:"max_notional"`
}

type Storage struct {
	Path string `yaml:"path"`
}

type Config struct {
	LogLevel       string   `yaml:"log_level"`
	Pair           string   `yaml:"pair"`
	Timeframe      string   `yaml:"timeframe"`
	HistorySize    int      `yaml:"history_size"`
	InitialCash    float64  `yaml:"initial_cash"`
	NotifyRejected *bool    `yaml:"notify_rejected"`
	Strategy       Strategy `yaml:"strategy"`
	Hooks          Hooks    `yaml:"hooks"`
	Storage        Storage  `yaml:"storage"`
}

func Default() Config {
	return Config{
		LogLevel:    "info",
		Pair:        "BTCUSDT",
		Timeframe:   "1m",
		HistorySize: 500,
		InitialCash: 10000,
		Strategy: Strategy{
			Kind: string(strategy.KindRSI),
			Size: 1,
			RSI:  RSI{Period: 14, Oversold: 30, Overbought: 70},
			Stochastic: Stochastic{
				KPeriod: 5, DPeriod: 3, Oversold: 20, Overbought: 80, ATRPeriod: 5, ATRMultiplier: 2,
			},
		},
	}
}

// Load reads the YAML file at path over the defaults, applies overrides from the
// environment (optionally loaded from envFiles) and validates the result.
func Load(path string, envFiles ...string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env: %w", err)
		}
	}
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if level := os.Getenv("HOOKBOT_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if pair := os.Getenv("HOOKBOT_PAIR"); pair != "" {
		cfg.Pair = pair
	}
	if path := os.Getenv("HOOKBOT_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}

func (c Config) Validate() error {
	if c.Pair == "" {
		return fmt.Errorf("%w: pair is required", model.ErrInvalidConfiguration)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidConfiguration, err)
	}
	if _, err := c.TimeframeDuration(); err != nil {
		return err
	}
	if c.InitialCash < 0 {
		return fmt.Errorf("%w: initial cash cannot be negative", model.ErrInvalidConfiguration)
	}
	if c.Hooks.MinPrice > 0 && c.Hooks.MaxPrice > 0 && c.Hooks.MinPrice >= c.Hooks.MaxPrice {
		return fmt.Errorf("%w: min price must be below max price", model.ErrInvalidConfiguration)
	}

	s, err := c.Strategy.Build(c.Pair)
	if err != nil {
		return err
	}
	if c.HistorySize < s.WarmupPeriod() {
		return fmt.Errorf("%w: history size %d is smaller than the %s warmup of %d candles",
			model.ErrInvalidConfiguration, c.HistorySize, s.Name(), s.WarmupPeriod())
	}
	return nil
}

func (c Config) Level() (log.Level, error) {
	if c.LogLevel == "" {
		return log.InfoLevel, nil
	}
	return log.ParseLevel(c.LogLevel)
}

// TimeframeDuration parses values such as "1s", "15m" or "1d".
func (c Config) TimeframeDuration() (time.Duration, error) {
	duration, err := str2duration.ParseDuration(c.Timeframe)
	if err != nil {
		return 0, fmt.Errorf("%w: timeframe %q: %v", model.ErrInvalidConfiguration, c.Timeframe, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: timeframe must be positive", model.ErrInvalidConfiguration)
	}
	return duration, nil
}

// RejectionNotices reports whether post-trade hooks see rejected proposals, true when unset.
func (c Config) RejectionNotices() bool {
	return c.NotifyRejected == nil || *c.NotifyRejected
}

func (s Strategy) Build(pair string) (strategy.Strategy, error) {
	return strategy.Build(strategy.Kind(s.Kind), pair, strategy.Params{
		RSI: strategy.RSIConfig{
			Period:     s.RSI.Period,
			Oversold:   s.RSI.Oversold,
			Overbought: s.RSI.Overbought,
			Size:       s.Size,
			Dynamic: strategy.DynamicThresholds{
				Enabled:  s.RSI.Dynamic.Enabled,
				Period:   s.RSI.Dynamic.Period,
				Scale:    s.RSI.Dynamic.Scale,
				MaxShift: s.RSI.Dynamic.MaxShift,
			},
		},
		Stochastic: strategy.StochasticConfig{
			KPeriod:       s.Stochastic.KPeriod,
			DPeriod:       s.Stochastic.DPeriod,
			Oversold:      s.Stochastic.Oversold,
			Overbought:    s.Stochastic.Overbought,
			Size:          s.Size,
			ATRPeriod:     s.Stochastic.ATRPeriod,
			ATRMultiplier: s.Stochastic.ATRMultiplier,
		},
	})
}

// Build returns the enabled risk hooks in evaluation order:
// price floor, price ceiling, size cap, notional limit.
func (h Hooks) Build() []interface{} {
	var hooks []interface{}
	if h.MinPrice > 0 {
		hooks = append(hooks, hook.PriceFloor{Min: h.MinPrice})
	}
	if h.MaxPrice > 0 {
		hooks = append(hooks, hook.PriceCeiling{Max: h.MaxPrice})
	}
	if h.MaxSize > 0 {
		hooks = append(hooks, hook.SizeCap{Max: h.MaxSize})
	}
	if h.MaxNotional > 0 {
		hooks = append(hooks, hook.NotionalLimit{MaxNotional: h.MaxNotional})
	}
	return hooks
}
