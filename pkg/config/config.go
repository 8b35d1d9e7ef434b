// Package config loads the sentinel's layered configuration: defaults,
// an optional config file, then environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AnalyzerConfig holds the per-analyzer thresholds and tunables from
// SPEC_FULL.md §6.
type AnalyzerConfig struct {
	FlashLoan FlashLoanConfig `mapstructure:"flash_loan" yaml:"flash_loan"`
	Price     PriceConfig     `mapstructure:"price" yaml:"price"`
	Sandwich  SandwichConfig  `mapstructure:"sandwich" yaml:"sandwich"`
	Oracle    OracleConfig    `mapstructure:"oracle" yaml:"oracle"`
}

type FlashLoanConfig struct {
	MinSwapCount int    `mapstructure:"min_swap_count" yaml:"min_swap_count"`
	ScoreFloor   uint16 `mapstructure:"score_floor" yaml:"score_floor"`
	LargeLoanAmt uint64 `mapstructure:"large_loan_amount" yaml:"large_loan_amount"`
}

type PriceConfig struct {
	ScoreFloor           uint16 `mapstructure:"score_floor" yaml:"score_floor"`
	MinDepthRatioBps     uint64 `mapstructure:"min_depth_ratio_bps" yaml:"min_depth_ratio_bps"`
	TWAPDeviationBpsHigh uint64 `mapstructure:"twap_deviation_bps_high" yaml:"twap_deviation_bps_high"`
}

type SandwichConfig struct {
	BufferCapacity   int    `mapstructure:"buffer_capacity" yaml:"buffer_capacity"`
	MaxCheckpointAge int    `mapstructure:"max_checkpoint_age" yaml:"max_checkpoint_age"`
	ScoreFloor       uint16 `mapstructure:"score_floor" yaml:"score_floor"`
}

type OracleConfig struct {
	ScoreFloor          uint16 `mapstructure:"score_floor" yaml:"score_floor"`
	MinBorrowAmount     uint64 `mapstructure:"min_borrow_amount" yaml:"min_borrow_amount"`
	HealthFactorHighBps uint64 `mapstructure:"health_factor_high_bps" yaml:"health_factor_high_bps"`
}

// ActionConfig holds the action-manager / sink wiring settings.
type ActionConfig struct {
	SinkTimeoutMs int             `mapstructure:"sink_timeout_ms" yaml:"sink_timeout_ms"`
	Alert         AlertSinkConfig `mapstructure:"alert" yaml:"alert"`
	Store         StoreSinkConfig `mapstructure:"store" yaml:"store"`
	Index         IndexSinkConfig `mapstructure:"index" yaml:"index"`
}

type AlertSinkConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	MinLevel   string `mapstructure:"min_level" yaml:"min_level"`
	RatePerSec int    `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
	Burst      int    `mapstructure:"burst" yaml:"burst"`
}

type StoreSinkConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	MinLevel  string `mapstructure:"min_level" yaml:"min_level"`
	DSN       string `mapstructure:"dsn" yaml:"dsn"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
}

type IndexSinkConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	MinLevel string   `mapstructure:"min_level" yaml:"min_level"`
	Brokers  []string `mapstructure:"brokers" yaml:"brokers"`
	Topic    string   `mapstructure:"topic" yaml:"topic"`
}

// Config is the root configuration for cmd/sentinel.
type Config struct {
	Service struct {
		Name           string `mapstructure:"name" yaml:"name"`
		LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
		LogFormat      string `mapstructure:"log_format" yaml:"log_format"`
		AdminAddr      string `mapstructure:"admin_addr" yaml:"admin_addr"`
		TargetPackage  string `mapstructure:"target_package_id" yaml:"target_package_id"`
		StrictDecoding bool   `mapstructure:"strict_decoding" yaml:"strict_decoding"`
	} `mapstructure:"service" yaml:"service"`

	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
	Action   ActionConfig   `mapstructure:"action" yaml:"action"`
}

// Load reads configuration from defaults, an optional file at path (if
// non-empty), and the SENTINEL_-prefixed environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("sentinel")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "sentinel")
	v.SetDefault("service.log_level", "info")
	v.SetDefault("service.log_format", "json")
	v.SetDefault("service.admin_addr", ":9090")
	v.SetDefault("service.strict_decoding", false)
	// Keys with no useful default are still registered, so that viper knows
	// them and their SENTINEL_ environment overrides reach Unmarshal.
	v.SetDefault("service.target_package_id", "")
	v.SetDefault("action.alert.webhook_url", "")
	v.SetDefault("action.store.dsn", "")
	v.SetDefault("action.store.redis_addr", "")
	v.SetDefault("action.index.brokers", []string{})

	v.SetDefault("analyzer.flash_loan.min_swap_count", 2)
	v.SetDefault("analyzer.flash_loan.score_floor", 30)
	v.SetDefault("analyzer.flash_loan.large_loan_amount", uint64(1_000_000_000))

	v.SetDefault("analyzer.price.score_floor", 25)
	v.SetDefault("analyzer.price.min_depth_ratio_bps", uint64(500))
	v.SetDefault("analyzer.price.twap_deviation_bps_high", uint64(1000))

	v.SetDefault("analyzer.sandwich.buffer_capacity", 100)
	v.SetDefault("analyzer.sandwich.max_checkpoint_age", 5)
	v.SetDefault("analyzer.sandwich.score_floor", 30)

	v.SetDefault("analyzer.oracle.score_floor", 40)
	v.SetDefault("analyzer.oracle.min_borrow_amount", uint64(100))
	v.SetDefault("analyzer.oracle.health_factor_high_bps", uint64(15000))

	v.SetDefault("action.sink_timeout_ms", 5000)
	v.SetDefault("action.alert.enabled", false)
	v.SetDefault("action.alert.min_level", "high")
	v.SetDefault("action.alert.rate_per_sec", 5)
	v.SetDefault("action.alert.burst", 10)
	v.SetDefault("action.store.enabled", false)
	v.SetDefault("action.store.min_level", "low")
	v.SetDefault("action.index.enabled", false)
	v.SetDefault("action.index.min_level", "low")
	v.SetDefault("action.index.topic", "sentinel.risk-events")
}

func validate(cfg *Config) error {
	if cfg.Service.TargetPackage == "" {
		return fmt.Errorf("config: service.target_package_id must be set")
	}
	if cfg.Action.Alert.Enabled && cfg.Action.Alert.WebhookURL == "" {
		return fmt.Errorf("config: action.alert.webhook_url required when action.alert.enabled")
	}
	if cfg.Action.Store.Enabled && cfg.Action.Store.DSN == "" {
		return fmt.Errorf("config: action.store.dsn required when action.store.enabled")
	}
	if cfg.Action.Index.Enabled && len(cfg.Action.Index.Brokers) == 0 {
		return fmt.Errorf("config: action.index.brokers required when action.index.enabled")
	}
	return nil
}

// SinkTimeout returns the configured per-sink dispatch timeout.
func (c *Config) SinkTimeout() time.Duration {
	return time.Duration(c.Action.SinkTimeoutMs) * time.Millisecond
}
