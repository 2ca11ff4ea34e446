// Package config provides configuration management for the trading bot.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration. Broker credentials are not
// here: they live encrypted in the security store and are decrypted on
// demand.
type Config struct {
	Capital       CapitalConfig      `mapstructure:"capital"`
	Risk          RiskConfig         `mapstructure:"risk"`
	Broker        BrokerConfig       `mapstructure:"broker"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// CapitalConfig holds capital allocation and liquidity filter settings.
type CapitalConfig struct {
	AllocatedLimit         float64 `mapstructure:"allocated_limit"`
	MaxPerStockFixedAmount float64 `mapstructure:"max_per_stock_fixed_amount"`
	VolumeFilterEnabled    bool    `mapstructure:"volume_filter_enabled"`
	MinVolumeShares        int64   `mapstructure:"min_volume_shares"`
	MinVolumeValue         float64 `mapstructure:"min_volume_value"`
}

// RiskConfig holds risk management configuration.
type RiskConfig struct {
	StopLossPct         float64 `mapstructure:"stop_loss_pct"`
	ProfitTargetPct     float64 `mapstructure:"profit_target_pct"`
	TrendFilterEnabled  bool    `mapstructure:"trend_filter_enabled"`
	NeverSellAtLoss     bool    `mapstructure:"never_sell_at_loss"`
	AutoExecuteStopLoss bool    `mapstructure:"auto_execute_stop_loss"`
}

// BrokerConfig holds the non-secret broker settings. API key, secret,
// password, TOTP secret and access token are kept in the encrypted store.
type BrokerConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	ClientCode string `mapstructure:"client_code"`
	ProbeURL   string `mapstructure:"probe_url"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/mstock-trader"
	}
	return filepath.Join(home, ".config", "mstock-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env fallbacks for deployments without a config file
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if err := writeTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("creating config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("capital.allocated_limit", 50000.0)
	v.SetDefault("capital.max_per_stock_fixed_amount", 5000.0)
	v.SetDefault("capital.volume_filter_enabled", true)
	v.SetDefault("capital.min_volume_shares", 50000)
	v.SetDefault("capital.min_volume_value", 500000.0)
	v.SetDefault("risk.stop_loss_pct", 5.0)
	v.SetDefault("risk.profit_target_pct", 10.0)
	v.SetDefault("risk.trend_filter_enabled", true)
	v.SetDefault("risk.never_sell_at_loss", true)
	v.SetDefault("risk.auto_execute_stop_loss", false)
	v.SetDefault("broker.base_url", "https://api.mstock.trade/openapi/typea")
	v.SetDefault("broker.probe_url", "https://www.google.com/")
	v.SetDefault("logging.level", "info")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MSTOCK_CLIENT_CODE"); v != "" {
		cfg.Broker.ClientCode = v
	}
	if v := os.Getenv("MSTOCK_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Capital.AllocatedLimit < 0 {
		return fmt.Errorf("capital.allocated_limit must be non-negative")
	}
	if c.Capital.MaxPerStockFixedAmount < 0 {
		return fmt.Errorf("capital.max_per_stock_fixed_amount must be non-negative")
	}
	if c.Risk.StopLossPct < 0 || c.Risk.StopLossPct > 100 {
		return fmt.Errorf("risk.stop_loss_pct must be between 0 and 100")
	}
	if c.Risk.ProfitTargetPct < 0 {
		return fmt.Errorf("risk.profit_target_pct must be non-negative")
	}
	return nil
}
