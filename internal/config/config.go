package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/gexboard/internal/notify"
)

type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Server   ServerConfig   `mapstructure:"server"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	History  HistoryConfig  `mapstructure:"history"`
	Session  SessionConfig  `mapstructure:"session"`
	Notify   notify.Config  `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type UpstreamConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelaySec int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type RefreshConfig struct {
	IntervalSec int    `mapstructure:"interval_sec"`
	Timezone    string `mapstructure:"timezone"`
}

type HistoryConfig struct {
	// Directory with date-partitioned snapshot files. Empty means playback
	// history comes from the upstream API instead.
	Directory string `mapstructure:"directory"`
}

type SessionConfig struct {
	File string `mapstructure:"file"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("upstream.base_url", "https://api.gex.bot")
	v.SetDefault("upstream.timeout_sec", 30)
	v.SetDefault("upstream.retry_count", 3)
	v.SetDefault("upstream.retry_delay_sec", 2)
	v.SetDefault("upstream.rate_per_second", 5)
	v.SetDefault("server.port", "8080")
	v.SetDefault("refresh.interval_sec", 60)
	v.SetDefault("refresh.timezone", "America/New_York")
	v.SetDefault("session.file", "session.json")
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("GEXBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("upstream.api_key", "GEXBOARD_API_KEY")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Upstream.APIKey == "" {
		return fmt.Errorf("api_key is required (set GEXBOARD_API_KEY env var)")
	}
	if c.Refresh.IntervalSec < 5 {
		return fmt.Errorf("refresh interval must be >= 5 seconds")
	}
	if c.Notify.Enabled && c.Notify.Topic == "" {
		return fmt.Errorf("notify.topic is required when notifications are enabled")
	}
	return nil
}
