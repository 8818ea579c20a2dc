package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/plop-reliability/store"
	"github.com/spf13/viper"
)

/* Config is loaded from an optional .env file and the environment.
 * Environment variables always win over the file.
 */
type Config struct {
	Port string `mapstructure:"PORT"`

	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisToken    string `mapstructure:"REDIS_TOKEN"`
	CacheDisabled bool   `mapstructure:"CACHE_DISABLED"`

	PostgresURL                string `mapstructure:"POSTGRES_URL"`
	PostgresMaxOpenConns       int    `mapstructure:"POSTGRES_MAX_OPEN_CONNS"`
	PostgresMaxIdleConns       int    `mapstructure:"POSTGRES_MAX_IDLE_CONNS"`
	PostgresConnMaxLifeMinutes int    `mapstructure:"POSTGRES_CONN_MAX_LIFE_MINUTES"`
	PostgresAutoMigrate        bool   `mapstructure:"POSTGRES_AUTO_MIGRATE"`

	WebhookEndpointsFile string `mapstructure:"WEBHOOK_ENDPOINTS_FILE"`
	WebhookTimeoutMs     int    `mapstructure:"WEBHOOK_TIMEOUT_MS"`

	AdminToken string `mapstructure:"ADMIN_TOKEN"`

	LogJSON bool `mapstructure:"LOG_JSON"`
}

var defaults = map[string]any{
	"PORT":                           "8080",
	"REDIS_URL":                      "",
	"REDIS_TOKEN":                    "",
	"CACHE_DISABLED":                 false,
	"POSTGRES_URL":                   "",
	"POSTGRES_MAX_OPEN_CONNS":        25,
	"POSTGRES_MAX_IDLE_CONNS":        5,
	"POSTGRES_CONN_MAX_LIFE_MINUTES": 5,
	"POSTGRES_AUTO_MIGRATE":          false,
	"WEBHOOK_ENDPOINTS_FILE":         "",
	"WEBHOOK_TIMEOUT_MS":             10000,
	"ADMIN_TOKEN":                    "",
	"LOG_JSON":                       true,
}

// GetConfig reads .env from the working directory and the process environment
func GetConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	return load(v, true)
}

// FromFile reads configuration from an explicit TOML file plus the environment.
// Unlike GetConfig, a missing file is an error.
func FromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	return load(v, false)
}

func load(v *viper.Viper, fileOptional bool) (*Config, error) {
	/* Defaults register every key so AutomaticEnv is honoured by Unmarshal */
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !fileOptional || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// Store returns the backing store configuration
func (c *Config) Store() store.Config {
	return store.Config{
		URL:      c.RedisURL,
		Token:    c.RedisToken,
		Disabled: c.CacheDisabled,
	}
}

// WebhookTimeout returns the outbound webhook timeout (default: 10s)
func (c *Config) WebhookTimeout() time.Duration {
	if c.WebhookTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WebhookTimeoutMs) * time.Millisecond
}

// ValidatePostgres checks that a PostgreSQL connection string is configured
func (c *Config) ValidatePostgres() error {
	if c.PostgresURL == "" {
		return fmt.Errorf("POSTGRES_URL is required")
	}
	return nil
}
