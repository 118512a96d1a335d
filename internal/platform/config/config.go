// Package config loads workguard configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DevSigningKey is the fallback JWT key for local development. Load refuses
// it when APP_ENV=production.
const DevSigningKey = "dev-secret-key-change-in-production"

// Config holds application configuration loaded from the environment.
type Config struct {
	Addr string `mapstructure:"WORKGUARD_ADDR"`
	// Env is the application environment ("development", "production").
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL is the Postgres DSN; empty selects the in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	RedisURL      string        `mapstructure:"REDIS_URL"`
	RedisPoolSize int           `mapstructure:"REDIS_POOL_SIZE"`
	PresenceTTL   time.Duration `mapstructure:"PRESENCE_TTL"`

	// KafkaBrokers is a comma-separated broker list; empty disables the
	// notification stream.
	KafkaBrokers      string `mapstructure:"KAFKA_BROKERS"`
	NotificationTopic string `mapstructure:"NOTIFICATION_TOPIC"`

	JWTSigningKey string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTTTL        time.Duration `mapstructure:"JWT_TTL"`
	BcryptCost    int           `mapstructure:"BCRYPT_COST"`
}

// RedisConfig is the subset of Config the redis client needs.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("WORKGUARD_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("PRESENCE_TTL", "5m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("NOTIFICATION_TOPIC", "workguard.notifications")
	v.SetDefault("JWT_SIGNING_KEY", DevSigningKey)
	v.SetDefault("JWT_ISSUER", "workguard")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("BCRYPT_COST", 10)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("config: WORKGUARD_ADDR must be set")
	}
	if c.IsProduction() && (c.JWTSigningKey == DevSigningKey || c.JWTSigningKey == "") {
		return errors.New("config: JWT_SIGNING_KEY must be set when APP_ENV=production")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.JWTTTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	if c.PresenceTTL <= 0 {
		return errors.New("config: PRESENCE_TTL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Redis returns the redis client settings.
func (c *Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     c.RedisPoolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// KafkaBrokersList returns the broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
