package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GatewayConfig holds the pre-shared secrets and endpoints for the
// recurring-payment gateway. HashKey and HashIV are raw (not encoded)
// strings whose UTF-8 byte lengths must be exactly 32 and 16.
type GatewayConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	MerchantID      string `mapstructure:"merchant_id"`
	HashKey         string `mapstructure:"hash_key"`
	HashIV          string `mapstructure:"hash_iv"`
	StrictSignature bool   `mapstructure:"strict_signature"` // reject events on signature mismatch
}

// Validate checks the key/IV byte lengths. A wrong-length key means every
// webhook would fail to decrypt, so this is a boot-time fatal.
func (g GatewayConfig) Validate() error {
	if n := len([]byte(g.HashKey)); n != 32 {
		return fmt.Errorf("gateway hash_key must be 32 bytes, got %d", n)
	}
	if n := len([]byte(g.HashIV)); n != 16 {
		return fmt.Errorf("gateway hash_iv must be 16 bytes, got %d", n)
	}
	return nil
}

// NotifierConfig holds settings for the downstream access-control callback.
type NotifierConfig struct {
	BotURL  string        `mapstructure:"bot_url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SweeperConfig holds reconciliation sweep settings.
type SweeperConfig struct {
	Token     string `mapstructure:"token"`      // shared secret presented by the trigger caller
	GraceDays int    `mapstructure:"grace_days"` // default grace window after period end
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// AdminConfig holds the operator credential for the management API.
// PasswordHash is an Argon2id encoded hash.
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SUB_.
// Nested keys use underscore: SUB_DATABASE_HOST, SUB_GATEWAY_HASH_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "subscription_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("gateway.base_url", "https://core.newebpay.com")
	v.SetDefault("gateway.merchant_id", "")
	v.SetDefault("gateway.hash_key", "")
	v.SetDefault("gateway.hash_iv", "")
	v.SetDefault("gateway.strict_signature", false)
	v.SetDefault("notifier.bot_url", "")
	v.SetDefault("notifier.secret", "")
	v.SetDefault("notifier.timeout", "4s")
	v.SetDefault("sweeper.token", "")
	v.SetDefault("sweeper.grace_days", 3)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "subscription-engine")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SUB_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
