// Package config loads the lockup service configuration from an optional
// YAML file, .env files and LOCKUP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/atmx/lockup-engine/internal/fee"
	"github.com/atmx/lockup-engine/internal/model"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "LOCKUP"

// MaxPeriodSeconds is the longest lock period a time.Duration can hold.
const MaxPeriodSeconds = uint64(math.MaxInt64 / int64(time.Second))

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds Redis configuration. An empty URL disables both the
// config cache and event publishing.
type RedisConfig struct {
	URL           string        `mapstructure:"url"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	EventsChannel string        `mapstructure:"events_channel"`
}

// TokenConfig describes the derivative token.
type TokenConfig struct {
	Name     string `mapstructure:"name"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
}

// StakingConfig is the instantiate message for a fresh ledger. Periods are
// in seconds and rates in whole percent.
type StakingConfig struct {
	Owner         string      `mapstructure:"owner"`
	StakeDenom    string      `mapstructure:"stake_denom"`
	IssuerAddress string      `mapstructure:"issuer_address"`
	LongPeriod    uint64      `mapstructure:"long_period"`
	ShortPeriod   uint64      `mapstructure:"short_period"`
	LongTax       uint64      `mapstructure:"long_tax"`
	ShortTax      uint64      `mapstructure:"short_tax"`
	Penalty       uint64      `mapstructure:"penalty"`
	Token         TokenConfig `mapstructure:"token"`
}

// Config is the full service configuration.
type Config struct {
	Debug    bool           `mapstructure:"debug"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Staking  StakingConfig  `mapstructure:"staking"`
}

// Load reads configuration. A missing config file is not an error;
// environment variables and defaults are used instead.
func Load(configFile string, envPath string) (*Config, error) {
	v := configureViper(configFile, envPath)

	v.SetDefault("debug", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("redis.cache_ttl", 30*time.Second)
	v.SetDefault("redis.key_prefix", "lockup")
	v.SetDefault("redis.events_channel", "lockup:events")
	v.SetDefault("staking.stake_denom", "qtum")
	v.SetDefault("staking.long_period", 30*14400)
	v.SetDefault("staking.short_period", 15*14400)
	v.SetDefault("staking.long_tax", 2)
	v.SetDefault("staking.short_tax", 3)
	v.SetDefault("staking.penalty", 2)
	v.SetDefault("staking.token.name", "xQtum")
	v.SetDefault("staking.token.symbol", "xQtum")
	v.SetDefault("staking.token.decimals", 6)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ToModel converts the instantiate settings into the ledger configuration
// and token metadata, validating both.
func (s StakingConfig) ToModel() (model.Config, model.TokenInfo, error) {
	for name, p := range map[string]uint64{"long_tax": s.LongTax, "short_tax": s.ShortTax, "penalty": s.Penalty} {
		if p > 100 {
			return model.Config{}, model.TokenInfo{}, fmt.Errorf("config: staking.%s %d exceeds 100%%", name, p)
		}
	}

	for name, p := range map[string]uint64{"long_period": s.LongPeriod, "short_period": s.ShortPeriod} {
		if p > MaxPeriodSeconds {
			return model.Config{}, model.TokenInfo{}, fmt.Errorf("config: staking.%s %d exceeds %d seconds", name, p, MaxPeriodSeconds)
		}
	}

	cfg := model.Config{
		Owner:         s.Owner,
		StakeDenom:    s.StakeDenom,
		IssuerAddress: s.IssuerAddress,
		Period: model.LockPeriod{
			Long:  time.Duration(s.LongPeriod) * time.Second,
			Short: time.Duration(s.ShortPeriod) * time.Second,
		},
		Tax: model.LockTax{
			Long:  fee.Percent(s.LongTax),
			Short: fee.Percent(s.ShortTax),
		},
		Penalty: fee.Percent(s.Penalty),
	}
	if err := cfg.Validate(); err != nil {
		return model.Config{}, model.TokenInfo{}, err
	}

	info := model.TokenInfo{
		Name:     s.Token.Name,
		Symbol:   s.Token.Symbol,
		Decimals: s.Token.Decimals,
	}
	return cfg, info, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env vars for keys viper already knows about.
	for _, key := range []string{
		"debug",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.shutdown_timeout",
		"database.url",
		"redis.url",
		"redis.cache_ttl",
		"redis.key_prefix",
		"redis.events_channel",
		"staking.owner",
		"staking.stake_denom",
		"staking.issuer_address",
		"staking.long_period",
		"staking.short_period",
		"staking.long_tax",
		"staking.short_tax",
		"staking.penalty",
		"staking.token.name",
		"staking.token.symbol",
		"staking.token.decimals",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

// loadEnv loads .env then .env.local from envPath (default config/).
func loadEnv(envPath string) {
	if envPath == "" {
		envPath = "config/"
	}
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(filepath.Join(envPath, f))
	}
}
