// Package config loads server settings from defaults, an optional TOML file,
// a .env file and AUCTIOND_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const EnvPrefix = "AUCTIOND_"

type Config struct {
	HTTPAddr  string `toml:"http_addr" env:"HTTP_ADDR"`
	LogLevel  string `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `toml:"log_format" env:"LOG_FORMAT"`
	// SeedFile is a tournament JSON document imported at boot when set.
	SeedFile string `toml:"seed_file" env:"SEED_FILE"`

	Store   StoreConfig   `toml:"store" envPrefix:"STORE_"`
	Redis   RedisConfig   `toml:"redis" envPrefix:"REDIS_"`
	History HistoryConfig `toml:"history" envPrefix:"HISTORY_"`
	Auth    AuthConfig    `toml:"auth" envPrefix:"AUTH_"`
	Auction AuctionConfig `toml:"auction" envPrefix:"AUCTION_"`
}

type StoreConfig struct {
	Driver   string `toml:"driver" env:"DRIVER"` // memory | postgres
	DSN      string `toml:"dsn" env:"DSN"`
	MaxConns int    `toml:"max_conns" env:"MAX_CONNS"`
}

type RedisConfig struct {
	Enabled       bool   `toml:"enabled" env:"ENABLED"`
	Addr          string `toml:"addr" env:"ADDR"`
	Password      string `toml:"password" env:"PASSWORD"`
	DB            int    `toml:"db" env:"DB"`
	ChannelPrefix string `toml:"channel_prefix" env:"CHANNEL_PREFIX"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	DSN     string `toml:"dsn" env:"DSN"`
}

type AuthConfig struct {
	SeatTokenSecret string        `toml:"seat_token_secret" env:"SEAT_TOKEN_SECRET"`
	SeatTokenTTL    time.Duration `toml:"seat_token_ttl" env:"SEAT_TOKEN_TTL"`
	AdminKeyHash    string        `toml:"admin_key_hash" env:"ADMIN_KEY_HASH"`
}

type AuctionConfig struct {
	AutoAdvanceDelay   time.Duration `toml:"auto_advance_delay" env:"AUTO_ADVANCE_DELAY"`
	SaveTimeout        time.Duration `toml:"save_timeout" env:"SAVE_TIMEOUT"`
	AutoSellOnLastCall bool          `toml:"auto_sell_on_last_call" env:"AUTO_SELL_ON_LAST_CALL"`
	QuorumBaseline     int           `toml:"quorum_baseline" env:"QUORUM_BASELINE"`
	Locale             string        `toml:"locale" env:"LOCALE"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		LogFormat: "json",
		Store: StoreConfig{
			Driver:   "memory",
			MaxConns: 10,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			ChannelPrefix: "auction:",
		},
		Auth: AuthConfig{
			SeatTokenTTL: 12 * time.Hour,
		},
		Auction: AuctionConfig{
			AutoAdvanceDelay: 3 * time.Second,
			SaveTimeout:      5 * time.Second,
			QuorumBaseline:   2,
			Locale:           "en",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, postgres", c.Store.Driver))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.History.Enabled && c.History.DSN == "" {
		errs = append(errs, errors.New("history.dsn is required when history is enabled"))
	}
	if c.Auth.SeatTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.seat_token_ttl must be positive"))
	}
	if c.Auction.AutoAdvanceDelay < 0 {
		errs = append(errs, errors.New("auction.auto_advance_delay must not be negative"))
	}
	if c.Auction.SaveTimeout <= 0 {
		errs = append(errs, errors.New("auction.save_timeout must be positive"))
	}
	if c.Auction.QuorumBaseline < 1 {
		errs = append(errs, errors.New("auction.quorum_baseline must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
