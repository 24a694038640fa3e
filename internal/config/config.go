// Package config defines the top-level configuration for the trading engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ELTRADER_* environment variables.
type Config struct {
	Binance  BinanceConfig  `toml:"binance"`
	Trading  TradingConfig  `toml:"trading"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	LogLevel string         `toml:"log_level"`
}

// BinanceConfig holds Binance API endpoints and credentials.
type BinanceConfig struct {
	RestURL string `toml:"rest_url"`
	WsURL   string `toml:"ws_url"`
	ApiKey  string `toml:"api_key"`
	// ApiSecret is the plaintext API secret. Alternatively set
	// EncryptedSecretPath + SecretPassword to load it from an encrypted file.
	ApiSecret           string `toml:"api_secret"`
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
	RecvWindowMs        int64  `toml:"recv_window_ms"`
}

// TradingConfig holds the strategy and sizing parameters.
type TradingConfig struct {
	// Tradeables is the list of base assets to trade, e.g. ["BTC", "ETH"].
	// Each is paired with the bridge asset to form a symbol.
	Tradeables []string `toml:"tradeables"`
	// Bridge is the quote asset all pairs trade against, e.g. "USDT".
	Bridge string `toml:"bridge"`
	// BridgeAmount is the quote budget spent per entry, as a decimal string.
	BridgeAmount string `toml:"bridge_amount"`
	// Interval is the candle interval, e.g. "1m".
	Interval string `toml:"interval"`
	// CandleWindow is the maximum number of bars kept per symbol.
	CandleWindow int `toml:"candle_window"`
	// TickInterval is the fixed delay between strategy evaluations.
	TickInterval duration `toml:"tick_interval"`
	// EnableExits allows exit signals to submit sell orders. Off by default:
	// exits are computed and recorded but not dispatched.
	EnableExits bool `toml:"enable_exits"`
	// MinLotSizes maps a symbol (e.g. "BNBBTC") to its minimum lot size as a
	// decimal string. An integer lot size rounds order quantities up to whole
	// units.
	MinLotSizes map[string]string `toml:"min_lot_sizes"`
	// DecisionChannel is the redis channel decisions are published to.
	// Empty disables publication.
	DecisionChannel string `toml:"decision_channel"`
}

// PostgresConfig holds PostgreSQL connection parameters for order and
// domain-event persistence.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; an empty
// addr disables it.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "10s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "10s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			RestURL:      "https://api.binance.com",
			WsURL:        "wss://stream.binance.com:9443",
			RecvWindowMs: 5000,
		},
		Trading: TradingConfig{
			Tradeables:      []string{"BTC"},
			Bridge:          "USDT",
			BridgeAmount:    "100",
			Interval:        "1m",
			CandleWindow:    50,
			TickInterval:    duration{10 * time.Second},
			EnableExits:     false,
			MinLotSizes:     map[string]string{"BNBBTC": "1"},
			DecisionChannel: "decisions",
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "eltrader",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:       "",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// TickInterval returns the configured evaluation delay.
func (t TradingConfig) TickIntervalDuration() time.Duration {
	return t.TickInterval.Duration
}

// Symbols returns the trading pairs formed from tradeables and the bridge
// asset, upper-cased (e.g. "BTCUSDT").
func (t TradingConfig) Symbols() []string {
	out := make([]string, 0, len(t.Tradeables))
	for _, base := range t.Tradeables {
		out = append(out, strings.ToUpper(base)+strings.ToUpper(t.Bridge))
	}
	return out
}

// BridgeBudget parses BridgeAmount into a decimal.
func (t TradingConfig) BridgeBudget() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(t.BridgeAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: bridge_amount %q: %w", t.BridgeAmount, err)
	}
	return d, nil
}

// MinLotSize resolves the minimum lot size configured for symbol, or false
// when the symbol has no override.
func (t TradingConfig) MinLotSize(symbol string) (decimal.Decimal, bool) {
	raw, ok := t.MinLotSizes[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Binance
	if c.Binance.RestURL == "" {
		errs = append(errs, "binance: rest_url must not be empty")
	}
	if c.Binance.WsURL == "" {
		errs = append(errs, "binance: ws_url must not be empty")
	}
	if c.Binance.ApiKey == "" {
		errs = append(errs, "binance: api_key must not be empty")
	}
	if c.Binance.ApiSecret == "" && c.Binance.EncryptedSecretPath == "" {
		errs = append(errs, "binance: either api_secret or encrypted_secret_path must be set")
	}
	if c.Binance.EncryptedSecretPath != "" && c.Binance.SecretPassword == "" {
		errs = append(errs, "binance: secret_password is required when encrypted_secret_path is set")
	}
	if c.Binance.RecvWindowMs <= 0 {
		errs = append(errs, "binance: recv_window_ms must be > 0")
	}

	// Trading
	if len(c.Trading.Tradeables) == 0 {
		errs = append(errs, "trading: tradeables must list at least one base asset")
	}
	if c.Trading.Bridge == "" {
		errs = append(errs, "trading: bridge must not be empty")
	}
	if d, err := decimal.NewFromString(c.Trading.BridgeAmount); err != nil || !d.IsPositive() {
		errs = append(errs, fmt.Sprintf("trading: bridge_amount must be a positive decimal, got %q", c.Trading.BridgeAmount))
	}
	if c.Trading.Interval == "" {
		errs = append(errs, "trading: interval must not be empty")
	}
	if c.Trading.CandleWindow < 2 {
		errs = append(errs, "trading: candle_window must be >= 2")
	}
	if c.Trading.TickInterval.Duration <= 0 {
		errs = append(errs, "trading: tick_interval must be > 0")
	}
	for sym, raw := range c.Trading.MinLotSizes {
		if _, err := decimal.NewFromString(raw); err != nil {
			errs = append(errs, fmt.Sprintf("trading: min_lot_sizes[%s] must be a decimal, got %q", sym, raw))
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis (optional)
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
