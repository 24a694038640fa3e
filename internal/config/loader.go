package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ELTRADER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ELTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.RestURL, "ELTRADER_BINANCE_REST_URL")
	setStr(&cfg.Binance.WsURL, "ELTRADER_BINANCE_WS_URL")
	setStr(&cfg.Binance.ApiKey, "ELTRADER_BINANCE_API_KEY")
	setStr(&cfg.Binance.ApiSecret, "ELTRADER_BINANCE_API_SECRET")
	setStr(&cfg.Binance.EncryptedSecretPath, "ELTRADER_BINANCE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Binance.SecretPassword, "ELTRADER_BINANCE_SECRET_PASSWORD")
	setInt64(&cfg.Binance.RecvWindowMs, "ELTRADER_BINANCE_RECV_WINDOW_MS")

	// ── Trading ──
	setStringSlice(&cfg.Trading.Tradeables, "ELTRADER_TRADING_TRADEABLES")
	setStr(&cfg.Trading.Bridge, "ELTRADER_TRADING_BRIDGE")
	setStr(&cfg.Trading.BridgeAmount, "ELTRADER_TRADING_BRIDGE_AMOUNT")
	setStr(&cfg.Trading.Interval, "ELTRADER_TRADING_INTERVAL")
	setInt(&cfg.Trading.CandleWindow, "ELTRADER_TRADING_CANDLE_WINDOW")
	setDuration(&cfg.Trading.TickInterval, "ELTRADER_TRADING_TICK_INTERVAL")
	setBool(&cfg.Trading.EnableExits, "ELTRADER_TRADING_ENABLE_EXITS")
	setStr(&cfg.Trading.DecisionChannel, "ELTRADER_TRADING_DECISION_CHANNEL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ELTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ELTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ELTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ELTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ELTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ELTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ELTRADER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ELTRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ELTRADER_POSTGRES_POOL_MIN_CONNS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ELTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ELTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ELTRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ELTRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ELTRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ELTRADER_REDIS_TLS_ENABLED")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ELTRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
