package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Binance.ApiKey)
	redact(&out.Binance.ApiSecret)
	redact(&out.Binance.SecretPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Trading.Tradeables != nil {
		out.Trading.Tradeables = make([]string, len(cfg.Trading.Tradeables))
		copy(out.Trading.Tradeables, cfg.Trading.Tradeables)
	}
	if cfg.Trading.MinLotSizes != nil {
		out.Trading.MinLotSizes = make(map[string]string, len(cfg.Trading.MinLotSizes))
		for k, v := range cfg.Trading.MinLotSizes {
			out.Trading.MinLotSizes[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
