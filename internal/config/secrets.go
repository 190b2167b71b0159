package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Pool RPC URLs commonly embed provider API keys in the path.
	out.Pool = cfg.Pool
	redact(&out.Pool.RPCURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Scan.Exchanges != nil {
		out.Scan.Exchanges = make([]string, len(cfg.Scan.Exchanges))
		copy(out.Scan.Exchanges, cfg.Scan.Exchanges)
	}

	// Copy maps so mutations to the redacted copy do not affect the original.
	if cfg.Fees != nil {
		out.Fees = make(map[string]float64, len(cfg.Fees))
		for k, v := range cfg.Fees {
			out.Fees[k] = v
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
