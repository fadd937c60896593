package config

import "strings"

const (
	defaultAppEnv        = "paper"
	defaultAppLogLevel   = "info"
	defaultAppLogFormat  = "text"
	defaultAppHTTPAddr   = ":9991"
	defaultBrokerURL     = "https://paper-api.alpaca.markets"
	defaultMarketDataURL = "https://data.alpaca.markets"
	defaultMarketFeed    = "sip"
	defaultAltPriceURL   = "https://financialmodelingprep.com"
	defaultHTTPTimeout   = 15

	defaultSignalsFile   = "data/scores.txt"
	defaultCursorFile    = "data/lastProcessedId.txt"
	defaultExtremesFile  = "data/Positions.txt"
	defaultAltPricesFile = "data/LivePositionsPrice.txt"

	defaultTimeZone    = "America/New_York"
	defaultOpen        = "09:30"
	defaultClose       = "16:00"
	defaultWindowStart = "04:00"
	defaultWindowEnd   = "20:00"
	defaultPreOpen     = "09:00"

	defaultRiskInterval  = 10
	defaultHouseInterval = 30

	defaultRetryAttempts    = 5
	defaultRetryBaseMillis  = 1000
	defaultRetryMaxDelay    = 30
	defaultRetryFactor      = 2
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30

	defaultBufferRatio   = 0.98
	defaultTrimFraction  = 0.02
	defaultTrailingStop  = 0.05
	defaultEquityDivisor = 500
	defaultMinNotional   = 5_000_000
	defaultVolumeDays    = 7
	defaultStaleOrderAge = 300
	defaultSweepPct      = 0.035
	defaultPollInterval  = 5
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
	c.MarketData.applyDefaults(keys)
	c.AltPrice.applyDefaults(keys)
	c.Files.applyDefaults(keys)
	c.Session.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
	c.Retry.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Sizing.applyDefaults(keys)
	c.Housekeeping.applyDefaults(keys)
	c.Ingest.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("broker.base_url", &b.BaseURL, defaultBrokerURL),
		intFieldDefault("broker.timeout_seconds", &b.TimeoutSeconds, defaultHTTPTimeout),
	)
}

func (m *MarketDataConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market_data.base_url", &m.BaseURL, defaultMarketDataURL),
		stringFieldDefault("market_data.feed", &m.Feed, defaultMarketFeed),
		intFieldDefault("market_data.timeout_seconds", &m.TimeoutSeconds, defaultHTTPTimeout),
	)
}

func (a *AltPriceConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("alt_price.base_url", &a.BaseURL, defaultAltPriceURL),
		intFieldDefault("alt_price.timeout_seconds", &a.TimeoutSeconds, defaultHTTPTimeout),
	)
}

func (f *FilesConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("files.signals", &f.Signals, defaultSignalsFile),
		stringFieldDefault("files.cursor", &f.Cursor, defaultCursorFile),
		stringFieldDefault("files.extremes", &f.Extremes, defaultExtremesFile),
		stringFieldDefault("files.alt_prices", &f.AltPrices, defaultAltPricesFile),
	)
}

func (s *SessionConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("session.time_zone", &s.TimeZone, defaultTimeZone),
		stringFieldDefault("session.open", &s.Open, defaultOpen),
		stringFieldDefault("session.close", &s.Close, defaultClose),
		stringFieldDefault("session.window_start", &s.WindowStart, defaultWindowStart),
		stringFieldDefault("session.window_end", &s.WindowEnd, defaultWindowEnd),
		stringFieldDefault("session.pre_open_start", &s.PreOpenStart, defaultPreOpen),
		stringFieldDefault("session.pre_open_end", &s.PreOpenEnd, defaultOpen),
	)
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("schedule.risk_interval_seconds", &s.RiskIntervalSeconds, defaultRiskInterval),
		intFieldDefault("schedule.stale_orders_interval_seconds", &s.StaleOrdersIntervalSeconds, defaultHouseInterval),
		intFieldDefault("schedule.window_orders_interval_seconds", &s.WindowOrdersIntervalSeconds, defaultHouseInterval),
		intFieldDefault("schedule.sweep_interval_seconds", &s.SweepIntervalSeconds, defaultHouseInterval),
	)
}

func (r *RetryConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("retry.max_attempts", &r.MaxAttempts, defaultRetryAttempts),
		intFieldDefault("retry.base_delay_ms", &r.BaseDelayMillis, defaultRetryBaseMillis),
		intFieldDefault("retry.max_delay_seconds", &r.MaxDelaySeconds, defaultRetryMaxDelay),
		floatFieldDefault("retry.factor", &r.Factor, defaultRetryFactor),
		intFieldDefault("retry.breaker_threshold", &r.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("retry.breaker_cooldown_seconds", &r.BreakerCooldownSec, defaultBreakerCooldown),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk.buffer_ratio", &r.BufferRatio, defaultBufferRatio),
		floatFieldDefault("risk.trim_fraction", &r.TrimFraction, defaultTrimFraction),
		floatFieldDefault("risk.trailing_stop_pct", &r.TrailingStopPct, defaultTrailingStop),
	)
}

func (s *SizingConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("sizing.equity_divisor", &s.EquityDivisor, defaultEquityDivisor),
		floatFieldDefault("sizing.min_notional", &s.MinNotional, defaultMinNotional),
		intFieldDefault("sizing.volume_lookback_days", &s.VolumeLookback, defaultVolumeDays),
	)
}

func (h *HousekeepingConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("housekeeping.stale_order_age_seconds", &h.StaleOrderAgeSeconds, defaultStaleOrderAge),
		floatFieldDefault("housekeeping.sweep_threshold_pct", &h.SweepThresholdPct, defaultSweepPct),
	)
}

func (i *IngestConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("ingest.poll_interval_seconds", &i.PollIntervalSeconds, defaultPollInterval),
		boolFieldDefault("ingest.watch", &i.Watch, true),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
