package config

import (
	"strings"
	"time"
)

// Config is the root configuration of the engine.
type Config struct {
	App          AppConfig          `toml:"app"`
	Broker       BrokerConfig       `toml:"broker"`
	MarketData   MarketDataConfig   `toml:"market_data"`
	AltPrice     AltPriceConfig     `toml:"alt_price"`
	Files        FilesConfig        `toml:"files"`
	Session      SessionConfig      `toml:"session"`
	Schedule     ScheduleConfig     `toml:"schedule"`
	Retry        RetryConfig        `toml:"retry"`
	Risk         RiskConfig         `toml:"risk"`
	Sizing       SizingConfig       `toml:"sizing"`
	Housekeeping HousekeepingConfig `toml:"housekeeping"`
	Ingest       IngestConfig       `toml:"ingest"`
	Notify       NotifyConfig       `toml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
	HTTPAddr  string `toml:"http_addr"`
}

// BrokerConfig points at an Alpaca-compatible trading API. Credentials are
// normally supplied through APCA_API_KEY_ID / APCA_API_SECRET_KEY.
type BrokerConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKeyID       string `toml:"api_key_id"`
	APISecretKey   string `toml:"api_secret_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (b BrokerConfig) Timeout() time.Duration { return seconds(b.TimeoutSeconds) }

type MarketDataConfig struct {
	BaseURL        string `toml:"base_url"`
	Feed           string `toml:"feed"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (m MarketDataConfig) Timeout() time.Duration { return seconds(m.TimeoutSeconds) }

// AltPriceConfig is the out-of-session price API (FMP_API_KEY).
type AltPriceConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (a AltPriceConfig) Timeout() time.Duration { return seconds(a.TimeoutSeconds) }

type FilesConfig struct {
	Signals   string `toml:"signals"`
	Cursor    string `toml:"cursor"`
	Extremes  string `toml:"extremes"`
	AltPrices string `toml:"alt_prices"`
}

// SessionConfig describes the exchange clock. Times are "HH:MM" in TimeZone.
type SessionConfig struct {
	TimeZone    string `toml:"time_zone"`
	Open        string `toml:"open"`
	Close       string `toml:"close"`
	WindowStart string `toml:"window_start"`
	WindowEnd   string `toml:"window_end"`

	// PreOpenStart and PreOpenEnd carve a no-order gap out of the window
	// ahead of the open. Both empty disables it.
	PreOpenStart string `toml:"pre_open_start"`
	PreOpenEnd   string `toml:"pre_open_end"`
}

// HasPreOpen reports whether a pre-open gap is configured.
func (s SessionConfig) HasPreOpen() bool {
	return strings.TrimSpace(s.PreOpenStart) != "" || strings.TrimSpace(s.PreOpenEnd) != ""
}

type ScheduleConfig struct {
	RiskIntervalSeconds         int `toml:"risk_interval_seconds"`
	StaleOrdersIntervalSeconds  int `toml:"stale_orders_interval_seconds"`
	WindowOrdersIntervalSeconds int `toml:"window_orders_interval_seconds"`
	SweepIntervalSeconds        int `toml:"sweep_interval_seconds"`
}

func (s ScheduleConfig) RiskInterval() time.Duration { return seconds(s.RiskIntervalSeconds) }
func (s ScheduleConfig) StaleOrdersInterval() time.Duration {
	return seconds(s.StaleOrdersIntervalSeconds)
}
func (s ScheduleConfig) WindowOrdersInterval() time.Duration {
	return seconds(s.WindowOrdersIntervalSeconds)
}
func (s ScheduleConfig) SweepInterval() time.Duration { return seconds(s.SweepIntervalSeconds) }

// RetryConfig governs transient-failure handling for every external call.
type RetryConfig struct {
	MaxAttempts        int     `toml:"max_attempts"`
	BaseDelayMillis    int     `toml:"base_delay_ms"`
	MaxDelaySeconds    int     `toml:"max_delay_seconds"`
	Factor             float64 `toml:"factor"`
	Jitter             bool    `toml:"jitter"`
	BreakerThreshold   int     `toml:"breaker_threshold"`
	BreakerCooldownSec int     `toml:"breaker_cooldown_seconds"`
}

func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMillis) * time.Millisecond
}
func (r RetryConfig) MaxDelay() time.Duration        { return seconds(r.MaxDelaySeconds) }
func (r RetryConfig) BreakerCooldown() time.Duration { return seconds(r.BreakerCooldownSec) }

type RiskConfig struct {
	BufferRatio      float64 `toml:"buffer_ratio"`
	TrimFraction     float64 `toml:"trim_fraction"`
	TrailingStopPct  float64 `toml:"trailing_stop_pct"`
	NotifyForcedExit bool    `toml:"notify_forced_exit"`
}

type SizingConfig struct {
	EquityDivisor  float64 `toml:"equity_divisor"`
	MinNotional    float64 `toml:"min_notional"`
	VolumeLookback int     `toml:"volume_lookback_days"`
}

type HousekeepingConfig struct {
	StaleOrderAgeSeconds int     `toml:"stale_order_age_seconds"`
	SweepThresholdPct    float64 `toml:"sweep_threshold_pct"`
}

func (h HousekeepingConfig) StaleOrderAge() time.Duration { return seconds(h.StaleOrderAgeSeconds) }

type IngestConfig struct {
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	Watch               bool `toml:"watch"`
}

func (i IngestConfig) PollInterval() time.Duration { return seconds(i.PollIntervalSeconds) }

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
