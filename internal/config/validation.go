package config

import (
	"fmt"
	"strings"
	"time"
	// session time zones must resolve on hosts without a zoneinfo database
	_ "time/tzdata"
)

func validate(c *Config) error {
	if err := c.Broker.validate(); err != nil {
		return err
	}
	if err := c.AltPrice.validate(); err != nil {
		return err
	}
	if err := c.Files.validate(); err != nil {
		return err
	}
	if err := c.Session.validate(); err != nil {
		return err
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Housekeeping.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	if strings.TrimSpace(b.BaseURL) == "" {
		return fmt.Errorf("broker.base_url cannot be empty")
	}
	if strings.TrimSpace(b.APIKeyID) == "" || strings.TrimSpace(b.APISecretKey) == "" {
		return fmt.Errorf("broker credentials missing (set APCA_API_KEY_ID and APCA_API_SECRET_KEY)")
	}
	return nil
}

func (a *AltPriceConfig) validate() error {
	if strings.TrimSpace(a.APIKey) == "" {
		return fmt.Errorf("alt_price.api_key missing (set FMP_API_KEY)")
	}
	return nil
}

func (f *FilesConfig) validate() error {
	for key, val := range map[string]string{
		"files.signals":    f.Signals,
		"files.cursor":     f.Cursor,
		"files.extremes":   f.Extremes,
		"files.alt_prices": f.AltPrices,
	} {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("%s cannot be empty", key)
		}
	}
	if f.Cursor == f.Extremes {
		return fmt.Errorf("files.cursor and files.extremes must differ")
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if _, err := time.LoadLocation(s.TimeZone); err != nil {
		return fmt.Errorf("session.time_zone %q: %w", s.TimeZone, err)
	}
	open, err := ParseClock(s.Open)
	if err != nil {
		return fmt.Errorf("session.open: %w", err)
	}
	closeAt, err := ParseClock(s.Close)
	if err != nil {
		return fmt.Errorf("session.close: %w", err)
	}
	if open >= closeAt {
		return fmt.Errorf("session.open must be before session.close")
	}
	start, err := ParseClock(s.WindowStart)
	if err != nil {
		return fmt.Errorf("session.window_start: %w", err)
	}
	end, err := ParseClock(s.WindowEnd)
	if err != nil {
		return fmt.Errorf("session.window_end: %w", err)
	}
	if start >= end {
		return fmt.Errorf("session.window_start must be before session.window_end")
	}
	if !s.HasPreOpen() {
		return nil
	}
	gapStart, err := ParseClock(s.PreOpenStart)
	if err != nil {
		return fmt.Errorf("session.pre_open_start: %w", err)
	}
	gapEnd, err := ParseClock(s.PreOpenEnd)
	if err != nil {
		return fmt.Errorf("session.pre_open_end: %w", err)
	}
	if gapStart >= gapEnd {
		return fmt.Errorf("session.pre_open_start must be before session.pre_open_end")
	}
	return nil
}

func (r *RetryConfig) validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	if r.Factor < 1 {
		return fmt.Errorf("retry.factor must be >= 1")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.BufferRatio <= 0 || r.BufferRatio > 1 {
		return fmt.Errorf("risk.buffer_ratio must be in (0,1]")
	}
	if r.TrimFraction <= 0 || r.TrimFraction >= 1 {
		return fmt.Errorf("risk.trim_fraction must be in (0,1)")
	}
	if r.TrailingStopPct <= 0 || r.TrailingStopPct >= 1 {
		return fmt.Errorf("risk.trailing_stop_pct must be in (0,1)")
	}
	return nil
}

func (h *HousekeepingConfig) validate() error {
	if h.SweepThresholdPct <= 0 || h.SweepThresholdPct >= 1 {
		return fmt.Errorf("housekeeping.sweep_threshold_pct must be in (0,1)")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
