package app

import (
	"fmt"
	"strings"

	"exalted/internal/config"
)

// StartupSummary is the configuration banner printed once at start-up.
type StartupSummary struct {
	Env       string
	Broker    string
	Files     config.FilesConfig
	Session   config.SessionConfig
	Schedule  config.ScheduleConfig
	Risk      config.RiskConfig
	Sizing    config.SizingConfig
	Sweep     float64
	StaleAge  string
	HTTPAddr  string
	Telegram  bool
	WatchFile bool
}

func newStartupSummary(cfg *config.Config) *StartupSummary {
	return &StartupSummary{
		Env:       cfg.App.Env,
		Broker:    cfg.Broker.BaseURL,
		Files:     cfg.Files,
		Session:   cfg.Session,
		Schedule:  cfg.Schedule,
		Risk:      cfg.Risk,
		Sizing:    cfg.Sizing,
		Sweep:     cfg.Housekeeping.SweepThresholdPct,
		StaleAge:  cfg.Housekeeping.StaleOrderAge().String(),
		HTTPAddr:  cfg.App.HTTPAddr,
		Telegram:  cfg.Notify.Telegram.Enabled,
		WatchFile: cfg.Ingest.Watch,
	}
}

// String renders the banner.
func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 72)
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "%*s\n", 36+len("STARTUP SUMMARY")/2, "STARTUP SUMMARY")
	fmt.Fprintln(&b, line)

	fmt.Fprintln(&b, "[BROKER]")
	fmt.Fprintf(&b, "  env: %s\n", s.Env)
	fmt.Fprintf(&b, "  base url: %s\n", s.Broker)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[FILES]")
	fmt.Fprintf(&b, "  signals: %s (watch=%v)\n", s.Files.Signals, s.WatchFile)
	fmt.Fprintf(&b, "  cursor: %s\n", s.Files.Cursor)
	fmt.Fprintf(&b, "  extremes: %s\n", s.Files.Extremes)
	fmt.Fprintf(&b, "  alt prices: %s\n", s.Files.AltPrices)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[SESSION]")
	fmt.Fprintf(&b, "  zone: %s\n", s.Session.TimeZone)
	fmt.Fprintf(&b, "  regular: %s-%s  window: %s-%s\n", s.Session.Open, s.Session.Close, s.Session.WindowStart, s.Session.WindowEnd)
	if s.Session.HasPreOpen() {
		fmt.Fprintf(&b, "  no orders: %s-%s\n", s.Session.PreOpenStart, s.Session.PreOpenEnd)
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[ACTIVITIES]")
	fmt.Fprintf(&b, "  risk every %s: buffer=%.2f trim=%.2f stop=%.3f\n",
		s.Schedule.RiskInterval(), s.Risk.BufferRatio, s.Risk.TrimFraction, s.Risk.TrailingStopPct)
	fmt.Fprintf(&b, "  stale orders every %s: age>%s\n", s.Schedule.StaleOrdersInterval(), s.StaleAge)
	fmt.Fprintf(&b, "  window orders every %s\n", s.Schedule.WindowOrdersInterval())
	fmt.Fprintf(&b, "  threshold sweep every %s: %.3f\n", s.Schedule.SweepInterval(), s.Sweep)
	fmt.Fprintf(&b, "  sizing: divisor=%.0f min_notional=%.0f lookback=%dd\n",
		s.Sizing.EquityDivisor, s.Sizing.MinNotional, s.Sizing.VolumeLookback)
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "[HTTP] %s  [TELEGRAM] %v\n", orDash(s.HTTPAddr), s.Telegram)
	fmt.Fprint(&b, line)
	return b.String()
}

func (s *StartupSummary) Print() {
	fmt.Println(s.String())
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
