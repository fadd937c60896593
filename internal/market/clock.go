// Package market resolves prices and liquidity for symbols, switching sources
// on the exchange session clock.
package market

import (
	"fmt"
	"time"

	"exalted/internal/config"
)

// Clock answers session questions in exchange time.
type Clock struct {
	loc         *time.Location
	open        time.Duration
	close       time.Duration
	windowStart time.Duration
	windowEnd   time.Duration
	gapStart    time.Duration
	gapEnd      time.Duration

	nowFn func() time.Time
}

func NewClock(cfg config.SessionConfig) (*Clock, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.TimeZone, err)
	}
	c := &Clock{loc: loc, nowFn: time.Now}
	for _, f := range []struct {
		dst *time.Duration
		raw string
	}{
		{&c.open, cfg.Open},
		{&c.close, cfg.Close},
		{&c.windowStart, cfg.WindowStart},
		{&c.windowEnd, cfg.WindowEnd},
	} {
		d, err := config.ParseClock(f.raw)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	if cfg.HasPreOpen() {
		if c.gapStart, err = config.ParseClock(cfg.PreOpenStart); err != nil {
			return nil, err
		}
		if c.gapEnd, err = config.ParseClock(cfg.PreOpenEnd); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithNow replaces the wall clock, for tests.
func (c *Clock) WithNow(fn func() time.Time) *Clock {
	if fn != nil {
		c.nowFn = fn
	}
	return c
}

func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current time in exchange time.
func (c *Clock) Now() time.Time { return c.nowFn().In(c.loc) }

// InSession reports whether t falls in the regular session [open, close).
func (c *Clock) InSession(t time.Time) bool {
	tod := timeOfDay(t.In(c.loc))
	return tod >= c.open && tod < c.close
}

// InWindow reports whether t falls in the order window [windowStart, windowEnd)
// and outside the pre-open gap [gapStart, gapEnd).
func (c *Clock) InWindow(t time.Time) bool {
	tod := timeOfDay(t.In(c.loc))
	if tod >= c.gapStart && tod < c.gapEnd {
		return false
	}
	return tod >= c.windowStart && tod < c.windowEnd
}

// PriorWeekdays lists up to n calendar days before t, newest first, with
// Saturdays and Sundays left out.
func (c *Clock) PriorWeekdays(t time.Time, n int) []time.Time {
	t = t.In(c.loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
	out := make([]time.Time, 0, n)
	for i := 1; i <= n; i++ {
		d := midnight.AddDate(0, 0, -i)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}
