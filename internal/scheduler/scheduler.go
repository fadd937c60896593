// Package scheduler runs named jobs on fixed intervals, skipping a tick while
// the previous run still holds its token.
package scheduler

import (
	"context"
	"time"

	"exalted/internal/logger"
)

// IntervalScheduler fires a task every Interval until its context is done.
// Firings are guarded by a named token, so a slow task makes the next firing
// a logged skip rather than an overlapping run.
type IntervalScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	tokens *Tokens
	newTkr func(time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewIntervalScheduler(name string, interval time.Duration, tokens *Tokens) *IntervalScheduler {
	if tokens == nil {
		tokens = NewTokens()
	}
	return &IntervalScheduler{
		Name:     name,
		Interval: interval,
		tokens:   tokens,
		newTkr:   func(d time.Duration) ticker { return timeTicker{time.NewTicker(d)} },
	}
}

// Start blocks until ctx is done. Each firing runs task in its own goroutine
// when the token is free and is skipped otherwise.
func (s *IntervalScheduler) Start(ctx context.Context, task func(context.Context)) error {
	if s == nil || task == nil {
		return nil
	}
	if s.Interval <= 0 {
		logger.Warnf("scheduler %s: invalid interval=%s, exit", s.Name, s.Interval)
		return nil
	}
	logger.Infof("scheduler %s: started interval=%s run_immediately=%v", s.Name, s.Interval, s.RunImmediately)

	if s.RunImmediately {
		s.fire(ctx, task)
	}
	t := s.newTkr(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("scheduler %s: ctx done, exit", s.Name)
			s.tokens.Wait(s.Name)
			return nil
		case <-t.C():
			s.fire(ctx, task)
		}
	}
}

func (s *IntervalScheduler) fire(ctx context.Context, task func(context.Context)) {
	release, ok := s.tokens.TryAcquire(s.Name)
	if !ok {
		logger.Warnf("scheduler %s: previous run still in progress, skipping", s.Name)
		return
	}
	go func() {
		defer release()
		task(ctx)
	}()
}
